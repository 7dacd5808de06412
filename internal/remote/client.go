// Package remote fetches and submits event-log records against one of two
// backends: a durable ledger service with a paginated query index, or a
// key/value HTTP backend that serves pre-parsed bodies in one round trip.
package remote

import (
	"context"
	"errors"

	"github.com/EthSign/keychain-snap/internal/event"
)

// Body is one fetched log entry, still sealed.
type Body struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

// NodeRef identifies one indexed record.
type NodeRef struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
}

// LogClient is the single fetch/submit contract sync orchestration talks to.
// Implementations return explicit errors; deciding that a listing failure
// means "treat remote as empty" is the caller's call, not the client's.
type LogClient interface {
	// Events returns every record body indexed under the owner key.
	Events(ctx context.Context, owner string) ([]Body, error)
	// Submit uploads a batch of records. It returns nil only when every
	// record was acknowledged.
	Submit(ctx context.Context, owner string, subs []event.Submission) error
}

var (
	ErrSubmitRejected = errors.New("remote: submission rejected")
	ErrBadResponse    = errors.New("remote: malformed backend response")
)

// Package storage persists the opaque encrypted state blobs the wallet keeps
// per owner key. The blobs are sealed before they get here; this layer never
// sees plaintext.
package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("storage: blob not found")

// StateStore maps owner keys to opaque strings.
type StateStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

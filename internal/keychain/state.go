// Package keychain holds the credential state model, the event replay
// reducer, the reconciliation diff, and the service orchestrating sync
// against a remote log.
package keychain

import (
	"encoding/json"
	"fmt"

	"github.com/EthSign/keychain-snap/internal/event"
)

// RemoteTarget selects which remote log backend a replica pushes to.
type RemoteTarget string

const (
	TargetLedger RemoteTarget = "arweave"
	TargetKV     RemoteTarget = "aws"
	TargetNone   RemoteTarget = "none"
)

// ValidTarget reports whether s names a configurable target.
func ValidTarget(s string) bool {
	switch RemoteTarget(s) {
	case TargetLedger, TargetKV, TargetNone:
		return true
	}
	return false
}

// CredentialEntry is one stored login. Password is plaintext here; the whole
// state only ever leaves memory inside an encrypted envelope. Controlled
// names the origin managing the entry, empty for user-entered credentials.
type CredentialEntry struct {
	Website    string `json:"website"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Timestamp  int64  `json:"timestamp"`
	Controlled string `json:"controlled,omitempty"`
	Owner      string `json:"ownerAddress,omitempty"`
}

// SiteState groups credentials under one site key. Invariant: NeverSave true
// implies Logins is empty.
type SiteState struct {
	Timestamp int64             `json:"timestamp"`
	NeverSave bool              `json:"neverSave"`
	Logins    []CredentialEntry `json:"logins"`
}

// ConfigRecord is set once at first sync and immutable afterward except via a
// newer remote write.
type ConfigRecord struct {
	Address          string `json:"address"`
	EncryptionMethod string `json:"encryptionMethod"`
	Timestamp        int64  `json:"timestamp"`
}

// EncryptionMethodBIP44 is the only encryption method current replicas write.
const EncryptionMethodBIP44 = "BIP-44"

// RegistryRecord is the public address-to-key mapping, written once and
// self-signed.
type RegistryRecord struct {
	Address   string `json:"address"`
	PublicKey string `json:"publicKey"`
	Timestamp int64  `json:"timestamp"`
}

// State is the root aggregate one replica persists. Timestamp is the logical
// clock: the maximum of all timestamps the state has absorbed.
type State struct {
	Config       ConfigRecord         `json:"config"`
	Registry     RegistryRecord       `json:"registry"`
	SiteStates   map[string]*SiteState `json:"siteStates"`
	Pending      []Pending            `json:"pendingEvents"`
	AccessGrants map[string]bool      `json:"accessGrants"`
	Password     string               `json:"password,omitempty"`
	RemoteTarget *RemoteTarget        `json:"remoteTarget"`
	Timestamp    int64                `json:"timestamp"`
}

// NewState returns an empty replica state.
func NewState() *State {
	return &State{
		SiteStates:   map[string]*SiteState{},
		AccessGrants: map[string]bool{},
	}
}

// Clone deep-copies the state so replay can fold without aliasing the seed.
func (s *State) Clone() *State {
	out := &State{
		Config:       s.Config,
		Registry:     s.Registry,
		SiteStates:   make(map[string]*SiteState, len(s.SiteStates)),
		Pending:      append([]Pending(nil), s.Pending...),
		AccessGrants: make(map[string]bool, len(s.AccessGrants)),
		Password:     s.Password,
		Timestamp:    s.Timestamp,
	}
	if s.RemoteTarget != nil {
		t := *s.RemoteTarget
		out.RemoteTarget = &t
	}
	for k, site := range s.SiteStates {
		cp := *site
		cp.Logins = append([]CredentialEntry(nil), site.Logins...)
		out.SiteStates[k] = &cp
	}
	for k, v := range s.AccessGrants {
		out.AccessGrants[k] = v
	}
	return out
}

// Target resolves the configured remote target, defaulting to none.
func (s *State) Target() RemoteTarget {
	if s.RemoteTarget == nil {
		return TargetNone
	}
	return *s.RemoteTarget
}

func (s *State) site(key string) *SiteState {
	if st, ok := s.SiteStates[key]; ok {
		return st
	}
	st := &SiteState{}
	s.SiteStates[key] = st
	return st
}

// Pending wraps an outbound event so the queue survives JSON round trips
// through the persisted state blob.
type Pending struct {
	Ev event.Event
}

type pendingWire struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (p Pending) MarshalJSON() ([]byte, error) {
	payload, err := event.MarshalPayload(p.Ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(pendingWire{Type: string(p.Ev.Kind()), Payload: payload})
}

func (p *Pending) UnmarshalJSON(b []byte) error {
	var w pendingWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	ev, err := event.ParsePayload(w.Type, w.Payload)
	if err != nil {
		return fmt.Errorf("pending event: %w", err)
	}
	p.Ev = ev
	return nil
}

// MarshalState serializes a state for the encrypted blob.
func MarshalState(s *State) ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalState parses a decrypted blob, defaulting absent collections so
// older blobs load cleanly.
func UnmarshalState(b []byte) (*State, error) {
	s := NewState()
	if err := json.Unmarshal(b, s); err != nil {
		return nil, err
	}
	if s.SiteStates == nil {
		s.SiteStates = map[string]*SiteState{}
	}
	if s.AccessGrants == nil {
		s.AccessGrants = map[string]bool{}
	}
	return s, nil
}

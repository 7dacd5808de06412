package keychain

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/EthSign/keychain-snap/internal/codec"
	"github.com/EthSign/keychain-snap/internal/crypto"
	"github.com/EthSign/keychain-snap/internal/event"
	"github.com/EthSign/keychain-snap/internal/remote"
	"github.com/EthSign/keychain-snap/internal/wallet"
)

// Service owns the replica's state lifecycle. It is constructed once per
// process and carries the two mutual-exclusion sections as real mutexes:
// stateMu guards read-modify-write of site states during one user-facing
// mutation, queueMu guards enqueue-and-drain of the pending queue. They are
// separate on purpose: a network-bound drain must not block new local
// mutations from being recorded.
type Service struct {
	wallet  wallet.Wallet
	clients map[RemoteTarget]remote.LogClient
	clock   clockwork.Clock
	logger  *log.Logger

	stateMu sync.Mutex
	queueMu sync.Mutex

	// remoteInitFailed is a non-blocking internal flag; a later successful
	// sync clears it.
	remoteInitFailed bool
}

// Option configures a Service.
type Option func(*Service)

func WithClock(c clockwork.Clock) Option { return func(s *Service) { s.clock = c } }
func WithLogger(l *log.Logger) Option    { return func(s *Service) { s.logger = l } }

func NewService(w wallet.Wallet, ledger, kv remote.LogClient, opts ...Option) *Service {
	s := &Service{
		wallet:  w,
		clients: map[RemoteTarget]remote.LogClient{},
		clock:   clockwork.NewRealClock(),
		logger:  log.New(log.Writer(), "[keychain] ", log.LstdFlags),
	}
	if ledger != nil {
		s.clients[TargetLedger] = ledger
	}
	if kv != nil {
		s.clients[TargetKV] = kv
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) now() int64 { return s.clock.Now().Unix() }

// ownerKey is the storage and listing identity: the encoded signing public
// key.
func (s *Service) ownerKey(ctx context.Context) (string, error) {
	pub, _, err := s.wallet.SigningKey(ctx)
	if err != nil {
		return "", err
	}
	return codec.Encode(pub), nil
}

func (s *Service) storageKey(owner string) string { return "keychain/" + owner }

// loadState reads the persisted blob and decrypts it. A missing blob, or one
// that fails to decode, yields a fresh empty state: undecodable local data is
// treated as no data, never as a fatal condition.
func (s *Service) loadState(ctx context.Context) (*State, error) {
	owner, err := s.ownerKey(ctx)
	if err != nil {
		return nil, err
	}
	blob, ok, err := s.wallet.GetBlob(ctx, s.storageKey(owner))
	if err != nil {
		return nil, err
	}
	if !ok || blob == "" {
		return NewState(), nil
	}
	secret, err := s.wallet.DeriveSecret(ctx)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(secret)
	pt, err := crypto.DecryptBlob(blob, secret, "")
	if err != nil {
		s.logger.Printf("local state undecodable, starting fresh")
		return NewState(), nil
	}
	state, err := UnmarshalState(pt)
	if err != nil {
		s.logger.Printf("local state unparsable, starting fresh")
		return NewState(), nil
	}
	return state, nil
}

// persist seals the state and writes it back through the wallet's managed
// storage. The outer storage map is the host wallet's concern; this envelope
// exists because that boundary is not ours to trust.
func (s *Service) persist(ctx context.Context, state *State) error {
	owner, err := s.ownerKey(ctx)
	if err != nil {
		return err
	}
	pt, err := MarshalState(state)
	if err != nil {
		return err
	}
	secret, err := s.wallet.DeriveSecret(ctx)
	if err != nil {
		return err
	}
	defer crypto.Zero(secret)
	blob, err := crypto.EncryptBlob(pt, secret, "", state.Timestamp)
	if err != nil {
		return err
	}
	return s.wallet.PutBlob(ctx, s.storageKey(owner), blob)
}

// identity resolves the owner address and the exchange public key published
// in registry records.
func (s *Service) identity(ctx context.Context) (Identity, error) {
	addr, err := s.wallet.OwnerAddress(ctx)
	if err != nil {
		return Identity{}, err
	}
	dh, err := s.wallet.ExchangeKey(ctx)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Address: addr, PublicKey: codec.Encode(dh.Pub.Bytes())}, nil
}

// mutate runs one user-facing state mutation under the state-mutation
// section: read current persisted state, fold the event in, enqueue it for
// upload, write back.
func (s *Service) mutate(ctx context.Context, ev event.Event) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	state, err := s.loadState(ctx)
	if err != nil {
		return err
	}
	Apply(state, ev)
	s.enqueuePending(state, ev)
	return s.persist(ctx, state)
}

// enqueuePending appends under the pending-queue section so the append is
// atomic with respect to a concurrent drain's queue-clear.
func (s *Service) enqueuePending(state *State, ev event.Event) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	for _, p := range state.Pending {
		if p.Ev == ev {
			return
		}
	}
	state.Pending = append(state.Pending, Pending{Ev: ev})
}

// SetPassword records a credential write and schedules its upload.
func (s *Service) SetPassword(ctx context.Context, site, username, password, controlled string) error {
	if err := s.mutate(ctx, event.SiteSet{
		Site:       site,
		Username:   username,
		Password:   password,
		Controlled: controlled,
		Timestamp:  s.now(),
	}); err != nil {
		return err
	}
	s.drainBestEffort(ctx)
	return nil
}

// RemovePassword deletes one credential by username.
func (s *Service) RemovePassword(ctx context.Context, site, username string) error {
	if err := s.mutate(ctx, event.SiteDelete{Site: site, Username: username, Timestamp: s.now()}); err != nil {
		return err
	}
	s.drainBestEffort(ctx)
	return nil
}

// SetNeverSave toggles the per-site save block.
func (s *Service) SetNeverSave(ctx context.Context, site string, neverSave bool) error {
	if err := s.mutate(ctx, event.SiteNeverSave{Site: site, NeverSave: neverSave, Timestamp: s.now()}); err != nil {
		return err
	}
	s.drainBestEffort(ctx)
	return nil
}

// GetPassword returns the site state for one key, empty when unknown.
func (s *Service) GetPassword(ctx context.Context, site string) (SiteState, error) {
	state, err := s.loadState(ctx)
	if err != nil {
		return SiteState{}, err
	}
	st, ok := state.SiteStates[site]
	if !ok {
		return SiteState{Logins: []CredentialEntry{}}, nil
	}
	out := *st
	out.Logins = append([]CredentialEntry(nil), st.Logins...)
	return out, nil
}

// SetSyncTo switches the remote target after a user confirmation. It returns
// the new target, or the unchanged current one when the user declines.
func (s *Service) SetSyncTo(ctx context.Context, target string) (*RemoteTarget, error) {
	if !ValidTarget(target) {
		return nil, fmt.Errorf("keychain: unknown sync target %q", target)
	}
	ok, err := s.wallet.Confirm(ctx, wallet.Prompt{
		Title: "Change sync target",
		Body:  fmt.Sprintf("Store your encrypted keychain events on %q from now on?", target),
	})
	if err != nil {
		return nil, err
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	state, err := s.loadState(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return state.RemoteTarget, nil
	}
	t := RemoteTarget(target)
	state.RemoteTarget = &t
	if err := s.persist(ctx, state); err != nil {
		return nil, err
	}
	return state.RemoteTarget, nil
}

// GetSyncTo reports the configured remote target, nil when never set.
func (s *Service) GetSyncTo(ctx context.Context) (*RemoteTarget, error) {
	state, err := s.loadState(ctx)
	if err != nil {
		return nil, err
	}
	return state.RemoteTarget, nil
}

// Sync runs one full reconciliation cycle: fetch the remote log, replay it
// into a local-seeded and a remote-only snapshot, diff the two into pending
// events, persist, then drain. Total network failure degrades to an empty
// remote view; the state is always left at least as fresh as before.
func (s *Service) Sync(ctx context.Context) error {
	s.stateMu.Lock()
	state, err := s.loadState(ctx)
	if err != nil {
		s.stateMu.Unlock()
		return err
	}

	events := s.fetchRemoteEvents(ctx, state)

	localSnap := Replay(events, state)
	remoteSnap := Replay(events, NewState())

	id, err := s.identity(ctx)
	if err != nil {
		s.stateMu.Unlock()
		return err
	}
	localSnap = Reconcile(localSnap, remoteSnap, id, s.now())

	if err := s.persist(ctx, localSnap); err != nil {
		s.stateMu.Unlock()
		return err
	}
	s.stateMu.Unlock()

	_, err = s.Drain(ctx)
	return err
}

// fetchRemoteEvents pulls and decodes the full remote log. Any listing
// failure resolves to an empty slice: sync proceeds treating "remote
// unreachable" the same as "remote empty", and the next successful sync
// reconciles.
func (s *Service) fetchRemoteEvents(ctx context.Context, state *State) []event.Event {
	client, ok := s.clients[state.Target()]
	if !ok {
		return nil
	}
	owner, err := s.ownerKey(ctx)
	if err != nil {
		s.remoteInitFailed = true
		return nil
	}
	bodies, err := client.Events(ctx, owner)
	if err != nil {
		s.logger.Printf("remote listing failed, treating as empty: %v", err)
		s.remoteInitFailed = true
		return nil
	}
	s.remoteInitFailed = false

	secret, err := s.wallet.DeriveSecret(ctx)
	if err != nil {
		return nil
	}
	defer crypto.Zero(secret)

	events := make([]event.Event, 0, len(bodies))
	for _, b := range bodies {
		ev, ok := s.decodeBody(b, secret, state.Password)
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	return events
}

// decodeBody turns one wire body into an event. Registry bodies are plaintext
// signed JSON; everything else is an encrypted envelope. Records that fail to
// decrypt, verify, or parse are skipped, never fatal: the log is shared
// infrastructure and not every record on it is ours.
func (s *Service) decodeBody(b remote.Body, secret []byte, password string) (event.Event, bool) {
	if event.Kind(b.Type) == event.KindRegistrySet {
		ev, err := decodeSignedRegistry([]byte(b.Payload))
		if err != nil {
			return nil, false
		}
		return ev, true
	}
	pt, err := crypto.DecryptBlob(b.Payload, secret, password)
	if err != nil {
		return nil, false
	}
	ev, err := event.ParsePayload(b.Type, pt)
	if err != nil {
		return nil, false
	}
	return ev, true
}

// signedRegistry is the plaintext wire shape of a registry payload: the
// record itself plus proof of authorship.
type signedRegistry struct {
	Data      json.RawMessage `json:"data"`
	Signer    string          `json:"signer"`
	Signature []byte          `json:"signature"`
	Message   string          `json:"message"`
}

func decodeSignedRegistry(payload []byte) (event.Event, error) {
	var sr signedRegistry
	if err := json.Unmarshal(payload, &sr); err != nil {
		return nil, err
	}
	signer, err := codec.Decode(sr.Signer)
	if err != nil || len(signer) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("registry: bad signer key")
	}
	if !crypto.VerifyRegistry(ed25519.PublicKey(signer), sr.Data, sr.Signature, sr.Message) {
		return nil, fmt.Errorf("registry: signature verification failed")
	}
	return event.ParsePayload(string(event.KindRegistrySet), sr.Data)
}

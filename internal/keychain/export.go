package keychain

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/EthSign/keychain-snap/internal/codec"
	"github.com/EthSign/keychain-snap/internal/crypto"
	"github.com/EthSign/keychain-snap/internal/event"
	"github.com/EthSign/keychain-snap/internal/wallet"
)

var (
	ErrUserDeclined      = errors.New("keychain: user declined")
	ErrUnresolvedAddress = errors.New("keychain: address has no published key")
	ErrBadImportBlob     = errors.New("keychain: import blob undecodable")
)

// exportBlob is the serialized export artifact: argon2id parameters in the
// clear, the site-state map sealed under the derived key.
type exportBlob struct {
	KDF struct {
		M    uint32 `json:"m"`
		T    uint32 `json:"t"`
		P    uint8  `json:"p"`
		Salt []byte `json:"salt"`
	} `json:"kdf"`
	Cipher []byte `json:"cipher"`
}

const (
	importMerge   = "merge"
	importReplace = "replace"
)

// Export produces a password-encrypted copy of the full site-state map. The
// password comes from a wallet dialog; a decline aborts with ErrUserDeclined.
func (s *Service) Export(ctx context.Context) (string, error) {
	password, ok, err := s.wallet.RequestPassword(ctx, wallet.Prompt{
		Title: "Export keychain",
		Body:  "Choose a password protecting the exported file.",
	})
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrUserDeclined
	}

	state, err := s.loadState(ctx)
	if err != nil {
		return "", err
	}
	pt, err := json.Marshal(state.SiteStates)
	if err != nil {
		return "", err
	}

	params := crypto.DefaultExportKDF()
	key := crypto.DeriveExportKey(password, params)
	defer crypto.Zero(key)
	ct, err := crypto.SealX(key, pt, []byte("keychain-export"))
	if err != nil {
		return "", err
	}

	var blob exportBlob
	blob.KDF.M, blob.KDF.T, blob.KDF.P, blob.KDF.Salt = params.M, params.T, params.P, params.Salt
	blob.Cipher = ct
	out, err := json.Marshal(blob)
	if err != nil {
		return "", err
	}
	return codec.Encode(out), nil
}

// Import decrypts an export blob and folds it into local state. The user
// chooses merge (entries replayed with their own timestamps, older data
// loses) or replace (current map discarded, timestamps rewritten to now).
func (s *Service) Import(ctx context.Context, data string) error {
	password, ok, err := s.wallet.RequestPassword(ctx, wallet.Prompt{
		Title: "Import keychain",
		Body:  "Enter the password the exported file was protected with.",
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserDeclined
	}

	sites, err := decodeExport(data, password)
	if err != nil {
		return err
	}

	mode, ok, err := s.wallet.Choose(ctx, wallet.Prompt{
		Title: "Import keychain",
		Body:  "Merge the imported entries into your keychain, or replace it entirely?",
	}, []string{importMerge, importReplace})
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserDeclined
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	state, err := s.loadState(ctx)
	if err != nil {
		return err
	}

	switch mode {
	case importReplace:
		now := s.now()
		state.SiteStates = map[string]*SiteState{}
		for key, site := range sites {
			cp := *site
			cp.Timestamp = now
			for i := range cp.Logins {
				cp.Logins[i].Timestamp = now
			}
			state.SiteStates[key] = &cp
			s.enqueueSite(state, key, &cp)
		}
		if now > state.Timestamp {
			state.Timestamp = now
		}
	default:
		for key, site := range sites {
			for _, ev := range siteEvents(key, site) {
				if Apply(state, ev) {
					s.enqueuePending(state, ev)
				}
			}
		}
	}
	return s.persist(ctx, state)
}

func decodeExport(data, password string) (map[string]*SiteState, error) {
	raw, err := codec.Decode(data)
	if err != nil {
		return nil, ErrBadImportBlob
	}
	var blob exportBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return nil, ErrBadImportBlob
	}
	key := crypto.DeriveExportKey(password, crypto.KDFParams{
		M: blob.KDF.M, T: blob.KDF.T, P: blob.KDF.P, Salt: blob.KDF.Salt,
	})
	defer crypto.Zero(key)
	pt, err := crypto.OpenX(key, blob.Cipher, []byte("keychain-export"))
	if err != nil {
		return nil, ErrBadImportBlob
	}
	var sites map[string]*SiteState
	if err := json.Unmarshal(pt, &sites); err != nil {
		return nil, ErrBadImportBlob
	}
	return sites, nil
}

// siteEvents expresses one imported site state as the events that produce it.
func siteEvents(key string, site *SiteState) []event.Event {
	if site == nil {
		return nil
	}
	events := make([]event.Event, 0, len(site.Logins)+1)
	if site.NeverSave {
		events = append(events, event.SiteNeverSave{Site: key, NeverSave: true, Timestamp: site.Timestamp})
	}
	for _, l := range site.Logins {
		events = append(events, event.SiteSet{
			Site:       key,
			Username:   l.Username,
			Password:   l.Password,
			Controlled: l.Controlled,
			Timestamp:  l.Timestamp,
		})
	}
	return events
}

func (s *Service) enqueueSite(state *State, key string, site *SiteState) {
	for _, ev := range siteEvents(key, site) {
		s.enqueuePending(state, ev)
	}
}

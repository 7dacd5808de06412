package keychain

import "github.com/EthSign/keychain-snap/internal/event"

// Identity is the wallet-derived owner identity used for genesis records.
type Identity struct {
	Address   string
	PublicKey string
}

// Reconcile compares a locally-seeded snapshot against a fully-remote-replayed
// snapshot and appends to local.Pending the minimal events that, replayed on
// the remote log, converge it to the local view. Events structurally equal to
// an already-pending entry are not enqueued again, so a standing correction
// is pushed once, not once per sync.
//
// Site keys present only remotely need no action here: replay already merged
// them into the local snapshot.
func Reconcile(local, remote *State, id Identity, now int64) *State {
	// Genesis: a replica that has never published synthesizes its own
	// registry and config from the wallet-derived identity.
	if local.Registry.Address == "" {
		local.Registry = RegistryRecord{Address: id.Address, PublicKey: id.PublicKey, Timestamp: now}
	}
	if local.Config.Address == "" {
		local.Config = ConfigRecord{Address: id.Address, EncryptionMethod: EncryptionMethodBIP44, Timestamp: now}
	}

	if local.Registry.Timestamp > remote.Registry.Timestamp || local.Registry.Address != remote.Registry.Address {
		enqueue(local, event.RegistrySet{
			Address:   local.Registry.Address,
			PublicKey: local.Registry.PublicKey,
			Timestamp: local.Registry.Timestamp,
		})
	}
	if local.Config.Timestamp > remote.Config.Timestamp || local.Config.Address != remote.Config.Address {
		enqueue(local, event.ConfigSet{
			Address:          local.Config.Address,
			EncryptionMethod: local.Config.EncryptionMethod,
			Timestamp:        local.Config.Timestamp,
		})
	}

	for key, site := range local.SiteStates {
		remoteSite := remote.SiteStates[key]

		if site.NeverSave && (remoteSite == nil || !remoteSite.NeverSave) {
			enqueue(local, event.SiteNeverSave{Site: key, NeverSave: true, Timestamp: site.Timestamp})
		}

		for _, login := range site.Logins {
			if rl, ok := findLogin(remoteSite, login.Username); !ok || rl.Timestamp < login.Timestamp {
				enqueue(local, event.SiteSet{
					Site:       key,
					Username:   login.Username,
					Password:   login.Password,
					Controlled: login.Controlled,
					Timestamp:  login.Timestamp,
				})
			}
		}

		if remoteSite == nil {
			continue
		}
		// A remote login absent locally was deleted here after the last
		// sync; the delete stamps the site's clock so it supersedes the
		// remote write it removes.
		for _, rl := range remoteSite.Logins {
			if _, ok := findLogin(site, rl.Username); !ok {
				enqueue(local, event.SiteDelete{Site: key, Username: rl.Username, Timestamp: site.Timestamp})
			}
		}
	}
	return local
}

func findLogin(site *SiteState, username string) (CredentialEntry, bool) {
	if site == nil {
		return CredentialEntry{}, false
	}
	for _, l := range site.Logins {
		if l.Username == username {
			return l, true
		}
	}
	return CredentialEntry{}, false
}

// enqueue appends ev unless a structurally identical entry is already
// pending. Equality is uniform across kinds: the payload structs are
// comparable, so two events match exactly when every field matches.
func enqueue(s *State, ev event.Event) {
	for _, p := range s.Pending {
		if p.Ev == ev {
			return
		}
	}
	s.Pending = append(s.Pending, Pending{Ev: ev})
}

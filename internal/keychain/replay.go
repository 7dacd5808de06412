package keychain

import "github.com/EthSign/keychain-snap/internal/event"

// Replay folds an event list into a snapshot. Every rule gates on payload
// timestamps rather than arrival order, so the fold is idempotent and two
// replicas fed the same events in different orders converge on the same
// final value. Paginated fetches and cache lookups do not guarantee a single
// global order, so nothing here may depend on it.
//
// The seed is never mutated; the fold works on a deep copy.
func Replay(events []event.Event, seed *State) *State {
	state := seed.Clone()
	for _, e := range events {
		Apply(state, e)
	}
	return state
}

// Apply folds one event into state in place, returning whether anything
// changed. Unknown kinds are skipped, never fatal.
func Apply(state *State, e event.Event) bool {
	applied := false
	switch ev := e.(type) {
	case event.ConfigSet:
		applied = applyConfig(state, ev)
	case event.RegistrySet:
		applied = applyRegistry(state, ev)
	case event.SiteSet:
		applied = applySiteSet(state, ev)
	case event.SiteDelete:
		applied = applySiteDelete(state, ev)
	case event.SiteClear:
		applied = applySiteClear(state, ev)
	case event.SiteNeverSave:
		applied = applySiteNeverSave(state, ev)
	default:
		return false
	}
	if applied && e.When() > state.Timestamp {
		state.Timestamp = e.When()
	}
	return applied
}

func applyConfig(state *State, ev event.ConfigSet) bool {
	if ev.Timestamp <= state.Config.Timestamp {
		return false
	}
	state.Config = ConfigRecord{
		Address:          ev.Address,
		EncryptionMethod: ev.EncryptionMethod,
		Timestamp:        ev.Timestamp,
	}
	return true
}

func applyRegistry(state *State, ev event.RegistrySet) bool {
	if ev.Timestamp <= state.Registry.Timestamp {
		return false
	}
	state.Registry = RegistryRecord{
		Address:   ev.Address,
		PublicKey: ev.PublicKey,
		Timestamp: ev.Timestamp,
	}
	return true
}

func applySiteSet(state *State, ev event.SiteSet) bool {
	site := state.site(ev.Site)

	// A standing neverSave block absorbs older writes; an explicit save
	// newer than the block always wins and clears it.
	if site.NeverSave {
		if ev.Timestamp <= site.Timestamp {
			return false
		}
		site.NeverSave = false
	}

	entry := CredentialEntry{
		Website:    ev.Site,
		Username:   ev.Username,
		Password:   ev.Password,
		Timestamp:  ev.Timestamp,
		Controlled: ev.Controlled,
		Owner:      state.Config.Address,
	}

	applied := false
	found := false
	for i := range site.Logins {
		if site.Logins[i].Username != ev.Username {
			continue
		}
		found = true
		if site.Logins[i].Timestamp < ev.Timestamp {
			site.Logins[i] = entry
			applied = true
		}
		break
	}
	if !found {
		site.Logins = append(site.Logins, entry)
		applied = true
	}
	if ev.Timestamp > site.Timestamp {
		site.Timestamp = ev.Timestamp
		applied = true
	}
	return applied
}

func applySiteDelete(state *State, ev event.SiteDelete) bool {
	site, ok := state.SiteStates[ev.Site]
	if !ok {
		return false
	}
	for i := range site.Logins {
		if site.Logins[i].Username != ev.Username {
			continue
		}
		// A delete cannot remove a login written after it.
		if site.Logins[i].Timestamp >= ev.Timestamp {
			return false
		}
		site.Logins = append(site.Logins[:i], site.Logins[i+1:]...)
		if ev.Timestamp > site.Timestamp {
			site.Timestamp = ev.Timestamp
		}
		return true
	}
	return false
}

func applySiteClear(state *State, ev event.SiteClear) bool {
	site := state.site(ev.Site)
	if site.Timestamp >= ev.Timestamp {
		return false
	}
	kept := site.Logins[:0]
	for _, l := range site.Logins {
		if l.Timestamp > ev.Timestamp {
			kept = append(kept, l)
		}
	}
	site.Logins = kept
	if len(site.Logins) == 0 {
		// Clearing means the user wants nothing saved going forward until
		// they explicitly re-enable.
		site.NeverSave = true
	}
	site.Timestamp = ev.Timestamp
	return true
}

func applySiteNeverSave(state *State, ev event.SiteNeverSave) bool {
	site := state.site(ev.Site)
	applied := false

	if ev.NeverSave {
		kept := site.Logins[:0]
		for _, l := range site.Logins {
			if l.Timestamp > ev.Timestamp {
				kept = append(kept, l)
			} else {
				applied = true
			}
		}
		site.Logins = kept
	}
	if ev.Timestamp > site.Timestamp {
		site.NeverSave = ev.NeverSave
		site.Timestamp = ev.Timestamp
		applied = true
	}
	return applied
}

package keychain

import (
	"context"

	"github.com/EthSign/keychain-snap/internal/access"
)

// Authorize runs the access gate against persisted grants. Approved grants
// are written back immediately so the user is not prompted again next call.
func (s *Service) Authorize(ctx context.Context, gate *access.Gate, origin string, elevated, global bool) (bool, error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	state, err := s.loadState(ctx)
	if err != nil {
		return false, err
	}
	granted, updated, err := gate.Authorize(ctx, origin, state.AccessGrants, elevated, global)
	if err != nil {
		return false, err
	}
	if updated {
		if err := s.persist(ctx, state); err != nil {
			return false, err
		}
	}
	return granted, nil
}

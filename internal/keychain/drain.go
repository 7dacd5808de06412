package keychain

import (
	"context"
	"encoding/json"

	"github.com/EthSign/keychain-snap/internal/codec"
	"github.com/EthSign/keychain-snap/internal/crypto"
	"github.com/EthSign/keychain-snap/internal/event"
)

// Drain submits the full pending queue as one batch and clears it only when
// every chunk is acknowledged. Any failure leaves the whole queue intact for
// the next retry: replay on the far side is idempotent, so redundant
// resubmission is safe and partial-success bookkeeping is deliberately
// avoided. The entire drain holds the pending-queue section so no second
// drain runs concurrently.
func (s *Service) Drain(ctx context.Context) (*State, error) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	state, err := s.loadState(ctx)
	if err != nil {
		return nil, err
	}
	if len(state.Pending) == 0 {
		return state, nil
	}
	client, ok := s.clients[state.Target()]
	if !ok {
		return state, nil
	}

	owner, err := s.ownerKey(ctx)
	if err != nil {
		return nil, err
	}
	subs, err := s.buildSubmissions(ctx, state, owner)
	if err != nil {
		return nil, err
	}
	if err := client.Submit(ctx, owner, subs); err != nil {
		s.logger.Printf("drain: upload failed, retaining %d pending events: %v", len(state.Pending), err)
		return state, nil
	}

	state.Pending = nil
	if err := s.persist(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// drainBestEffort attempts an immediate upload after a mutation; failure is
// fine, the events stay queued for the next sync.
func (s *Service) drainBestEffort(ctx context.Context) {
	if _, err := s.Drain(ctx); err != nil {
		s.logger.Printf("drain: %v", err)
	}
}

// buildSubmissions seals every pending event into its wire record. Registry
// records are signed plaintext tagged by owner address for reverse lookup;
// everything else is encrypted and tagged by the owner's public key.
func (s *Service) buildSubmissions(ctx context.Context, state *State, owner string) ([]event.Submission, error) {
	secret, err := s.wallet.DeriveSecret(ctx)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(secret)

	subs := make([]event.Submission, 0, len(state.Pending))
	for _, p := range state.Pending {
		payload, err := event.MarshalPayload(p.Ev)
		if err != nil {
			return nil, err
		}

		if p.Ev.Kind() == event.KindRegistrySet {
			sub, err := s.buildRegistrySubmission(ctx, state, payload)
			if err != nil {
				return nil, err
			}
			subs = append(subs, sub)
			continue
		}

		sealed, err := crypto.EncryptBlob(payload, secret, state.Password, p.Ev.When())
		if err != nil {
			return nil, err
		}
		subs = append(subs, event.Submission{
			Data: event.Record{Type: string(p.Ev.Kind()), Payload: sealed},
			Tags: []event.Tag{
				{Name: "ID", Value: owner},
				{Name: "Application", Value: event.ApplicationTag},
			},
		})
	}
	return subs, nil
}

func (s *Service) buildRegistrySubmission(ctx context.Context, state *State, payload []byte) (event.Submission, error) {
	pub, priv, err := s.wallet.SigningKey(ctx)
	if err != nil {
		return event.Submission{}, err
	}
	sig, msg := crypto.SignRegistry(priv, payload)
	body, err := json.Marshal(signedRegistry{
		Data:      payload,
		Signer:    codec.Encode(pub),
		Signature: sig,
		Message:   msg,
	})
	if err != nil {
		return event.Submission{}, err
	}
	return event.Submission{
		Signature:    sig,
		Message:      msg,
		Data:         event.Record{Type: string(event.KindRegistrySet), Payload: string(body)},
		ShouldVerify: true,
		Tags: []event.Tag{
			// Registry records index by address so other users can resolve
			// it without knowing our listing key.
			{Name: "ID", Value: state.Registry.Address},
			{Name: "Application", Value: event.ApplicationTag},
		},
	}, nil
}

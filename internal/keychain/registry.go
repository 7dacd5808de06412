package keychain

import (
	"context"

	"github.com/EthSign/keychain-snap/internal/codec"
	"github.com/EthSign/keychain-snap/internal/crypto"
	"github.com/EthSign/keychain-snap/internal/event"
)

// RegistryEntry is the public resolution result for one address. Fields are
// empty strings when the address has never published.
type RegistryEntry struct {
	PublicAddress string `json:"publicAddress"`
	PublicKey     string `json:"publicKey"`
}

// LookupRegistry resolves an address to its published encryption key by
// querying the remote log under the address tag. The newest verified record
// wins; an unreachable or empty remote resolves to empty strings.
func (s *Service) LookupRegistry(ctx context.Context, address string) (RegistryEntry, error) {
	state, err := s.loadState(ctx)
	if err != nil {
		return RegistryEntry{}, err
	}
	if state.Registry.Address == address && state.Registry.PublicKey != "" {
		return RegistryEntry{PublicAddress: address, PublicKey: state.Registry.PublicKey}, nil
	}

	client, ok := s.clients[state.Target()]
	if !ok {
		return RegistryEntry{}, nil
	}
	bodies, err := client.Events(ctx, address)
	if err != nil {
		s.logger.Printf("registry lookup failed, treating as unresolved: %v", err)
		return RegistryEntry{}, nil
	}

	var best event.RegistrySet
	for _, b := range bodies {
		if event.Kind(b.Type) != event.KindRegistrySet {
			continue
		}
		ev, err := decodeSignedRegistry([]byte(b.Payload))
		if err != nil {
			continue
		}
		reg, ok := ev.(event.RegistrySet)
		if !ok || reg.Address != address {
			continue
		}
		if reg.Timestamp > best.Timestamp {
			best = reg
		}
	}
	if best.Address == "" {
		return RegistryEntry{}, nil
	}
	return RegistryEntry{PublicAddress: best.Address, PublicKey: best.PublicKey}, nil
}

// EncryptFor seals data to another user's published key.
func (s *Service) EncryptFor(ctx context.Context, address string, data []byte) (string, error) {
	entry, err := s.LookupRegistry(ctx, address)
	if err != nil {
		return "", err
	}
	if entry.PublicKey == "" {
		return "", ErrUnresolvedAddress
	}
	peer, err := codec.Decode(entry.PublicKey)
	if err != nil {
		return "", ErrUnresolvedAddress
	}
	ct, err := crypto.EncryptFor(peer, data)
	if err != nil {
		return "", err
	}
	return codec.Encode(ct), nil
}

// DecryptDirected opens data sealed to this user's exchange key.
func (s *Service) DecryptDirected(ctx context.Context, data string) ([]byte, error) {
	ct, err := codec.Decode(data)
	if err != nil {
		return nil, err
	}
	dh, err := s.wallet.ExchangeKey(ctx)
	if err != nil {
		return nil, err
	}
	return crypto.DecryptFrom(dh.Priv, ct)
}

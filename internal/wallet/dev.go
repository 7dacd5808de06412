package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"io"
	"log"

	"golang.org/x/crypto/hkdf"

	"github.com/EthSign/keychain-snap/internal/codec"
	"github.com/EthSign/keychain-snap/internal/crypto"
	"github.com/EthSign/keychain-snap/internal/storage"
)

// DevWallet is a headless stand-in for the host wallet used by the dev
// facade and tests. All keys derive deterministically from one seed via
// HKDF-SHA256, storage goes through a StateStore, and dialogs resolve from a
// fixed policy instead of a UI.
type DevWallet struct {
	seed   []byte
	store  storage.StateStore
	logger *log.Logger

	// Dialog policy.
	Approve  bool
	Password string
	Choice   string
}

func NewDevWallet(seed []byte, store storage.StateStore, logger *log.Logger) *DevWallet {
	if logger == nil {
		logger = log.Default()
	}
	return &DevWallet{seed: seed, store: store, logger: logger, Approve: true}
}

func (w *DevWallet) derive(info string, n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, w.seed, nil, []byte(info)), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (w *DevWallet) OwnerAddress(context.Context) (string, error) {
	pub, _, err := w.signingKey()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(pub)
	return codec.Encode(sum[:20]), nil
}

func (w *DevWallet) DeriveSecret(context.Context) ([]byte, error) {
	return w.derive("keychain/state-key", 32)
}

func (w *DevWallet) SigningKey(context.Context) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return w.signingKey()
}

func (w *DevWallet) signingKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	seed, err := w.derive("keychain/sign-key", ed25519.SeedSize)
	if err != nil {
		return nil, nil, err
	}
	priv := ed25519.NewKeyFromSeed(seed)
	crypto.Zero(seed)
	return priv.Public().(ed25519.PublicKey), priv, nil
}

func (w *DevWallet) ExchangeKey(context.Context) (*crypto.DHKey, error) {
	// x25519 private keys are clamped scalars; raw HKDF output works as
	// key material through the ecdh package.
	raw, err := w.derive("keychain/exchange-key", 32)
	if err != nil {
		return nil, err
	}
	return crypto.X25519FromSeed(raw)
}

func (w *DevWallet) GetBlob(ctx context.Context, key string) (string, bool, error) {
	return w.store.Get(ctx, key)
}

func (w *DevWallet) PutBlob(ctx context.Context, key, value string) error {
	return w.store.Put(ctx, key, value)
}

func (w *DevWallet) Confirm(_ context.Context, p Prompt) (bool, error) {
	w.logger.Printf("confirm %q -> %v", p.Title, w.Approve)
	return w.Approve, nil
}

func (w *DevWallet) RequestPassword(_ context.Context, p Prompt) (string, bool, error) {
	if !w.Approve {
		return "", false, nil
	}
	if w.Password == "" {
		return "", false, errors.New("wallet: no dev password configured")
	}
	return w.Password, true, nil
}

func (w *DevWallet) Choose(_ context.Context, p Prompt, options []string) (string, bool, error) {
	if !w.Approve {
		return "", false, nil
	}
	for _, o := range options {
		if o == w.Choice {
			return o, true, nil
		}
	}
	if len(options) == 0 {
		return "", false, nil
	}
	return options[0], true, nil
}

// Package wallet abstracts the host wallet runtime: key derivation, opaque
// blob persistence inside the wallet's per-application storage, and the
// user-facing dialogs. The keychain never sees raw wallet entropy beyond the
// secrets derived here.
package wallet

import (
	"context"
	"crypto/ed25519"

	"github.com/EthSign/keychain-snap/internal/crypto"
)

// Prompt is the content of one user-facing confirmation dialog.
type Prompt struct {
	Title string
	Body  string
}

// Wallet is the external collaborator contract. All methods may suspend on
// I/O or on a user dialog.
type Wallet interface {
	// OwnerAddress returns the wallet-derived address identifying this
	// replica's owner.
	OwnerAddress(ctx context.Context) (string, error)
	// DeriveSecret returns the BIP-44-derived symmetric secret keying the
	// state envelope.
	DeriveSecret(ctx context.Context) ([]byte, error)
	// SigningKey returns the key pair signing registry records.
	SigningKey(ctx context.Context) (ed25519.PublicKey, ed25519.PrivateKey, error)
	// ExchangeKey returns the x25519 pair used for directed encryption.
	ExchangeKey(ctx context.Context) (*crypto.DHKey, error)

	// GetBlob reads an opaque string from managed storage. The second
	// result is false when the key has never been written.
	GetBlob(ctx context.Context, key string) (string, bool, error)
	// PutBlob writes an opaque string to managed storage.
	PutBlob(ctx context.Context, key, value string) error

	// Confirm shows a yes/no dialog.
	Confirm(ctx context.Context, p Prompt) (bool, error)
	// RequestPassword shows a password dialog; ok is false on decline.
	RequestPassword(ctx context.Context, p Prompt) (password string, ok bool, err error)
	// Choose shows a dialog with a fixed option set; ok is false on decline.
	Choose(ctx context.Context, p Prompt, options []string) (choice string, ok bool, err error)
}

package crypto

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"errors"
)

// Directed encryption: sealing a message to another user's registry public
// key. An ephemeral x25519 key pair is generated per message; the shared
// secret keys a one-shot AEAD and the ephemeral public key travels in front
// of the ciphertext.

const x25519PubSize = 32

var ErrDirectedTooShort = errors.New("crypto: directed ciphertext too short")

type DHKey struct {
	Priv *ecdh.PrivateKey
	Pub  *ecdh.PublicKey
}

func NewX25519() (*DHKey, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &DHKey{Priv: priv, Pub: priv.PublicKey()}, nil
}

// X25519FromSeed builds a key pair from 32 bytes of derived entropy.
func X25519FromSeed(seed []byte) (*DHKey, error) {
	priv, err := ecdh.X25519().NewPrivateKey(seed)
	if err != nil {
		return nil, err
	}
	return &DHKey{Priv: priv, Pub: priv.PublicKey()}, nil
}

// EncryptFor seals plaintext to the holder of peerPub.
func EncryptFor(peerPub []byte, plaintext []byte) ([]byte, error) {
	peer, err := ecdh.X25519().NewPublicKey(peerPub)
	if err != nil {
		return nil, err
	}
	eph, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	shared, err := eph.ECDH(peer)
	if err != nil {
		return nil, err
	}
	key := sha256.Sum256(shared)
	Zero(shared)

	ct, err := SealX(key[:], plaintext, nil)
	Zero(key[:])
	if err != nil {
		return nil, err
	}
	return append(eph.PublicKey().Bytes(), ct...), nil
}

// DecryptFrom opens a directed ciphertext with the receiver's private key.
func DecryptFrom(priv *ecdh.PrivateKey, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) <= x25519PubSize {
		return nil, ErrDirectedTooShort
	}
	ephPub, err := ecdh.X25519().NewPublicKey(ciphertext[:x25519PubSize])
	if err != nil {
		return nil, err
	}
	shared, err := priv.ECDH(ephPub)
	if err != nil {
		return nil, err
	}
	key := sha256.Sum256(shared)
	Zero(shared)

	pt, err := OpenX(key[:], ciphertext[x25519PubSize:], nil)
	Zero(key[:])
	return pt, err
}

package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Registry records travel in plaintext so any reader can resolve an address
// to a public key; authorship is proven by an ed25519 signature over a
// human-readable message wrapping the payload hash.
const registryMessagePrefix = "keychain-registry:"

func NewSigningKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// SignRegistry produces the signature and the prefixed message it covers.
func SignRegistry(priv ed25519.PrivateKey, payload []byte) (sig []byte, message string) {
	message = registryMessage(payload)
	return ed25519.Sign(priv, []byte(message)), message
}

// VerifyRegistry checks that message matches the payload hash and that sig is
// a valid signature over it.
func VerifyRegistry(pub ed25519.PublicKey, payload, sig []byte, message string) bool {
	if !strings.HasPrefix(message, registryMessagePrefix) {
		return false
	}
	if message != registryMessage(payload) {
		return false
	}
	return ed25519.Verify(pub, []byte(message), sig)
}

func registryMessage(payload []byte) string {
	sum := sha256.Sum256(payload)
	return registryMessagePrefix + hex.EncodeToString(sum[:])
}

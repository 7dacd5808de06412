package crypto

import (
	"crypto/sha256"
	"errors"

	xchacha "golang.org/x/crypto/chacha20poly1305"

	"github.com/EthSign/keychain-snap/internal/codec"
)

// ErrUndecodable is the single failure surfaced by DecryptBlob. Callers treat
// it as "no data found", never as a fatal condition: remote records written by
// older clients, or records that were never ours, must not abort a replay.
var ErrUndecodable = errors.New("crypto: envelope undecodable")

// EncryptBlob seals a serialized record with XChaCha20-Poly1305 keyed by the
// wallet-derived secret. The nonce is derived from the record timestamp plus
// random padding, so the timestamp of a sealed record is recoverable from its
// envelope while nonces still never repeat.
//
// When password is non-empty a second pass wraps the first ciphertext under a
// key hashed from {secretKey, password, nonce}. Records written before a
// password was configured stay readable: DecryptBlob falls back to the
// single-layer interpretation when the password unwrap fails.
func EncryptBlob(plaintext, secretKey []byte, password string, timestamp int64) (string, error) {
	nonce, err := codec.Nonce(timestamp)
	if err != nil {
		return "", err
	}

	inner, err := sealWithNonce(secretKey, nonce, plaintext)
	if err != nil {
		return "", err
	}
	buf := append(append([]byte{}, nonce...), inner...)

	if password != "" {
		pwKey := derivePasswordKey(secretKey, password, nonce)
		outer, err := sealWithNonce(pwKey, nonce, buf)
		Zero(pwKey)
		if err != nil {
			return "", err
		}
		buf = append(append([]byte{}, nonce...), outer...)
	}
	return codec.Encode(buf), nil
}

// DecryptBlob reverses EncryptBlob. Any malformed input resolves to
// ErrUndecodable.
func DecryptBlob(envelope string, secretKey []byte, password string) ([]byte, error) {
	buf, err := codec.Decode(envelope)
	if err != nil {
		return nil, ErrUndecodable
	}
	if len(buf) <= codec.NonceSize {
		return nil, ErrUndecodable
	}
	nonce := buf[:codec.NonceSize]
	body := buf[codec.NonceSize:]

	if password != "" {
		pwKey := derivePasswordKey(secretKey, password, nonce)
		inner, err := openWithNonce(pwKey, nonce, body)
		Zero(pwKey)
		if err == nil {
			return openSingleLayer(secretKey, inner)
		}
		// Fall through: record predates password layering.
	}
	pt, err := openWithNonce(secretKey, nonce, body)
	if err != nil {
		return nil, ErrUndecodable
	}
	return pt, nil
}

// EnvelopeTimestamp recovers the timestamp baked into an envelope's nonce
// without decrypting it.
func EnvelopeTimestamp(envelope string) (int64, bool) {
	buf, err := codec.Decode(envelope)
	if err != nil || len(buf) < codec.NonceSize {
		return 0, false
	}
	return codec.NonceTimestamp(buf[:codec.NonceSize])
}

func openSingleLayer(secretKey, buf []byte) ([]byte, error) {
	if len(buf) <= codec.NonceSize {
		return nil, ErrUndecodable
	}
	pt, err := openWithNonce(secretKey, buf[:codec.NonceSize], buf[codec.NonceSize:])
	if err != nil {
		return nil, ErrUndecodable
	}
	return pt, nil
}

func sealWithNonce(key, nonce, plaintext []byte) ([]byte, error) {
	aead, err := xchacha.NewX(normalizeKey(key))
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

func openWithNonce(key, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := xchacha.NewX(normalizeKey(key))
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, nil)
}

func derivePasswordKey(secretKey []byte, password string, nonce []byte) []byte {
	h := sha256.New()
	h.Write(secretKey)
	h.Write([]byte(password))
	h.Write(nonce)
	return h.Sum(nil)
}

// normalizeKey hashes arbitrary-length wallet entropy down to the 32 bytes
// XChaCha requires.
func normalizeKey(key []byte) []byte {
	if len(key) == xchacha.KeySize {
		return key
	}
	sum := sha256.Sum256(key)
	return sum[:]
}

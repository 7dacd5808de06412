package codec

import (
	"crypto/rand"
	"encoding/binary"
	"errors"

	"github.com/mr-tron/base58"
)

// NonceSize matches the XChaCha20-Poly1305 extended nonce length.
const NonceSize = 24

var ErrBadString = errors.New("codec: malformed transport string")

// Encode turns a byte buffer into a transportable string.
func Encode(b []byte) string {
	return base58.Encode(b)
}

// Decode reverses Encode.
func Decode(s string) ([]byte, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, ErrBadString
	}
	return b, nil
}

// Nonce derives a 24-byte nonce from a record timestamp plus random padding.
// The timestamp occupies the first 8 bytes big-endian so records written at
// different times never share a nonce prefix; the remaining 16 bytes are
// random so two records at the same timestamp still diverge.
func Nonce(timestamp int64) ([]byte, error) {
	n := make([]byte, NonceSize)
	binary.BigEndian.PutUint64(n[:8], uint64(timestamp))
	if _, err := rand.Read(n[8:]); err != nil {
		return nil, err
	}
	return n, nil
}

// NonceTimestamp reads back the timestamp a nonce was derived from.
func NonceTimestamp(n []byte) (int64, bool) {
	if len(n) != NonceSize {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(n[:8])), true
}

package crypto

import (
	"crypto/rand"

	"golang.org/x/crypto/argon2"
)

// KDFParams parameterizes the argon2id derivation for export blobs, which are
// keyed by a user password rather than wallet entropy.
type KDFParams struct {
	M    uint32
	T    uint32
	P    uint8
	Salt []byte
}

func DefaultExportKDF() KDFParams {
	salt := make([]byte, 32)
	_, _ = rand.Read(salt)
	return KDFParams{M: 64 * 1024, T: 3, P: 2, Salt: salt}
}

func DeriveExportKey(password string, p KDFParams) []byte {
	return argon2.IDKey([]byte(password), p.Salt, p.T, p.M, p.P, 32)
}

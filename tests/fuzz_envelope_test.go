package tests

import (
	"bytes"
	"crypto/rand"
	"testing"

	cr "github.com/EthSign/keychain-snap/internal/crypto"
)

func FuzzEnvelope(f *testing.F) {
	f.Add([]byte("hello"), "hunter2", int64(1700000000))
	f.Add([]byte(""), "", int64(0))
	f.Fuzz(func(t *testing.T, pt []byte, password string, ts int64) {
		key := make([]byte, 32)
		rand.Read(key)
		blob, err := cr.EncryptBlob(pt, key, password, ts)
		if err != nil {
			t.Skip()
		}
		got, err := cr.DecryptBlob(blob, key, password)
		if err != nil {
			t.Fatalf("decrypt err: %v", err)
		}
		if !bytes.Equal(pt, got) {
			t.Fatalf("roundtrip mismatch")
		}
	})
}

func FuzzDecryptGarbage(f *testing.F) {
	f.Add("zzzz")
	f.Add("")
	f.Fuzz(func(t *testing.T, blob string) {
		key := make([]byte, 32)
		rand.Read(key)
		// Arbitrary input must error out, never panic.
		_, _ = cr.DecryptBlob(blob, key, "")
	})
}

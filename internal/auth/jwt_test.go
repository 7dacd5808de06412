package auth

import (
	"testing"
	"time"
)

func newTestSigner(t *testing.T, ttl time.Duration) *JWTSigner {
	t.Helper()
	priv, _, err := GenerateEd25519()
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	return NewJWTSigner(priv, "keychain-test", ttl)
}

func TestIssueAndValidate(t *testing.T) {
	s := newTestSigner(t, time.Minute)

	tok, exp, err := s.IssueToken("site.example")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatal("token already expired at issue")
	}

	claims, err := s.ParseAndValidate(tok)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Origin != "site.example" {
		t.Fatalf("origin %q, want site.example", claims.Origin)
	}
	if claims.TokenID == "" {
		t.Fatal("missing token id")
	}
	if claims.ExpiresAt <= claims.IssuedAt {
		t.Fatalf("exp %d not after iat %d", claims.ExpiresAt, claims.IssuedAt)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	s := newTestSigner(t, -time.Minute)
	tok, _, err := s.IssueToken("site.example")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := s.ParseAndValidate(tok); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestForeignKeyRejected(t *testing.T) {
	a := newTestSigner(t, time.Minute)
	b := newTestSigner(t, time.Minute)

	tok, _, err := a.IssueToken("site.example")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := b.ParseAndValidate(tok); err == nil {
		t.Fatal("token signed by a foreign key accepted")
	}
}

func TestWrongIssuerRejected(t *testing.T) {
	priv, _, err := GenerateEd25519()
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	issuer := NewJWTSigner(priv, "someone-else", time.Minute)
	validator := NewJWTSigner(priv, "keychain-test", time.Minute)

	tok, _, err := issuer.IssueToken("site.example")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := validator.ParseAndValidate(tok); err == nil {
		t.Fatal("token with wrong issuer accepted")
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	s := newTestSigner(t, time.Minute)
	if _, err := s.ParseAndValidate("not.a.token"); err == nil {
		t.Fatal("garbage accepted")
	}
}

package audit

import "testing"

func TestChainVerifies(t *testing.T) {
	l := New()
	l.Record("a.example", "set_password")
	l.Record("a.example", "get_password")
	l.Record("b.example", "sync")

	if err := l.Verify(); err != nil {
		t.Fatalf("intact chain failed verification: %v", err)
	}
	if got := len(l.Entries()); got != 3 {
		t.Fatalf("want 3 entries, got %d", got)
	}
}

func TestTamperDetected(t *testing.T) {
	l := New()
	l.Record("a.example", "set_password")
	l.Record("a.example", "sync")

	l.entries[0].Method = "export"
	if err := l.Verify(); err == nil {
		t.Fatal("tampered entry passed verification")
	}
}

func TestEntriesReturnsCopy(t *testing.T) {
	l := New()
	l.Record("a.example", "sync")

	out := l.Entries()
	out[0].Origin = "evil.example"
	if l.Entries()[0].Origin != "a.example" {
		t.Fatal("Entries leaked internal slice")
	}
}

func TestEmptyChainVerifies(t *testing.T) {
	if err := New().Verify(); err != nil {
		t.Fatalf("empty chain: %v", err)
	}
}

package keychain

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestLookupRegistrySelfResolvesLocally(t *testing.T) {
	ctx := context.Background()
	fl := &fakeLog{}
	svc, w, _ := newTestService(t, "seed-1", fl)
	mustSetTarget(t, svc, "arweave")
	if err := svc.Sync(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}

	addr, err := w.OwnerAddress(ctx)
	if err != nil {
		t.Fatalf("owner address: %v", err)
	}
	listingsBefore := fl.eventsCalls

	entry, err := svc.LookupRegistry(ctx, addr)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if entry.PublicAddress != addr || entry.PublicKey == "" {
		t.Fatalf("self lookup unresolved: %+v", entry)
	}
	if fl.eventsCalls != listingsBefore {
		t.Fatal("self lookup must not hit the remote log")
	}
}

func TestLookupRegistryUnknownAddress(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, "seed-1", &fakeLog{})
	mustSetTarget(t, svc, "arweave")

	entry, err := svc.LookupRegistry(ctx, "nobody")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if entry.PublicAddress != "" || entry.PublicKey != "" {
		t.Fatalf("unknown address must resolve empty, got %+v", entry)
	}

	if _, err := svc.EncryptFor(ctx, "nobody", []byte("hi")); !errors.Is(err, ErrUnresolvedAddress) {
		t.Fatalf("want ErrUnresolvedAddress, got %v", err)
	}
}

func TestDirectedEncryptionBetweenUsers(t *testing.T) {
	ctx := context.Background()
	fl := &fakeLog{}

	// Alice publishes her registry record.
	alice, aliceWallet, _ := newTestService(t, "seed-alice", fl)
	mustSetTarget(t, alice, "arweave")
	if err := alice.Sync(ctx); err != nil {
		t.Fatalf("alice sync: %v", err)
	}
	aliceAddr, err := aliceWallet.OwnerAddress(ctx)
	if err != nil {
		t.Fatalf("alice address: %v", err)
	}

	// Bob resolves Alice through the shared log and seals a message to her.
	bob, _, _ := newTestService(t, "seed-bob", fl)
	mustSetTarget(t, bob, "arweave")
	msg := []byte("the cafe at noon")
	sealed, err := bob.EncryptFor(ctx, aliceAddr, msg)
	if err != nil {
		t.Fatalf("encrypt for alice: %v", err)
	}

	got, err := alice.DecryptDirected(ctx, sealed)
	if err != nil {
		t.Fatalf("alice decrypt: %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Fatalf("directed round trip mismatch: %q", got)
	}

	// Bob cannot open a message sealed to Alice.
	if _, err := bob.DecryptDirected(ctx, sealed); err == nil {
		t.Fatal("bob decrypted a message sealed to alice")
	}
}

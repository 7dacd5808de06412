package keychain

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExportImportMerge(t *testing.T) {
	ctx := context.Background()

	src, srcWallet, _ := newTestService(t, "seed-src", &fakeLog{})
	srcWallet.Password = "export-pw"
	if err := src.SetPassword(ctx, "a.com", "alice", "p1", ""); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := src.SetPassword(ctx, "b.com", "bob", "p2", ""); err != nil {
		t.Fatalf("set: %v", err)
	}

	blob, err := src.Export(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	dst, dstWallet, _ := newTestService(t, "seed-dst", &fakeLog{})
	dstWallet.Password = "export-pw"
	dstWallet.Choice = "merge"
	if err := dst.Import(ctx, blob); err != nil {
		t.Fatalf("import: %v", err)
	}

	for site, want := range map[string]string{"a.com": "p1", "b.com": "p2"} {
		got, err := dst.GetPassword(ctx, site)
		if err != nil {
			t.Fatalf("get %s: %v", site, err)
		}
		if len(got.Logins) != 1 || got.Logins[0].Password != want {
			t.Fatalf("site %s: got %+v, want password %q", site, got.Logins, want)
		}
	}
}

func TestImportMergeKeepsNewerLocal(t *testing.T) {
	ctx := context.Background()

	src, srcWallet, _ := newTestService(t, "seed-src", &fakeLog{})
	srcWallet.Password = "pw"
	if err := src.SetPassword(ctx, "a.com", "alice", "exported", ""); err != nil {
		t.Fatalf("set: %v", err)
	}
	blob, err := src.Export(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	dst, dstWallet, clock := newTestService(t, "seed-dst", &fakeLog{})
	dstWallet.Password = "pw"
	dstWallet.Choice = "merge"
	clock.Advance(time.Hour)
	if err := dst.SetPassword(ctx, "a.com", "alice", "local-newer", ""); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := dst.Import(ctx, blob); err != nil {
		t.Fatalf("import: %v", err)
	}

	got, err := dst.GetPassword(ctx, "a.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Logins) != 1 || got.Logins[0].Password != "local-newer" {
		t.Fatalf("merge overwrote newer local entry: %+v", got.Logins)
	}
}

func TestImportReplaceDiscardsLocal(t *testing.T) {
	ctx := context.Background()

	src, srcWallet, _ := newTestService(t, "seed-src", &fakeLog{})
	srcWallet.Password = "pw"
	if err := src.SetPassword(ctx, "imported.com", "alice", "p", ""); err != nil {
		t.Fatalf("set: %v", err)
	}
	blob, err := src.Export(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	dst, dstWallet, clock := newTestService(t, "seed-dst", &fakeLog{})
	dstWallet.Password = "pw"
	dstWallet.Choice = "replace"
	if err := dst.SetPassword(ctx, "local.com", "bob", "q", ""); err != nil {
		t.Fatalf("set: %v", err)
	}
	clock.Advance(time.Hour)
	if err := dst.Import(ctx, blob); err != nil {
		t.Fatalf("import: %v", err)
	}

	gone, err := dst.GetPassword(ctx, "local.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(gone.Logins) != 0 {
		t.Fatalf("replace kept pre-import entries: %+v", gone.Logins)
	}
	kept, err := dst.GetPassword(ctx, "imported.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(kept.Logins) != 1 {
		t.Fatalf("replace lost imported entries: %+v", kept)
	}
	if want := clock.Now().Unix(); kept.Logins[0].Timestamp != want {
		t.Fatalf("replace must rewrite timestamps to now: got %d, want %d",
			kept.Logins[0].Timestamp, want)
	}
}

func TestExportDeclined(t *testing.T) {
	svc, w, _ := newTestService(t, "seed-1", &fakeLog{})
	w.Approve = false
	if _, err := svc.Export(context.Background()); !errors.Is(err, ErrUserDeclined) {
		t.Fatalf("want ErrUserDeclined, got %v", err)
	}
}

func TestImportWrongPassword(t *testing.T) {
	ctx := context.Background()

	src, srcWallet, _ := newTestService(t, "seed-src", &fakeLog{})
	srcWallet.Password = "right"
	if err := src.SetPassword(ctx, "a.com", "alice", "p", ""); err != nil {
		t.Fatalf("set: %v", err)
	}
	blob, err := src.Export(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	dst, dstWallet, _ := newTestService(t, "seed-dst", &fakeLog{})
	dstWallet.Password = "wrong"
	if err := dst.Import(ctx, blob); !errors.Is(err, ErrBadImportBlob) {
		t.Fatalf("want ErrBadImportBlob, got %v", err)
	}
}

func TestImportGarbage(t *testing.T) {
	svc, w, _ := newTestService(t, "seed-1", &fakeLog{})
	w.Password = "pw"
	if err := svc.Import(context.Background(), "!!not-base58!!"); !errors.Is(err, ErrBadImportBlob) {
		t.Fatalf("want ErrBadImportBlob, got %v", err)
	}
}

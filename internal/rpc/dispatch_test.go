package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/EthSign/keychain-snap/internal/access"
	"github.com/EthSign/keychain-snap/internal/audit"
	"github.com/EthSign/keychain-snap/internal/keychain"
	"github.com/EthSign/keychain-snap/internal/storage"
	"github.com/EthSign/keychain-snap/internal/wallet"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *wallet.DevWallet, *audit.Log) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	w := wallet.NewDevWallet([]byte("rpc-seed"), storage.NewFileStateStore(t.TempDir()), logger)
	svc := keychain.NewService(w, nil, nil, keychain.WithLogger(logger))
	trail := audit.New()
	return NewDispatcher(svc, access.NewGate(w, logger), trail, logger), w, trail
}

func TestHandleUnknownMethod(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	_, err := d.Handle(context.Background(), "site.example", "drop_tables", nil)
	if !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("want ErrUnknownMethod, got %v", err)
	}
}

func TestHandleDeniedOrigin(t *testing.T) {
	d, w, trail := newTestDispatcher(t)
	w.Approve = false

	_, err := d.Handle(context.Background(), "site.example", "sync", nil)
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("want ErrAccessDenied, got %v", err)
	}
	if len(trail.Entries()) != 0 {
		t.Fatal("denied call must not reach the audit trail")
	}
}

func TestHandleMissingParams(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	ctx := context.Background()

	cases := []struct {
		method string
		params string
	}{
		{"set_password", `{"website":"a.com","username":"u"}`},
		{"set_password", ``},
		{"get_password", `{}`},
		{"remove_password", `{"website":"a.com"}`},
		{"set_neversave", `{"website":"a.com"}`},
		{"set_sync_to", `{}`},
		{"registry", `{}`},
		{"encrypt", `{"address":"x"}`},
		{"decrypt", `{}`},
		{"import", `{}`},
	}
	for _, tc := range cases {
		_, err := d.Handle(ctx, "site.example", tc.method, json.RawMessage(tc.params))
		if !errors.Is(err, ErrMissingParam) {
			t.Fatalf("%s %q: want ErrMissingParam, got %v", tc.method, tc.params, err)
		}
	}
}

func TestHandleSetGetRemovePassword(t *testing.T) {
	d, _, trail := newTestDispatcher(t)
	ctx := context.Background()

	out, err := d.Handle(ctx, "site.example", "set_password",
		json.RawMessage(`{"website":"a.com","username":"alice","password":"p"}`))
	if err != nil {
		t.Fatalf("set_password: %v", err)
	}
	if out != "OK" {
		t.Fatalf(`set_password returned %v, want "OK"`, out)
	}

	out, err = d.Handle(ctx, "site.example", "get_password", json.RawMessage(`{"website":"a.com"}`))
	if err != nil {
		t.Fatalf("get_password: %v", err)
	}
	site, ok := out.(keychain.SiteState)
	if !ok || len(site.Logins) != 1 || site.Logins[0].Password != "p" {
		t.Fatalf("unexpected get_password result %+v", out)
	}

	if len(trail.Entries()) != 2 {
		t.Fatalf("want 2 audited calls, got %d", len(trail.Entries()))
	}
}

func TestHandleEncryptUnresolvedIsSoftFailure(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	out, err := d.Handle(context.Background(), "site.example", "encrypt",
		json.RawMessage(`{"address":"nobody","data":"hi"}`))
	if err != nil {
		t.Fatalf("soft failure surfaced as hard error: %v", err)
	}
	res, ok := out.(Result)
	if !ok || res.Success {
		t.Fatalf("want failed Result, got %+v", out)
	}
}

func TestHandleExportDeclinedIsSoftFailure(t *testing.T) {
	d, w, _ := newTestDispatcher(t)
	// Grant the origin first, then make the wallet decline the export dialog.
	if _, err := d.Handle(context.Background(), "site.example", "sync", nil); err != nil {
		t.Fatalf("priming grant: %v", err)
	}
	w.Approve = false

	// A basic cached grant does not cover export's elevated+global demand,
	// and the declining wallet rejects the escalation outright.
	_, err := d.Handle(context.Background(), "site.example", "export", nil)
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("want ErrAccessDenied, got %v", err)
	}
}

func TestHandleGetSyncToDefaultsNil(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	out, err := d.Handle(context.Background(), "site.example", "get_sync_to", nil)
	if err != nil {
		t.Fatalf("get_sync_to: %v", err)
	}
	target, ok := out.(*keychain.RemoteTarget)
	if !ok || target != nil {
		t.Fatalf("want nil target, got %#v", out)
	}
}

package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/EthSign/keychain-snap/internal/event"
)

func TestKVEvents(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/events/owner-key" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Error("missing api key header")
		}
		_ = json.NewEncoder(w).Encode([]Body{
			{Type: "site_set", Payload: "sealed-1"},
			{Type: "config", Payload: "sealed-2"},
		})
	}))
	t.Cleanup(ts.Close)

	c := NewKVClient(KVConfig{BaseURL: ts.URL, APIKey: "secret"})
	bodies, err := c.Events(context.Background(), "owner-key")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(bodies) != 2 || bodies[0].Payload != "sealed-1" {
		t.Fatalf("unexpected bodies %+v", bodies)
	}
}

func TestKVSubmitBatch(t *testing.T) {
	var got []event.Submission
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/events/owner-key" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	t.Cleanup(ts.Close)

	c := NewKVClient(KVConfig{BaseURL: ts.URL})
	subs := []event.Submission{
		{Data: event.Record{Type: "site_set", Payload: "a"}},
		{Data: event.Record{Type: "site_delete", Payload: "b"}},
	}
	if err := c.Submit(context.Background(), "owner-key", subs); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(got) != 2 || got[1].Data.Type != "site_delete" {
		t.Fatalf("server saw %+v", got)
	}
}

func TestKVSubmitRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "denied"})
	}))
	t.Cleanup(ts.Close)

	c := NewKVClient(KVConfig{BaseURL: ts.URL})
	err := c.Submit(context.Background(), "owner-key", make([]event.Submission, 1))
	if !errors.Is(err, ErrSubmitRejected) {
		t.Fatalf("want ErrSubmitRejected, got %v", err)
	}
}

func TestKVBadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	t.Cleanup(ts.Close)

	c := NewKVClient(KVConfig{BaseURL: ts.URL})
	if _, err := c.Events(context.Background(), "owner-key"); !errors.Is(err, ErrBadResponse) {
		t.Fatalf("want ErrBadResponse, got %v", err)
	}
}

package event

import (
	"errors"
	"strings"
	"testing"
)

func TestParsePayloadRoundTrip(t *testing.T) {
	events := []Event{
		SiteSet{Site: "a.com", Username: "u", Password: "p", Controlled: "ext.example", Timestamp: 7},
		SiteDelete{Site: "a.com", Username: "u", Timestamp: 8},
		SiteClear{Site: "a.com", Timestamp: 9},
		SiteNeverSave{Site: "a.com", NeverSave: true, Timestamp: 10},
		ConfigSet{Address: "addr", EncryptionMethod: "BIP-44", Timestamp: 11},
		RegistrySet{Address: "addr", PublicKey: "pk", Timestamp: 12},
	}
	for _, ev := range events {
		payload, err := MarshalPayload(ev)
		if err != nil {
			t.Fatalf("%s: marshal: %v", ev.Kind(), err)
		}
		back, err := ParsePayload(string(ev.Kind()), payload)
		if err != nil {
			t.Fatalf("%s: parse: %v", ev.Kind(), err)
		}
		if back != ev {
			t.Fatalf("%s: round trip mismatch: %+v vs %+v", ev.Kind(), back, ev)
		}
		if back.When() != ev.When() {
			t.Fatalf("%s: timestamp lost", ev.Kind())
		}
	}
}

func TestParsePayloadUnknownKind(t *testing.T) {
	if _, err := ParsePayload("totp_secret", []byte(`{}`)); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("want ErrUnknownKind, got %v", err)
	}
}

func TestParsePayloadMalformedJSON(t *testing.T) {
	if _, err := ParsePayload(string(KindSiteSet), []byte(`{"url":`)); err == nil {
		t.Fatal("malformed payload accepted")
	}
}

func TestSiteSetWireFieldNames(t *testing.T) {
	payload, err := MarshalPayload(SiteSet{Site: "a.com", Username: "u", Password: "p", Timestamp: 1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// The site key travels as "url"; renaming it would strand every record
	// already on the log.
	for _, field := range []string{`"url"`, `"username"`, `"password"`, `"timestamp"`} {
		if !strings.Contains(string(payload), field) {
			t.Fatalf("payload %s missing field %s", payload, field)
		}
	}
}

package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ApplicationTag is the value of the server-side-queryable Application tag on
// every submitted record.
const ApplicationTag = "EthSignKeychain"

var ErrUnknownKind = errors.New("event: unknown kind")

// Record is the wire shape of one log entry: a kind tag plus an opaque
// payload string. For every kind except registry the payload is an encrypted
// envelope; registry payloads are plaintext signed JSON.
type Record struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

// Tag is one server-side-queryable indexing field.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Submission wraps a Record for upload. The ID tag always equals the
// querying owner's public key, except for registry records where it is
// overridden to the owner's address to allow reverse lookup.
type Submission struct {
	Signature    []byte `json:"signature,omitempty"`
	Message      string `json:"message,omitempty"`
	Data         Record `json:"data"`
	Tags         []Tag  `json:"tags"`
	ShouldVerify bool   `json:"shouldVerify"`
}

// MarshalPayload serializes one event's payload to the canonical JSON that
// gets sealed into (or, for registry, signed alongside) the wire record.
func MarshalPayload(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// ParsePayload validates a decrypted payload body against the closed set of
// kinds. Unknown kinds come back as ErrUnknownKind so replay can skip them
// without aborting.
func ParsePayload(kind string, payload []byte) (Event, error) {
	switch Kind(kind) {
	case KindSiteSet:
		return decode[SiteSet](payload)
	case KindSiteDelete:
		return decode[SiteDelete](payload)
	case KindSiteClear:
		return decode[SiteClear](payload)
	case KindSiteNeverSave:
		return decode[SiteNeverSave](payload)
	case KindConfigSet:
		return decode[ConfigSet](payload)
	case KindRegistrySet:
		return decode[RegistrySet](payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func decode[T Event](payload []byte) (Event, error) {
	var e T
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, err
	}
	return e, nil
}

// Package event defines the append-only records the keychain exchanges with
// its remote log. Events are immutable once emitted; a later event referencing
// the same logical entity supersedes an earlier one purely by timestamp
// comparison during replay.
package event

// Kind tags one event variant on the wire.
type Kind string

const (
	KindSiteSet       Kind = "site_set"
	KindSiteDelete    Kind = "site_delete"
	KindSiteClear     Kind = "site_clear"
	KindSiteNeverSave Kind = "site_neversave"
	KindConfigSet     Kind = "config"
	KindRegistrySet   Kind = "registry"
)

// Event is the closed union over record kinds. Concrete payloads are plain
// comparable structs so pending-queue deduplication can use equality.
type Event interface {
	Kind() Kind
	When() int64
}

// SiteSet records a credential write for (Site, Username). Controlled is the
// origin managing the entry, empty for user-entered credentials.
type SiteSet struct {
	Site       string `json:"url"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Controlled string `json:"controlled,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// SiteDelete removes one credential by username. The delete only lands on
// logins older than its own timestamp.
type SiteDelete struct {
	Site      string `json:"url"`
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"`
}

// SiteClear drops every login at or before its timestamp for one site.
type SiteClear struct {
	Site      string `json:"url"`
	Timestamp int64  `json:"timestamp"`
}

// SiteNeverSave toggles the per-site save block.
type SiteNeverSave struct {
	Site      string `json:"url"`
	NeverSave bool   `json:"neverSave"`
	Timestamp int64  `json:"timestamp"`
}

// ConfigSet publishes owner configuration, written once at first sync.
type ConfigSet struct {
	Address          string `json:"address"`
	EncryptionMethod string `json:"encryptionMethod"`
	Timestamp        int64  `json:"timestamp"`
}

// RegistrySet publishes the public, self-signed address-to-key mapping. It is
// the one record kind that travels unencrypted.
type RegistrySet struct {
	Address   string `json:"publicAddress"`
	PublicKey string `json:"publicKey"`
	Timestamp int64  `json:"timestamp"`
}

func (e SiteSet) Kind() Kind       { return KindSiteSet }
func (e SiteDelete) Kind() Kind    { return KindSiteDelete }
func (e SiteClear) Kind() Kind     { return KindSiteClear }
func (e SiteNeverSave) Kind() Kind { return KindSiteNeverSave }
func (e ConfigSet) Kind() Kind     { return KindConfigSet }
func (e RegistrySet) Kind() Kind   { return KindRegistrySet }

func (e SiteSet) When() int64       { return e.Timestamp }
func (e SiteDelete) When() int64    { return e.Timestamp }
func (e SiteClear) When() int64     { return e.Timestamp }
func (e SiteNeverSave) When() int64 { return e.Timestamp }
func (e ConfigSet) When() int64     { return e.Timestamp }
func (e RegistrySet) When() int64   { return e.Timestamp }

// Package config loads and validates the TOML run configuration at startup.
// Fail-fast: if a required value is missing, the process exits before any
// job is processed. The loaded Config is immutable for the run.
package config

import (
	"net/url"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"

	"github.com/Prakashmaheshwaran/handshook/internal/model"
)

// Documents holds the platform document IDs attached to applications.
// The IDs come from the user's uploaded documents on Handshake.
type Documents struct {
	Resume      int64 `toml:"resume"`
	CoverLetter int64 `toml:"cover_letter"`
	Transcript  int64 `toml:"transcript"`
	Other       int64 `toml:"other"` // optional "other document" slot
}

// Storage selects the ledger backend.
type Storage struct {
	Driver string `toml:"driver"` // "sqlite" (default) or "postgres"
	Path   string `toml:"path"`   // sqlite database file
	DSN    string `toml:"dsn"`    // postgres connection string
}

// Notify configures the optional run-event publisher.
type Notify struct {
	RedisURL string `toml:"redis_url"`
}

// Config holds all runtime configuration for a run.
type Config struct {
	SearchURL    string            `toml:"search_url"`
	HTMLDir      string            `toml:"html_dir"`
	LogLevel     string            `toml:"log_level"`
	JSONLogs     bool              `toml:"json_logs"`
	Keywords     []string          `toml:"keywords"`
	SkipKeywords []string          `toml:"skip_keywords"`
	Documents    Documents         `toml:"documents"`
	Cookies      map[string]string `toml:"cookies"`
	Storage      Storage           `toml:"storage"`
	Notify       Notify            `toml:"notify"`
}

// Load reads the TOML file at path and returns a validated Config.
func Load(path string) (*Config, error) {
	cfg := &Config{
		HTMLDir:  "html",
		LogLevel: "info",
		Storage: Storage{
			Driver: "sqlite",
			Path:   "handshook.db",
		},
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.SearchURL = SanitizeURL(cfg.SearchURL)
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Documents.Resume == 0 {
		return errors.New("documents.resume is required")
	}
	if len(c.Cookies) == 0 {
		return errors.New("cookies are required — copy them from a logged-in browser session")
	}
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.Path == "" {
			return errors.New("storage.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required for the postgres driver")
		}
	default:
		return errors.Newf("unknown storage.driver %q", c.Storage.Driver)
	}
	return nil
}

// AvailableDocuments returns the document types that have a configured ID.
func (c *Config) AvailableDocuments() map[model.DocumentType]bool {
	avail := make(map[model.DocumentType]bool, 3)
	if c.Documents.Resume != 0 {
		avail[model.DocumentResume] = true
	}
	if c.Documents.CoverLetter != 0 {
		avail[model.DocumentCoverLetter] = true
	}
	if c.Documents.Transcript != 0 {
		avail[model.DocumentTranscript] = true
	}
	if c.Documents.Other != 0 {
		avail[model.DocumentOther] = true
	}
	return avail
}

// DocumentID returns the configured platform ID for a document type,
// or 0 when none is configured.
func (c *Config) DocumentID(t model.DocumentType) int64 {
	switch t {
	case model.DocumentResume:
		return c.Documents.Resume
	case model.DocumentCoverLetter:
		return c.Documents.CoverLetter
	case model.DocumentTranscript:
		return c.Documents.Transcript
	case model.DocumentOther:
		return c.Documents.Other
	}
	return 0
}

// SanitizeURL strips the page parameter from a saved search URL so runs
// always start from the first page.
func SanitizeURL(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if !q.Has("page") {
		return raw
	}
	q.Del("page")
	u.RawQuery = q.Encode()
	return u.String()
}

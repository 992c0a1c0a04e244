package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Prakashmaheshwaran/handshook/internal/config"
	"github.com/Prakashmaheshwaran/handshook/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conf.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
search_url = "https://app.joinhandshake.com/stu/postings?page=3&per_page=25"
keywords = ["data analyst", "software engineer"]
skip_keywords = ["senior"]

[documents]
resume = 101
cover_letter = 102

[cookies]
hss = "abc123"
production_submitted_email_address = "me@example.edu"
`

func TestLoad_MinimalConfig(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, []string{"data analyst", "software engineer"}, cfg.Keywords)
	assert.Equal(t, []string{"senior"}, cfg.SkipKeywords)
	assert.Equal(t, "abc123", cfg.Cookies["hss"])

	// Defaults fill in everything the file omitted.
	assert.Equal(t, "html", cfg.HTMLDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "handshook.db", cfg.Storage.Path)
}

func TestLoad_StripsPageFromSearchURL(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.NotContains(t, cfg.SearchURL, "page=3")
	assert.Contains(t, cfg.SearchURL, "per_page=25")
}

func TestLoad_MissingResumeFails(t *testing.T) {
	path := writeConfig(t, `
[documents]
cover_letter = 102

[cookies]
hss = "abc123"
`)
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "documents.resume")
}

func TestLoad_MissingCookiesFails(t *testing.T) {
	path := writeConfig(t, `
[documents]
resume = 101
`)
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cookies")
}

func TestLoad_PostgresDriverRequiresDSN(t *testing.T) {
	path := writeConfig(t, minimalConfig+`
[storage]
driver = "postgres"
`)
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.dsn")
}

func TestLoad_UnknownDriverFails(t *testing.T) {
	path := writeConfig(t, minimalConfig+`
[storage]
driver = "mongodb"
`)
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.driver")
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestAvailableDocuments_OnlyConfiguredTypes(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	avail := cfg.AvailableDocuments()
	assert.True(t, avail[model.DocumentResume])
	assert.True(t, avail[model.DocumentCoverLetter])
	assert.False(t, avail[model.DocumentTranscript])
	assert.False(t, avail[model.DocumentOther])
}

func TestDocumentID(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.EqualValues(t, 101, cfg.DocumentID(model.DocumentResume))
	assert.EqualValues(t, 102, cfg.DocumentID(model.DocumentCoverLetter))
	assert.EqualValues(t, 0, cfg.DocumentID(model.DocumentTranscript))
}

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"no page param", "https://x.test/postings?per_page=25", "https://x.test/postings?per_page=25"},
		{"page stripped", "https://x.test/postings?page=7", "https://x.test/postings"},
		{"unparseable left alone", "://bad url", "://bad url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, config.SanitizeURL(tt.in))
		})
	}
}

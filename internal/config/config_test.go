package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "base.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadAppliesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
imap:
  host: mail.example.com
  username: me@example.com
  password: secret
scan:
  limit: 10
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mail.example.com", cfg.IMAP.Host)
	assert.Equal(t, 10, cfg.Scan.Limit)
	// Untouched fields keep their defaults.
	assert.Equal(t, 993, cfg.IMAP.Port)
	assert.Equal(t, "0 * * * *", cfg.Scan.Cron)
	assert.Equal(t, "[Gmail]/Drafts", cfg.IMAP.DraftsFolder)
	assert.True(t, cfg.Scan.DeduplicateThreads)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("IMAP_HOST", "mail.example.com")
	t.Setenv("IMAP_USERNAME", "me@example.com")
	t.Setenv("IMAP_PASSWORD", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Scan.Limit)
	assert.Contains(t, cfg.Rules.ActionKeywords, "action required")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
imap:
  host: mail.example.com
  username: me@example.com
  password: secret
`)
	t.Setenv("GATEKEEPER_CRON", "*/5 * * * *")
	t.Setenv("SCAN_LIMIT", "25")
	t.Setenv("ACTION_SUBJECT_PATTERNS", "Ping, Escalation ,")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "*/5 * * * *", cfg.Scan.Cron)
	assert.Equal(t, 25, cfg.Scan.Limit)
	assert.Equal(t, []string{"ping", "escalation"}, cfg.Rules.ActionKeywords)
}

func TestLoadRejectsMissingCredentials(t *testing.T) {
	path := writeConfig(t, `
imap:
  host: mail.example.com
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials")
}

func TestLoadRejectsBadLimits(t *testing.T) {
	path := writeConfig(t, `
imap:
  host: mail.example.com
  username: me@example.com
  password: secret
scan:
  limit: -1
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan limit")
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "imap: [not a mapping")
	_, err := Load(path)
	require.Error(t, err)
}

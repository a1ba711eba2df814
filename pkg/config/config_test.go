package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
tls:
  cert_file: /tmp/cert.pem
  key_file: /tmp/key.pem
  ca_file: /tmp/ca.pem
control_plane_dsn: "postgres://localhost/ace"
descriptor_encryption_key: "01234567890123456789012345678901"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.ListenAddr)
	assert.Equal(t, 10000, cfg.DefaultBlockRows)
	assert.Equal(t, 0.5, cfg.DefaultMaxCPURatio)
	assert.Equal(t, 32, cfg.WorkerPoolSize)
}

func TestLoadMissingTLSFails(t *testing.T) {
	path := writeConfig(t, `
control_plane_dsn: "postgres://localhost/ace"
descriptor_encryption_key: "01234567890123456789012345678901"
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingEncryptionKeyLengthFails(t *testing.T) {
	path := writeConfig(t, `
tls:
  cert_file: /tmp/cert.pem
  key_file: /tmp/key.pem
  ca_file: /tmp/ca.pem
control_plane_dsn: "postgres://localhost/ace"
descriptor_encryption_key: "too-short"
`)

	_, err := Load(path)
	require.Error(t, err)
}

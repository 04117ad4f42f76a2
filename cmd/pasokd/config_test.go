package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformEnv(t *testing.T) {
	tests := map[string]string{
		"PASOK__SERVER__ADDRESS":       "server.address",
		"PASOK__GOOGLE__CLIENT_ID":     "google.clientId",
		"PASOK__AUTH__BASE_PATH":       "auth.basePath",
		"PASOK__AUTH__SESSION_MAX_AGE": "auth.sessionMaxAge",
		"PASOK__AUTH__SECRET":          "auth.secret",
		"PASOK__STORE__DRIVER":         "store.driver",
	}
	for in, want := range tests {
		assert.Equal(t, want, transformEnv(in), in)
	}
}

func TestLoadConfig_Layers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pasok.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":9000"
auth:
  secret: from-file-0123456789012345678901
  sessionMaxAge: 1h
store:
  driver: postgres
`), 0o600))
	t.Setenv("PASOK__STORE__DSN", "postgres://localhost/pasok")
	t.Setenv("PASOK__GOOGLE__CLIENT_ID", "client-1")

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Address)
	assert.Equal(t, "/api/auth", cfg.BasePath)
	assert.Equal(t, time.Hour, cfg.SessionMaxAge)
	assert.Equal(t, "postgres", cfg.Store)
	assert.Equal(t, "postgres://localhost/pasok", cfg.DSN)
	assert.Equal(t, "client-1", cfg.GoogleClientID)
	assert.Equal(t, "argon2id", cfg.Hasher)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.SecureCookie)
}

func TestLoadConfig_RequiresSecret(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "auth.secret")
}

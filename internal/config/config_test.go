package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadDefaultsAndDerived(t *testing.T) {
	p := writeConfig(t, `
app:
  port: 9090
  shutdown_seconds: 3
jwt:
  secret: s3cret
  ttl_hours: 2
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "9090", cfg.App.PortString())
	assert.Equal(t, DriverMemory, cfg.Backend.Driver)
	assert.Equal(t, DriverMemory, cfg.Feed.Driver)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, int64(20), cfg.Chat.SearchLimit)
	assert.True(t, cfg.Chat.AutoOpen)
}

func TestLoadEnvOverride(t *testing.T) {
	p := writeConfig(t, `
jwt:
  secret: from-file
`)
	t.Setenv("CHAT_APP_PORT", "7000")
	t.Setenv("CHAT_JWT_SECRET", "from-env")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.App.Port)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
}

func TestLoadRejectsInconsistentDrivers(t *testing.T) {
	cases := map[string]string{
		"missing secret": `
app:
  port: 8080
`,
		"mongo feed on memory backend": `
jwt:
  secret: x
feed:
  driver: mongo
`,
		"kafka without brokers": `
jwt:
  secret: x
backend:
  driver: mongo
feed:
  driver: kafka
`,
		"unknown backend": `
jwt:
  secret: x
backend:
  driver: postgres
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

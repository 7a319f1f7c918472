package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	require.NoError(t, Load(filepath.Join(t.TempDir(), "missing.yaml")))
	cfg := Get()
	require.NotNil(t, cfg)
	assert.Equal(t, "servdesk", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "SD", cfg.Ticket.NumberPrefix)
	assert.Equal(t, "sequential", cfg.Ticket.NumberGenerator)
	assert.Equal(t, 5, cfg.Ticket.MinCounterSize)
	assert.Equal(t, 255, cfg.Ticket.SubjectMaxLen)
	assert.Equal(t, "17 3 * * *", cfg.Maintenance.RecountSchedule)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
app:
  name: helpdesk
server:
  port: 9090
ticket:
  number_prefix: HELP
  number_generator: date
inbound:
  forward_secret: s3cret
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	require.NoError(t, Load(path))

	cfg := Get()
	assert.Equal(t, "helpdesk", cfg.App.Name)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "HELP", cfg.Ticket.NumberPrefix)
	assert.Equal(t, "date", cfg.Ticket.NumberGenerator)
	assert.Equal(t, "s3cret", cfg.Inbound.ForwardSecret)
	// Untouched keys keep their defaults.
	assert.Equal(t, 5, cfg.Ticket.MinCounterSize)
}

func TestRedisAddr(t *testing.T) {
	r := RedisConfig{Host: "cache.internal", Port: 6380}
	assert.Equal(t, "cache.internal:6380", r.Addr())
}

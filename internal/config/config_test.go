package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "Minor 14 - Server", cfg.Server.Description)
	assert.Equal(t, 5, cfg.Game.BoardSize)
	assert.Equal(t, 32, cfg.Game.MaxIdentityLength)
	assert.Equal(t, 5*time.Second, cfg.Client.RequestTimeout)
	assert.Empty(t, cfg.NATS.URL)
	assert.False(t, cfg.Consul.Register)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "server.toml", `
[server]
tcp_addr = ":5555"
description = "test server"

[network]
write_timeout = "3s"
rate_limit = 5.5

[game]
board_size = 3

[logging]
level = "debug"
format = "json"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":5555", cfg.Server.TCPAddr)
	assert.Equal(t, "test server", cfg.Server.Description)
	assert.Equal(t, 3*time.Second, cfg.Network.WriteTimeout)
	assert.Equal(t, 5.5, cfg.Network.RateLimit)
	assert.Equal(t, 3, cfg.Game.BoardSize)
	assert.Equal(t, "json", cfg.Logging.Format)
	// campos ausentes mantêm o padrão
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "server.yaml", `
server:
  http_addr: ":9090"
nats:
  url: nats://localhost:4222
consul:
  register: true
client:
  request_timeout: 2s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.HTTPAddr)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.True(t, cfg.Consul.Register)
	assert.Equal(t, 2*time.Second, cfg.Client.RequestTimeout)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "server.toml", "[game]\nboard_size = 3\n")
	t.Setenv("DOTSBOXES_BOARD_SIZE", "7")
	t.Setenv("DOTSBOXES_TCP_ADDR", ":6000")
	t.Setenv("CONSUL_REGISTER", "true")
	t.Setenv("DOTSBOXES_IDLE_TIMEOUT", "90s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Game.BoardSize)
	assert.Equal(t, ":6000", cfg.Server.TCPAddr)
	assert.True(t, cfg.Consul.Register)
	assert.Equal(t, 90*time.Second, cfg.Network.IdleTimeout)
}

func TestInvalidEnv(t *testing.T) {
	t.Setenv("DOTSBOXES_BOARD_SIZE", "big")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := defaults()
	cfg.Game.BoardSize = 11
	cfg.Client.RequestTimeout = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "board_size")
	assert.Contains(t, err.Error(), "request_timeout")
}

func TestUnsupportedExtension(t *testing.T) {
	path := writeFile(t, "server.ini", "x=1")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExampleConfigMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.toml"))
	require.NoError(t, err)
	assert.Equal(t, defaults(), cfg)
}

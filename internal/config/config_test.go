package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, "ws://localhost:8002", c.URL())
	assert.True(t, c.AutoJoin)
	assert.Equal(t, 5, c.Reconnect.MaxAttempts)
	assert.Equal(t, time.Second, c.Reconnect.BaseDelay)
	assert.Equal(t, 10*time.Second, c.Reconnect.MaxDelay)
	assert.EqualError(t, c.Validate(), "player_id is required")

	c.PlayerID = "player1"
	assert.NoError(t, c.Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
player_id: player2
host: 192.168.0.7
path: /game
auto_join: false
reconnect:
  max_attempts: 3
  base_delay: 500ms
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "player2", c.PlayerID)
	assert.Equal(t, "ws://192.168.0.7:8002/game", c.URL())
	assert.False(t, c.AutoJoin)
	assert.Equal(t, 3, c.Reconnect.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, c.Reconnect.BaseDelay)
	assert.Equal(t, 10*time.Second, c.Reconnect.MaxDelay, "default")
	assert.Equal(t, 2*time.Second, c.WriteTimeout, "default")
	assert.NoError(t, c.Validate())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [1, 2]"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("XEMK_PLAYER_ID", "player9")
	t.Setenv("XEMK_HOST", "game.example.com")
	t.Setenv("XEMK_PORT", "9000")
	c := Default()
	c.ApplyEnv()
	assert.Equal(t, "player9", c.PlayerID)
	assert.Equal(t, "ws://game.example.com:9000", c.URL())
}

func TestValidate(t *testing.T) {
	c := Default()
	c.PlayerID = "player1"
	c.Port = 70000
	assert.Error(t, c.Validate())

	c = Default()
	c.PlayerID = "player1"
	c.Reconnect.MaxAttempts = -1
	assert.Error(t, c.Validate())

	c = Default()
	c.PlayerID = "player1"
	c.Reconnect.MaxDelay = time.Millisecond
	assert.Error(t, c.Validate())
}

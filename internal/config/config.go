// Package config holds the client settings, loaded from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/janpfeifer/xemk/internal/game"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// PlayerID identifies the player to the server. Required.
	PlayerID string `yaml:"player_id"`

	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Path string `yaml:"path"`

	// AutoJoin sends player_join on every (re-)connection.
	AutoJoin bool `yaml:"auto_join"`

	Reconnect    Reconnect     `yaml:"reconnect"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type Reconnect struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// Default configuration, without a PlayerID.
func Default() *Config {
	c := &Config{AutoJoin: true}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills in the zero values.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = game.DefaultPort
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = 5
	}
	if c.Reconnect.BaseDelay == 0 {
		c.Reconnect.BaseDelay = time.Second
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = 10 * time.Second
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 2 * time.Second
	}
}

// Load reads the YAML file at path. Keys missing from the file take their default values.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := &Config{AutoJoin: true}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	c.ApplyDefaults()
	return c, nil
}

// ApplyEnv overrides the settings with the XEMK_PLAYER_ID, XEMK_HOST and
// XEMK_PORT environment variables, when set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("XEMK_PLAYER_ID"); v != "" {
		c.PlayerID = v
	}
	if v := os.Getenv("XEMK_HOST"); v != "" {
		c.Host = v
	}
	if v := getEnvInt("XEMK_PORT"); v > 0 {
		c.Port = v
	}
}

func getEnvInt(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.PlayerID == "" {
		return errors.New("player_id is required")
	}
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Reconnect.MaxAttempts < 1 {
		return fmt.Errorf("reconnect.max_attempts must be at least 1, got %d", c.Reconnect.MaxAttempts)
	}
	if c.Reconnect.BaseDelay < 0 || c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		return fmt.Errorf("invalid reconnect delays: base %s, max %s", c.Reconnect.BaseDelay, c.Reconnect.MaxDelay)
	}
	if _, err := url.Parse(c.URL()); err != nil {
		return fmt.Errorf("invalid server address: %w", err)
	}
	return nil
}

// URL of the game server endpoint, e.g. "ws://localhost:8002".
func (c *Config) URL() string {
	u := url.URL{
		Scheme: "ws",
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Path,
	}
	return u.String()
}

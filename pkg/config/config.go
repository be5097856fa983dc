package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Observer ObserverConfig `toml:"observer"`
	Scripts  ScriptsConfig  `toml:"scripts"`
}

type ServerConfig struct {
	Name       string   `toml:"name"`
	Port       int      `toml:"port"`
	MaxClients int      `toml:"max_clients"`
	Maps       []string `toml:"maps"`
	MapsDir    string   `toml:"maps_dir"`

	TickIntervalMs      int `toml:"tick_interval_ms"`
	RoundsPerMatch      int `toml:"rounds_per_match"`
	RoundRestartDelayMs int `toml:"round_restart_delay_ms"`
	BombFuseMs          int `toml:"bomb_fuse_ms"`
	BlastRadius         int `toml:"blast_radius"`

	BansFile string `toml:"bans_file"`

	// logging configuration
	LogToFile bool `toml:"log_to_file"`
}

type ObserverConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

type ScriptsConfig struct {
	Hooks string `toml:"hooks"`
}

func LoadConfig(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()

	return &config, nil
}

// Default returns a configuration with every field at its built-in default,
// suitable for running without a config file.
func Default() *Config {
	config := &Config{}
	config.applyDefaults()
	return config
}

func (c *Config) applyDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "bombfest server"
	}

	if c.Server.Port == 0 {
		c.Server.Port = 54321
	}

	if c.Server.MaxClients == 0 {
		c.Server.MaxClients = 16
	}

	if len(c.Server.Maps) == 0 {
		c.Server.Maps = []string{"default"}
	}

	if c.Server.MapsDir == "" {
		c.Server.MapsDir = "maps"
	}

	if c.Server.TickIntervalMs == 0 {
		c.Server.TickIntervalMs = 250
	}

	if c.Server.RoundsPerMatch == 0 {
		c.Server.RoundsPerMatch = 5
	}

	if c.Server.RoundRestartDelayMs == 0 {
		c.Server.RoundRestartDelayMs = 1000
	}

	if c.Server.BombFuseMs == 0 {
		c.Server.BombFuseMs = 3000
	}

	if c.Server.BlastRadius == 0 {
		c.Server.BlastRadius = 2
	}

	if c.Server.BansFile == "" {
		c.Server.BansFile = "data/bans.json"
	}

	if c.Observer.Port == 0 {
		c.Observer.Port = 8080
	}
}

func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return fmt.Errorf("server name cannot be empty")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Server.MaxClients <= 0 || c.Server.MaxClients > 64 {
		return fmt.Errorf("max_clients must be between 1 and 64")
	}

	if len(c.Server.Maps) == 0 {
		return fmt.Errorf("at least one map must be specified")
	}

	if c.Server.TickIntervalMs < 50 {
		return fmt.Errorf("tick_interval_ms must be at least 50")
	}

	if c.Server.RoundsPerMatch <= 0 {
		return fmt.Errorf("rounds_per_match must be positive")
	}

	if c.Server.BlastRadius <= 0 {
		return fmt.Errorf("blast_radius must be positive")
	}

	if c.Observer.Enabled && (c.Observer.Port <= 0 || c.Observer.Port > 65535) {
		return fmt.Errorf("invalid observer port: %d", c.Observer.Port)
	}

	return nil
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Server.TickIntervalMs) * time.Millisecond
}

func (c *Config) RoundRestartDelay() time.Duration {
	return time.Duration(c.Server.RoundRestartDelayMs) * time.Millisecond
}

func (c *Config) BombFuse() time.Duration {
	return time.Duration(c.Server.BombFuseMs) * time.Millisecond
}

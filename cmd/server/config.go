package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/miretskiy/fireworks/internal/logging"
	"github.com/miretskiy/fireworks/simulator"
)

// Config is the server configuration file layout
type Config struct {
	Server    ServerConfig     `toml:"server"`
	Logging   logging.Config   `toml:"logging"`
	Fireworks simulator.Config `toml:"fireworks"`
}

type ServerConfig struct {
	Addr               string        `toml:"addr"`
	Title              string        `toml:"title"`
	TemplatePath       string        `toml:"template_path"`
	FrameRate          int           `toml:"frame_rate"`           // Simulation frames per second
	UIInterval         time.Duration `toml:"ui_interval"`          // How often frames are pushed to the browser
	StatsInterval      time.Duration `toml:"stats_interval"`       // How often per-session stats are logged
	DisabledUserAgents []string      `toml:"disabled_user_agents"` // Case-insensitive substrings; matching clients get no fireworks
}

// Load reads a TOML config file layered over the defaults. A missing file is
// not an error: the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:               ":8080",
			Title:              "Happy New Year",
			TemplatePath:       "templates/index.html",
			FrameRate:          60,
			UIInterval:         33 * time.Millisecond,
			StatsInterval:      5 * time.Second,
			DisabledUserAgents: []string{"android"},
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "console",
		},
		Fireworks: simulator.NewYearConfig(),
	}
}

func (c *Config) validate() error {
	if c.Server.FrameRate <= 0 {
		return fmt.Errorf("server.frame_rate must be > 0")
	}
	if c.Server.UIInterval <= 0 {
		return fmt.Errorf("server.ui_interval must be > 0")
	}
	if c.Server.StatsInterval <= 0 {
		return fmt.Errorf("server.stats_interval must be > 0")
	}
	return c.Fireworks.Validate()
}

// FrameInterval is the simulation step period
func (s ServerConfig) FrameInterval() time.Duration {
	return time.Second / time.Duration(s.FrameRate)
}

// isDisabled reports whether userAgent matches one of the disabled patterns
func (s ServerConfig) isDisabled(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, pattern := range s.DisabledUserAgents {
		if pattern != "" && strings.Contains(ua, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

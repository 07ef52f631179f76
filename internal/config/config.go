// Package config provides YAML-based configuration loading for raywatch.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level raywatch configuration, loaded from raywatch.yaml.
type Config struct {
	Port            int        `yaml:"port"`
	BaseURL         string     `yaml:"base_url"`
	StateFile       string     `yaml:"state_file"`
	WorkerBinary    string     `yaml:"worker_binary"`
	IntervalMinutes float64    `yaml:"interval_minutes"`
	History         History    `yaml:"history"`
	Notify          Notify     `yaml:"notify"`
	Schedules       []Schedule `yaml:"schedules"`
}

// History holds connection settings for the check-history database.
type History struct {
	Driver   string `yaml:"driver"` // "sqlite" (default), "mysql", or "off"
	Path     string `yaml:"path"`   // sqlite file path
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
}

// Notify configures the notification sinks. Unset sinks are skipped.
type Notify struct {
	Slack   SlackNotify   `yaml:"slack"`
	Discord DiscordNotify `yaml:"discord"`

	// Command is a shell command template run on each alert,
	// e.g. "notify-send 'raywatch' '{{.Title}}'".
	Command string `yaml:"command"`
}

// SlackNotify holds Slack API credentials and the target channel.
type SlackNotify struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// DiscordNotify holds Discord bot credentials and the target channel.
type DiscordNotify struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
}

// Schedule starts a watch session on a cron expression when none is active.
type Schedule struct {
	Cron       string `yaml:"cron"`
	From       string `yaml:"from"`
	To         string `yaml:"to"`
	Date       string `yaml:"date"`
	WagonType  string `yaml:"wagon_type"`
	Passengers int    `yaml:"passengers"`
}

// Load reads a YAML config file from path and returns a validated Config.
// A missing file yields the defaults, so running without a config works.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 5000
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://ebilet.tcddtasimacilik.gov.tr"
	}
	if c.StateFile == "" {
		c.StateFile = "state.json"
	}
	if c.IntervalMinutes == 0 {
		c.IntervalMinutes = 1.5
	}
	if c.History.Driver == "" {
		c.History.Driver = "sqlite"
	}
	if c.History.Path == "" {
		c.History.Path = "raywatch.db"
	}
	if c.History.Host == "" {
		c.History.Host = "127.0.0.1"
	}
	if c.History.Port == 0 {
		c.History.Port = 3306
	}
	if c.History.Database == "" {
		c.History.Database = "raywatch"
	}
	for i := range c.Schedules {
		if c.Schedules[i].Passengers == 0 {
			c.Schedules[i].Passengers = 1
		}
		if c.Schedules[i].WagonType == "" {
			c.Schedules[i].WagonType = "ALL"
		}
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("port %d out of range", c.Port))
	}
	if c.IntervalMinutes < 0 {
		errs = append(errs, "interval_minutes must be positive")
	}
	switch c.History.Driver {
	case "sqlite", "mysql", "off":
	default:
		errs = append(errs, fmt.Sprintf("history.driver %q must be sqlite, mysql, or off", c.History.Driver))
	}
	for i, s := range c.Schedules {
		if s.Cron == "" {
			errs = append(errs, fmt.Sprintf("schedules[%d].cron is required", i))
		}
		if s.From == "" || s.To == "" || s.Date == "" {
			errs = append(errs, fmt.Sprintf("schedules[%d] needs from, to, and date", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

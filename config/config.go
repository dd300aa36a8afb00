// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads chat client settings from a YAML file with
// per-environment endpoint overrides. Development and production run
// against different API and socket origins; the timer tuning is shared
// unless a deployment overrides it.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Resolve for fields left unset.
const (
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultTypingTimeout        = 3 * time.Second
	DefaultReconnectBaseDelay   = time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultHistoryLimit         = 50
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "1.5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("config: duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Overrides is a per-environment endpoint section.
type Overrides struct {
	APIBaseURL string `yaml:"apiBaseUrl"`
	SocketURL  string `yaml:"socketUrl"`
}

// Config is the on-disk shape of a chatkit config file.
type Config struct {
	APIBaseURL           string     `yaml:"apiBaseUrl"`
	SocketURL            string     `yaml:"socketUrl"`
	HeartbeatInterval    Duration   `yaml:"heartbeatInterval"`
	TypingTimeout        Duration   `yaml:"typingTimeout"`
	ReconnectBaseDelay   Duration   `yaml:"reconnectBaseDelay"`
	MaxReconnectAttempts int        `yaml:"maxReconnectAttempts"`
	HistoryLimit         int        `yaml:"historyLimit"`
	Development          *Overrides `yaml:"development"`
	Production           *Overrides `yaml:"production"`
}

// Settings is the fully-resolved, flat view consumed by the client.
type Settings struct {
	APIBaseURL           string
	SocketURL            string
	HeartbeatInterval    time.Duration
	TypingTimeout        time.Duration
	ReconnectBaseDelay   time.Duration
	MaxReconnectAttempts int
	HistoryLimit         int
}

// Load reads and parses a config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var config Config
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &config, nil
}

// Resolve applies the overrides for the given environment
// ("development" or "production") on top of the base values and fills
// in defaults.
func (c *Config) Resolve(env string) (Settings, error) {
	settings := Settings{
		APIBaseURL:           c.APIBaseURL,
		SocketURL:            c.SocketURL,
		HeartbeatInterval:    time.Duration(c.HeartbeatInterval),
		TypingTimeout:        time.Duration(c.TypingTimeout),
		ReconnectBaseDelay:   time.Duration(c.ReconnectBaseDelay),
		MaxReconnectAttempts: c.MaxReconnectAttempts,
		HistoryLimit:         c.HistoryLimit,
	}

	var overrides *Overrides
	switch env {
	case "development":
		overrides = c.Development
	case "production":
		overrides = c.Production
	default:
		return Settings{}, fmt.Errorf("config: unknown environment %q", env)
	}
	if overrides != nil {
		if overrides.APIBaseURL != "" {
			settings.APIBaseURL = overrides.APIBaseURL
		}
		if overrides.SocketURL != "" {
			settings.SocketURL = overrides.SocketURL
		}
	}

	if settings.HeartbeatInterval == 0 {
		settings.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if settings.TypingTimeout == 0 {
		settings.TypingTimeout = DefaultTypingTimeout
	}
	if settings.ReconnectBaseDelay == 0 {
		settings.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if settings.MaxReconnectAttempts == 0 {
		settings.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if settings.HistoryLimit == 0 {
		settings.HistoryLimit = DefaultHistoryLimit
	}

	if settings.APIBaseURL == "" {
		return Settings{}, fmt.Errorf("config: no API base URL for environment %q", env)
	}
	if settings.SocketURL == "" {
		return Settings{}, fmt.Errorf("config: no socket URL for environment %q", env)
	}
	return settings, nil
}

// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chatkit.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const sampleConfig = `
apiBaseUrl: https://api.tourbase.example
socketUrl: wss://chat.tourbase.example/ws
heartbeatInterval: 30s
typingTimeout: 3s
reconnectBaseDelay: 1s
maxReconnectAttempts: 5
historyLimit: 50
development:
  apiBaseUrl: http://localhost:4000
  socketUrl: ws://localhost:4000/ws
`

func TestLoadAndResolve(t *testing.T) {
	config, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	t.Run("production uses base values", func(t *testing.T) {
		settings, err := config.Resolve("production")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if settings.APIBaseURL != "https://api.tourbase.example" {
			t.Errorf("APIBaseURL = %q", settings.APIBaseURL)
		}
		if settings.SocketURL != "wss://chat.tourbase.example/ws" {
			t.Errorf("SocketURL = %q", settings.SocketURL)
		}
		if settings.HeartbeatInterval != 30*time.Second || settings.TypingTimeout != 3*time.Second {
			t.Errorf("timers = %v/%v", settings.HeartbeatInterval, settings.TypingTimeout)
		}
	})

	t.Run("development overrides endpoints", func(t *testing.T) {
		settings, err := config.Resolve("development")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if settings.APIBaseURL != "http://localhost:4000" {
			t.Errorf("APIBaseURL = %q", settings.APIBaseURL)
		}
		if settings.SocketURL != "ws://localhost:4000/ws" {
			t.Errorf("SocketURL = %q", settings.SocketURL)
		}
		// Timers are shared between environments.
		if settings.ReconnectBaseDelay != time.Second || settings.MaxReconnectAttempts != 5 {
			t.Errorf("reconnect tuning = %v/%d", settings.ReconnectBaseDelay, settings.MaxReconnectAttempts)
		}
	})
}

func TestResolveDefaults(t *testing.T) {
	config, err := Load(writeConfig(t, `
apiBaseUrl: https://api.tourbase.example
socketUrl: wss://chat.tourbase.example/ws
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	settings, err := config.Resolve("production")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if settings.HeartbeatInterval != DefaultHeartbeatInterval ||
		settings.TypingTimeout != DefaultTypingTimeout ||
		settings.ReconnectBaseDelay != DefaultReconnectBaseDelay ||
		settings.MaxReconnectAttempts != DefaultMaxReconnectAttempts ||
		settings.HistoryLimit != DefaultHistoryLimit {
		t.Errorf("defaults not applied: %+v", settings)
	}
}

func TestResolveRejectsUnknownEnvironment(t *testing.T) {
	config, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := config.Resolve("staging"); err == nil {
		t.Error("Resolve accepted an unknown environment")
	}
}

func TestResolveRequiresEndpoints(t *testing.T) {
	config, err := Load(writeConfig(t, "heartbeatInterval: 30s\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := config.Resolve("production"); err == nil {
		t.Error("Resolve accepted a config without endpoints")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	_, err := Load(writeConfig(t, `
apiBaseUrl: https://api.tourbase.example
socketUrl: wss://chat.tourbase.example/ws
heartbeatInterval: soon
`))
	if err == nil {
		t.Error("Load accepted an unparseable duration")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load succeeded on a missing file")
	}
}

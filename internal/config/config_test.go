package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// mapBackend is an in-memory ConfigBackend.
type mapBackend struct {
	strs map[string]string
	ints map[string]int
	err  error
}

func newMapBackend() *mapBackend {
	return &mapBackend{strs: map[string]string{}, ints: map[string]int{}}
}

func (b *mapBackend) GetString(key string) (string, bool, error) {
	if b.err != nil {
		return "", false, b.err
	}
	v, ok := b.strs[key]
	return v, ok, nil
}

func (b *mapBackend) GetInt(key string) (int, bool, error) {
	if b.err != nil {
		return 0, false, b.err
	}
	v, ok := b.ints[key]
	return v, ok, nil
}

func (b *mapBackend) SetString(key, val string) error { b.strs[key] = val; return nil }
func (b *mapBackend) SetInt(key string, val int) error  { b.ints[key] = val; return nil }
func (b *mapBackend) Location() string { return "memory" }
func (b *mapBackend) Delete(key string) error {
	delete(b.strs, key)
	delete(b.ints, key)
	return nil
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

// TestDefaults verifies all default values are applied when the backend is empty.
func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(newMapBackend())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.API.BaseURL != "http://localhost:8000" {
		t.Errorf("API.BaseURL = %q, want %q", cfg.API.BaseURL, "http://localhost:8000")
	}
	if cfg.API.TimeoutDuration() != 60*time.Second {
		t.Errorf("API.TimeoutDuration = %v, want 60s", cfg.API.TimeoutDuration())
	}
	if cfg.Session.HistoryWindow != 0 {
		t.Errorf("Session.HistoryWindow = %d, want 0 (send all)", cfg.Session.HistoryWindow)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Storage.DataDir == "" {
		t.Error("Storage.DataDir is empty")
	}
}

func TestBackendValues(t *testing.T) {
	clearEnv(t)
	b := newMapBackend()
	b.ints["server.port"] = 5005
	b.strs["api.base_url"] = "http://analysis.local:9000"
	b.strs["session.greeting"] = "hey"
	b.strs["storage.data_dir"] = "/tmp/mbtichat-test"

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5005 {
		t.Errorf("Server.Port = %d, want 5005", cfg.Server.Port)
	}
	if cfg.API.BaseURL != "http://analysis.local:9000" {
		t.Errorf("API.BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.Session.Greeting != "hey" {
		t.Errorf("Session.Greeting = %q", cfg.Session.Greeting)
	}
	if cfg.Storage.DataDir != "/tmp/mbtichat-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
}

// TestEnvOverride verifies that environment variables override backend values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	b := newMapBackend()
	b.strs["api.base_url"] = "http://from-backend:1"
	b.ints["session.history_window"] = 5

	t.Setenv("MBTICHAT_API_BASE_URL", "http://from-env:2")
	t.Setenv("MBTICHAT_SESSION_HISTORY_WINDOW", "7")
	t.Setenv("MBTICHAT_LOG_LEVEL", "debug")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.API.BaseURL != "http://from-env:2" {
		t.Errorf("API.BaseURL = %q, want env value", cfg.API.BaseURL)
	}
	if cfg.Session.HistoryWindow != 7 {
		t.Errorf("Session.HistoryWindow = %d, want 7", cfg.Session.HistoryWindow)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestEnvOverride_BadIntegerKeepsValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("MBTICHAT_SERVER_PORT", "not-a-port")

	cfg, err := loadWith(newMapBackend())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want default 4100", cfg.Server.Port)
	}
}

func TestBackendError(t *testing.T) {
	clearEnv(t)
	b := newMapBackend()
	b.err = errors.New("defaults exploded")

	if _, err := loadWith(b); err == nil {
		t.Fatal("expected backend error")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		value string
	}{
		{"port too high", "MBTICHAT_SERVER_PORT", "70000"},
		{"relative url", "MBTICHAT_API_BASE_URL", "localhost"},
		{"bad timeout", "MBTICHAT_API_TIMEOUT", "soon"},
		{"negative timeout", "MBTICHAT_API_TIMEOUT", "-5s"},
		{"negative window", "MBTICHAT_SESSION_HISTORY_WINDOW", "-1"},
		{"unknown level", "MBTICHAT_LOG_LEVEL", "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.env, tt.value)
			_, err := loadWith(newMapBackend())
			if err == nil || !strings.Contains(err.Error(), "invalid config") {
				t.Errorf("err = %v, want invalid config", err)
			}
		})
	}
}

func TestShowAll(t *testing.T) {
	infos := ShowAll(defaults())
	if len(infos) != len(specs) {
		t.Fatalf("ShowAll returned %d keys, want %d", len(infos), len(specs))
	}
	found := false
	for _, info := range infos {
		if !strings.HasPrefix(info.EnvVar, "MBTICHAT_") {
			t.Errorf("key %s has env var %q", info.Key, info.EnvVar)
		}
		if info.Key == "server.port" {
			found = true
			if info.Value != "4100" {
				t.Errorf("server.port value = %q", info.Value)
			}
		}
	}
	if !found {
		t.Error("server.port missing from ShowAll")
	}
}

func TestSetKey(t *testing.T) {
	b := newMapBackend()

	if err := setKeyWith(b, "server.port", "4200"); err != nil {
		t.Fatalf("setKeyWith: %v", err)
	}
	if b.ints["server.port"] != 4200 {
		t.Errorf("server.port = %d, want 4200", b.ints["server.port"])
	}
	if err := setKeyWith(b, "session.greeting", "yo"); err != nil {
		t.Fatalf("setKeyWith: %v", err)
	}
	if b.strs["session.greeting"] != "yo" {
		t.Errorf("session.greeting = %q", b.strs["session.greeting"])
	}
}

func TestSetKey_Rejects(t *testing.T) {
	b := newMapBackend()
	for _, tc := range [][2]string{
		{"no.such.key", "x"},
		{"server.port", "abc"},
		{"server.port", "0"},
		{"api.timeout", "forever"},
		{"log.level", "verbose"},
	} {
		if err := setKeyWith(b, tc[0], tc[1]); err == nil {
			t.Errorf("setKeyWith(%s, %s) succeeded, want error", tc[0], tc[1])
		}
	}
	if len(b.strs)+len(b.ints) != 0 {
		t.Errorf("rejected values reached the backend: %v %v", b.strs, b.ints)
	}
}

func TestValidKeys(t *testing.T) {
	keys := ValidKeys()
	want := map[string]bool{"api.base_url": true, "session.history_window": true, "log.level": true}
	for _, k := range keys {
		delete(want, k)
	}
	if len(want) != 0 {
		t.Errorf("ValidKeys missing %v", want)
	}
}

func TestUnsetKey(t *testing.T) {
	clearEnv(t)
	b := newMapBackend()
	if err := setKeyWith(b, "server.port", "5000"); err != nil {
		t.Fatalf("setKeyWith: %v", err)
	}
	if err := unsetKeyWith(b, "server.port"); err != nil {
		t.Fatalf("unsetKeyWith: %v", err)
	}

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want default 4100 after unset", cfg.Server.Port)
	}

	if err := unsetKeyWith(b, "no.such.key"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestEnvName(t *testing.T) {
	for key, want := range map[string]string{
		"server.port":            "MBTICHAT_SERVER_PORT",
		"session.reset_greeting": "MBTICHAT_SESSION_RESET_GREETING",
	} {
		if got := envName(key); got != want {
			t.Errorf("envName(%q) = %q, want %q", key, got, want)
		}
	}
}

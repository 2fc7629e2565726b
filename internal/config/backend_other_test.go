//go:build !darwin

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileBackend_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mbtichat", "config.json")

	b := newFileBackend(path)
	if err := b.SetString("api.base_url", "http://x:1"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	if err := b.SetInt("server.port", 4321); err != nil {
		t.Fatalf("SetInt: %v", err)
	}

	reloaded := newFileBackend(path)
	if v, ok, err := reloaded.GetString("api.base_url"); err != nil || !ok || v != "http://x:1" {
		t.Errorf("GetString = %q, %v, %v", v, ok, err)
	}
	if v, ok, err := reloaded.GetInt("server.port"); err != nil || !ok || v != 4321 {
		t.Errorf("GetInt = %d, %v, %v", v, ok, err)
	}

	if err := reloaded.Delete("server.port"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := newFileBackend(path).GetInt("server.port"); ok {
		t.Error("server.port still present after Delete")
	}
}

func TestFileBackend_CorruptFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatal(err)
	}

	b := newFileBackend(path)
	if _, ok, err := b.GetString("api.base_url"); ok || err != nil {
		t.Errorf("corrupt file should read as empty, got ok=%v err=%v", ok, err)
	}
}

func TestFileBackend_BadInteger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"server.port": 12.5}`), 0o600)

	if _, _, err := newFileBackend(path).GetInt("server.port"); err == nil {
		t.Error("expected error for non-integer port")
	}
}

func TestLoad_UsesXDGConfigFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	os.MkdirAll(filepath.Join(dir, "mbtichat"), 0o700)
	os.WriteFile(filepath.Join(dir, "mbtichat", "config.json"), []byte(`{"session.reset_greeting":"again!"}`), 0o600)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.ResetGreeting != "again!" {
		t.Errorf("Session.ResetGreeting = %q", cfg.Session.ResetGreeting)
	}
}

func TestFileBackend_QuotedIntegerAndLocation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"server.port": "4200", "log.level": "debug"}`), 0o600)

	b := newFileBackend(path)
	if v, ok, err := b.GetInt("server.port"); err != nil || !ok || v != 4200 {
		t.Errorf("GetInt = %d, %v, %v; want 4200", v, ok, err)
	}
	if b.Location() != path {
		t.Errorf("Location = %q, want %q", b.Location(), path)
	}
	// Deleting an absent key leaves the file alone.
	if err := b.Delete("api.timeout"); err != nil {
		t.Errorf("Delete missing key: %v", err)
	}
	if v, _, _ := newFileBackend(path).GetString("log.level"); v != "debug" {
		t.Errorf("log.level = %q after no-op delete", v)
	}
}

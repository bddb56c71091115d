package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func loadWithDir(t *testing.T, dir string) *Config {
	t.Helper()
	t.Setenv(EnvConfigDir, dir)
	cfg, err := Load("", "", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "conf")
	t.Setenv(EnvDisable, "")
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvAPIKeyFallback, "")

	cfg := loadWithDir(t, dir)

	if cfg.Disabled {
		t.Error("kill switch on by default")
	}
	if cfg.APIKey != "" {
		t.Errorf("APIKey = %q, want empty", cfg.APIKey)
	}
	if cfg.AllowlistPath != filepath.Join(dir, DefaultAllowlistFile) {
		t.Errorf("AllowlistPath = %q", cfg.AllowlistPath)
	}
	if cfg.Escalation.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Escalation.Timeout)
	}
	if cfg.Escalation.Endpoint == "" || cfg.Escalation.Model == "" {
		t.Errorf("escalation defaults missing: %+v", cfg.Escalation)
	}

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("config dir not created: %v", err)
	}
}

func TestLoad_KillSwitch(t *testing.T) {
	t.Setenv(EnvDisable, "1")
	cfg := loadWithDir(t, t.TempDir())
	if !cfg.Disabled {
		t.Error("VIBESEC_DISABLE=1 did not set the kill switch")
	}

	// Only the exact value "1" disables.
	t.Setenv(EnvDisable, "true")
	cfg = loadWithDir(t, t.TempDir())
	if cfg.Disabled {
		t.Error("VIBESEC_DISABLE=true set the kill switch")
	}
}

func TestLoad_APIKeyFallback(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvAPIKeyFallback, "sk-fallback")
	cfg := loadWithDir(t, t.TempDir())
	if cfg.APIKey != "sk-fallback" {
		t.Errorf("APIKey = %q, want fallback key", cfg.APIKey)
	}

	t.Setenv(EnvAPIKey, "sk-primary")
	cfg = loadWithDir(t, t.TempDir())
	if cfg.APIKey != "sk-primary" {
		t.Errorf("APIKey = %q, want primary key to win", cfg.APIKey)
	}
}

func TestLoad_Overlay(t *testing.T) {
	dir := t.TempDir()
	overlayYAML := `
allowlist_path: /custom/allow.txt
escalation:
  model: claude-test
  timeout_seconds: 9
`
	if err := os.WriteFile(filepath.Join(dir, DefaultOverlayFile), []byte(overlayYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := loadWithDir(t, dir)

	if cfg.AllowlistPath != "/custom/allow.txt" {
		t.Errorf("AllowlistPath = %q", cfg.AllowlistPath)
	}
	if cfg.Escalation.Model != "claude-test" {
		t.Errorf("Model = %q", cfg.Escalation.Model)
	}
	if cfg.Escalation.Timeout != 9*time.Second {
		t.Errorf("Timeout = %v, want 9s", cfg.Escalation.Timeout)
	}
	// Knobs the overlay left out keep their defaults.
	if cfg.Escalation.MaxSubjectChars != 4000 {
		t.Errorf("MaxSubjectChars = %d, want 4000", cfg.Escalation.MaxSubjectChars)
	}
	if cfg.BlockedPath != filepath.Join(dir, DefaultBlockedFile) {
		t.Errorf("BlockedPath = %q", cfg.BlockedPath)
	}
}

func TestLoad_MalformedOverlayFails(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, DefaultOverlayFile), []byte("{not yaml"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfigDir, dir)
	if _, err := Load("", "", ""); err == nil {
		t.Error("malformed overlay did not surface an error")
	}
}

func TestLoad_FlagOverridesWin(t *testing.T) {
	dir := t.TempDir()
	overlayYAML := "allowlist_path: /overlay/allow.txt\n"
	if err := os.WriteFile(filepath.Join(dir, DefaultOverlayFile), []byte(overlayYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfigDir, dir)

	cfg, err := Load("/flag/allow.txt", "", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AllowlistPath != "/flag/allow.txt" {
		t.Errorf("AllowlistPath = %q, want flag value", cfg.AllowlistPath)
	}
}

// Package config builds the single immutable configuration value threaded
// through the entry point. No other package reads the process environment.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigDir     = ".vibesec"
	DefaultAllowlistFile = "allowlist.txt"
	DefaultBlockedFile   = "blocked.jsonl"
	DefaultTelemetryFile = "telemetry-queue.jsonl"
	DefaultOverlayFile   = "config.yaml"

	// EnvDisable short-circuits the whole pipeline to allow. Emergency
	// recovery only; it bypasses even the irrevocable tier.
	EnvDisable = "VIBESEC_DISABLE"

	// EnvAPIKey supplies the capability key for the escalation tier.
	// Absent key means tier 3 is a no-op.
	EnvAPIKey         = "VIBESEC_API_KEY"
	EnvAPIKeyFallback = "ANTHROPIC_API_KEY"

	// EnvConfigDir relocates the config dir, for tests and debugging.
	EnvConfigDir = "VIBESEC_CONFIG_DIR"
)

type Escalation struct {
	Endpoint        string
	Model           string
	Timeout         time.Duration
	MaxSubjectChars int
}

type Config struct {
	ConfigDir     string
	AllowlistPath string
	BlockedPath   string
	TelemetryPath string

	Disabled bool   // kill switch
	APIKey   string // empty means escalation tier disabled

	Escalation Escalation
}

// overlay is the optional on-disk config file. Only tuning knobs live
// here; the kill switch and capability key stay environment-only so a
// file write cannot silently change them between invocations.
type overlay struct {
	AllowlistPath string `yaml:"allowlist_path"`
	BlockedPath   string `yaml:"blocked_path"`
	TelemetryPath string `yaml:"telemetry_path"`
	Escalation    struct {
		Endpoint        string `yaml:"endpoint"`
		Model           string `yaml:"model"`
		TimeoutSeconds  int    `yaml:"timeout_seconds"`
		MaxSubjectChars int    `yaml:"max_subject_chars"`
	} `yaml:"escalation"`
}

func defaultEscalation() Escalation {
	return Escalation{
		Endpoint:        "https://api.anthropic.com/v1/messages",
		Model:           "claude-3-5-haiku-20241022",
		Timeout:         5 * time.Second,
		MaxSubjectChars: 4000,
	}
}

// Load assembles the configuration: defaults, then the optional YAML
// overlay, then explicit path overrides from flags. This is the only
// place environment variables are read.
func Load(allowlistPath, blockedPath, telemetryPath string) (*Config, error) {
	configDir := os.Getenv(EnvConfigDir)
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(homeDir, DefaultConfigDir)
	}
	if err := ensureDir(configDir); err != nil {
		return nil, err
	}

	cfg := &Config{
		ConfigDir:     configDir,
		AllowlistPath: filepath.Join(configDir, DefaultAllowlistFile),
		BlockedPath:   filepath.Join(configDir, DefaultBlockedFile),
		TelemetryPath: filepath.Join(configDir, DefaultTelemetryFile),
		Disabled:      os.Getenv(EnvDisable) == "1",
		Escalation:    defaultEscalation(),
	}

	cfg.APIKey = os.Getenv(EnvAPIKey)
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(EnvAPIKeyFallback)
	}

	if err := cfg.applyOverlay(filepath.Join(configDir, DefaultOverlayFile)); err != nil {
		return nil, err
	}

	if allowlistPath != "" {
		cfg.AllowlistPath = allowlistPath
	}
	if blockedPath != "" {
		cfg.BlockedPath = blockedPath
	}
	if telemetryPath != "" {
		cfg.TelemetryPath = telemetryPath
	}

	return cfg, nil
}

func (c *Config) applyOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var o overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return err
	}

	if o.AllowlistPath != "" {
		c.AllowlistPath = o.AllowlistPath
	}
	if o.BlockedPath != "" {
		c.BlockedPath = o.BlockedPath
	}
	if o.TelemetryPath != "" {
		c.TelemetryPath = o.TelemetryPath
	}
	if o.Escalation.Endpoint != "" {
		c.Escalation.Endpoint = o.Escalation.Endpoint
	}
	if o.Escalation.Model != "" {
		c.Escalation.Model = o.Escalation.Model
	}
	if o.Escalation.TimeoutSeconds > 0 {
		c.Escalation.Timeout = time.Duration(o.Escalation.TimeoutSeconds) * time.Second
	}
	if o.Escalation.MaxSubjectChars > 0 {
		c.Escalation.MaxSubjectChars = o.Escalation.MaxSubjectChars
	}
	return nil
}

func ensureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0700)
	}
	return nil
}

// Package telemetry sends anonymous pipeline outcome events to PostHog.
// Nothing is sent until the user opts in with `genesis telemetry enable`.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
)

// ConfigFileName is the opt-in state file under the genesis home.
const ConfigFileName = "telemetry.json"

// Config is the opt-in state, kept apart from .genesis.yaml.
type Config struct {
	Enabled      bool   `json:"enabled"`
	ConsentAsked bool   `json:"consent_asked"`
	AnonymousID  string `json:"anonymous_id"`
}

// DoNotTrackEnv disables telemetry regardless of the stored opt-in.
const DoNotTrackEnv = "DO_NOT_TRACK"

var dirOverride atomic.Pointer[string]

// SetConfigDir points Load and Save at dir. Empty restores ~/.genesis.
func SetConfigDir(dir string) {
	dirOverride.Store(&dir)
}

func configDir() (string, error) {
	if dir := dirOverride.Load(); dir != nil && *dir != "" {
		return *dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".genesis"), nil
}

// ConfigPath returns the path of the opt-in state file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// Load reads the opt-in state. A missing file yields a disabled config
// with a fresh anonymous id.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}

	cfg := &Config{}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("telemetry state %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("telemetry state: %w", err)
	}

	if cfg.AnonymousID == "" {
		cfg.AnonymousID = uuid.New().String()
	}
	return cfg, nil
}

// Save writes the state with owner-only permissions.
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return fmt.Errorf("get config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Enable opts in.
func (c *Config) Enable() {
	c.Enabled = true
	c.ConsentAsked = true
}

// Disable opts out.
func (c *Config) Disable() {
	c.Enabled = false
	c.ConsentAsked = true
}

// IsEnabled reports whether events may be sent. DO_NOT_TRACK set to
// anything but "" or "0" wins over the stored opt-in.
func (c *Config) IsEnabled() bool {
	if v := os.Getenv(DoNotTrackEnv); v != "" && v != "0" {
		return false
	}
	return c != nil && c.Enabled
}

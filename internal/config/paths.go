package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// GlobalDir returns ~/.genesis. A variable so tests can point it elsewhere.
var GlobalDir = func() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".genesis"), nil
}

// RegistryDir resolves where registry.db lives.
// Order: registry.path, $XDG_DATA_HOME/genesis, ~/.genesis.
func RegistryDir() string {
	if path := viper.GetString("registry.path"); path != "" {
		return path
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "genesis")
	}
	dir, err := GlobalDir()
	if err != nil {
		return ".genesis"
	}
	return dir
}

// PoliciesDir resolves the admission policy directory.
func PoliciesDir() string {
	if dir := viper.GetString("policy.dir"); dir != "" {
		return dir
	}
	dir, err := GlobalDir()
	if err != nil {
		return "policies"
	}
	return filepath.Join(dir, "policies")
}

// CrashLogDir is where panic reports are written.
func CrashLogDir() string {
	dir, err := GlobalDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "genesis", "crash_logs")
	}
	return filepath.Join(dir, "crash_logs")
}

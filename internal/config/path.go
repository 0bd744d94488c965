package config

import (
	"os"
	"path/filepath"
	"strings"
)

const appName = "bankrules"

// ExpandPath resolves a leading ~ to the home directory and expands $VARs.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return os.ExpandEnv(path)
}

// ConfigDir is where config.yaml, certificates and OAuth tokens live:
// $XDG_CONFIG_HOME/bankrules, or ~/.config/bankrules.
func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DataDir holds the database and feed state: $XDG_DATA_HOME/bankrules,
// or ~/.local/share/bankrules.
func DataDir() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgDir(env, fallback string) string {
	if base := os.Getenv(env); filepath.IsAbs(base) {
		return filepath.Join(base, appName)
	}
	return filepath.Join("~", fallback, appName)
}

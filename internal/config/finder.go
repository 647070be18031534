package config

import (
	"os"
	"path/filepath"
)

// Config file extensions understood by viper, in lookup order
var configExtensions = []string{"yml", "yaml", "json", "toml"}

// FindLocalConfig finds local config file by walking up directories
func FindLocalConfig(dir string) string {
	for {
		for _, ext := range configExtensions {
			path := filepath.Join(dir, ".cmake-analyze."+ext)

			if _, err := os.Stat(path); err == nil {
				return path
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}

// GlobalConfigDir returns the per-user configuration directory, preferring
// APPDATA like other Windows developer tools.
func GlobalConfigDir() string {
	if appdata := os.Getenv("APPDATA"); appdata != "" {
		return filepath.Join(appdata, "cmake-analyze")
	}

	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "cmake-analyze")
	}

	return ""
}

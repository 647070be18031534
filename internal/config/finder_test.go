package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindLocalConfig(t *testing.T) {
	// Create a temporary directory structure
	tempDir := t.TempDir()
	subDir := filepath.Join(tempDir, "subdir")
	err := os.Mkdir(subDir, 0o755)
	assert.NoError(t, err)

	// Create config files
	configYML := filepath.Join(subDir, ".cmake-analyze.yml")
	err = os.WriteFile(configYML, []byte("ruleset: \"AllRules.ruleset\""), 0o644)
	assert.NoError(t, err)

	// Test finding in subdir
	result := FindLocalConfig(subDir)
	assert.Equal(t, configYML, result)

	// Test finding in parent
	result = FindLocalConfig(filepath.Join(subDir, "deep"))
	assert.Equal(t, configYML, result)

	// Test not found
	result = FindLocalConfig(tempDir)
	assert.Equal(t, "", result)
}

func TestGlobalConfigDir(t *testing.T) {
	t.Setenv("APPDATA", filepath.Join("C:", "Users", "dev", "AppData", "Roaming"))
	assert.Equal(t, filepath.Join("C:", "Users", "dev", "AppData", "Roaming", "cmake-analyze"), GlobalConfigDir())

	if runtime.GOOS == "windows" {
		return
	}

	t.Setenv("APPDATA", "")
	t.Setenv("XDG_CONFIG_HOME", "/home/dev/.config")
	t.Setenv("HOME", "/home/dev")
	assert.Equal(t, "cmake-analyze", filepath.Base(GlobalConfigDir()))
}

package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from various sources
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadForAnalyze loads configuration for an analysis run. The optional
// argument is the build root; local config is searched upward from it.
func (l *Loader) LoadForAnalyze(cmd *cobra.Command, args []string) (*Config, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()
	l.bindCommandFlags(cmd)

	if len(args) > 0 {
		viper.Set("build_root", args[0])
	}

	l.loadLocalConfig(viper.GetString("build_root"))

	return Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("ruleset", DefaultRuleset)
	viper.SetDefault("ignore_system_headers", DefaultIgnoreSystemHeaders)
	viper.SetDefault("verbose", DefaultVerbose)
}

// loadGlobalConfig loads global configuration from the user config directory
func (l *Loader) loadGlobalConfig() {
	globalDir := GlobalConfigDir()
	if globalDir == "" {
		return
	}

	for _, ext := range configExtensions {
		globalPath := filepath.Join(globalDir, "config."+ext)

		if _, err := os.Stat(globalPath); err == nil {
			viper.SetConfigFile(globalPath)

			if err := viper.MergeInConfig(); err == nil {
				break
			}
		}
	}
}

// loadLocalConfig loads local configuration from the build tree or the
// working directory
func (l *Loader) loadLocalConfig(buildRoot string) {
	dir := buildRoot
	if dir == "" {
		dir = "."
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return // silently ignore, config.Load() will handle validation
	}

	localPath := FindLocalConfig(abs)
	if localPath != "" {
		viper.SetConfigFile(localPath)
		_ = viper.MergeInConfig()
	}
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	for key, flag := range map[string]string{
		"results_dir":           "results",
		"ruleset":               "ruleset",
		"cmake_path":            "cmake",
		"cmake_env":             "cmake-env",
		"ignore_system_headers": "ignore-system-headers",
		"use_pch":               "use-pch",
		"additional_args":       "args",
		"exclude":               "exclude",
		"cache_dir":             "cache-dir",
		"no_cache":              "no-cache",
		"dry_run":               "dry-run",
		"verbose":               "verbose",
	} {
		if f := cmd.Flags().Lookup(flag); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}

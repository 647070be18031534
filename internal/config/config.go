package config

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/viper"

	"github.com/Norgate-AV/cmake-analyze/internal/codes"
)

// Default configuration values
const (
	DefaultRuleset             = "NativeRecommendedRules.ruleset"
	DefaultResultsDir          = "analysis-results"
	DefaultCacheDir            = ".cmake-analyze-cache"
	DefaultIgnoreSystemHeaders = true
	DefaultVerbose             = false
)

// Holds the configuration options for cmake-analyze
type Config struct {
	// CMake binary directory of an already configured project
	BuildRoot string

	// Directory receiving one SARIF log per analyzed source
	ResultsDir string

	// Ruleset file path, or the name of a ruleset shipped with MSVC
	Ruleset string

	// cmake executable; looked up on PATH when empty
	CMakePath string

	// KEY=VALUE pairs added to the environment of the cmake run
	CMakeEnv []string

	// Pass system includes as external and hide their warnings
	IgnoreSystemHeaders bool

	// Reserved
	UsePrecompiledHeaders bool

	// Extra arguments appended verbatim to every analysis command
	AdditionalArgs string

	// Globs, relative to the source root, of sources not to analyze
	Exclude []string

	CacheDir string
	NoCache  bool

	// Print analysis commands without running them
	DryRun bool

	// Enable verbose output
	Verbose bool
}

func Load() (*Config, error) {
	cfg := &Config{
		BuildRoot:             viper.GetString("build_root"),
		ResultsDir:            viper.GetString("results_dir"),
		Ruleset:               viper.GetString("ruleset"),
		CMakePath:             viper.GetString("cmake_path"),
		CMakeEnv:              viper.GetStringSlice("cmake_env"),
		IgnoreSystemHeaders:   viper.GetBool("ignore_system_headers"),
		UsePrecompiledHeaders: viper.GetBool("use_pch"),
		AdditionalArgs:        viper.GetString("additional_args"),
		Exclude:               viper.GetStringSlice("exclude"),
		CacheDir:              viper.GetString("cache_dir"),
		NoCache:               viper.GetBool("no_cache"),
		DryRun:                viper.GetBool("dry_run"),
		Verbose:               viper.GetBool("verbose"),
	}

	if cfg.Ruleset == "" {
		cfg.Ruleset = DefaultRuleset
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.BuildRoot == "" {
		return codes.New(codes.Configuration, "build root not specified")
	}

	abs, err := filepath.Abs(c.BuildRoot)
	if err != nil {
		return codes.Wrap(codes.Configuration, err, "invalid build root path")
	}

	c.BuildRoot = abs

	if c.ResultsDir == "" {
		c.ResultsDir = filepath.Join(c.BuildRoot, DefaultResultsDir)
	}

	if c.ResultsDir, err = filepath.Abs(c.ResultsDir); err != nil {
		return codes.Wrap(codes.Configuration, err, "invalid results directory path")
	}

	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(c.BuildRoot, DefaultCacheDir)
	}

	if c.CacheDir, err = filepath.Abs(c.CacheDir); err != nil {
		return codes.Wrap(codes.Configuration, err, "invalid cache directory path")
	}

	// A bare name refers to a ruleset installed with the compiler
	if isPath(c.Ruleset) {
		if c.Ruleset, err = filepath.Abs(c.Ruleset); err != nil {
			return codes.Wrap(codes.Configuration, err, "invalid ruleset path")
		}
	}

	for _, kv := range c.CMakeEnv {
		if name, _, ok := strings.Cut(kv, "="); !ok || name == "" {
			return codes.New(codes.Configuration, "invalid cmake environment entry %q, expected KEY=VALUE", kv)
		}
	}

	for _, pattern := range c.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return codes.New(codes.Configuration, "invalid exclude pattern: %s", pattern)
		}
	}

	return nil
}

func isPath(s string) bool {
	return strings.ContainsAny(s, `/\`)
}

package cmd

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/cmake-analyze/internal/analysis"
	"github.com/Norgate-AV/cmake-analyze/internal/cache"
	"github.com/Norgate-AV/cmake-analyze/internal/cmake"
	"github.com/Norgate-AV/cmake-analyze/internal/compiler"
	"github.com/Norgate-AV/cmake-analyze/internal/config"
)

var analyzeCmd = &cobra.Command{
	Use:          "analyze [build-root]",
	Short:        "Analyze a CMake build tree",
	Long:         `Query the build tree through the CMake file API and run MSVC code analysis on each source.`,
	RunE:         runAnalyze,
	SilenceUsage: true,
	Args:         cobra.MaximumNArgs(1),
}

func init() {
	addAnalyzeFlags(analyzeCmd)
}

func newCMakeLoader(cfg *config.Config) *cmake.Loader {
	l := cmake.NewLoader(cfg.BuildRoot)
	l.CMakePath = cfg.CMakePath
	l.Env = cfg.CMakeEnv

	return l
}

var loadBuildGraph = func(ctx context.Context, cfg *config.Config) (analysis.CommandSource, error) {
	state, err := newCMakeLoader(cfg).Load(ctx)
	if err != nil {
		return nil, err
	}

	return state, nil
}

var newAnalyzer = func(opts compiler.Options) analysis.Analyzer {
	return compiler.NewCommandBuilder(opts)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.LoadForAnalyze(cmd, args)
	if err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger.Debug("Configuration", "build_root", cfg.BuildRoot, "results", cfg.ResultsDir, "ruleset", cfg.Ruleset)

	source, err := loadBuildGraph(ctx, cfg)
	if err != nil {
		return err
	}

	logBuildGraph(logger, source)

	analyzer := newAnalyzer(compiler.Options{
		Ruleset:             cfg.Ruleset,
		AdditionalArgs:      cfg.AdditionalArgs,
		IgnoreSystemHeaders: cfg.IgnoreSystemHeaders,
	})

	var c *cache.Cache
	if !cfg.NoCache && !cfg.DryRun {
		c, err = cache.New(cfg.CacheDir)
		if err != nil {
			logger.Warn("Cache unavailable, analyzing everything", "err", err)
			c = nil
		} else {
			defer c.Close()
		}
	}

	runner := analysis.NewRunner(source, analyzer, c, logger, analysis.Options{
		ResultsDir:            cfg.ResultsDir,
		Exclude:               cfg.Exclude,
		IgnoreSystemHeaders:   cfg.IgnoreSystemHeaders,
		UsePrecompiledHeaders: cfg.UsePrecompiledHeaders,
		DryRun:                cfg.DryRun,
	})
	runner.Out = cmd.OutOrStdout()

	summary, err := runner.Run(ctx)
	if !cfg.DryRun {
		logger.Info(summary.String(), "results", cfg.ResultsDir)
	}

	return err
}

// logBuildGraph reports which cmake produced the replies
func logBuildGraph(logger *log.Logger, source analysis.CommandSource) {
	g, ok := source.(interface {
		Version() (string, error)
		CMakePath() (string, error)
	})
	if !ok {
		return
	}

	cmakeVersion, err := g.Version()
	if err != nil {
		return
	}

	cmakePath, err := g.CMakePath()
	if err != nil {
		return
	}

	logger.Debug("Build graph loaded", "cmake", cmakeVersion, "path", cmakePath)
}

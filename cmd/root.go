package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/cmake-analyze/internal/codes"
	"github.com/Norgate-AV/cmake-analyze/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "cmake-analyze [build-root]",
	Short: "MSVC code analysis for CMake projects",
	Long: `Run MSVC code analysis over every C and C++ source of a configured
CMake build tree, writing one SARIF log per source file.`,
	RunE:         runAnalyze,
	SilenceUsage: true,
	Args:         cobra.MaximumNArgs(1),
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		os.Exit(codes.ExitCode(err))
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime)
	addAnalyzeFlags(rootCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(cacheCmd)
}

// addAnalyzeFlags registers the flags shared by the root and analyze commands
func addAnalyzeFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("results", "r", "", "Directory for SARIF logs (default <build-root>/analysis-results)")
	cmd.Flags().String("ruleset", "", "Analysis ruleset name or path")
	cmd.Flags().String("cmake", "", "cmake executable (default: found on PATH)")
	cmd.Flags().StringSlice("cmake-env", []string{}, "KEY=VALUE added to the environment of cmake")
	cmd.Flags().Bool("ignore-system-headers", true, "Suppress diagnostics from system headers")
	cmd.Flags().Bool("use-pch", false, "Keep precompiled header usage")
	cmd.Flags().String("args", "", "Additional compiler arguments")
	cmd.Flags().StringSliceP("exclude", "e", []string{}, "Glob of sources to skip, relative to the source root")
	cmd.Flags().String("cache-dir", "", "Cache directory (default <build-root>/.cmake-analyze-cache)")
	cmd.Flags().Bool("no-cache", false, "Disable the analysis cache")
	cmd.Flags().Bool("dry-run", false, "Print analysis commands without running them")
	cmd.Flags().BoolP("verbose", "v", false, "Verbose output")
}

func newLogger(w io.Writer, verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}

	return log.NewWithOptions(w, log.Options{
		Level:  level,
		Prefix: "cmake-analyze",
	})
}

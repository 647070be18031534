package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/cmake-analyze/internal/cache"
	"github.com/Norgate-AV/cmake-analyze/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the analysis cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:          "stats [build-root]",
	Short:        "Show cache statistics",
	RunE:         runCacheStats,
	SilenceUsage: true,
	Args:         cobra.MaximumNArgs(1),
}

var cacheClearCmd = &cobra.Command{
	Use:          "clear [build-root]",
	Short:        "Remove all cached analyses",
	RunE:         runCacheClear,
	SilenceUsage: true,
	Args:         cobra.MaximumNArgs(1),
}

func init() {
	for _, c := range []*cobra.Command{cacheStatsCmd, cacheClearCmd} {
		c.Flags().String("cache-dir", "", "Cache directory (default <build-root>/.cmake-analyze-cache)")
		cacheCmd.AddCommand(c)
	}
}

func openCache(cmd *cobra.Command, args []string) (*cache.Cache, error) {
	loader := config.NewLoader()
	cfg, err := loader.LoadForAnalyze(cmd, args)
	if err != nil {
		return nil, err
	}

	return cache.New(cfg.CacheDir)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	c, err := openCache(cmd, args)
	if err != nil {
		return err
	}
	defer c.Close()

	count, size, err := c.Stats()
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Cache: %s\nEntries: %d\nSize: %s\n", c.Root(), count, formatSize(size))

	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	c, err := openCache(cmd, args)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", c.Root())

	return nil
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

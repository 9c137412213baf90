package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the indicator cache",
	Long: `Inspect and manage the two-tier indicator cache.

Subcommands:
  stats    - hit/miss counters and sizes
  cleanup  - sweep expired disk entries
  clear    - drop everything

Example:
  go run ./cmd/macropulse cache stats
  go run ./cmd/macropulse cache clear`,
}

var (
	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show cache counters",
		RunE:  showCacheStats,
	}

	cacheCleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Sweep expired disk entries",
		RunE:  runCacheCleanup,
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Drop all cached entries",
		RunE:  runCacheClear,
	}
)

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheCleanupCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func showCacheStats(cmd *cobra.Command, args []string) error {
	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.close()

	stats := d.service.CacheStats()

	fmt.Println("Cache statistics:")
	fmt.Printf("  Memory entries: %d / %d\n", stats.Memory.TotalEntries, stats.Memory.MaxSize)
	fmt.Printf("  Disk files:     %d (%s)\n", stats.DiskFiles, stats.DiskDir)
	fmt.Printf("  Hits:           %d\n", stats.Hits)
	fmt.Printf("  Misses:         %d\n", stats.Misses)
	fmt.Printf("  Hit rate:       %.1f%%\n", stats.HitRate*100)

	return nil
}

func runCacheCleanup(cmd *cobra.Command, args []string) error {
	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.close()

	result := d.service.CleanupCache()
	fmt.Printf("Removed %d expired disk entries\n", result.ExpiredDiskEntriesRemoved)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.close()

	d.service.Invalidate("")
	fmt.Println("Cache cleared")
	return nil
}

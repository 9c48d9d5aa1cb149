package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sheetmind/internal/store"
)

// cacheCmd groups intent-cache maintenance subcommands.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the intent cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show intent cache statistics",
	RunE:  runCacheStats,
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	cache, err := store.NewIntentCache(cfg.Routing.CachePath)
	if err != nil {
		return fmt.Errorf("open intent cache: %w", err)
	}
	defer cache.Close()

	stats, err := cache.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}

	fmt.Printf("Intent cache: %s\n", cfg.Routing.CachePath)
	fmt.Printf("  cached intents: %v\n", stats["total_intents"])
	fmt.Printf("  seed intents:   %v\n", stats["seed_intents"])
	fmt.Printf("  total hits:     %v\n", stats["total_hits"])
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/devpulse/internal/cache"
	"github.com/rohankatakam/devpulse/internal/jobs"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the dashboard result cache",
}

var cacheFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Drop every cached dashboard result",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := cache.Open(cmd.Context(), cfg.Cache)
		if err != nil {
			return err
		}
		defer c.Close()

		n, err := c.Purge(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d shared cache entries\n", n)
		return nil
	},
}

var cacheWarmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Recompute cached results for every segment and the global scope",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		scheduler, err := jobs.New(cfg.Jobs, a.svc, a.locker(), nil)
		if err != nil {
			return err
		}
		defer scheduler.Stop()
		ran, err := scheduler.WarmOnce(cmd.Context())
		if err != nil {
			return err
		}
		if !ran {
			fmt.Println("Warm-up already running elsewhere, skipped")
			return nil
		}
		return printJSON(a.svc.CacheStats())
	},
}

func init() {
	cacheCmd.AddCommand(cacheFlushCmd)
	cacheCmd.AddCommand(cacheWarmCmd)
}

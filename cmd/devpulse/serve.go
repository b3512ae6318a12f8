package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/devpulse/internal/api"
	"github.com/rohankatakam/devpulse/internal/jobs"
	"github.com/rohankatakam/devpulse/internal/logging"
)

var (
	serveAddr   string
	serveNoJobs bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP API",
	Long: `Run the dashboard HTTP API and the scheduled cache warm-up.

Examples:
  # Serve on the configured address
  devpulse serve

  # Serve on another port without background jobs
  devpulse serve --addr :9090 --no-jobs`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveNoJobs, "no-jobs", false, "disable scheduled jobs")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// The scheduler also backs the admin warm route, so it exists even with --no-jobs
	scheduler, err := jobs.New(cfg.Jobs, a.svc, a.locker(), a.cache)
	if err != nil {
		return err
	}
	defer scheduler.Stop()
	if !serveNoJobs {
		scheduler.Start()
	}

	router := api.NewRouter(cfg.Server, a.svc, scheduler, logging.Component("api"))
	logger.WithField("addr", cfg.Server.Addr).Info("Starting devpulse")
	return api.Serve(ctx, cfg.Server, router, logging.Component("http"))
}

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"macropulse/internal/api"
	"macropulse/internal/api/handlers"
	"macropulse/internal/scheduler"
	"macropulse/internal/scheduler/jobs"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Start the REST and WebSocket API server.

Endpoints:
  GET  /health                         - Health check
  GET  /api/indicators                 - All indicators plus trend flags
  GET  /api/indicators/{key}           - Single indicator
  POST /api/indicators/{key}/refresh   - Recompute, bypassing the cache
  GET  /api/indicators/{key}/history   - Persisted snapshots
  GET  /api/releases                   - Upcoming FRED release calendar
  GET  /api/cache/stats                - Cache counters
  POST /api/cache/cleanup              - Sweep expired disk entries
  POST /api/cache/invalidate           - Drop cached entries
  GET  /ws                             - WebSocket push

Example:
  go run ./cmd/macropulse api
  go run ./cmd/macropulse api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.close()

	if apiPort != "" {
		d.cfg.Port = apiPort
	}

	log := d.logger
	log.WithFields(map[string]interface{}{
		"port": d.cfg.Port,
		"env":  d.cfg.Env,
	}).Info("Initializing API server")

	// WebSocket hub, handlers, router
	hub := api.NewHub(log)
	indicatorHandler := handlers.NewIndicatorHandler(d.service, d.snapshots, hub, log)
	cacheHandler := handlers.NewCacheHandler(d.service, log)
	router := api.NewRouter(indicatorHandler, cacheHandler, hub, d.db, log)
	server := api.New(d.cfg, log, router)

	// Background jobs
	var sched *scheduler.Scheduler
	if d.cfg.Scheduler.Enabled {
		sched = scheduler.New(log)
		if err := sched.AddJob(jobs.NewIndicatorRefreshJob(d.service, d.snapshots, hub, d.cfg.Scheduler.RefreshSchedule, log)); err != nil {
			return fmt.Errorf("register refresh job: %w", err)
		}
		if err := sched.AddJob(jobs.NewCacheCleanupJob(d.service, d.cfg.Scheduler.CleanupSchedule, log)); err != nil {
			return fmt.Errorf("register cleanup job: %w", err)
		}
		sched.Start()
	}

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("Server running on http://localhost:%s\n", d.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	if sched != nil {
		sched.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}

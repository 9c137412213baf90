package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"macropulse/internal/scheduler"
	"macropulse/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the background jobs without the API server",
	Long: `Manage the background job scheduler.

Registered jobs:
  indicator_refresh - recompute all indicators (SCHEDULER_REFRESH_CRON)
  cache_cleanup     - sweep expired disk cache entries (SCHEDULER_CLEANUP_CRON)

Subcommands:
  start - run the scheduler daemon
  list  - list registered jobs
  run   - run one job immediately

Example:
  go run ./cmd/macropulse scheduler start
  go run ./cmd/macropulse scheduler run indicator_refresh`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Run the scheduler daemon",
		RunE:  runSchedulerDaemon,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listSchedulerJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run one job immediately",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedulerJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

// initScheduler wires the scheduler with both jobs. No WebSocket hub in
// daemon mode; refreshed values still land in cache and snapshots.
func initScheduler() (*scheduler.Scheduler, *deps, error) {
	d, err := initDeps()
	if err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(d.logger)
	if err := sched.AddJob(jobs.NewIndicatorRefreshJob(d.service, d.snapshots, nil, d.cfg.Scheduler.RefreshSchedule, d.logger)); err != nil {
		return nil, nil, fmt.Errorf("register refresh job: %w", err)
	}
	if err := sched.AddJob(jobs.NewCacheCleanupJob(d.service, d.cfg.Scheduler.CleanupSchedule, d.logger)); err != nil {
		return nil, nil, fmt.Errorf("register cleanup job: %w", err)
	}

	return sched, d, nil
}

func runSchedulerDaemon(cmd *cobra.Command, args []string) error {
	sched, d, err := initScheduler()
	if err != nil {
		return err
	}
	defer d.close()

	sched.Start()

	fmt.Println("Scheduler started. Registered jobs:")
	for _, name := range sched.Jobs() {
		fmt.Printf("  - %s\n", name)
	}
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("Shutting down scheduler...")
	sched.Stop()
	return nil
}

func listSchedulerJobs(cmd *cobra.Command, args []string) error {
	sched, d, err := initScheduler()
	if err != nil {
		return err
	}
	defer d.close()

	fmt.Println("Registered jobs:")
	for _, name := range sched.Jobs() {
		fmt.Printf("  - %s\n", name)
	}
	return nil
}

func runSchedulerJob(cmd *cobra.Command, args []string) error {
	sched, d, err := initScheduler()
	if err != nil {
		return err
	}
	defer d.close()

	name := args[0]
	fmt.Printf("Running job: %s\n", name)

	if err := sched.RunJob(name); err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	fmt.Println("Job started (running in background)")
	return nil
}

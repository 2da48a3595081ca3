package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/xcelerator/internal/api"
	"github.com/wonny/xcelerator/internal/backtest"
	"github.com/wonny/xcelerator/internal/live"
	"github.com/wonny/xcelerator/internal/scheduler"
	"github.com/wonny/xcelerator/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Live rebalance scheduler",
	Long: `Runs the live rebalance on the strategy schedule.

Weekly strategies run on schedule.weekday at schedule.time_local;
monthly strategies run at schedule.time_local on the last weekday
of each month. Times are in schedule.timezone.

Subcommands:
  start   - start the scheduler daemon
  list    - show the registered job and its schedule
  run     - run the rebalance job once now

Example:
  go run ./cmd/quant scheduler start
  go run ./cmd/quant scheduler start --execute --api
  go run ./cmd/quant scheduler list`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		Long: `Starts the scheduler and blocks until Ctrl+C.

Without --execute every scheduled run is a dry run: the plan is built,
stored and sent to WhatsApp, but no order reaches the broker.
Failed runs are not retried.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "Show registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the rebalance job once now",
		RunE:  runJobNow,
	}

	schedulerExecute bool
	schedulerWithAPI bool
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)

	schedulerCmd.PersistentFlags().BoolVar(&schedulerExecute, "execute", false, "place orders on scheduled runs")
	schedulerStartCmd.Flags().BoolVar(&schedulerWithAPI, "api", false, "also serve the read-only API")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	store := a.planStore()
	sched, err := a.scheduler(store)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	var server *api.Server
	if schedulerWithAPI {
		server = a.apiServer(store)
		go func() {
			if err := server.Start(); err != nil {
				a.log.WithError(err).Fatal("Failed to start server")
			}
		}()
	}

	sched.Start()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\n✅ Scheduler started successfully")
	printJobs(cmd, sched)
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	waitForSignal()

	fmt.Fprintln(out, "\nShutting down scheduler...")
	sched.Stop()
	if server != nil {
		return a.shutdown(server)
	}
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	sched, err := a.scheduler(a.planStore())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	printJobs(cmd, sched)
	return nil
}

func runJobNow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	sched, err := a.scheduler(a.planStore())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	result, err := sched.RunJob(jobs.RebalanceJobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("job %s failed after %s: %s", result.JobName, result.Duration, result.Error)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Job %s completed in %s\n", result.JobName, result.Duration)
	return nil
}

func printJobs(cmd *cobra.Command, sched *scheduler.Scheduler) {
	out := cmd.OutOrStdout()
	widths := []int{16, 18, 25}
	fmt.Fprintln(out)
	PrintTableHeader(out, []string{"JOB", "SCHEDULE", "NEXT RUN"}, widths)
	stats := sched.GetJobStats()
	for _, name := range sched.GetAllJobs() {
		next := "-"
		if t, err := sched.NextRun(name); err == nil && !t.IsZero() {
			next = t.Format("2006-01-02 15:04 MST")
		}
		PrintTableRow(out, []string{name, stats[name].Schedule, next}, widths)
	}
}

// scheduler registers the live rebalance job in the strategy timezone
func (a *app) scheduler(store live.Store) (*scheduler.Scheduler, error) {
	freq, err := backtest.ParseFrequency(a.strategy.Schedule.Frequency)
	if err != nil {
		return nil, err
	}
	weekday, err := backtest.ParseWeekday(a.strategy.Schedule.Weekday)
	if err != nil {
		return nil, err
	}

	runner, err := a.runner(store)
	if err != nil {
		return nil, err
	}

	job, err := jobs.NewRebalanceJob(runner, freq, weekday, a.strategy.Schedule.TimeLocal, a.location(), schedulerExecute, a.log)
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(a.location(), a.log)
	if err := sched.AddJob(job); err != nil {
		return nil, err
	}
	return sched, nil
}

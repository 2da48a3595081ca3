package jobs

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/xcelerator/internal/backtest"
	"github.com/wonny/xcelerator/internal/live"
	"github.com/wonny/xcelerator/pkg/logger"
)

// RebalanceJobName is the scheduler name of the live rebalance job
const RebalanceJobName = "live_rebalance"

// Runner is satisfied by *live.Runner
type Runner interface {
	Run(ctx context.Context, opts live.Options) (*live.Report, error)
}

// RebalanceJob runs the live rebalance on the strategy schedule
// ⭐ SSOT: the live rebalance schedule is built only here
type RebalanceJob struct {
	runner   Runner
	execute  bool
	freq     backtest.Frequency
	schedule string
	location *time.Location
	now      func() time.Time
	logger   *logger.Logger
}

// NewRebalanceJob creates the job. Weekly runs fire on weekday at timeLocal;
// monthly runs fire at timeLocal on the last weekday of each month.
func NewRebalanceJob(runner Runner, freq backtest.Frequency, weekday time.Weekday, timeLocal string, loc *time.Location, execute bool, log *logger.Logger) (*RebalanceJob, error) {
	spec, err := CronSpec(freq, weekday, timeLocal)
	if err != nil {
		return nil, err
	}
	return &RebalanceJob{
		runner:   runner,
		execute:  execute,
		freq:     freq,
		schedule: spec,
		location: loc,
		now:      time.Now,
		logger:   log.WithComponent("rebalance-job"),
	}, nil
}

// Name returns the job name
func (j *RebalanceJob) Name() string {
	return RebalanceJobName
}

// Schedule returns the cron expression
func (j *RebalanceJob) Schedule() string {
	return j.schedule
}

// Run executes one live rebalance. Monthly jobs skip every day but the month's last weekday.
func (j *RebalanceJob) Run(ctx context.Context) error {
	now := j.now().In(j.location)
	if j.freq == backtest.Monthly && !IsLastWeekdayOfMonth(now) {
		j.logger.WithField("date", now.Format("2006-01-02")).Debug("Not the last weekday of the month, skipping")
		return nil
	}

	report, err := j.runner.Run(ctx, live.Options{Execute: j.execute, AsOf: now})
	if err != nil {
		return fmt.Errorf("live rebalance: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":    report.RunID,
		"plan_date": report.PlanDate.Format("2006-01-02"),
		"status":    report.Status,
		"execute":   j.execute,
	}).Info("Scheduled rebalance finished")
	return nil
}

// CronSpec builds a five-field cron expression for the strategy schedule
func CronSpec(freq backtest.Frequency, weekday time.Weekday, timeLocal string) (string, error) {
	hour, minute, err := parseHHMM(timeLocal)
	if err != nil {
		return "", err
	}
	switch freq {
	case backtest.Weekly:
		return fmt.Sprintf("%d %d * * %d", minute, hour, int(weekday)), nil
	case backtest.Monthly:
		// the last weekday of a month always falls on the 24th or later
		return fmt.Sprintf("%d %d 24-31 * *", minute, hour), nil
	default:
		return "", fmt.Errorf("unknown rebalance frequency %q", freq)
	}
}

// IsLastWeekdayOfMonth reports whether no Monday-Friday date follows t in its month
func IsLastWeekdayOfMonth(t time.Time) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	for d := t.AddDate(0, 0, 1); d.Month() == t.Month(); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			return false
		}
	}
	return true
}

func parseHHMM(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok || len(h) != 2 || len(m) != 2 {
		return 0, 0, fmt.Errorf("time %q must be HH:MM", s)
	}
	hour, errH := strconv.Atoi(h)
	minute, errM := strconv.Atoi(m)
	if errH != nil || errM != nil || hour > 23 || minute > 59 || hour < 0 || minute < 0 {
		return 0, 0, fmt.Errorf("time %q must be HH:MM", s)
	}
	return hour, minute, nil
}

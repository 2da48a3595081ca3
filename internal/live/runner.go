package live

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/xcelerator/internal/contracts"
	"github.com/wonny/xcelerator/internal/marketdata"
	"github.com/wonny/xcelerator/internal/metrics"
	"github.com/wonny/xcelerator/internal/planner"
	"github.com/wonny/xcelerator/internal/rebalance"
	"github.com/wonny/xcelerator/pkg/logger"
)

// StatusNoChange is reported when the session produced no plan
const StatusNoChange = "NO_CHANGE"

// Run kinds
const (
	KindRebalance = "rebalance"
	KindTopUp     = "topup"
)

// ErrNoBenchmark is returned when the benchmark has no bar on or before the run date
var ErrNoBenchmark = errors.New("no benchmark bar on or before run date")

// Notifier delivers a finished plan to the operator
type Notifier interface {
	NotifyPlan(ctx context.Context, asOf time.Time, plan *planner.Plan) error
}

// Config holds per-deployment runner settings
type Config struct {
	Universe     string // nifty500 | nifty100
	Benchmark    string
	LookbackDays int    // calendar days of history fetched before the run date
	OutputDir    string // plan CSV directory, empty = no file
	ConfigHash   string // strategy config hash stored with every report
}

// Options control a single run
type Options struct {
	Execute bool      // place orders; false is a dry run
	AsOf    time.Time // zero = now
	TopUp   bool      // spend cash on current holdings instead of rebalancing
}

// Kind names the run for reports and logs
func (o Options) Kind() string {
	if o.TopUp {
		return KindTopUp
	}
	return KindRebalance
}

// Report is the persisted record of one live run
type Report struct {
	ID              int64                `json:"id"`
	RunID           string               `json:"run_id"`
	Kind            string               `json:"kind"`
	PlanDate        time.Time            `json:"plan_date"`
	Status          string               `json:"status"`
	ConfigHash      string               `json:"config_hash"`
	Execute         bool                 `json:"execute"`
	Universe        string               `json:"universe"`
	UniverseSize    int                  `json:"universe_size"`
	Excluded        map[string]string    `json:"excluded,omitempty"`
	Holdings        []contracts.Position `json:"holdings"`
	Cash            float64              `json:"cash"`
	Outcome         *rebalance.Outcome   `json:"outcome"`
	CSVPath         string               `json:"csv_path,omitempty"`
	CompletedStages []string             `json:"completed_stages"`
	Duration        time.Duration        `json:"duration"`
	CreatedAt       time.Time            `json:"created_at"`
}

// Plan returns the plan of the report, nil when nothing changes
func (r *Report) Plan() *planner.Plan {
	if r == nil || r.Outcome == nil {
		return nil
	}
	return r.Outcome.Plan
}

// Runner performs one live rebalance against a broker
// ⭐ SSOT: the live path (universe → broker state → prices → session → CSV → orders) lives here only
type Runner struct {
	broker   contracts.Broker
	prices   marketdata.Provider
	universe contracts.UniverseProvider
	session  *rebalance.Session
	store    Store
	notifier Notifier
	metrics  *metrics.Registry

	config Config
	now    func() time.Time
	logger *logger.Logger
}

// NewRunner creates a runner. store, notifier and m may be nil.
func NewRunner(
	broker contracts.Broker,
	prices marketdata.Provider,
	universe contracts.UniverseProvider,
	session *rebalance.Session,
	store Store,
	notifier Notifier,
	m *metrics.Registry,
	config Config,
	log *logger.Logger,
) *Runner {
	return &Runner{
		broker:   broker,
		prices:   prices,
		universe: universe,
		session:  session,
		store:    store,
		notifier: notifier,
		metrics:  m,
		config:   config,
		now:      time.Now,
		logger:   log.WithComponent("live"),
	}
}

// Run plans the rebalance and, with opts.Execute and an OK plan, places the orders.
// Executing a plan that is not OK returns the saved report and rebalance.ErrPlanNotExecutable.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()
	asOf := opts.AsOf
	if asOf.IsZero() {
		asOf = r.now()
	}
	day := marketdata.Day(asOf)

	report := &Report{
		RunID:           uuid.NewString(),
		Kind:            opts.Kind(),
		ConfigHash:      r.config.ConfigHash,
		Execute:         opts.Execute,
		Universe:        r.config.Universe,
		CompletedStages: make([]string, 0, 6),
	}

	r.logger.WithFields(map[string]interface{}{
		"run_id":   report.RunID,
		"kind":     report.Kind,
		"as_of":    day.Format("2006-01-02"),
		"universe": r.config.Universe,
		"execute":  opts.Execute,
	}).Info("Starting live run")

	err := r.run(ctx, opts, day, report)
	report.Duration = time.Since(start)
	report.CreatedAt = r.now()

	if err != nil && !errors.Is(err, rebalance.ErrPlanNotExecutable) {
		report.Status = "ERROR"
		r.metrics.RecordRun(opts.Execute, report.Status)
		r.logger.WithError(err).WithField("run_id", report.RunID).Error("Live run failed")
		return report, err
	}

	r.save(ctx, report)
	r.notify(ctx, report)
	r.metrics.RecordRun(opts.Execute, report.Status)

	r.logger.WithFields(map[string]interface{}{
		"run_id":   report.RunID,
		"status":   report.Status,
		"duration": report.Duration.String(),
		"stages":   report.CompletedStages,
	}).Info("Live run finished")

	return report, err
}

func (r *Runner) run(ctx context.Context, opts Options, day time.Time, report *Report) error {
	// 1. Universe (a top-up never ranks)
	var eligible []string
	if !opts.TopUp {
		u, err := stage(r, "universe", report, func() (*contracts.Universe, error) {
			return r.universe.Universe(ctx, r.config.Universe, day)
		})
		if err != nil {
			return fmt.Errorf("universe: %w", err)
		}
		report.UniverseSize = u.Count()
		report.Excluded = u.Excluded
		eligible = u.Symbols
	}

	// 2. Broker state
	var err error
	timer := r.metrics.StartStep("broker")
	report.Holdings, err = r.broker.Holdings(ctx)
	if err == nil {
		report.Cash, err = r.broker.AvailableCash(ctx)
	}
	timer.Stop(err)
	if err != nil {
		return fmt.Errorf("broker state: %w", err)
	}
	report.CompletedStages = append(report.CompletedStages, "broker")

	// 3. Prices for the universe, current holdings and the benchmark
	symbols := r.symbols(eligible, report.Holdings)
	prices, err := stage(r, "prices", report, func() (map[string]*marketdata.Series, error) {
		return r.prices.GetPrices(ctx, symbols, day.AddDate(0, 0, -r.config.LookbackDays), day)
	})
	if err != nil {
		return fmt.Errorf("prices: %w", err)
	}

	last, ok := prices[r.config.Benchmark].Until(day).Last()
	if !ok {
		return fmt.Errorf("%s: %w", r.config.Benchmark, ErrNoBenchmark)
	}
	report.PlanDate = last.Date

	// 4. Session
	out, err := stage(r, "plan", report, func() (*rebalance.Outcome, error) {
		in := rebalance.Input{
			AsOf:     report.PlanDate,
			Prices:   prices,
			Universe: eligible,
			Holdings: report.Holdings,
			Cash:     report.Cash,
		}
		if opts.TopUp {
			return r.session.TopUp(ctx, in)
		}
		return r.session.Plan(ctx, in)
	})
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	report.Outcome = out
	if !opts.TopUp {
		r.metrics.RecordState(out.MarketStrong, len(report.Holdings))
	}

	if out.Plan == nil {
		report.Status = StatusNoChange
		return nil
	}
	report.Status = string(out.Plan.Status)
	r.metrics.RecordCapital(out.Plan.Freed, out.Plan.Reserved, out.Plan.Usable, out.Plan.Unspent)

	// 5. Plan file
	if r.config.OutputDir != "" {
		path := filepath.Join(r.config.OutputDir, fmt.Sprintf("%s-%s.csv", csvPrefix(report.Kind), report.PlanDate.Format("2006-01-02")))
		if err := planner.SaveCSV(path, out.Plan); err != nil {
			return fmt.Errorf("save plan: %w", err)
		}
		report.CSVPath = path
		report.CompletedStages = append(report.CompletedStages, "csv")
	}

	// 6. Orders
	if !opts.Execute {
		return nil
	}
	if out.Plan.Status == planner.StatusNothingToRebalance {
		r.logger.Info("Nothing to rebalance, no orders placed")
		return nil
	}
	if !out.Plan.OK() {
		r.logger.WithField("status", out.Plan.Status).Warn("Plan is not executable, no orders placed")
		return rebalance.ErrPlanNotExecutable
	}

	timer = r.metrics.StartStep("execute")
	placer := NewPlacer(r.broker, r.metrics, r.logger)
	out.Executed, out.Rejected, err = r.session.Execute(ctx, placer, out.Plan, report.PlanDate)
	timer.Stop(err)
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	report.CompletedStages = append(report.CompletedStages, "execute")

	return nil
}

func csvPrefix(kind string) string {
	if kind == KindTopUp {
		return "topup"
	}
	return "plan"
}

// stage times fn and records it as completed on success
func stage[T any](r *Runner, name string, report *Report, fn func() (T, error)) (T, error) {
	timer := r.metrics.StartStep(name)
	v, err := fn()
	timer.Stop(err)
	if err == nil {
		report.CompletedStages = append(report.CompletedStages, name)
	}
	return v, err
}

// symbols is the sorted union of universe, held symbols and the benchmark
func (r *Runner) symbols(universe []string, holdings []contracts.Position) []string {
	set := make(map[string]bool, len(universe)+len(holdings)+1)
	for _, s := range universe {
		set[s] = true
	}
	for _, h := range holdings {
		set[h.Symbol] = true
	}
	set[r.config.Benchmark] = true

	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (r *Runner) save(ctx context.Context, report *Report) {
	if r.store == nil {
		return
	}
	if err := r.store.Save(ctx, report); err != nil {
		r.logger.WithError(err).WithField("run_id", report.RunID).Error("Failed to save report")
	}
}

// notify sends the plan; failures never fail the run
func (r *Runner) notify(ctx context.Context, report *Report) {
	if r.notifier == nil || report.Plan() == nil {
		return
	}
	if err := r.notifier.NotifyPlan(ctx, report.PlanDate, report.Plan()); err != nil {
		r.logger.WithError(err).WithField("run_id", report.RunID).Warn("Plan notification failed")
	}
}

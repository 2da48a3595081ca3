package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/xcelerator/internal/contracts"
	"github.com/wonny/xcelerator/internal/ledger"
	"github.com/wonny/xcelerator/internal/marketdata"
	"github.com/wonny/xcelerator/internal/planner"
	"github.com/wonny/xcelerator/internal/portfolio"
	"github.com/wonny/xcelerator/internal/rebalance"
	"github.com/wonny/xcelerator/pkg/logger"
)

// ErrBenchmarkMissing means the benchmark has no bars in the backtest window
var ErrBenchmarkMissing = errors.New("benchmark has no data in range")

// State is where the simulated portfolio sits between rebalances
type State string

const (
	StateUninvested State = "UNINVESTED"
	StateInvested   State = "INVESTED"
	StateCash       State = "CASH_REGIME"
)

// Config holds backtest configuration
type Config struct {
	Start              time.Time
	End                time.Time
	InitialCapital     float64
	Benchmark          string
	Frequency          Frequency
	Weekday            time.Weekday // weekly only
	TransactionCostPct float64      // cost-adjusted metrics
}

// Validate checks the config
func (c Config) Validate() error {
	if c.End.Before(c.Start) {
		return fmt.Errorf("end %s is before start %s", c.End.Format("2006-01-02"), c.Start.Format("2006-01-02"))
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive, got %v", c.InitialCapital)
	}
	if c.Benchmark == "" {
		return fmt.Errorf("benchmark is required")
	}
	if c.Frequency != Weekly && c.Frequency != Monthly {
		return fmt.Errorf("unknown frequency %q", c.Frequency)
	}
	return nil
}

// RebalanceRecord logs one rebalance date
type RebalanceRecord struct {
	Date         time.Time      `json:"date"`
	StateBefore  State          `json:"state_before"`
	StateAfter   State          `json:"state_after"`
	MarketStrong bool           `json:"market_strong"`
	ValueBefore  float64        `json:"value_before"`
	Status       planner.Status `json:"status,omitempty"` // empty when nothing changed
	Held         []string       `json:"held,omitempty"`
	New          []string       `json:"new,omitempty"`
	Removed      []string       `json:"removed,omitempty"`
	Skipped      []string       `json:"skipped,omitempty"`
	Executed     int            `json:"executed"`
	Rejected     int            `json:"rejected"`
	Error        string         `json:"error,omitempty"`
}

// Result holds backtest results
type Result struct {
	Config         Config                  `json:"config"`
	Metrics        Metrics                 `json:"metrics"`
	EquityCurve    []EquityPoint           `json:"equity_curve"`
	BenchmarkCurve []EquityPoint           `json:"benchmark_curve"`
	Rebalances     []RebalanceRecord       `json:"rebalances"`
	Transactions   []contracts.Transaction `json:"transactions"`
	FinalPositions []contracts.Position    `json:"final_positions"`
	FinalCash      float64                 `json:"final_cash"`
	FinalState     State                   `json:"final_state"`
	Duration       time.Duration           `json:"duration"`
}

// Engine runs backtesting simulations
// ⭐ SSOT: backtest date loop lives here only
type Engine struct {
	session *rebalance.Session
	logger  *logger.Logger
}

// NewEngine creates a new backtest engine
func NewEngine(session *rebalance.Session, log *logger.Logger) *Engine {
	return &Engine{
		session: session,
		logger:  log.WithComponent("backtest"),
	}
}

// Run replays the strategy over the benchmark's trading days in [Start, End].
// prices must include the benchmark and enough history before Start for the indicators.
func (e *Engine) Run(ctx context.Context, config Config, prices map[string]*marketdata.Series) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("backtest config: %w", err)
	}
	started := time.Now()

	bench := prices[config.Benchmark].Between(config.Start, config.End)
	if bench.Len() == 0 {
		return nil, fmt.Errorf("%s: %w", config.Benchmark, ErrBenchmarkMissing)
	}
	tradingDates := bench.Dates()

	rebalanceOn := make(map[time.Time]bool)
	for _, d := range RebalanceDates(config.Start, config.End, config.Frequency, config.Weekday) {
		rebalanceOn[d] = true
	}

	e.logger.WithFields(map[string]interface{}{
		"start":        config.Start.Format("2006-01-02"),
		"end":          config.End.Format("2006-01-02"),
		"capital":      config.InitialCapital,
		"benchmark":    config.Benchmark,
		"frequency":    config.Frequency,
		"weekday":      config.Weekday.String(),
		"trading_days": len(tradingDates),
		"symbols":      len(prices),
	}).Info("Starting backtest")

	book := ledger.New(config.InitialCapital, e.logger)
	state := StateUninvested
	result := &Result{Config: config, Rebalances: make([]RebalanceRecord, 0)}

	values := make([]float64, 0, len(tradingDates))
	benchValues := make([]float64, 0, len(tradingDates))
	firstBench := bench.Bars[0].Close
	trades, rejected := 0, 0

	for _, date := range tradingDates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if rebalanceOn[date] {
			rec := e.rebalance(ctx, book, prices, date, state)
			state = rec.StateAfter
			trades += rec.Executed
			rejected += rec.Rejected
			result.Rebalances = append(result.Rebalances, rec)
		}

		values = append(values, book.PortfolioValue(prices, date))
		c, _ := bench.CloseOn(date)
		benchValues = append(benchValues, c/firstBench*config.InitialCapital)
	}

	result.EquityCurve = buildCurve(tradingDates, values, config.InitialCapital)
	result.BenchmarkCurve = buildCurve(tradingDates, benchValues, config.InitialCapital)
	result.Transactions = book.Transactions()
	result.FinalPositions = book.Positions()
	result.FinalCash = book.Cash()
	result.FinalState = state
	result.Metrics = calculateMetrics(result.EquityCurve, result.BenchmarkCurve, metricsInput{
		initialCapital: config.InitialCapital,
		tradedValue:    book.TradedValue(),
		costPct:        config.TransactionCostPct,
		trades:         trades,
		rejected:       rejected,
		rebalances:     len(result.Rebalances),
	})
	result.Duration = time.Since(started)

	e.logger.WithFields(map[string]interface{}{
		"duration":     result.Duration.Seconds(),
		"rebalances":   result.Metrics.RebalanceCount,
		"trades":       result.Metrics.TotalTrades,
		"final_value":  result.Metrics.FinalValue,
		"total_return": fmt.Sprintf("%.2f%%", result.Metrics.TotalReturn*100),
		"cagr":         fmt.Sprintf("%.2f%%", result.Metrics.CAGR*100),
		"max_drawdown": fmt.Sprintf("%.2f%%", result.Metrics.MaxDrawdown*100),
		"sharpe_ratio": fmt.Sprintf("%.2f", result.Metrics.SharpeRatio),
	}).Info("Backtest completed")

	return result, nil
}

// rebalance runs one session against the ledger and works out the next state
func (e *Engine) rebalance(ctx context.Context, book *ledger.Ledger, prices map[string]*marketdata.Series, date time.Time, state State) RebalanceRecord {
	rec := RebalanceRecord{
		Date:        date,
		StateBefore: state,
		StateAfter:  state,
		ValueBefore: book.PortfolioValue(prices, date),
	}

	out, err := e.session.Run(ctx, book, rebalance.Input{
		AsOf:     date,
		Prices:   prices,
		Holdings: book.Positions(),
		Cash:     book.Cash(),
	})
	if err != nil {
		// an empty ranking in a strong market is a data gap: keep the book as it is
		entry := e.logger.WithError(err).WithField("date", date.Format("2006-01-02"))
		if errors.Is(err, portfolio.ErrEmptyRanking) {
			entry.Warn("Rebalance skipped")
		} else {
			entry.Error("Rebalance failed")
		}
		rec.Error = err.Error()
		return rec
	}

	rec.MarketStrong = out.MarketStrong
	rec.Held = out.Classification.Held
	rec.New = out.Classification.New
	rec.Removed = out.Classification.Removed
	rec.Skipped = out.Skipped
	rec.Executed = out.Executed
	rec.Rejected = out.Rejected
	if out.Plan != nil {
		rec.Status = out.Plan.Status
	}

	switch {
	case len(book.Positions()) > 0:
		rec.StateAfter = StateInvested
	case !out.MarketStrong:
		rec.StateAfter = StateCash
	default:
		rec.StateAfter = StateUninvested
	}

	e.logger.WithFields(map[string]interface{}{
		"date":          date.Format("2006-01-02"),
		"state":         rec.StateAfter,
		"market_strong": rec.MarketStrong,
		"value":         rec.ValueBefore,
		"sold":          len(rec.Removed),
		"bought":        len(rec.New),
	}).Info("Rebalance")

	return rec
}

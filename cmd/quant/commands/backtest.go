package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wonny/xcelerator/internal/backtest"
	"github.com/wonny/xcelerator/internal/marketdata"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Historical simulation",
	Long: `Replays the rebalance session over stored daily bars.

Bars come from Postgres when DATABASE_URL is set, otherwise from
per-symbol CSV files in the data directory (see "quant data load").

Example:
  go run ./cmd/quant backtest run --from 2022-01-01 --to 2024-12-31
  go run ./cmd/quant backtest run --from 2022-01-01 --frequency M
  go run ./cmd/quant backtest optimize --from 2020-01-01 --to 2023-12-31`,
}

var (
	backtestRunCmd = &cobra.Command{
		Use:   "run",
		Short: "Run a backtest",
		Long: `Runs a backtest over [from, to] and writes the equity curve and
transaction log as CSV.

Flags:
  --from        start date (YYYY-MM-DD, required)
  --to          end date (YYYY-MM-DD, default today)
  --capital     initial capital (default from strategy)
  --frequency   W or M (default from strategy)
  --weekday     weekly rebalance day (default from strategy)
  --out         output directory (default <data-dir>/backtest)
  --json        print metrics as JSON`,
		RunE: runBacktest,
	}

	// Flags
	backtestFrom      string
	backtestTo        string
	backtestCapital   float64
	backtestFrequency string
	backtestWeekday   string
	backtestOut       string
	backtestJSON      bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)

	flags := backtestCmd.PersistentFlags()
	flags.StringVar(&backtestFrom, "from", "", "start date (YYYY-MM-DD)")
	flags.StringVar(&backtestTo, "to", "", "end date (YYYY-MM-DD, default today)")
	flags.Float64Var(&backtestCapital, "capital", 0, "initial capital")
	flags.StringVar(&backtestFrequency, "frequency", "", "rebalance frequency W|M")
	flags.StringVar(&backtestWeekday, "weekday", "", "weekly rebalance day")
	flags.StringVar(&backtestOut, "out", "", "output directory")
	flags.BoolVar(&backtestJSON, "json", false, "print results as JSON")

	_ = backtestCmd.MarkPersistentFlagRequired("from")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	cfg, err := a.backtestConfig()
	if err != nil {
		return err
	}

	prices, err := a.backtestPrices(ctx, cfg)
	if err != nil {
		return err
	}

	session, err := a.session()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	PrintHeader(out, "Backtest")
	PrintKeyValue(out, "Period", fmt.Sprintf("%s ~ %s", cfg.Start.Format("2006-01-02"), cfg.End.Format("2006-01-02")), 16)
	PrintKeyValue(out, "Capital", fmt.Sprintf("%.2f", cfg.InitialCapital), 16)
	PrintKeyValue(out, "Rebalance", fmt.Sprintf("%s %s", cfg.Frequency, cfg.Weekday), 16)
	PrintKeyValue(out, "Symbols", fmt.Sprintf("%d", len(prices)), 16)
	PrintKeyValue(out, "Config hash", a.hash[:12], 16)

	result, err := backtest.NewEngine(session, a.log).Run(ctx, cfg, prices)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	dir := backtestOut
	if dir == "" {
		dir = filepath.Join(a.cfg.DataDir, backtestDir)
	}
	paths, err := backtest.SaveOutputs(dir, result)
	if err != nil {
		return fmt.Errorf("save outputs: %w", err)
	}

	if backtestJSON {
		return PrintJSON(out, result.Metrics)
	}
	printBacktestResult(cmd, result, paths)
	return nil
}

// backtestConfig merges flags over the strategy defaults
func (a *app) backtestConfig() (backtest.Config, error) {
	start, err := a.parseDate(backtestFrom)
	if err != nil {
		return backtest.Config{}, err
	}
	end, err := a.parseDate(backtestTo)
	if err != nil {
		return backtest.Config{}, err
	}

	freqName := a.strategy.Schedule.Frequency
	if backtestFrequency != "" {
		freqName = backtestFrequency
	}
	freq, err := backtest.ParseFrequency(freqName)
	if err != nil {
		return backtest.Config{}, err
	}

	dayName := a.strategy.Schedule.Weekday
	if backtestWeekday != "" {
		dayName = backtestWeekday
	}
	weekday, err := backtest.ParseWeekday(dayName)
	if err != nil {
		return backtest.Config{}, err
	}

	capital := a.strategy.Backtest.InitialCapital
	if backtestCapital > 0 {
		capital = backtestCapital
	}

	cfg := backtest.Config{
		Start:              marketdata.Day(start),
		End:                marketdata.Day(end),
		InitialCapital:     capital,
		Benchmark:          a.benchmark,
		Frequency:          freq,
		Weekday:            weekday,
		TransactionCostPct: a.strategy.Allocation.TransactionCostPct,
	}
	return cfg, cfg.Validate()
}

// backtestPrices loads bars from LookbackDays before Start through End.
// CSV runs use every file in the data dir; Postgres runs use today's index constituents.
func (a *app) backtestPrices(ctx context.Context, cfg backtest.Config) (map[string]*marketdata.Series, error) {
	store, repo, err := a.storedPrices()
	if err != nil {
		return nil, err
	}

	var symbols []string
	if repo != nil {
		symbols = repo.Symbols()
	} else {
		u, err := a.universe().Universe(ctx, a.strategy.Universe.Name, cfg.End)
		if err != nil {
			return nil, fmt.Errorf("universe: %w", err)
		}
		symbols = append(append([]string{}, u.Symbols...), a.benchmark)
	}

	from := cfg.Start.AddDate(0, 0, -a.strategy.Backtest.LookbackDays)
	prices, err := store.GetPrices(ctx, symbols, from, cfg.End)
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	if _, ok := prices[a.benchmark]; !ok {
		return nil, fmt.Errorf("benchmark %s: %w", a.benchmark, backtest.ErrBenchmarkMissing)
	}
	for _, sym := range a.strategy.Universe.Exclude {
		delete(prices, sym)
	}
	return prices, nil
}

func printBacktestResult(cmd *cobra.Command, result *backtest.Result, paths []string) {
	out := cmd.OutOrStdout()
	m := result.Metrics

	PrintHeader(out, "Performance")
	PrintKeyValue(out, "Trading days", fmt.Sprintf("%d", m.TradingDays), 16)
	PrintKeyValue(out, "Final value", fmt.Sprintf("%.2f", m.FinalValue), 16)
	PrintKeyValue(out, "Total return", pct(m.TotalReturn), 16)
	PrintKeyValue(out, "CAGR", pct(m.CAGR), 16)
	PrintKeyValue(out, "Volatility", pct(m.Volatility), 16)
	PrintKeyValue(out, "Max drawdown", pct(-m.MaxDrawdown), 16)
	PrintKeyValue(out, "Sharpe", fmt.Sprintf("%.2f", m.SharpeRatio), 16)
	PrintKeyValue(out, "Sortino", fmt.Sprintf("%.2f", m.SortinoRatio), 16)

	PrintHeader(out, "Benchmark")
	PrintKeyValue(out, "Total return", pct(m.BenchmarkReturn), 16)
	PrintKeyValue(out, "CAGR", pct(m.BenchmarkCAGR), 16)
	PrintKeyValue(out, "Alpha", pct(m.Alpha), 16)

	PrintHeader(out, "After costs")
	PrintKeyValue(out, "Traded value", fmt.Sprintf("%.2f", m.TradedValue), 16)
	PrintKeyValue(out, "Costs", fmt.Sprintf("%.2f", m.TransactionCosts), 16)
	PrintKeyValue(out, "Final value", fmt.Sprintf("%.2f", m.AdjustedFinalValue), 16)
	PrintKeyValue(out, "CAGR", pct(m.AdjustedCAGR), 16)

	PrintHeader(out, "Trading")
	PrintKeyValue(out, "Rebalances", fmt.Sprintf("%d", m.RebalanceCount), 16)
	PrintKeyValue(out, "Trades", fmt.Sprintf("%d", m.TotalTrades), 16)
	PrintKeyValue(out, "Rejected", fmt.Sprintf("%d", m.RejectedOrders), 16)
	PrintKeyValue(out, "Final state", string(result.FinalState), 16)
	PrintKeyValue(out, "Duration", result.Duration.String(), 16)

	fmt.Fprintln(out)
	for _, p := range paths {
		fmt.Fprintf(out, "✅ Wrote %s\n", p)
	}
}

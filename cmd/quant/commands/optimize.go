package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wonny/xcelerator/internal/backtest"
	"github.com/wonny/xcelerator/internal/optimize"
	"github.com/wonny/xcelerator/pkg/logger"
)

var (
	backtestOptimizeCmd = &cobra.Command{
		Use:   "optimize",
		Short: "Grid-search the ranking weights",
		Long: `Backtests every return/RSI/proximity weight vector on a grid that sums
to 1 and reports the highest CAGR whose max drawdown stays within the
limit. Prices are loaded once and shared by all runs.

Flags:
  --step           grid step (default 0.1, 66 combinations)
  --max-drawdown   drawdown limit as a fraction (default 0.20)
  --workers        concurrent backtests (default 4)
  --show           rows to print (default 10)

Example:
  go run ./cmd/quant backtest optimize --from 2020-01-01 --to 2023-12-31
  go run ./cmd/quant backtest optimize --from 2020-01-01 --step 0.05 --max-drawdown 0.25`,
		RunE: runOptimize,
	}

	optimizeStep        float64
	optimizeMaxDrawdown float64
	optimizeWorkers     int
	optimizeShow        int
)

func init() {
	backtestCmd.AddCommand(backtestOptimizeCmd)

	def := optimize.DefaultConfig()
	backtestOptimizeCmd.Flags().Float64Var(&optimizeStep, "step", def.Step, "weight grid step")
	backtestOptimizeCmd.Flags().Float64Var(&optimizeMaxDrawdown, "max-drawdown", def.MaxDrawdown, "drawdown limit (fraction)")
	backtestOptimizeCmd.Flags().IntVar(&optimizeWorkers, "workers", def.Workers, "concurrent backtests")
	backtestOptimizeCmd.Flags().IntVar(&optimizeShow, "show", 10, "result rows to print")
}

func runOptimize(cmd *cobra.Command, args []string) error {
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
	grid, err := optimize.Grid(optimizeStep)
	if err != nil {
		return err
	}
	prices, err := a.backtestPrices(ctx, cfg)
	if err != nil {
		return err
	}

	// per-run logs would interleave across workers; the optimizer logs each trial instead
	quiet := logger.Nop()
	run := func(ctx context.Context, weights []float64) (*backtest.Metrics, error) {
		session, err := a.sessionWith(weights, quiet)
		if err != nil {
			return nil, err
		}
		result, err := backtest.NewEngine(session, quiet).Run(ctx, cfg, prices)
		if err != nil {
			return nil, err
		}
		return &result.Metrics, nil
	}

	opt, err := optimize.New(optimize.Config{
		Step:        optimizeStep,
		MaxDrawdown: optimizeMaxDrawdown,
		Workers:     optimizeWorkers,
	}, run, a.log)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !backtestJSON {
		PrintHeader(out, "Weight optimization")
		PrintKeyValue(out, "Period", fmt.Sprintf("%s ~ %s", cfg.Start.Format("2006-01-02"), cfg.End.Format("2006-01-02")), 16)
		PrintKeyValue(out, "Combinations", fmt.Sprintf("%d (step %.2f)", len(grid), optimizeStep), 16)
		PrintKeyValue(out, "Max drawdown", pct(-optimizeMaxDrawdown), 16)
		PrintKeyValue(out, "Symbols", fmt.Sprintf("%d", len(prices)), 16)
	}

	result, err := opt.Search(ctx, grid)
	if err != nil {
		return fmt.Errorf("optimize: %w", err)
	}

	dir := backtestOut
	if dir == "" {
		dir = filepath.Join(a.cfg.DataDir, backtestDir)
	}
	path := filepath.Join(dir, fmt.Sprintf("optimize-%s-%s.csv", cfg.Start.Format("2006-01-02"), cfg.End.Format("2006-01-02")))
	if err := optimize.SaveCSV(path, result); err != nil {
		return err
	}

	if backtestJSON {
		return PrintJSON(out, result)
	}
	PrintOptimizeResult(out, result, optimizeShow)
	fmt.Fprintf(out, "\n✅ Wrote %s\n", path)
	return nil
}

// PrintOptimizeResult prints the search summary and the first n trials
func PrintOptimizeResult(w io.Writer, r *optimize.Result, n int) {
	PrintHeader(w, "Results")
	PrintKeyValue(w, "Within limit", fmt.Sprintf("%d", r.Valid), 16)
	PrintKeyValue(w, "Over limit", fmt.Sprintf("%d", r.Rejected), 16)
	PrintKeyValue(w, "Failed", fmt.Sprintf("%d", r.Failed), 16)
	if r.Best == nil {
		PrintKeyValue(w, "Best", "none within the drawdown limit", 16)
	} else {
		PrintKeyValue(w, "Best", formatWeights(r.Best.Weights), 16)
		PrintKeyValue(w, "CAGR", pct(r.Best.Metrics.CAGR), 16)
		PrintKeyValue(w, "Max drawdown", pct(-r.Best.Metrics.MaxDrawdown), 16)
		PrintKeyValue(w, "Sharpe", fmt.Sprintf("%.2f", r.Best.Metrics.SharpeRatio), 16)
	}
	fmt.Fprintln(w)

	widths := []int{18, 10, 10, 8, 8}
	PrintTableHeader(w, []string{"WEIGHTS", "CAGR", "MAX DD", "SHARPE", "LIMIT"}, widths)
	for i, t := range r.Trials {
		if i >= n {
			break
		}
		if t.Metrics == nil {
			PrintTableRow(w, []string{formatWeights(t.Weights), "N/A", "N/A", "N/A", "failed"}, widths)
			continue
		}
		status := "ok"
		if !t.WithinLimit {
			status = "over"
		}
		PrintTableRow(w, []string{
			formatWeights(t.Weights),
			pct(t.Metrics.CAGR),
			pct(-t.Metrics.MaxDrawdown),
			fmt.Sprintf("%.2f", t.Metrics.SharpeRatio),
			status,
		}, widths)
	}
}

func formatWeights(w []float64) string {
	if len(w) != 3 {
		return fmt.Sprintf("%v", w)
	}
	return fmt.Sprintf("(%.2f,%.2f,%.2f)", w[0], w[1], w[2])
}

package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/wonny/xcelerator/internal/ledger"
)

// WriteEquityCSV writes date, portfolio_value, benchmark_value, daily_return, cumulative_return
func WriteEquityCSV(w io.Writer, r *Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "portfolio_value", "benchmark_value", "daily_return", "cumulative_return"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, p := range r.EquityCurve {
		bench := ""
		if i < len(r.BenchmarkCurve) {
			bench = decimal.NewFromFloat(r.BenchmarkCurve[i].Value).StringFixed(2)
		}
		row := []string{
			p.Date.Format("2006-01-02"),
			decimal.NewFromFloat(p.Value).StringFixed(2),
			bench,
			decimal.NewFromFloat(p.DailyReturn).StringFixed(6),
			decimal.NewFromFloat(p.CumulativeReturn).StringFixed(6),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", row[0], err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveOutputs writes the equity curve and transaction log under dir and returns the paths
func SaveOutputs(dir string, r *Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	span := fmt.Sprintf("%s-%s", r.Config.Start.Format("2006-01-02"), r.Config.End.Format("2006-01-02"))

	equityPath := filepath.Join(dir, "backtest-portfolio-"+span+".csv")
	if err := writeFile(equityPath, func(w io.Writer) error { return WriteEquityCSV(w, r) }); err != nil {
		return nil, err
	}
	paths := []string{equityPath}

	if len(r.Transactions) > 0 {
		txPath := filepath.Join(dir, "backtest-transactions-"+span+".csv")
		if err := writeFile(txPath, func(w io.Writer) error { return ledger.WriteTransactionsCSV(w, r.Transactions) }); err != nil {
			return paths, err
		}
		paths = append(paths, txPath)
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := write(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

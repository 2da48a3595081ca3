package optimize

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"
)

// CSVHeader is the search result column order
var CSVHeader = []string{
	"return_weight", "rsi_weight", "proximity_weight",
	"cagr", "max_drawdown", "within_limit",
	"total_return", "volatility", "sharpe_ratio", "total_trades", "error",
}

// WriteCSV writes one row per trial in result order
func WriteCSV(w io.Writer, r *Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range r.Trials {
		row := make([]string, 0, len(CSVHeader))
		for _, wt := range t.Weights {
			row = append(row, decimal.NewFromFloat(wt).StringFixed(2))
		}
		if m := t.Metrics; m != nil {
			row = append(row,
				decimal.NewFromFloat(m.CAGR).StringFixed(6),
				decimal.NewFromFloat(m.MaxDrawdown).StringFixed(6),
				strconv.FormatBool(t.WithinLimit),
				decimal.NewFromFloat(m.TotalReturn).StringFixed(6),
				decimal.NewFromFloat(m.Volatility).StringFixed(6),
				decimal.NewFromFloat(m.SharpeRatio).StringFixed(4),
				strconv.Itoa(m.TotalTrades),
				"",
			)
		} else {
			row = append(row, "", "", "false", "", "", "", "", t.Error)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write trial: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the result to path, creating the parent directory
func SaveCSV(path string, r *Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := WriteCSV(f, r); err != nil {
		return err
	}
	return f.Close()
}

package planner

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/wonny/xcelerator/internal/contracts"
)

// CSVHeader is the plan file column order
var CSVHeader = []string{"Symbol", "Rank", "Action", "Price", "Quantity", "Invested", "Weight%"}

// Money rounds a currency amount to paise for presentation
func Money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// FormatRank renders a rank, N/A for a cash equivalent
func FormatRank(rank *int) string {
	if rank == nil {
		return "N/A"
	}
	return strconv.Itoa(*rank)
}

// WriteCSV writes plan rows in CSVHeader order
func WriteCSV(w io.Writer, orders []contracts.ExecutionOrder) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, o := range orders {
		row := []string{
			o.Symbol,
			FormatRank(o.Rank),
			string(o.Action),
			Money(o.Price).StringFixed(2),
			strconv.Itoa(o.Quantity),
			Money(o.Invested).StringFixed(2),
			Money(o.WeightPct).StringFixed(2),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", o.Symbol, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the plan to path, creating the parent directory
func SaveCSV(path string, plan *Plan) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create plan dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plan file: %w", err)
	}
	defer f.Close()

	if err := WriteCSV(f, plan.Orders); err != nil {
		return err
	}
	return f.Close()
}

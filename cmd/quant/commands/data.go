package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/xcelerator/internal/marketdata"
)

// dataCmd represents the data command
var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Daily bar storage",
	Long: `Downloads daily bars from Yahoo into the offline store used by backtests.

Bars go to Postgres (market.daily_bars) when DATABASE_URL is set,
otherwise to <data-dir>/<SYMBOL>.csv.

Example:
  go run ./cmd/quant data load
  go run ./cmd/quant data load --from 2020-01-01
  go run ./cmd/quant data load --symbols TCS,INFY,^CRSLDX`,
}

var (
	dataLoadCmd = &cobra.Command{
		Use:   "load",
		Short: "Download bars for the universe and benchmark",
		Long: `Downloads bars for today's index constituents plus the benchmark.

Without --from, Postgres loads resume after the oldest "latest stored
bar" among the symbols; CSV loads fetch backtest.lookback_days of history.`,
		RunE: runDataLoad,
	}

	dataFrom    string
	dataTo      string
	dataSymbols []string
	dataWorkers int
)

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataLoadCmd)

	dataLoadCmd.Flags().StringVar(&dataFrom, "from", "", "first bar date (YYYY-MM-DD)")
	dataLoadCmd.Flags().StringVar(&dataTo, "to", "", "last bar date (YYYY-MM-DD, default today)")
	dataLoadCmd.Flags().StringSliceVar(&dataSymbols, "symbols", nil, "symbols to load (default universe + benchmark)")
	dataLoadCmd.Flags().IntVar(&dataWorkers, "workers", 4, "concurrent downloads")
}

func runDataLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	end, err := a.parseDate(dataTo)
	if err != nil {
		return err
	}
	end = marketdata.Day(end)

	symbols := dataSymbols
	if len(symbols) == 0 {
		u, err := a.universe().Universe(ctx, a.strategy.Universe.Name, end)
		if err != nil {
			return fmt.Errorf("universe: %w", err)
		}
		symbols = append(append([]string{}, u.Symbols...), a.benchmark)
	}

	start, err := a.loadStart(ctx, symbols, end)
	if err != nil {
		return err
	}
	if start.After(end) {
		fmt.Fprintln(cmd.OutOrStdout(), "ℹ️  Store is up to date")
		return nil
	}

	series, err := a.yahoo().WithWorkers(dataWorkers).GetPrices(ctx, symbols, start, end)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	missing := make([]string, 0)
	for _, sym := range symbols {
		if _, ok := series[sym]; !ok {
			missing = append(missing, sym)
		}
	}

	out := cmd.OutOrStdout()
	PrintHeader(out, "Data load")
	PrintKeyValue(out, "Period", fmt.Sprintf("%s ~ %s", start.Format("2006-01-02"), end.Format("2006-01-02")), 12)
	PrintKeyValue(out, "Requested", fmt.Sprintf("%d", len(symbols)), 12)
	PrintKeyValue(out, "Downloaded", fmt.Sprintf("%d", len(series)), 12)
	if len(missing) > 0 {
		PrintKeyValue(out, "Missing", strings.Join(missing, ", "), 12)
	}

	if a.db != nil {
		if err := a.db.EnsureSchema(ctx); err != nil {
			return err
		}
		n, err := marketdata.NewPGStore(a.db.Pool).SaveSeries(ctx, series)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n✅ Upserted %d bars into market.daily_bars\n", n)
		return nil
	}

	if err := marketdata.SaveCSV(a.cfg.DataDir, series); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n✅ Wrote %d CSV files to %s\n", len(series), a.cfg.DataDir)
	return nil
}

// loadStart picks the first bar date to download
func (a *app) loadStart(ctx context.Context, symbols []string, end time.Time) (time.Time, error) {
	if dataFrom != "" {
		t, err := a.parseDate(dataFrom)
		return marketdata.Day(t), err
	}

	full := end.AddDate(0, 0, -a.strategy.Backtest.LookbackDays)
	if a.db == nil {
		return full, nil
	}

	store := marketdata.NewPGStore(a.db.Pool)
	var start time.Time
	for _, sym := range symbols {
		latest, ok, err := store.LatestDate(ctx, sym)
		if err != nil {
			return time.Time{}, err
		}
		if !ok {
			return full, nil
		}
		next := marketdata.Day(latest).AddDate(0, 0, 1)
		if start.IsZero() || next.Before(start) {
			start = next
		}
	}
	if start.IsZero() {
		return full, nil
	}
	return start, nil
}

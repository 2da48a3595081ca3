package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// cleanCmd represents the clean command
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Drop cached data and generated outputs",
	Long: `Deletes the Redis price and universe caches, the plan CSVs and the
backtest output directory under the data dir. Stored bars (CSV files or
market.daily_bars) and saved plan reports are kept.

Example:
  go run ./cmd/quant clean
  go run ./cmd/quant clean --keep-outputs`,
	RunE: runClean,
}

var cleanKeepOutputs bool

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolVar(&cleanKeepOutputs, "keep-outputs", false, "only clear the Redis cache")
}

func runClean(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	nothing := true

	if a.redis.Enabled() {
		for _, prefix := range []string{cachePrices, cacheUniverse} {
			n, err := a.cache(prefix).Clear(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				fmt.Fprintf(out, "🗑️  Removed %d cached %s entries\n", n, prefix)
				nothing = false
			}
		}
	}

	if !cleanKeepOutputs {
		removed, err := removeOutputs(a.cfg.DataDir)
		if err != nil {
			return err
		}
		for _, path := range removed {
			fmt.Fprintf(out, "🗑️  Removed %s\n", path)
			nothing = false
		}
	}

	if nothing {
		fmt.Fprintln(out, "✅ Nothing to delete")
	}
	return nil
}

// removeOutputs deletes plan CSVs and the backtest directory under dir
func removeOutputs(dir string) ([]string, error) {
	var targets []string
	for _, pattern := range []string{"plan-*.csv", "topup-*.csv"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		targets = append(targets, matches...)
	}
	if _, err := os.Stat(filepath.Join(dir, backtestDir)); err == nil {
		targets = append(targets, filepath.Join(dir, backtestDir))
	}

	removed := make([]string, 0, len(targets))
	for _, path := range targets {
		if err := os.RemoveAll(path); err != nil {
			return removed, fmt.Errorf("remove %s: %w", path, err)
		}
		removed = append(removed, path)
	}
	return removed, nil
}

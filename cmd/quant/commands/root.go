package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyFile string
	dataDir      string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "Xcelerator - NSE momentum rebalancing",
	Long: `Xcelerator Unified CLI

Momentum ranking and band-rule rebalancing for NSE index universes.
The same session drives backtests and live Kite runs.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant backtest run --from 2022-01-01 --to 2024-12-31
  go run ./cmd/quant plan
  go run ./cmd/quant plan --execute
  go run ./cmd/quant scheduler start --api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy YAML (default STRATEGY_FILE or built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "CSV data and plan output directory (default DATA_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

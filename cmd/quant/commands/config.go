package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/xcelerator/internal/strategyconfig"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective strategy config",
	Long: `Prints the strategy config in effect and its hash. The hash is stored
with every live report, so a plan can be traced to the exact config.

Example:
  go run ./cmd/quant config
  go run ./cmd/quant config --strategy strategy.yaml`,
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	snap, err := strategyconfig.NewDecisionSnapshot(a.strategy, a.strategyYAML)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	source := a.cfg.StrategyFile
	if source == "" {
		source = "built-in defaults"
	}
	PrintHeader(out, "Strategy "+a.strategy.Meta.StrategyID+" v"+a.strategy.Meta.Version)
	PrintKeyValue(out, "Source", source, 10)
	PrintKeyValue(out, "Hash", snap.ConfigHash, 10)
	PrintKeyValue(out, "Benchmark", a.benchmark, 10)
	fmt.Fprintln(out)
	fmt.Fprint(out, snap.ConfigYAML)
	return nil
}

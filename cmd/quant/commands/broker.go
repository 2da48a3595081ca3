package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/xcelerator/internal/external/kite"
	"github.com/wonny/xcelerator/internal/planner"
)

var (
	holdingsCmd = &cobra.Command{
		Use:   "holdings",
		Short: "Show Kite holdings",
		Long: `Lists settled holdings merged with today's delivery buys, the same
view the rebalance plans from.

Example:
  go run ./cmd/quant holdings
  go run ./cmd/quant holdings --tsv`,
		RunE: runHoldings,
	}

	positionsCmd = &cobra.Command{
		Use:   "positions",
		Short: "Show today's Kite delivery positions",
		RunE:  runPositions,
	}

	brokerTSV bool
)

func init() {
	rootCmd.AddCommand(holdingsCmd)
	rootCmd.AddCommand(positionsCmd)

	for _, c := range []*cobra.Command{holdingsCmd, positionsCmd} {
		c.Flags().BoolVar(&brokerTSV, "tsv", false, "tab-separated output for spreadsheets")
	}
}

func runHoldings(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	broker, err := a.broker()
	if err != nil {
		return fmt.Errorf("kite: %w", err)
	}
	holdings, err := broker.HoldingDetails(ctx)
	if err != nil {
		return err
	}
	PrintHoldings(cmd.OutOrStdout(), holdings, brokerTSV)
	return nil
}

func runPositions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	broker, err := a.broker()
	if err != nil {
		return fmt.Errorf("kite: %w", err)
	}
	positions, err := broker.Positions(ctx)
	if err != nil {
		return err
	}
	PrintPositions(cmd.OutOrStdout(), positions, brokerTSV)
	return nil
}

// PrintHoldings prints holdings as a table or TSV
func PrintHoldings(w io.Writer, holdings []kite.Holding, tsv bool) {
	rows := make([][]string, len(holdings))
	for i, h := range holdings {
		rows[i] = []string{
			h.Symbol,
			fmt.Sprintf("%d", h.Quantity),
			planner.Money(h.AvgBuyPrice).StringFixed(2),
			planner.Money(h.LastPrice).StringFixed(2),
		}
	}
	printRows(w, []string{"SYMBOL", "QTY", "AVG PRICE", "LAST PRICE"}, []int{14, 8, 14, 14}, rows, tsv)
}

// PrintPositions prints positions as a table or TSV
func PrintPositions(w io.Writer, positions []kite.OpenPosition, tsv bool) {
	rows := make([][]string, len(positions))
	for i, p := range positions {
		rows[i] = []string{
			p.Symbol,
			string(p.Action),
			planner.Money(p.AvgBuyPrice).StringFixed(2),
			fmt.Sprintf("%d", p.Quantity),
		}
	}
	printRows(w, []string{"SYMBOL", "ACTION", "AVG PRICE", "QTY"}, []int{14, 6, 14, 8}, rows, tsv)
}

func printRows(w io.Writer, header []string, widths []int, rows [][]string, tsv bool) {
	if tsv {
		fmt.Fprintln(w, strings.Join(header, "\t"))
		for _, r := range rows {
			fmt.Fprintln(w, strings.Join(r, "\t"))
		}
		return
	}
	PrintTableHeader(w, header, widths)
	for _, r := range rows {
		PrintTableRow(w, r, widths)
	}
}

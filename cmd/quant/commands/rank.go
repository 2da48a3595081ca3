package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/xcelerator/internal/marketdata"
	"github.com/wonny/xcelerator/internal/selection"
)

// rankCmd represents the rank command
var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Print the momentum ranking",
	Long: `Ranks today's universe with the strategy weights and prints the top
entries together with the market regime. No broker access is needed.

Example:
  go run ./cmd/quant rank
  go run ./cmd/quant rank --top 30 --as-of 2024-05-08`,
	RunE: runRank,
}

var (
	rankTop  int
	rankAsOf string
	rankJSON bool
)

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().IntVar(&rankTop, "top", 0, "entries to print (default portfolio top_n + band)")
	rankCmd.Flags().StringVar(&rankAsOf, "as-of", "", "ranking date (YYYY-MM-DD, default today)")
	rankCmd.Flags().BoolVar(&rankJSON, "json", false, "print the ranking as JSON")
}

func runRank(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	asOf, err := a.parseDate(rankAsOf)
	if err != nil {
		return err
	}
	day := marketdata.Day(asOf)

	u, err := a.universe().Universe(ctx, a.strategy.Universe.Name, day)
	if err != nil {
		return fmt.Errorf("universe: %w", err)
	}

	symbols := append(append([]string{}, u.Symbols...), a.benchmark)
	prices, err := a.livePrices().GetPrices(ctx, symbols, day.AddDate(0, 0, -a.strategy.Backtest.LookbackDays), day)
	if err != nil {
		return fmt.Errorf("load prices: %w", err)
	}

	strong := selection.NewRegimeDetector(a.strategy.RegimeConfig(), a.log).IsMarketStrong(prices, a.benchmark, day)
	delete(prices, a.benchmark)
	ranked, err := a.ranker().Rank(prices, day, a.strategy.Ranking.Weights.Slice())
	if err != nil {
		return fmt.Errorf("rank: %w", err)
	}

	top := rankTop
	if top <= 0 {
		top = a.strategy.Portfolio.TopN + a.strategy.Portfolio.Band
	}
	if top < len(ranked) {
		ranked = ranked[:top]
	}

	out := cmd.OutOrStdout()
	if rankJSON {
		return PrintJSON(out, map[string]interface{}{
			"as_of":         day.Format("2006-01-02"),
			"market_strong": strong,
			"ranked":        ranked,
		})
	}

	PrintHeader(out, fmt.Sprintf("Ranking %s, %s", a.strategy.Universe.Name, day.Format("2006-01-02")))
	regime := "weak (no new entries)"
	if strong {
		regime = "strong"
	}
	PrintKeyValue(out, "Market", regime, 10)
	PrintKeyValue(out, "Eligible", fmt.Sprintf("%d", u.Count()), 10)
	fmt.Fprintln(out)

	widths := []int{5, 14, 10, 10, 8, 10}
	PrintTableHeader(out, []string{"RANK", "SYMBOL", "CLOSE", "RETURN%", "RSI", "PROXIMITY"}, widths)
	for _, r := range ranked {
		PrintTableRow(out, []string{
			fmt.Sprintf("%d", r.Rank),
			r.Symbol,
			fmt.Sprintf("%.2f", r.LastClose),
			fmt.Sprintf("%.2f", r.Scores.AvgReturn),
			fmt.Sprintf("%.1f", r.Scores.AvgRSI),
			fmt.Sprintf("%.3f", r.Scores.HighProximity),
		}, widths)
	}
	return nil
}

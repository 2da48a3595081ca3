package commands

import (
	"github.com/spf13/cobra"

	"github.com/wonny/xcelerator/internal/live"
)

// topupCmd represents the topup command
var topupCmd = &cobra.Command{
	Use:   "topup",
	Short: "Invest available cash into current holdings",
	Long: `Spreads the broker's available cash over the stocks already held,
bringing the lightest positions up toward an equal weight first. Nothing
is ranked or sold and no new stocks are added.

Example:
  go run ./cmd/quant topup
  go run ./cmd/quant topup --execute`,
	RunE: runTopUp,
}

var (
	topupExecute bool
	topupAsOf    string
	topupJSON    bool
)

func init() {
	rootCmd.AddCommand(topupCmd)

	topupCmd.Flags().BoolVar(&topupExecute, "execute", false, "place orders with the broker")
	topupCmd.Flags().StringVar(&topupAsOf, "as-of", "", "price date (YYYY-MM-DD, default today)")
	topupCmd.Flags().BoolVar(&topupJSON, "json", false, "print the full report as JSON")
}

func runTopUp(cmd *cobra.Command, args []string) error {
	return runLive(cmd, live.Options{Execute: topupExecute, TopUp: true}, topupAsOf, topupJSON)
}

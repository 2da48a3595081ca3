package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/xcelerator/internal/live"
	"github.com/wonny/xcelerator/internal/planner"
	"github.com/wonny/xcelerator/internal/rebalance"
)

// planCmd represents the plan command
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Build today's live rebalance plan",
	Long: `Builds the live rebalance plan from Kite holdings, the NSE universe
and fresh Yahoo bars, writes it as CSV and stores the report.

Without --execute nothing is sent to the broker. With --execute the
orders of an OK plan are placed, SELLs first. A plan without enough
capital to fund every stock is never executed and the command exits
non-zero; with no cash and nothing to sell there is simply nothing to do.

Example:
  go run ./cmd/quant plan
  go run ./cmd/quant plan --as-of 2024-05-08
  go run ./cmd/quant plan --execute`,
	RunE: runPlan,
}

var (
	planExecute bool
	planAsOf    string
	planJSON    bool
)

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().BoolVar(&planExecute, "execute", false, "place orders with the broker")
	planCmd.Flags().StringVar(&planAsOf, "as-of", "", "plan date (YYYY-MM-DD, default today)")
	planCmd.Flags().BoolVar(&planJSON, "json", false, "print the full report as JSON")
}

func runPlan(cmd *cobra.Command, args []string) error {
	return runLive(cmd, live.Options{Execute: planExecute}, planAsOf, planJSON)
}

// runLive runs the live runner once and prints its report
func runLive(cmd *cobra.Command, opts live.Options, asOf string, asJSON bool) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	runner, err := a.runner(a.planStore())
	if err != nil {
		return err
	}

	if asOf != "" {
		if opts.AsOf, err = a.parseDate(asOf); err != nil {
			return err
		}
	}

	report, err := runner.Run(ctx, opts)
	if err != nil && !errors.Is(err, rebalance.ErrPlanNotExecutable) {
		return fmt.Errorf("%s failed: %w", opts.Kind(), err)
	}

	out := cmd.OutOrStdout()
	if asJSON {
		if jerr := PrintJSON(out, report); jerr != nil {
			return jerr
		}
	} else {
		printReport(out, report)
	}

	return exitError(report, err)
}

// exitError decides the command result: only a plan that cannot be funded fails
func exitError(report *live.Report, err error) error {
	if err != nil {
		return err
	}
	if plan := report.Plan(); plan != nil && plan.Status == planner.StatusInsufficientCapital {
		return fmt.Errorf("plan status %s: %w", plan.Status, rebalance.ErrPlanNotExecutable)
	}
	return nil
}

func printReport(out io.Writer, report *live.Report) {
	topUp := report.Kind == live.KindTopUp
	title := "Rebalance plan "
	if topUp {
		title = "Top-up plan "
	}
	PrintHeader(out, title+report.PlanDate.Format("2006-01-02"))
	PrintKeyValue(out, "Run", report.RunID, 16)
	if !topUp {
		PrintKeyValue(out, "Universe", fmt.Sprintf("%s (%d eligible, %d excluded)", report.Universe, report.UniverseSize, len(report.Excluded)), 16)
	}
	PrintKeyValue(out, "Holdings", fmt.Sprintf("%d", len(report.Holdings)), 16)
	PrintKeyValue(out, "Cash", fmt.Sprintf("%.2f", report.Cash), 16)
	PrintKeyValue(out, "Config hash", report.ConfigHash[:min(12, len(report.ConfigHash))], 16)

	if o := report.Outcome; o != nil && !topUp {
		regime := "weak (no new entries)"
		if o.MarketStrong {
			regime = "strong"
		}
		PrintKeyValue(out, "Market", regime, 16)
		if len(o.Skipped) > 0 {
			PrintKeyValue(out, "Skipped", strings.Join(o.Skipped, ", "), 16)
		}
	}

	plan := report.Plan()
	if plan == nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "ℹ️  Nothing to change")
		return
	}

	PrintPlanSummary(out, plan)
	fmt.Fprintln(out)
	PrintOrders(out, plan.Orders)
	fmt.Fprintln(out)

	if report.CSVPath != "" {
		fmt.Fprintf(out, "✅ Wrote %s\n", report.CSVPath)
	}
	switch {
	case plan.Status == planner.StatusNothingToRebalance:
		fmt.Fprintln(out, "ℹ️  No cash to invest, no orders placed")
	case !plan.OK():
		fmt.Fprintf(out, "❌ Plan is %s, no orders placed\n", plan.Status)
	case report.Execute:
		fmt.Fprintf(out, "✅ Executed %d orders, %d rejected\n", report.Outcome.Executed, report.Outcome.Rejected)
	default:
		fmt.Fprintln(out, "ℹ️  Dry run, rerun with --execute to place orders")
	}
}

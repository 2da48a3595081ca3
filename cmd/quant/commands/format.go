package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/pretty"

	"github.com/wonny/xcelerator/internal/contracts"
	"github.com/wonny/xcelerator/internal/planner"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// Every command prints through these so output stays uniform
// ═══════════════════════════════════════════════════════════

const rule = "───────────────────────────────────────────────────────────"

// PrintHeader prints a titled block header
func PrintHeader(w io.Writer, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("═", 59))
	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintln(w, rule)
}

// PrintKeyValue prints one aligned key-value pair
func PrintKeyValue(w io.Writer, key string, value string, keyWidth int) {
	fmt.Fprintf(w, "   %-*s : %s\n", keyWidth, key, value)
}

// PrintTableHeader prints a table header and its underline
func PrintTableHeader(w io.Writer, columns []string, widths []int) {
	PrintTableRow(w, columns, widths)

	total := 0
	for i, width := range widths {
		total += width
		if i < len(widths)-1 {
			total += 2
		}
	}
	fmt.Fprintln(w, strings.Repeat("─", total))
}

// PrintTableRow prints a table row
func PrintTableRow(w io.Writer, values []string, widths []int) {
	for i, val := range values {
		fmt.Fprintf(w, "%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Fprint(w, "  ")
		}
	}
	fmt.Fprintln(w)
}

// PrintJSON writes v as indented JSON
func PrintJSON(w io.Writer, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(pretty.Pretty(raw))
	return err
}

// PrintOrders prints a plan's order table in execution order
func PrintOrders(w io.Writer, orders []contracts.ExecutionOrder) {
	widths := []int{14, 6, 6, 12, 8, 14}
	PrintTableHeader(w, []string{"SYMBOL", "RANK", "ACTION", "PRICE", "QTY", "INVESTED"}, widths)
	for _, o := range orders {
		PrintTableRow(w, []string{
			o.Symbol,
			planner.FormatRank(o.Rank),
			string(o.Action),
			planner.Money(o.Price).StringFixed(2),
			fmt.Sprintf("%d", o.Quantity),
			planner.Money(o.Invested).StringFixed(2),
		}, widths)
	}
}

// PrintPlanSummary prints the capital figures of a plan
func PrintPlanSummary(w io.Writer, plan *planner.Plan) {
	PrintKeyValue(w, "Status", string(plan.Status), 16)
	PrintKeyValue(w, "Freed", planner.Money(plan.Freed).StringFixed(2), 16)
	PrintKeyValue(w, "Reserved", planner.Money(plan.Reserved).StringFixed(2), 16)
	PrintKeyValue(w, "Usable", planner.Money(plan.Usable).StringFixed(2), 16)
	PrintKeyValue(w, "Target/stock", planner.Money(plan.TargetPerStock).StringFixed(2), 16)
	PrintKeyValue(w, "Unspent", planner.Money(plan.Unspent).StringFixed(2), 16)
	PrintKeyValue(w, "Orders", fmt.Sprintf("%d sell, %d buy, %d hold",
		plan.Count(contracts.ActionSell), plan.Count(contracts.ActionBuy), plan.Count(contracts.ActionHold)), 16)
}

// pct formats a fraction as a signed percentage
func pct(v float64) string {
	return fmt.Sprintf("%+.2f%%", v*100)
}

package notify

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/wonny/xcelerator/internal/contracts"
	"github.com/wonny/xcelerator/internal/planner"
)

// MaxMessageLength is the character budget of one WhatsApp message
const MaxMessageLength = 1500

const (
	holdPerLine = 4
	buyPerLine  = 3
	holdOmitted = "\n⚠️ HOLD section omitted to stay within 1500 characters."
)

// FormatPlan renders plan rows as a SELL / HOLD / BUY summary of at most limit characters.
// When the full message is too long the HOLD section is dropped first.
func FormatPlan(now time.Time, orders []contracts.ExecutionOrder, limit int) string {
	var sells, holds, buys []string
	before, after := 0.0, 0.0

	for _, o := range orders {
		before += o.Invested
		switch o.Action {
		case contracts.ActionSell:
			sells = append(sells, fmt.Sprintf("%s(%s, %d)", o.Symbol, price(o.Price), o.Quantity))
		case contracts.ActionHold:
			holds = append(holds, fmt.Sprintf("%s(#%s)", o.Symbol, holdRank(o.Rank)))
			after += o.Invested
		case contracts.ActionBuy:
			buys = append(buys, fmt.Sprintf("%s(%s, %d)", o.Symbol, price(o.Price), o.Quantity))
			after += o.Invested
		}
	}

	header := now.Format("🕒 02 Jan 2006, 15:04")
	sellText := section("SELL", sells, len(sells))
	holdText := section("HOLD", holds, holdPerLine)
	buyText := section("BUY", buys, buyPerLine)
	summary := fmt.Sprintf("\n\nSummary:\nBefore: ₹%s\nAfter: ₹%s", rupees(before), rupees(after))

	msg := join(header, sellText, holdText, buyText) + summary
	if utf8.RuneCountInString(msg) <= limit {
		return msg
	}

	msg = join(header, sellText, buyText) + summary
	if utf8.RuneCountInString(msg+holdOmitted) <= limit {
		msg += holdOmitted
	}
	return msg
}

// section renders "NAME:\n" followed by items, perLine to a line
func section(name string, items []string, perLine int) string {
	if len(items) == 0 {
		return ""
	}
	lines := make([]string, 0, len(items)/perLine+1)
	for i := 0; i < len(items); i += perLine {
		end := i + perLine
		if end > len(items) {
			end = len(items)
		}
		lines = append(lines, strings.Join(items[i:end], ", "))
	}
	return name + ":\n" + strings.Join(lines, "\n")
}

func join(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

func holdRank(rank *int) string {
	if rank == nil {
		return "NA"
	}
	return planner.FormatRank(rank)
}

func price(v float64) string {
	return planner.Money(v).String()
}

// rupees formats v with two decimals and thousands separators
func rupees(v float64) string {
	s := planner.Money(v).Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if planner.Money(v).LessThan(decimal.Zero) {
		b.WriteByte('-')
	}
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

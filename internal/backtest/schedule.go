package backtest

import (
	"fmt"
	"strings"
	"time"

	"github.com/wonny/xcelerator/internal/marketdata"
)

// Frequency is how often the portfolio is rebalanced
type Frequency string

const (
	Weekly  Frequency = "W"
	Monthly Frequency = "M"
)

// ParseFrequency accepts W or M
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(strings.ToUpper(s)) {
	case Weekly:
		return Weekly, nil
	case Monthly:
		return Monthly, nil
	default:
		return "", fmt.Errorf("unknown rebalance frequency %q (want W or M)", s)
	}
}

// ParseWeekday accepts an English day name, case-insensitive
func ParseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown rebalance weekday %q", s)
}

// RebalanceDates lists calendar rebalance dates in [start, end].
// Weekly picks every given weekday; monthly picks each calendar month end.
// Dates that are not trading days are kept; the driver ignores them.
func RebalanceDates(start, end time.Time, freq Frequency, weekday time.Weekday) []time.Time {
	start, end = marketdata.Day(start), marketdata.Day(end)
	if end.Before(start) {
		return nil
	}

	dates := make([]time.Time, 0)
	switch freq {
	case Weekly:
		d := start
		for d.Weekday() != weekday {
			d = d.AddDate(0, 0, 1)
		}
		for ; !d.After(end); d = d.AddDate(0, 0, 7) {
			dates = append(dates, d)
		}
	case Monthly:
		first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
		for {
			monthEnd := first.AddDate(0, 1, -1)
			if monthEnd.After(end) {
				break
			}
			dates = append(dates, monthEnd)
			first = first.AddDate(0, 1, 0)
		}
	}
	return dates
}

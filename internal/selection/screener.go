package selection

import (
	"strings"

	"github.com/wonny/xcelerator/internal/marketdata"
	"github.com/wonny/xcelerator/internal/signals"
	"github.com/wonny/xcelerator/pkg/logger"
)

// Screener drops symbols that are too new, too cheap, too expensive or too illiquid
// ⭐ SSOT: ranking eligibility rules live only here
type Screener struct {
	config ScreenerConfig
	logger *logger.Logger
}

// ScreenerConfig defines the hard cuts applied before scoring
type ScreenerConfig struct {
	MinHistory           int     // bars required, one trading year
	MinPrice             float64 // penny stock floor
	MaxPrice             float64 // exclusive ceiling so one share stays affordable
	MinMedianTradedValue float64 // median close×volume over LiquidityWindow
	MinAvgVolume         float64 // mean volume over LiquidityWindow
	LiquidityWindow      int
}

// DefaultScreenerConfig returns the production cuts
func DefaultScreenerConfig() ScreenerConfig {
	return ScreenerConfig{
		MinHistory:           252,
		MinPrice:             100,
		MaxPrice:             10000,
		MinMedianTradedValue: 1_00_00_000,
		MinAvgVolume:         10_000,
		LiquidityWindow:      22,
	}
}

// NewScreener creates a new screener
func NewScreener(config ScreenerConfig, log *logger.Logger) *Screener {
	return &Screener{config: config, logger: log}
}

// IsIndex reports index symbols such as ^CRSLDX, which are never ranked
func IsIndex(symbol string) bool {
	return strings.HasPrefix(symbol, "^")
}

// Passes reports whether s (already cut at the as-of date) is eligible, and why not
func (s *Screener) Passes(series *marketdata.Series) (bool, string) {
	if IsIndex(series.Symbol) {
		return false, "index"
	}
	if series.Len() < s.config.MinHistory {
		return false, "history"
	}

	last, _ := series.Last()
	if last.Close < s.config.MinPrice {
		return false, "min_price"
	}
	if last.Close >= s.config.MaxPrice {
		return false, "max_price"
	}

	closes, volumes := series.Closes(), series.Volumes()
	mtv, ok := signals.MedianTradedValue(closes, volumes, s.config.LiquidityWindow)
	if !ok || mtv < s.config.MinMedianTradedValue {
		return false, "traded_value"
	}
	vol, ok := signals.AvgVolume(volumes, s.config.LiquidityWindow)
	if !ok || vol < s.config.MinAvgVolume {
		return false, "volume"
	}

	return true, ""
}

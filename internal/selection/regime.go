package selection

import (
	"time"

	"github.com/wonny/xcelerator/internal/marketdata"
	"github.com/wonny/xcelerator/internal/signals"
	"github.com/wonny/xcelerator/pkg/logger"
)

// RegimeConfig holds the market-strength thresholds
type RegimeConfig struct {
	EMASpans         []int   // benchmark below all of these ⇒ weak
	BreadthPeriod    int     // SMA period for breadth
	BreadthThreshold float64 // minimum share of stocks above their SMA
}

// DefaultRegimeConfig returns the production thresholds
func DefaultRegimeConfig() RegimeConfig {
	return RegimeConfig{
		EMASpans:         []int{22, 44, 66},
		BreadthPeriod:    44,
		BreadthThreshold: 0.4,
	}
}

// RegimeDetector decides STRONG vs WEAK market
// ⭐ SSOT: market regime rule lives only here
type RegimeDetector struct {
	config RegimeConfig
	logger *logger.Logger
}

// NewRegimeDetector creates a new regime detector
func NewRegimeDetector(config RegimeConfig, log *logger.Logger) *RegimeDetector {
	return &RegimeDetector{config: config, logger: log.WithComponent("regime")}
}

// IsMarketStrong implements contracts.RegimeSignal. A missing or short
// benchmark is weak.
func (d *RegimeDetector) IsMarketStrong(series map[string]*marketdata.Series, benchmark string, asOf time.Time) bool {
	bench, ok := series[benchmark]
	if !ok {
		d.logger.WithField("benchmark", benchmark).Warn("Benchmark series missing, treating market as weak")
		return false
	}

	closes := bench.Until(asOf).Closes()
	longest := 0
	for _, span := range d.config.EMASpans {
		if span > longest {
			longest = span
		}
	}
	if len(closes) < longest {
		return false
	}

	last := closes[len(closes)-1]
	below := 0
	for _, span := range d.config.EMASpans {
		ema, _ := signals.EMA(closes, span)
		if last < ema {
			below++
		}
	}
	if below == len(d.config.EMASpans) {
		d.logger.WithField("as_of", asOf.Format("2006-01-02")).Info("Market weak: benchmark below all EMAs")
		return false
	}

	breadth := d.Breadth(series, asOf)
	if breadth < d.config.BreadthThreshold {
		d.logger.WithFields(map[string]interface{}{
			"as_of":   asOf.Format("2006-01-02"),
			"breadth": breadth,
		}).Info("Market weak: breadth below threshold")
		return false
	}

	return true
}

// Breadth is the share of non-index symbols whose close is above their SMA
func (d *RegimeDetector) Breadth(series map[string]*marketdata.Series, asOf time.Time) float64 {
	above, total := 0, 0
	for sym, s := range series {
		if IsIndex(sym) {
			continue
		}
		closes := s.Until(asOf).Closes()
		sma, ok := signals.SMA(closes, d.config.BreadthPeriod)
		if !ok {
			continue
		}
		if closes[len(closes)-1] > sma {
			above++
		}
		total++
	}
	if total == 0 {
		return 0
	}
	return float64(above) / float64(total)
}

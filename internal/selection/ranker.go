package selection

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/xcelerator/internal/contracts"
	"github.com/wonny/xcelerator/internal/marketdata"
	"github.com/wonny/xcelerator/internal/signals"
	"github.com/wonny/xcelerator/pkg/logger"
)

// Horizons are the trading-day windows averaged for return and RSI
var Horizons = []int{22, 44, 66}

// ProximityLookback is the 52-week window for high proximity
const ProximityLookback = 252

// ErrInvalidWeights is returned when weights are not three values summing to 1
var ErrInvalidWeights = errors.New("weights must be three non-negative values summing to 1.0")

var _ contracts.Ranker = (*Ranker)(nil)

// Ranker orders symbols by weighted per-factor ranks
// ⭐ SSOT: momentum ranking lives only here
type Ranker struct {
	screener *Screener
	logger   *logger.Logger
}

// NewRanker creates a new ranker
func NewRanker(screener *Screener, log *logger.Logger) *Ranker {
	return &Ranker{screener: screener, logger: log.WithComponent("ranker")}
}

// ValidateWeights checks (return, rsi, proximity) weights
func ValidateWeights(weights []float64) error {
	if len(weights) != 3 {
		return ErrInvalidWeights
	}
	var sum float64
	for _, w := range weights {
		if w < 0 {
			return ErrInvalidWeights
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("%w: got %.4f", ErrInvalidWeights, sum)
	}
	return nil
}

type candidate struct {
	symbol    string
	lastClose float64
	ret       float64
	rsi       float64
	proximity float64
}

// Rank implements contracts.Ranker. Each factor with a non-zero weight is
// ranked descending (ties averaged); the composite is the weighted sum of
// those ranks, ascending. Equal composites keep alphabetical order.
func (r *Ranker) Rank(series map[string]*marketdata.Series, asOf time.Time, weights []float64) ([]contracts.RankedStock, error) {
	if err := ValidateWeights(weights); err != nil {
		return nil, err
	}
	wRet, wRSI, wProx := weights[0], weights[1], weights[2]

	symbols := make([]string, 0, len(series))
	for sym := range series {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	cands := make([]candidate, 0, len(symbols))
	rejected := make(map[string]int)
	for _, sym := range symbols {
		s := series[sym].Until(asOf)
		if ok, reason := r.screener.Passes(s); !ok {
			rejected[reason]++
			continue
		}

		closes := s.Closes()
		c := candidate{symbol: sym, lastClose: closes[len(closes)-1]}
		ok := true
		if wRet > 0 {
			c.ret, ok = signals.MeanOf(closes, Horizons, signals.Return)
		}
		if ok && wRSI > 0 {
			c.rsi, ok = signals.MeanOf(closes, Horizons, signals.RSI)
		}
		if ok && wProx > 0 {
			c.proximity, ok = signals.HighProximity(closes, ProximityLookback)
		}
		if !ok {
			rejected["indicator"]++
			continue
		}
		cands = append(cands, c)
	}

	n := len(cands)
	rets, rsis, proxs := make([]float64, n), make([]float64, n), make([]float64, n)
	for i, c := range cands {
		rets[i], rsis[i], proxs[i] = c.ret, c.rsi, c.proximity
	}
	retRank, rsiRank, proxRank := signals.DescendingRanks(rets), signals.DescendingRanks(rsis), signals.DescendingRanks(proxs)

	ranked := make([]contracts.RankedStock, n)
	for i, c := range cands {
		ranked[i] = contracts.RankedStock{
			Symbol:         c.symbol,
			CompositeScore: wRet*retRank[i] + wRSI*rsiRank[i] + wProx*proxRank[i],
			LastClose:      c.lastClose,
			Scores: contracts.ScoreDetail{
				AvgReturn:     c.ret,
				AvgRSI:        c.rsi,
				HighProximity: c.proximity,
				ReturnRank:    retRank[i],
				RSIRank:       rsiRank[i],
				ProximityRank: proxRank[i],
			},
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CompositeScore < ranked[j].CompositeScore
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	fields := map[string]interface{}{
		"as_of":    asOf.Format("2006-01-02"),
		"eligible": n,
		"rejected": rejected,
	}
	if n > 0 {
		fields["top_symbol"] = ranked[0].Symbol
	}
	r.logger.WithFields(fields).Debug("Ranking completed")

	return ranked, nil
}

package rebalance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/xcelerator/internal/contracts"
	"github.com/wonny/xcelerator/internal/ledger"
	"github.com/wonny/xcelerator/internal/marketdata"
	"github.com/wonny/xcelerator/internal/planner"
	"github.com/wonny/xcelerator/internal/portfolio"
	"github.com/wonny/xcelerator/pkg/logger"
)

var (
	ctx  = context.Background()
	asOf = time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC)
)

type stubRanker struct{ ranked []contracts.RankedStock }

func (r stubRanker) Rank(map[string]*marketdata.Series, time.Time, []float64) ([]contracts.RankedStock, error) {
	return r.ranked, nil
}

type stubRegime bool

func (r stubRegime) IsMarketStrong(map[string]*marketdata.Series, string, time.Time) bool {
	return bool(r)
}

// recordingPlacer accepts everything and remembers the order of calls
type recordingPlacer struct{ calls []string }

func (p *recordingPlacer) PlaceOrder(_ context.Context, symbol string, _ int, action contracts.Action, _ float64, _ time.Time) (string, bool) {
	p.calls = append(p.calls, string(action)+":"+symbol)
	return "id", true
}

func ranking(symbols ...string) []contracts.RankedStock {
	out := make([]contracts.RankedStock, len(symbols))
	for i, s := range symbols {
		out[i] = contracts.RankedStock{Symbol: s, Rank: i + 1}
	}
	return out
}

// flat builds two bars so the jump filter sees a zero return on asOf
func flat(symbol string, price float64) *marketdata.Series {
	return marketdata.NewSeries(symbol, []marketdata.Bar{
		{Date: asOf.AddDate(0, 0, -1), Close: price},
		{Date: asOf, Close: price},
	})
}

func newSession(t *testing.T, strong bool, ranked []contracts.RankedStock) *Session {
	t.Helper()
	cls, err := portfolio.NewClassifier(portfolio.ClassifierConfig{TopN: 2, Band: 1, JumpThreshold: 0.15}, logger.Nop())
	require.NoError(t, err)
	alloc, err := planner.NewAllocator(planner.DefaultConfig(), logger.Nop())
	require.NoError(t, err)
	return NewSession(stubRanker{ranked}, stubRegime(strong), cls, alloc,
		Config{Benchmark: "^CRSLDX", Weights: []float64{0.8, 0.1, 0.1}}, logger.Nop())
}

func TestInitialInvestment(t *testing.T) {
	s := newSession(t, true, ranking("A", "B", "C"))
	prices := map[string]*marketdata.Series{
		"A": flat("A", 100), "B": flat("B", 250), "C": flat("C", 50),
	}
	l := ledger.New(10000, logger.Nop())

	out, err := s.Run(ctx, l, Input{AsOf: asOf, Prices: prices, Cash: l.Cash()})
	require.NoError(t, err)
	require.True(t, out.HasPlan())
	assert.True(t, out.MarketStrong)
	assert.Equal(t, []string{"A", "B"}, out.Classification.New)
	assert.Equal(t, 2, out.Executed)
	assert.Zero(t, out.Rejected)
	assert.Equal(t, []string{"A", "B"}, l.HeldSymbols())
	assert.Less(t, l.Cash(), 250.0)
}

func TestWeakMarketSellsEverything(t *testing.T) {
	s := newSession(t, false, nil)
	prices := map[string]*marketdata.Series{"A": flat("A", 100), "B": flat("B", 200)}
	l := ledger.New(10000, logger.Nop())
	_, ok := l.PlaceOrder(ctx, "A", 10, contracts.ActionBuy, 100, asOf)
	require.True(t, ok)
	_, ok = l.PlaceOrder(ctx, "B", 5, contracts.ActionBuy, 200, asOf)
	require.True(t, ok)

	out, err := s.Run(ctx, l, Input{AsOf: asOf, Prices: prices, Holdings: l.Positions(), Cash: l.Cash()})
	require.NoError(t, err)
	assert.False(t, out.MarketStrong)
	assert.Equal(t, []string{"A", "B"}, out.Classification.Removed)
	assert.Equal(t, 2, out.Plan.Count(contracts.ActionSell))
	assert.Zero(t, out.Plan.Count(contracts.ActionBuy))
	assert.Empty(t, l.Positions())
	assert.InDelta(t, 10000, l.Cash(), 1e-9)
}

func TestMissingPriceIsSkipped(t *testing.T) {
	s := newSession(t, true, ranking("A", "B"))
	prices := map[string]*marketdata.Series{"A": flat("A", 100)}

	out, err := s.Plan(ctx, Input{AsOf: asOf, Prices: prices, Cash: 5000})
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, out.Skipped)
	require.True(t, out.HasPlan())
	require.Len(t, out.Plan.Orders, 1)
	assert.Equal(t, "A", out.Plan.Orders[0].Symbol)
}

func TestNoChangesProducesNoPlan(t *testing.T) {
	s := newSession(t, true, ranking("A", "B", "C"))
	prices := map[string]*marketdata.Series{"A": flat("A", 100), "B": flat("B", 100)}
	holdings := []contracts.Position{{Symbol: "A", Quantity: 5, AvgBuyPrice: 90}, {Symbol: "B", Quantity: 5, AvgBuyPrice: 90}}

	out, err := s.Plan(ctx, Input{AsOf: asOf, Prices: prices, Holdings: holdings, Cash: 1000})
	require.NoError(t, err)
	assert.Nil(t, out.Plan)
	assert.False(t, out.HasPlan())
	assert.Equal(t, []string{"A", "B"}, out.Classification.Held)
}

func TestExecuteSellsBeforeBuys(t *testing.T) {
	// B slipped out of top 2 + band 1 and C replaces it
	s := newSession(t, true, ranking("A", "C", "D", "B"))
	prices := map[string]*marketdata.Series{
		"A": flat("A", 100), "B": flat("B", 100), "C": flat("C", 100), "D": flat("D", 100),
	}
	holdings := []contracts.Position{{Symbol: "A", Quantity: 10}, {Symbol: "B", Quantity: 10}}

	out, err := s.Plan(ctx, Input{AsOf: asOf, Prices: prices, Holdings: holdings})
	require.NoError(t, err)
	require.True(t, out.HasPlan())
	assert.Equal(t, []string{"B"}, out.Classification.Removed)
	assert.Equal(t, []string{"C"}, out.Classification.New)

	p := &recordingPlacer{}
	executed, rejected, err := s.Execute(ctx, p, out.Plan, asOf)
	require.NoError(t, err)
	assert.Equal(t, 2, executed)
	assert.Zero(t, rejected)
	assert.Equal(t, []string{"SELL:B", "BUY:C"}, p.calls)
}

func TestExecuteRefusesUnfundedPlan(t *testing.T) {
	s := newSession(t, true, nil)
	_, _, err := s.Execute(ctx, &recordingPlacer{}, &planner.Plan{Status: planner.StatusInsufficientCapital}, asOf)
	assert.ErrorIs(t, err, ErrPlanNotExecutable)
}

func TestEmptyRankingInStrongMarket(t *testing.T) {
	s := newSession(t, true, nil)
	_, err := s.Plan(ctx, Input{AsOf: asOf, Prices: map[string]*marketdata.Series{}, Cash: 1000})
	assert.ErrorIs(t, err, portfolio.ErrEmptyRanking)
}

// keysRanker records which series it was asked to rank
type keysRanker struct{ seen []string }

func (r *keysRanker) Rank(series map[string]*marketdata.Series, _ time.Time, _ []float64) ([]contracts.RankedStock, error) {
	for sym := range series {
		r.seen = append(r.seen, sym)
	}
	return ranking("A"), nil
}

func TestUniverseLimitsRanking(t *testing.T) {
	cls, err := portfolio.NewClassifier(portfolio.ClassifierConfig{TopN: 1, Band: 0, JumpThreshold: 0.15}, logger.Nop())
	require.NoError(t, err)
	alloc, err := planner.NewAllocator(planner.DefaultConfig(), logger.Nop())
	require.NoError(t, err)
	ranker := &keysRanker{}
	s := NewSession(ranker, stubRegime(true), cls, alloc,
		Config{Benchmark: "^CRSLDX", Weights: []float64{0.8, 0.1, 0.1}}, logger.Nop())

	prices := map[string]*marketdata.Series{
		"A": flat("A", 100), "OLD": flat("OLD", 100), "^CRSLDX": flat("^CRSLDX", 1000),
	}
	out, err := s.Plan(ctx, Input{
		AsOf:     asOf,
		Prices:   prices,
		Universe: []string{"A"},
		Holdings: []contracts.Position{{Symbol: "OLD", Quantity: 5, AvgBuyPrice: 90}},
		Cash:     1000,
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"A", "^CRSLDX"}, ranker.seen)
	// a holding that left the universe is sold at its close
	assert.Equal(t, []string{"OLD"}, out.Classification.Removed)
	require.NotNil(t, out.Plan)
	assert.Equal(t, 1, out.Plan.Count(contracts.ActionSell))
}

func TestTopUpBuysIntoHoldingsOnly(t *testing.T) {
	s := newSession(t, false, nil)
	prices := map[string]*marketdata.Series{"A": flat("A", 100), "B": flat("B", 100), "C": flat("C", 50)}
	holdings := []contracts.Position{{Symbol: "A", Quantity: 10, AvgBuyPrice: 90}, {Symbol: "B", Quantity: 50, AvgBuyPrice: 80}}

	out, err := s.TopUp(ctx, Input{AsOf: asOf, Prices: prices, Holdings: holdings, Cash: 4000})
	require.NoError(t, err)
	require.True(t, out.HasPlan())
	assert.Nil(t, out.Classification)

	// B already sits above the per-stock target; A catches up
	require.Len(t, out.Plan.Orders, 1)
	assert.Equal(t, "A", out.Plan.Orders[0].Symbol)
	assert.Equal(t, contracts.ActionBuy, out.Plan.Orders[0].Action)
	assert.Equal(t, 39, out.Plan.Orders[0].Quantity)
	assert.Nil(t, out.Plan.Orders[0].Rank)
	assert.Zero(t, out.Plan.Count(contracts.ActionHold))
}

func TestTopUpWithoutCash(t *testing.T) {
	s := newSession(t, true, nil)
	prices := map[string]*marketdata.Series{"A": flat("A", 100)}

	out, err := s.TopUp(ctx, Input{AsOf: asOf, Prices: prices, Holdings: []contracts.Position{{Symbol: "A", Quantity: 1}}})
	require.NoError(t, err)
	assert.Equal(t, planner.StatusNothingToRebalance, out.Plan.Status)
	assert.False(t, out.HasPlan())
}

func TestTopUpNeedsPricedHoldings(t *testing.T) {
	s := newSession(t, true, nil)

	_, err := s.TopUp(ctx, Input{AsOf: asOf, Prices: map[string]*marketdata.Series{}, Cash: 1000})
	assert.ErrorIs(t, err, ErrNoHoldings)

	_, err = s.TopUp(ctx, Input{AsOf: asOf, Prices: map[string]*marketdata.Series{}, Holdings: []contracts.Position{{Symbol: "A", Quantity: 1}}, Cash: 1000})
	assert.ErrorIs(t, err, ErrNoHoldings)
}

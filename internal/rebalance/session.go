package rebalance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/xcelerator/internal/contracts"
	"github.com/wonny/xcelerator/internal/marketdata"
	"github.com/wonny/xcelerator/internal/planner"
	"github.com/wonny/xcelerator/internal/portfolio"
	"github.com/wonny/xcelerator/pkg/logger"
)

// Session runs one rebalance iteration: regime → rank → classify → allocate → execute
// ⭐ SSOT: shared by the backtest driver and the live path
type Session struct {
	ranker     contracts.Ranker
	regime     contracts.RegimeSignal
	classifier *portfolio.Classifier
	allocator  *planner.Allocator

	benchmark string
	weights   []float64

	logger *logger.Logger
}

// Config holds per-run session parameters
type Config struct {
	Benchmark string    // index symbol driving the regime filter
	Weights   []float64 // return, RSI, high-proximity factor weights
}

// Input is the state a session plans from
type Input struct {
	AsOf     time.Time
	Prices   map[string]*marketdata.Series // may extend past AsOf; readers slice
	Universe []string                      // rankable symbols; nil ranks every series in Prices
	Holdings []contracts.Position
	Cash     float64
}

// Outcome is the result of one session
type Outcome struct {
	AsOf           time.Time                  `json:"as_of"`
	MarketStrong   bool                       `json:"market_strong"`
	Ranked         []contracts.RankedStock    `json:"ranked,omitempty"`
	Classification *portfolio.Classification `json:"classification"`
	Plan           *planner.Plan              `json:"plan,omitempty"` // nil when nothing changes
	Skipped        []string                   `json:"skipped,omitempty"` // no close on AsOf
	Executed       int                        `json:"executed"`
	Rejected       int                        `json:"rejected"`
}

// HasPlan reports whether the session produced orders to execute
func (o *Outcome) HasPlan() bool {
	return o != nil && o.Plan.OK() && len(o.Plan.Orders) > 0
}

// NewSession creates a session
func NewSession(
	ranker contracts.Ranker,
	regime contracts.RegimeSignal,
	classifier *portfolio.Classifier,
	allocator *planner.Allocator,
	config Config,
	log *logger.Logger,
) *Session {
	return &Session{
		ranker:     ranker,
		regime:     regime,
		classifier: classifier,
		allocator:  allocator,
		benchmark:  config.Benchmark,
		weights:    config.Weights,
		logger:     log.WithComponent("rebalance"),
	}
}

// Plan decides what to trade on in.AsOf without touching any broker
func (s *Session) Plan(ctx context.Context, in Input) (*Outcome, error) {
	asOf := marketdata.Day(in.AsOf)
	out := &Outcome{AsOf: asOf}

	eligible := in.Prices
	if in.Universe != nil {
		eligible = subset(in.Prices, in.Universe, s.benchmark)
	}

	// 1. Regime
	out.MarketStrong = s.regime.IsMarketStrong(eligible, s.benchmark, asOf)

	// 2. Ranking (only needed when new entries are possible)
	if out.MarketStrong {
		ranked, err := s.ranker.Rank(eligible, asOf, s.weights)
		if err != nil {
			return nil, fmt.Errorf("rank: %w", err)
		}
		out.Ranked = ranked
	}

	// 3. Classification
	held := make([]string, len(in.Holdings))
	quantities := make(map[string]int, len(in.Holdings))
	for i, h := range in.Holdings {
		held[i] = h.Symbol
		quantities[h.Symbol] = h.Quantity
	}

	cls, err := s.classifier.Classify(portfolio.Input{
		Ranked:       out.Ranked,
		Held:         held,
		MarketStrong: out.MarketStrong,
		AsOf:         asOf,
		Prices:       in.Prices,
	})
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	out.Classification = cls

	// 4. Allocation targets at the AsOf close
	heldTargets := s.targets(in.Prices, asOf, cls.Held, quantities, cls, out)
	newTargets := s.targets(in.Prices, asOf, cls.New, nil, cls, out)
	removedTargets := s.targets(in.Prices, asOf, cls.Removed, quantities, cls, out)

	if len(newTargets) == 0 && len(removedTargets) == 0 {
		s.logger.WithFields(map[string]interface{}{
			"as_of":         asOf.Format("2006-01-02"),
			"market_strong": out.MarketStrong,
			"held":          len(heldTargets),
		}).Info("No changes needed")
		return out, nil
	}

	var plan *planner.Plan
	if len(newTargets) == 0 {
		plan, err = s.allocator.SellOnly(removedTargets)
	} else {
		plan, err = s.allocator.Plan(heldTargets, newTargets, removedTargets, in.Cash)
	}
	if err != nil {
		return nil, fmt.Errorf("allocate: %w", err)
	}
	out.Plan = plan

	s.logger.WithFields(map[string]interface{}{
		"as_of":         asOf.Format("2006-01-02"),
		"market_strong": out.MarketStrong,
		"held":          len(cls.Held),
		"new":           len(cls.New),
		"removed":       len(cls.Removed),
		"jump_rejected": len(cls.Rejected),
		"skipped":       len(out.Skipped),
		"status":        plan.Status,
	}).Info("Rebalance planned")

	return out, nil
}

// subset keeps the universe symbols and the benchmark
func subset(prices map[string]*marketdata.Series, symbols []string, benchmark string) map[string]*marketdata.Series {
	out := make(map[string]*marketdata.Series, len(symbols)+1)
	for _, sym := range symbols {
		if s, ok := prices[sym]; ok {
			out[sym] = s
		}
	}
	if s, ok := prices[benchmark]; ok {
		out[benchmark] = s
	}
	return out
}

// targets builds allocator input for symbols that have a close on asOf
func (s *Session) targets(
	prices map[string]*marketdata.Series,
	asOf time.Time,
	symbols []string,
	quantities map[string]int,
	cls *portfolio.Classification,
	out *Outcome,
) []contracts.AllocationTarget {
	targets := make([]contracts.AllocationTarget, 0, len(symbols))
	for _, sym := range symbols {
		price, ok := prices[sym].CloseOn(asOf)
		if !ok || price <= 0 {
			out.Skipped = append(out.Skipped, sym)
			s.logger.WithFields(map[string]interface{}{
				"symbol": sym,
				"as_of":  asOf.Format("2006-01-02"),
			}).Warn("No price on rebalance date, skipping")
			continue
		}
		targets = append(targets, contracts.AllocationTarget{
			Symbol:    sym,
			LastPrice: price,
			Rank:      cls.Rank(sym),
			Quantity:  quantities[sym],
		})
	}
	return targets
}

// Execute places every SELL and then every BUY of plan through placer
func (s *Session) Execute(ctx context.Context, placer contracts.OrderPlacer, plan *planner.Plan, date time.Time) (executed, rejected int, err error) {
	if !plan.OK() {
		return 0, 0, ErrPlanNotExecutable
	}

	for _, action := range []contracts.Action{contracts.ActionSell, contracts.ActionBuy} {
		for _, o := range plan.Orders {
			if o.Action != action || o.Quantity <= 0 {
				continue
			}
			if err := ctx.Err(); err != nil {
				return executed, rejected, err
			}
			if _, ok := placer.PlaceOrder(ctx, o.Symbol, o.Quantity, o.Action, o.Price, date); ok {
				executed++
			} else {
				rejected++
			}
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"date":     date.Format("2006-01-02"),
		"executed": executed,
		"rejected": rejected,
	}).Info("Plan executed")

	return executed, rejected, nil
}

// Run plans and, when there is something to do, executes through placer
func (s *Session) Run(ctx context.Context, placer contracts.OrderPlacer, in Input) (*Outcome, error) {
	out, err := s.Plan(ctx, in)
	if err != nil {
		return nil, err
	}
	if !out.HasPlan() {
		return out, nil
	}
	out.Executed, out.Rejected, err = s.Execute(ctx, placer, out.Plan, out.AsOf)
	if err != nil {
		return out, err
	}
	return out, nil
}

// TopUp spreads in.Cash over the current holdings without ranking, selling or adding stocks.
// HOLD rows are dropped, so the plan lists only the extra shares to buy.
func (s *Session) TopUp(ctx context.Context, in Input) (*Outcome, error) {
	if len(in.Holdings) == 0 {
		return nil, ErrNoHoldings
	}
	asOf := marketdata.Day(in.AsOf)
	out := &Outcome{AsOf: asOf}

	symbols := make([]string, len(in.Holdings))
	quantities := make(map[string]int, len(in.Holdings))
	for i, h := range in.Holdings {
		symbols[i] = h.Symbol
		quantities[h.Symbol] = h.Quantity
	}

	held := s.targets(in.Prices, asOf, symbols, quantities, nil, out)
	if len(held) == 0 {
		return nil, fmt.Errorf("top-up on %s: %w", asOf.Format("2006-01-02"), ErrNoHoldings)
	}

	plan, err := s.allocator.Plan(held, nil, nil, in.Cash)
	if err != nil {
		return nil, fmt.Errorf("allocate: %w", err)
	}
	buys := make([]contracts.ExecutionOrder, 0, len(plan.Orders))
	for _, o := range plan.Orders {
		if o.Action != contracts.ActionHold {
			buys = append(buys, o)
		}
	}
	plan.Orders = buys
	out.Plan = plan

	s.logger.WithFields(map[string]interface{}{
		"as_of":   asOf.Format("2006-01-02"),
		"held":    len(held),
		"cash":    in.Cash,
		"buy":     len(buys),
		"skipped": len(out.Skipped),
		"status":  plan.Status,
	}).Info("Top-up planned")

	return out, nil
}

// ErrNoHoldings is returned by TopUp when there is no priced holding to add to
var ErrNoHoldings = errors.New("no holdings to top up")

// ErrPlanNotExecutable is returned when executing a plan whose status is not OK
var ErrPlanNotExecutable = errors.New("plan status is not OK")

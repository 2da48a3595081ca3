package planner

import (
	"fmt"
	"math"
	"sort"

	"github.com/wonny/xcelerator/internal/contracts"
	"github.com/wonny/xcelerator/pkg/logger"
)

// DefaultTransactionCostPct is the round-trip brokerage, STT and exchange charge estimate
const DefaultTransactionCostPct = 0.001192

// floorEpsilon absorbs float noise when converting money to whole shares
const floorEpsilon = 1e-9

// Strategy selects how leftover capital is used after the equal-weight pass
type Strategy string

const (
	// Conservative stops after the capped equal-weight pass
	Conservative Strategy = "CONSERVATIVE"
	// Aggressive keeps buying single shares of the lowest-invested stock while cash allows
	Aggressive Strategy = "AGGRESSIVE"
)

// Reservation selects how much of the freed capital is held back for costs
type Reservation string

const (
	// RoundTrip reserves cost on sell value plus the intended buy value
	RoundTrip Reservation = "ROUND_TRIP"
	// FreedOnly reserves cost on the freed capital only
	FreedOnly Reservation = "FREED_ONLY"
	// NoReservation spends everything
	NoReservation Reservation = "NONE"
)

// Status is the outcome of one planning call
type Status string

const (
	StatusOK                  Status = "OK"
	StatusNothingToRebalance  Status = "NOTHING_TO_REBALANCE"
	StatusInsufficientCapital Status = "INSUFFICIENT_CAPITAL"
)

// Config holds allocator parameters
type Config struct {
	TransactionCostPct float64
	Strategy           Strategy
	Reservation        Reservation
}

// DefaultConfig returns the production allocator parameters
func DefaultConfig() Config {
	return Config{
		TransactionCostPct: DefaultTransactionCostPct,
		Strategy:           Aggressive,
		Reservation:        RoundTrip,
	}
}

// Validate checks the config
func (c Config) Validate() error {
	if math.IsNaN(c.TransactionCostPct) || c.TransactionCostPct < 0 || c.TransactionCostPct >= 1 {
		return &ValidationError{Field: "transaction_cost_pct", Message: fmt.Sprintf("must be in [0, 1), got %v", c.TransactionCostPct)}
	}
	switch c.Strategy {
	case Conservative, Aggressive:
	default:
		return &ValidationError{Field: "strategy", Message: fmt.Sprintf("unknown strategy %q", c.Strategy)}
	}
	switch c.Reservation {
	case RoundTrip, FreedOnly, NoReservation:
	default:
		return &ValidationError{Field: "reservation", Message: fmt.Sprintf("unknown reservation %q", c.Reservation)}
	}
	return nil
}

// ValidationError is returned for malformed allocator input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Plan is the allocator output
// ⭐ SSOT: rebalance plan shape (CSV, notification, API, broker execution)
type Plan struct {
	Status         Status                     `json:"status"`
	Freed          float64                    `json:"freed"`      // cash + sell value
	SellValue      float64                    `json:"sell_value"` // Σ removed qty × price
	Reserved       float64                    `json:"reserved"`   // held back for transaction costs
	Usable         float64                    `json:"usable"`     // Freed − Reserved
	TargetPerStock float64                    `json:"target_per_stock"`
	Unspent        float64                    `json:"unspent"`
	Orders         []contracts.ExecutionOrder `json:"orders"`
}

// OK reports whether the plan may be executed
func (p *Plan) OK() bool {
	return p != nil && p.Status == StatusOK
}

// Count returns the number of rows with the given action
func (p *Plan) Count(action contracts.Action) int {
	if p == nil {
		return 0
	}
	n := 0
	for _, o := range p.Orders {
		if o.Action == action {
			n++
		}
	}
	return n
}

// Allocator turns held/new/removed buckets into whole-share orders
// ⭐ SSOT: capital allocation logic lives here only
type Allocator struct {
	config Config
	logger *logger.Logger
}

// NewAllocator creates an allocator
func NewAllocator(config Config, log *logger.Logger) (*Allocator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Allocator{
		config: config,
		logger: log.WithComponent("planner"),
	}, nil
}

// Config returns the allocator parameters
func (a *Allocator) Config() Config {
	return a.config
}

// slot is one stock being filled during allocation
type slot struct {
	target contracts.AllocationTarget
	prior  int
	qty    int
}

func (s *slot) invested() float64 {
	return float64(s.qty) * s.target.LastPrice
}

// Plan allocates freed capital across held and new stocks
func (a *Allocator) Plan(held, added, removed []contracts.AllocationTarget, cash float64) (*Plan, error) {
	if err := a.validate(held, added, removed, cash); err != nil {
		return nil, err
	}

	sellValue := sumValue(removed)
	freed := cash + sellValue
	plan := &Plan{Freed: freed, SellValue: sellValue}

	if freed <= 0 {
		plan.Status = StatusNothingToRebalance
		a.logger.Info("Nothing to rebalance")
		return plan, nil
	}

	plan.Reserved = a.reserve(sellValue, freed)
	plan.Usable = freed - plan.Reserved
	plan.TargetPerStock = (sumValue(held) + plan.Usable) / float64(len(held)+len(added))

	slots := make([]*slot, 0, len(held)+len(added))
	for _, h := range held {
		slots = append(slots, &slot{target: h, prior: h.Quantity, qty: h.Quantity})
	}
	newSlots := make([]*slot, 0, len(added))
	for _, n := range added {
		s := &slot{target: n}
		slots = append(slots, s)
		newSlots = append(newSlots, s)
	}

	// 1. equal split across new stocks, capped at target
	spent := 0.0
	if len(newSlots) > 0 {
		perNew := math.Min(plan.Usable/float64(len(newSlots)), plan.TargetPerStock)
		for _, s := range newSlots {
			s.qty = floorShares(perNew, s.target.LastPrice)
			spent += s.invested()
		}
	}

	// 2. top up toward target, lowest invested first
	sortByInvested(slots)
	for _, s := range slots {
		need := math.Max(0, plan.TargetPerStock-s.invested())
		avail := math.Min(need, plan.Usable-spent)
		if avail <= 0 {
			continue
		}
		extra := floorShares(avail, s.target.LastPrice)
		s.qty += extra
		spent += float64(extra) * s.target.LastPrice
	}

	// 3. AGGRESSIVE: spend the remainder one share at a time
	if a.config.Strategy == Aggressive {
		spent = a.distributeLeftover(slots, plan.Usable, spent)
	}

	plan.Unspent = plan.Usable - spent

	for _, s := range slots {
		if s.qty == 0 {
			plan.Status = StatusInsufficientCapital
			a.logger.WithFields(map[string]interface{}{
				"symbol": s.target.Symbol,
				"price":  s.target.LastPrice,
				"usable": plan.Usable,
				"stocks": len(slots),
			}).Warn("Insufficient capital to fund every stock")
			return plan, nil
		}
	}

	plan.Status = StatusOK
	plan.Orders = buildOrders(slots, removed)

	a.logger.WithFields(map[string]interface{}{
		"freed":    plan.Freed,
		"reserved": plan.Reserved,
		"usable":   plan.Usable,
		"target":   plan.TargetPerStock,
		"unspent":  plan.Unspent,
		"sell":     plan.Count(contracts.ActionSell),
		"hold":     plan.Count(contracts.ActionHold),
		"buy":      plan.Count(contracts.ActionBuy),
	}).Info("Allocation planned")

	return plan, nil
}

// SellOnly plans the exit of removed stocks when nothing replaces them
func (a *Allocator) SellOnly(removed []contracts.AllocationTarget) (*Plan, error) {
	if len(removed) == 0 {
		return nil, &ValidationError{Field: "removed", Message: "must not be empty"}
	}
	if err := validateBucket("removed", removed, true); err != nil {
		return nil, err
	}
	if err := validateUnique(removed); err != nil {
		return nil, err
	}

	sellValue := sumValue(removed)
	plan := &Plan{
		Status:    StatusOK,
		Freed:     sellValue,
		SellValue: sellValue,
		Orders:    buildOrders(nil, removed),
	}
	plan.Reserved = a.reserve(sellValue, 0)
	plan.Usable = sellValue - plan.Reserved
	plan.Unspent = plan.Usable

	a.logger.WithFields(map[string]interface{}{
		"sell":       len(removed),
		"sell_value": sellValue,
	}).Info("Sell-only plan")

	return plan, nil
}

// reserve returns the capital held back for costs given the intended buy value
func (a *Allocator) reserve(sellValue, buyValue float64) float64 {
	switch a.config.Reservation {
	case RoundTrip:
		return (sellValue + buyValue) * a.config.TransactionCostPct
	case FreedOnly:
		if buyValue == 0 {
			return sellValue * a.config.TransactionCostPct
		}
		return buyValue * a.config.TransactionCostPct
	default:
		return 0
	}
}

// distributeLeftover buys one share at a time for the lowest-invested stock that fits
func (a *Allocator) distributeLeftover(slots []*slot, usable, spent float64) float64 {
	for {
		sortByInvested(slots)
		bought := false
		for _, s := range slots {
			if s.target.LastPrice <= usable-spent {
				s.qty++
				spent += s.target.LastPrice
				bought = true
				break
			}
		}
		if !bought {
			return spent
		}
	}
}

func (a *Allocator) validate(held, added, removed []contracts.AllocationTarget, cash float64) error {
	if math.IsNaN(cash) || math.IsInf(cash, 0) || cash < 0 {
		return &ValidationError{Field: "cash", Message: fmt.Sprintf("must be a non-negative number, got %v", cash)}
	}
	if len(held) == 0 && len(added) == 0 && len(removed) == 0 {
		return &ValidationError{Field: "buckets", Message: "at least one of held, new or removed must be non-empty"}
	}
	if len(removed) > 0 && len(added) == 0 {
		return &ValidationError{Field: "new", Message: "removed stocks need new stocks to fund; use SellOnly"}
	}
	if err := validateBucket("held", held, true); err != nil {
		return err
	}
	if err := validateBucket("new", added, false); err != nil {
		return err
	}
	if err := validateBucket("removed", removed, true); err != nil {
		return err
	}

	all := make([]contracts.AllocationTarget, 0, len(held)+len(added)+len(removed))
	all = append(all, held...)
	all = append(all, added...)
	all = append(all, removed...)
	return validateUnique(all)
}

// validateBucket checks each entry; held/removed need a position, new stocks must start empty
func validateBucket(name string, targets []contracts.AllocationTarget, positive bool) error {
	for i, t := range targets {
		field := fmt.Sprintf("%s[%d]", name, i)
		if t.Symbol == "" {
			return &ValidationError{Field: field + ".symbol", Message: "must not be empty"}
		}
		if math.IsNaN(t.LastPrice) || math.IsInf(t.LastPrice, 0) || t.LastPrice <= 0 {
			return &ValidationError{Field: field + ".last_price", Message: fmt.Sprintf("must be positive, got %v", t.LastPrice)}
		}
		if t.Rank != nil && *t.Rank <= 0 {
			return &ValidationError{Field: field + ".rank", Message: fmt.Sprintf("must be positive or absent, got %d", *t.Rank)}
		}
		if positive && t.Quantity <= 0 {
			return &ValidationError{Field: field + ".quantity", Message: fmt.Sprintf("must be positive for an existing holding, got %d", t.Quantity)}
		}
		if !positive && t.Quantity != 0 {
			return &ValidationError{Field: field + ".quantity", Message: fmt.Sprintf("must be 0 for a new stock, got %d", t.Quantity)}
		}
	}
	return nil
}

func validateUnique(targets []contracts.AllocationTarget) error {
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if seen[t.Symbol] {
			return &ValidationError{Field: "symbol", Message: fmt.Sprintf("%s appears in more than one bucket", t.Symbol)}
		}
		seen[t.Symbol] = true
	}
	return nil
}

// buildOrders emits SELL rows, a HOLD row per prior position and a BUY row per delta
func buildOrders(slots []*slot, removed []contracts.AllocationTarget) []contracts.ExecutionOrder {
	orders := make([]contracts.ExecutionOrder, 0, len(removed)+2*len(slots))

	for _, r := range removed {
		orders = append(orders, newOrder(r.Symbol, r.Rank, contracts.ActionSell, r.LastPrice, r.Quantity))
	}
	for _, s := range slots {
		if s.prior > 0 {
			orders = append(orders, newOrder(s.target.Symbol, s.target.Rank, contracts.ActionHold, s.target.LastPrice, s.prior))
		}
		if delta := s.qty - s.prior; delta > 0 {
			orders = append(orders, newOrder(s.target.Symbol, s.target.Rank, contracts.ActionBuy, s.target.LastPrice, delta))
		}
	}

	total := 0.0
	for _, o := range orders {
		if o.Action != contracts.ActionSell {
			total += o.Invested
		}
	}
	if total > 0 {
		for i := range orders {
			if orders[i].Action != contracts.ActionSell {
				orders[i].WeightPct = orders[i].Invested / total * 100
			}
		}
	}

	sort.SliceStable(orders, func(i, j int) bool {
		ki, kj := orders[i].Action.SortKey(), orders[j].Action.SortKey()
		if ki != kj {
			return ki < kj
		}
		return orders[i].Symbol < orders[j].Symbol
	})

	return orders
}

func newOrder(symbol string, rank *int, action contracts.Action, price float64, qty int) contracts.ExecutionOrder {
	return contracts.ExecutionOrder{
		Symbol:   symbol,
		Rank:     rank,
		Action:   action,
		Price:    price,
		Quantity: qty,
		Invested: float64(qty) * price,
	}
}

func sortByInvested(slots []*slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		vi, vj := slots[i].invested(), slots[j].invested()
		if vi != vj {
			return vi < vj
		}
		return slots[i].target.Symbol < slots[j].target.Symbol
	})
}

func sumValue(targets []contracts.AllocationTarget) float64 {
	total := 0.0
	for _, t := range targets {
		total += t.Value()
	}
	return total
}

// floorShares returns the whole shares amount buys at price, never costing more than amount
func floorShares(amount, price float64) int {
	if amount <= 0 || price <= 0 {
		return 0
	}
	n := int(math.Floor(amount/price + floorEpsilon))
	for n > 0 && float64(n)*price > amount {
		n--
	}
	return n
}

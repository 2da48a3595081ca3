package contracts

import (
	"fmt"
	"time"
)

// Action is what happens to a symbol in one rebalance
type Action string

const (
	ActionHold Action = "HOLD"
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// actionOrder sorts plan rows SELL, HOLD, BUY
var actionOrder = map[Action]int{
	ActionSell: 0,
	ActionHold: 1,
	ActionBuy:  2,
}

// SortKey orders actions for plan output; unknown actions sort last
func (a Action) SortKey() int {
	if k, ok := actionOrder[a]; ok {
		return k
	}
	return len(actionOrder)
}

// IsOrder reports whether the action moves shares (HOLD rows are informational)
func (a Action) IsOrder() bool {
	return a == ActionBuy || a == ActionSell
}

// ParseAction accepts BUY or SELL, the only actions a broker understands
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionBuy, ActionSell:
		return Action(s), nil
	default:
		return "", fmt.Errorf("unknown order action %q", s)
	}
}

// ExecutionOrder is one row of a rebalance plan
// ⭐ SSOT: planner → broker/CSV/notification row shape
type ExecutionOrder struct {
	Symbol    string  `json:"symbol"`
	Rank      *int    `json:"rank"` // nil for a cash equivalent
	Action    Action  `json:"action"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Invested  float64 `json:"invested"`   // Quantity × Price
	WeightPct float64 `json:"weight_pct"` // over non-SELL rows, 0 for SELL
}

// Transaction is one executed order in the append-only ledger log
type Transaction struct {
	OrderID   string    `json:"order_id"`
	Date      time.Time `json:"date"`
	Symbol    string    `json:"symbol"`
	Action    Action    `json:"action"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
	CashAfter float64   `json:"cash_after"`
}

// Value returns Quantity × Price
func (t Transaction) Value() float64 {
	return float64(t.Quantity) * t.Price
}

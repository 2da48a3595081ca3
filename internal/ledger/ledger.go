package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/xcelerator/internal/contracts"
	"github.com/wonny/xcelerator/internal/marketdata"
	"github.com/wonny/xcelerator/pkg/logger"
)

var _ contracts.OrderPlacer = (*Ledger)(nil)

// Ledger is the simulated broker used by the backtest
// ⭐ SSOT: simulated cash, positions and transaction log live here only
type Ledger struct {
	mu     sync.RWMutex
	logger *logger.Logger

	initialCapital float64
	cash           float64
	positions      map[string]*contracts.Position
	transactions   []contracts.Transaction
	rejected       int
}

// New creates a ledger holding only cash
func New(initialCapital float64, log *logger.Logger) *Ledger {
	return &Ledger{
		logger:         log.WithComponent("ledger"),
		initialCapital: initialCapital,
		cash:           initialCapital,
		positions:      make(map[string]*contracts.Position),
		transactions:   make([]contracts.Transaction, 0),
	}
}

// PlaceOrder executes a market order at price.
// ok=false means the order was rejected and nothing changed.
func (l *Ledger) PlaceOrder(ctx context.Context, symbol string, qty int, action contracts.Action, price float64, date time.Time) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if qty <= 0 || price <= 0 {
		l.reject(symbol, action, qty, price, "non-positive quantity or price")
		return "", false
	}

	value := float64(qty) * price

	switch action {
	case contracts.ActionBuy:
		if value > l.cash {
			l.reject(symbol, action, qty, price, "insufficient cash")
			return "", false
		}
		l.cash -= value

		if pos, ok := l.positions[symbol]; ok {
			total := pos.Quantity + qty
			pos.AvgBuyPrice = (pos.CostBasis() + value) / float64(total)
			pos.Quantity = total
		} else {
			l.positions[symbol] = &contracts.Position{Symbol: symbol, Quantity: qty, AvgBuyPrice: price}
		}

	case contracts.ActionSell:
		pos, ok := l.positions[symbol]
		if !ok {
			l.reject(symbol, action, qty, price, "no position")
			return "", false
		}
		if pos.Quantity < qty {
			l.reject(symbol, action, qty, price, "insufficient shares")
			return "", false
		}
		l.cash += value
		pos.Quantity -= qty
		if pos.Quantity == 0 {
			delete(l.positions, symbol)
		}

	default:
		l.reject(symbol, action, qty, price, "unsupported action")
		return "", false
	}

	orderID := uuid.NewString()
	l.transactions = append(l.transactions, contracts.Transaction{
		OrderID:   orderID,
		Date:      marketdata.Day(date),
		Symbol:    symbol,
		Action:    action,
		Quantity:  qty,
		Price:     price,
		CashAfter: l.cash,
	})

	return orderID, true
}

func (l *Ledger) reject(symbol string, action contracts.Action, qty int, price float64, reason string) {
	l.rejected++
	l.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"action": action,
		"qty":    qty,
		"price":  price,
		"cash":   l.cash,
		"reason": reason,
	}).Warn("Order rejected")
}

// Cash returns the current cash balance
func (l *Ledger) Cash() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// InitialCapital returns the starting cash
func (l *Ledger) InitialCapital() float64 {
	return l.initialCapital
}

// Positions returns a copy of open positions sorted by symbol
func (l *Ledger) Positions() []contracts.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]contracts.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Position returns the open position in symbol
func (l *Ledger) Position(symbol string) (contracts.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.positions[symbol]
	if !ok {
		return contracts.Position{}, false
	}
	return *p, true
}

// HeldSymbols returns the symbols with an open position, sorted
func (l *Ledger) HeldSymbols() []string {
	positions := l.Positions()
	out := make([]string, len(positions))
	for i, p := range positions {
		out[i] = p.Symbol
	}
	return out
}

// Transactions returns a copy of the transaction log in execution order
func (l *Ledger) Transactions() []contracts.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]contracts.Transaction, len(l.transactions))
	copy(out, l.transactions)
	return out
}

// Rejected returns how many orders were refused
func (l *Ledger) Rejected() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rejected
}

// TradedValue returns Σ qty × price over all transactions
func (l *Ledger) TradedValue() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := 0.0
	for _, t := range l.transactions {
		total += t.Value()
	}
	return total
}

// PortfolioValue returns cash plus holdings marked at the close on date,
// falling back to the average buy price when the symbol has no bar that day.
func (l *Ledger) PortfolioValue(prices map[string]*marketdata.Series, date time.Time) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := l.cash
	for symbol, p := range l.positions {
		price := p.AvgBuyPrice
		if s, ok := prices[symbol]; ok {
			if c, ok := s.CloseOn(date); ok {
				price = c
			}
		}
		total += float64(p.Quantity) * price
	}
	return total
}

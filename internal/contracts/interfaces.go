package contracts

import (
	"context"
	"time"

	"github.com/wonny/xcelerator/internal/marketdata"
)

// PriceProvider fetches daily bars. Missing symbols are absent from the map.
// ⭐ SSOT: price data interface
type PriceProvider interface {
	GetPrices(ctx context.Context, symbols []string, start, end time.Time) (map[string]*marketdata.Series, error)
}

// Ranker orders symbols best first, applying its own history and liquidity filters
// ⭐ SSOT: ranking interface
type Ranker interface {
	Rank(series map[string]*marketdata.Series, asOf time.Time, weights []float64) ([]RankedStock, error)
}

// RegimeSignal is a pure predicate gating the classifier's two regimes
type RegimeSignal interface {
	IsMarketStrong(series map[string]*marketdata.Series, benchmark string, asOf time.Time) bool
}

// UniverseProvider supplies the eligible symbols for a date
type UniverseProvider interface {
	Universe(ctx context.Context, name string, date time.Time) (*Universe, error)
}

// OrderPlacer executes one order at a known price.
// ok=false means rejected with no state change.
// ⭐ SSOT: shared by the simulated ledger and the live broker adapter
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, symbol string, qty int, action Action, price float64, date time.Time) (orderID string, ok bool)
}

// Broker is the live brokerage surface
type Broker interface {
	PlaceMarketOrder(ctx context.Context, symbol string, qty int, action Action) (string, error)
	Holdings(ctx context.Context) ([]Position, error)
	AvailableCash(ctx context.Context) (float64, error)
}

package live

import (
	"context"
	"time"

	"github.com/wonny/xcelerator/internal/contracts"
	"github.com/wonny/xcelerator/internal/metrics"
	"github.com/wonny/xcelerator/pkg/logger"
)

var _ contracts.OrderPlacer = (*Placer)(nil)

// Placer adapts a live broker to contracts.OrderPlacer.
// Price and date are ignored; the broker fills at market.
type Placer struct {
	broker  contracts.Broker
	metrics *metrics.Registry
	logger  *logger.Logger
}

// NewPlacer wraps broker
func NewPlacer(broker contracts.Broker, m *metrics.Registry, log *logger.Logger) *Placer {
	return &Placer{
		broker:  broker,
		metrics: m,
		logger:  log.WithComponent("placer"),
	}
}

// PlaceOrder implements contracts.OrderPlacer. A broker error counts as a rejection.
func (p *Placer) PlaceOrder(ctx context.Context, symbol string, qty int, action contracts.Action, _ float64, _ time.Time) (string, bool) {
	id, err := p.broker.PlaceMarketOrder(ctx, symbol, qty, action)
	if err != nil {
		p.logger.WithError(err).WithFields(map[string]interface{}{
			"symbol":   symbol,
			"action":   action,
			"quantity": qty,
		}).Error("Broker rejected order")
		p.metrics.RecordOrder(string(action), false)
		return "", false
	}
	p.metrics.RecordOrder(string(action), true)
	return id, true
}

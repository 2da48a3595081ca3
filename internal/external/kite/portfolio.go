package kite

import (
	"context"
	"fmt"
	"sort"

	"github.com/wonny/xcelerator/internal/contracts"
)

// Only delivery (CNC) positions count toward the portfolio
const productCNC = "CNC"

type holding struct {
	TradingSymbol string  `json:"tradingsymbol"`
	Quantity      int     `json:"quantity"`
	T1Quantity    int     `json:"t1_quantity"`
	AveragePrice  float64 `json:"average_price"`
	LastPrice     float64 `json:"last_price"`
}

type position struct {
	TradingSymbol string  `json:"tradingsymbol"`
	Product       string  `json:"product"`
	Quantity      int     `json:"quantity"`
	AveragePrice  float64 `json:"average_price"`
	LastPrice     float64 `json:"last_price"`
}

type positions struct {
	Net []position `json:"net"`
	Day []position `json:"day"`
}

type margins struct {
	Available struct {
		LiveBalance float64 `json:"live_balance"`
		Cash        float64 `json:"cash"`
	} `json:"available"`
	Net float64 `json:"net"`
}

// Holding is a merged holding with the broker's last traded price
type Holding struct {
	Symbol      string  `json:"symbol"`
	Quantity    int     `json:"quantity"`
	AvgBuyPrice float64 `json:"avg_buy_price"`
	LastPrice   float64 `json:"last_price"`
}

// OpenPosition is a non-zero delivery position from today's trading
type OpenPosition struct {
	Symbol      string           `json:"symbol"`
	Action      contracts.Action `json:"action"`
	Quantity    int              `json:"quantity"` // negative for a net sell
	AvgBuyPrice float64          `json:"avg_buy_price"`
}

// Holdings returns settled holdings (including T1) merged with same-day CNC buys
func (c *Client) Holdings(ctx context.Context) ([]contracts.Position, error) {
	hs, err := c.HoldingDetails(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]contracts.Position, len(hs))
	for i, h := range hs {
		out[i] = contracts.Position{Symbol: h.Symbol, Quantity: h.Quantity, AvgBuyPrice: h.AvgBuyPrice}
	}
	return out, nil
}

// HoldingDetails is Holdings with the last traded price of each symbol
func (c *Client) HoldingDetails(ctx context.Context) ([]Holding, error) {
	var hs []holding
	if err := c.get(ctx, "/portfolio/holdings", &hs); err != nil {
		return nil, fmt.Errorf("holdings: %w", err)
	}
	var ps positions
	if err := c.get(ctx, "/portfolio/positions", &ps); err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}

	merged := mergeHoldings(hs, ps.Net)

	c.logger.WithFields(map[string]interface{}{
		"holdings":  len(hs),
		"positions": len(ps.Net),
		"merged":    len(merged),
	}).Info("Broker holdings loaded")

	return merged, nil
}

// Positions returns today's non-zero CNC net positions, buys first
func (c *Client) Positions(ctx context.Context) ([]OpenPosition, error) {
	var ps positions
	if err := c.get(ctx, "/portfolio/positions", &ps); err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}

	out := make([]OpenPosition, 0, len(ps.Net))
	for _, p := range ps.Net {
		if p.Product != productCNC || p.Quantity == 0 {
			continue
		}
		action := contracts.ActionBuy
		if p.Quantity < 0 {
			action = contracts.ActionSell
		}
		out = append(out, OpenPosition{Symbol: p.TradingSymbol, Action: action, Quantity: p.Quantity, AvgBuyPrice: p.AveragePrice})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Action != out[j].Action {
			return out[i].Action < out[j].Action
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out, nil
}

// mergeHoldings adds positive CNC net positions to holdings using a weighted average price
func mergeHoldings(hs []holding, net []position) []Holding {
	bySymbol := make(map[string]Holding)
	for _, h := range hs {
		qty := h.Quantity + h.T1Quantity
		if qty <= 0 {
			continue
		}
		bySymbol[h.TradingSymbol] = Holding{Symbol: h.TradingSymbol, Quantity: qty, AvgBuyPrice: h.AveragePrice, LastPrice: h.LastPrice}
	}

	for _, p := range net {
		if p.Product != productCNC || p.Quantity <= 0 {
			continue
		}
		existing, ok := bySymbol[p.TradingSymbol]
		if !ok {
			bySymbol[p.TradingSymbol] = Holding{Symbol: p.TradingSymbol, Quantity: p.Quantity, AvgBuyPrice: p.AveragePrice, LastPrice: p.LastPrice}
			continue
		}
		total := existing.Quantity + p.Quantity
		existing.AvgBuyPrice = (float64(existing.Quantity)*existing.AvgBuyPrice + float64(p.Quantity)*p.AveragePrice) / float64(total)
		existing.Quantity = total
		existing.LastPrice = p.LastPrice
		bySymbol[p.TradingSymbol] = existing
	}

	out := make([]Holding, 0, len(bySymbol))
	for _, h := range bySymbol {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// AvailableCash returns the equity segment's live balance
func (c *Client) AvailableCash(ctx context.Context) (float64, error) {
	var m margins
	if err := c.get(ctx, "/user/margins/equity", &m); err != nil {
		return 0, fmt.Errorf("margins: %w", err)
	}
	return m.Available.LiveBalance, nil
}

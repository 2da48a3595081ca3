package kite

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/wonny/xcelerator/internal/contracts"
)

var _ contracts.Broker = (*Client)(nil)

const exchangeNSE = "NSE"

type orderResponse struct {
	OrderID string `json:"order_id"`
}

// PlaceMarketOrder places a regular CNC market order on NSE and returns the broker order id.
// The request is never retried; a timeout leaves the outcome unknown to the caller.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, qty int, action contracts.Action) (string, error) {
	if _, err := contracts.ParseAction(string(action)); err != nil {
		return "", err
	}
	if qty <= 0 {
		return "", fmt.Errorf("quantity must be positive, got %d", qty)
	}

	form := url.Values{}
	form.Set("tradingsymbol", symbol)
	form.Set("exchange", exchangeNSE)
	form.Set("transaction_type", string(action))
	form.Set("order_type", "MARKET")
	form.Set("quantity", strconv.Itoa(qty))
	form.Set("product", productCNC)
	form.Set("validity", "DAY")

	var out orderResponse
	if err := c.postForm(ctx, "/orders/regular", form, &out); err != nil {
		return "", fmt.Errorf("place %s %d %s: %w", action, qty, symbol, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"order_id": out.OrderID,
		"symbol":   symbol,
		"action":   action,
		"quantity": qty,
	}).Info("Order placed")

	return out.OrderID, nil
}

package ledger

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/xcelerator/internal/contracts"
	"github.com/wonny/xcelerator/internal/marketdata"
	"github.com/wonny/xcelerator/pkg/logger"
)

var (
	ctx = context.Background()
	d1  = time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	d2  = d1.AddDate(0, 0, 1)
)

func TestBuyAndAveragePrice(t *testing.T) {
	l := New(10000, logger.Nop())

	id, ok := l.PlaceOrder(ctx, "TCS", 10, contracts.ActionBuy, 100, d1)
	require.True(t, ok)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)

	_, ok = l.PlaceOrder(ctx, "TCS", 30, contracts.ActionBuy, 200, d2)
	require.True(t, ok)

	pos, ok := l.Position("TCS")
	require.True(t, ok)
	assert.Equal(t, 40, pos.Quantity)
	assert.InDelta(t, 175, pos.AvgBuyPrice, 1e-9)
	assert.InDelta(t, 10000-1000-6000, l.Cash(), 1e-9)
	assert.Len(t, l.Transactions(), 2)
}

func TestRejections(t *testing.T) {
	l := New(1000, logger.Nop())
	_, ok := l.PlaceOrder(ctx, "INFY", 5, contracts.ActionBuy, 100, d1)
	require.True(t, ok)

	tests := []struct {
		name   string
		symbol string
		qty    int
		action contracts.Action
		price  float64
	}{
		{"buy beyond cash", "TCS", 6, contracts.ActionBuy, 100},
		{"sell without position", "TCS", 1, contracts.ActionSell, 100},
		{"sell more than held", "INFY", 6, contracts.ActionSell, 100},
		{"zero quantity", "INFY", 0, contracts.ActionSell, 100},
		{"negative quantity", "INFY", -1, contracts.ActionBuy, 100},
		{"hold is not an order", "INFY", 1, contracts.ActionHold, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := l.Cash()
			id, ok := l.PlaceOrder(ctx, tt.symbol, tt.qty, tt.action, tt.price, d2)
			assert.False(t, ok)
			assert.Empty(t, id)
			assert.Equal(t, before, l.Cash())
		})
	}

	assert.Len(t, l.Transactions(), 1)
	assert.Equal(t, len(tests), l.Rejected())
}

func TestBuyExactlyAllCash(t *testing.T) {
	l := New(1000, logger.Nop())
	_, ok := l.PlaceOrder(ctx, "A", 10, contracts.ActionBuy, 100, d1)
	assert.True(t, ok)
	assert.Zero(t, l.Cash())
}

func TestSellRemovesPositionAtZero(t *testing.T) {
	l := New(1000, logger.Nop())
	_, ok := l.PlaceOrder(ctx, "A", 4, contracts.ActionBuy, 100, d1)
	require.True(t, ok)

	_, ok = l.PlaceOrder(ctx, "A", 1, contracts.ActionSell, 150, d2)
	require.True(t, ok)
	pos, _ := l.Position("A")
	assert.Equal(t, 3, pos.Quantity)
	assert.InDelta(t, 100, pos.AvgBuyPrice, 1e-9)

	_, ok = l.PlaceOrder(ctx, "A", 3, contracts.ActionSell, 150, d2)
	require.True(t, ok)
	_, held := l.Position("A")
	assert.False(t, held)
	assert.Empty(t, l.HeldSymbols())
	assert.InDelta(t, 1200, l.Cash(), 1e-9)

	last := l.Transactions()[2]
	assert.Equal(t, contracts.ActionSell, last.Action)
	assert.InDelta(t, 1200, last.CashAfter, 1e-9)
}

func TestPortfolioValueFallsBackToAvgPrice(t *testing.T) {
	l := New(10000, logger.Nop())
	_, ok := l.PlaceOrder(ctx, "A", 10, contracts.ActionBuy, 100, d1)
	require.True(t, ok)
	_, ok = l.PlaceOrder(ctx, "B", 10, contracts.ActionBuy, 200, d1)
	require.True(t, ok)

	prices := map[string]*marketdata.Series{
		"A": marketdata.NewSeries("A", []marketdata.Bar{{Date: d2, Close: 120}}),
	}

	// A marked at 120, B has no bar on d2 so it stays at cost
	assert.InDelta(t, 7000+1200+2000, l.PortfolioValue(prices, d2), 1e-9)
	// nothing on d1 in the map for A either
	assert.InDelta(t, 10000, l.PortfolioValue(prices, d1), 1e-9)
}

func TestCashNeverNegative(t *testing.T) {
	l := New(5000, logger.Nop())
	prices := []float64{333, 999, 1234, 77.5, 4100}

	for i := 0; i < 50; i++ {
		p := prices[i%len(prices)]
		sym := string(rune('A' + i%5))
		if i%3 == 2 {
			l.PlaceOrder(ctx, sym, 2, contracts.ActionSell, p, d1)
		} else {
			l.PlaceOrder(ctx, sym, 3, contracts.ActionBuy, p, d1)
		}
		assert.GreaterOrEqual(t, l.Cash(), 0.0)
	}

	for _, tx := range l.Transactions() {
		assert.GreaterOrEqual(t, tx.CashAfter, 0.0)
	}
}

func TestWriteTransactionsCSV(t *testing.T) {
	l := New(1000, logger.Nop())
	_, ok := l.PlaceOrder(ctx, "A", 3, contracts.ActionBuy, 33.333, d1)
	require.True(t, ok)

	var buf bytes.Buffer
	require.NoError(t, WriteTransactionsCSV(&buf, l.Transactions()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "OrderID,Date,Symbol,Action,Quantity,Price,Value,CashAfter", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], ",2024-03-06,A,BUY,3,33.33,100.00,900.00"), lines[1])
}

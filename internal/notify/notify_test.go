package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/xcelerator/internal/contracts"
	"github.com/wonny/xcelerator/internal/planner"
	"github.com/wonny/xcelerator/pkg/config"
	"github.com/wonny/xcelerator/pkg/httputil"
	"github.com/wonny/xcelerator/pkg/logger"
)

var sentAt = time.Date(2024, 5, 8, 15, 4, 0, 0, time.UTC)

func order(symbol string, rank int, action contracts.Action, price float64, qty int) contracts.ExecutionOrder {
	var r *int
	if rank > 0 {
		r = contracts.RankOf(rank)
	}
	return contracts.ExecutionOrder{
		Symbol: symbol, Rank: r, Action: action, Price: price, Quantity: qty, Invested: price * float64(qty),
	}
}

func samplePlan() []contracts.ExecutionOrder {
	return []contracts.ExecutionOrder{
		order("OLD", 0, contracts.ActionSell, 50.255, 10),
		order("TCS", 2, contracts.ActionHold, 3500, 3),
		order("INFY", 0, contracts.ActionHold, 1500, 2),
		order("A", 1, contracts.ActionBuy, 100, 5),
		order("B", 3, contracts.ActionBuy, 250, 2),
	}
}

func TestFormatPlan(t *testing.T) {
	msg := FormatPlan(sentAt, samplePlan(), MaxMessageLength)

	want := "🕒 08 May 2024, 15:04\n\n" +
		"SELL:\nOLD(50.26, 10)\n\n" +
		"HOLD:\nTCS(#2), INFY(#NA)\n\n" +
		"BUY:\nA(100, 5), B(250, 2)\n\n" +
		"Summary:\nBefore: ₹15,002.55\nAfter: ₹14,500.00"
	assert.Equal(t, want, msg)
}

func TestFormatPlanChunksLines(t *testing.T) {
	var orders []contracts.ExecutionOrder
	for i := 1; i <= 5; i++ {
		orders = append(orders, order(fmt.Sprintf("H%d", i), i, contracts.ActionHold, 10, 1))
		orders = append(orders, order(fmt.Sprintf("B%d", i), i, contracts.ActionBuy, 10, 1))
	}

	msg := FormatPlan(sentAt, orders, MaxMessageLength)
	assert.Contains(t, msg, "HOLD:\nH1(#1), H2(#2), H3(#3), H4(#4)\nH5(#5)")
	assert.Contains(t, msg, "BUY:\nB1(10, 1), B2(10, 1), B3(10, 1)\nB4(10, 1), B5(10, 1)")
	assert.NotContains(t, msg, "SELL:")
}

func TestFormatPlanDropsHoldWhenTooLong(t *testing.T) {
	orders := []contracts.ExecutionOrder{order("SELLME", 0, contracts.ActionSell, 10, 1)}
	for i := 1; i <= 200; i++ {
		orders = append(orders, order(fmt.Sprintf("HOLDING%03d", i), i, contracts.ActionHold, 10, 1))
	}
	orders = append(orders, order("NEWBUY", 1, contracts.ActionBuy, 10, 1))

	msg := FormatPlan(sentAt, orders, MaxMessageLength)
	assert.NotContains(t, msg, "HOLD:")
	assert.Contains(t, msg, "SELL:\nSELLME(10, 1)")
	assert.Contains(t, msg, "BUY:\nNEWBUY(10, 1)")
	assert.True(t, strings.HasSuffix(msg, holdOmitted))
	assert.LessOrEqual(t, utf8.RuneCountInString(msg), MaxMessageLength)
}

func TestRupees(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{999.5, "999.50"},
		{1000, "1,000.00"},
		{1234567.891, "1,234,567.89"},
		{-2500, "-2,500.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rupees(tt.in))
	}
}

func TestNewWhatsAppNeedsCredentials(t *testing.T) {
	_, err := NewWhatsApp(config.TwilioConfig{AccountSID: "AC1", AuthToken: "tok"}, httputil.New("twilio", logger.Nop()), logger.Nop())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func newTestWhatsApp(t *testing.T, handler http.HandlerFunc) *WhatsApp {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	w, err := NewWhatsApp(config.TwilioConfig{
		AccountSID: "AC123",
		AuthToken:  "secret",
		From:       "+14155238886",
		To:         "whatsapp:+919800000000",
		BaseURL:    server.URL,
	}, httputil.New("twilio-test", logger.Nop()).DisableRetry(), logger.Nop())
	require.NoError(t, err)
	w.now = func() time.Time { return sentAt }
	return w
}

func TestNotifyPlan(t *testing.T) {
	var body string
	w := newTestWhatsApp(t, func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "whatsapp:+14155238886", r.PostForm.Get("From"))
		assert.Equal(t, "whatsapp:+919800000000", r.PostForm.Get("To"))
		body = r.PostForm.Get("Body")

		rw.WriteHeader(http.StatusCreated)
		rw.Write([]byte(`{"sid":"SM42","status":"queued"}`))
	})

	err := w.NotifyPlan(context.Background(), sentAt, &planner.Plan{Status: planner.StatusOK, Orders: samplePlan()})
	require.NoError(t, err)
	assert.Equal(t, FormatPlan(sentAt, samplePlan(), MaxMessageLength), body)
}

func TestNotifyPlanSkipsEmptyPlan(t *testing.T) {
	called := false
	w := newTestWhatsApp(t, func(rw http.ResponseWriter, r *http.Request) { called = true })

	require.NoError(t, w.NotifyPlan(context.Background(), sentAt, &planner.Plan{Status: planner.StatusNothingToRebalance}))
	require.NoError(t, w.NotifyPlan(context.Background(), sentAt, nil))
	assert.False(t, called)
}

func TestSendReportsTwilioError(t *testing.T) {
	w := newTestWhatsApp(t, func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusBadRequest)
		rw.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number","status":400}`))
	})

	_, err := w.Send(context.Background(), "hello")
	assert.Error(t, err)
}

package notify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wonny/xcelerator/internal/planner"
	"github.com/wonny/xcelerator/pkg/config"
	"github.com/wonny/xcelerator/pkg/httputil"
	"github.com/wonny/xcelerator/pkg/logger"
)

// ErrNotConfigured is returned when Twilio credentials or recipient are missing
var ErrNotConfigured = errors.New("twilio whatsapp is not configured")

const whatsappPrefix = "whatsapp:"

// WhatsApp sends plan summaries through the Twilio Messages API
type WhatsApp struct {
	http    *httputil.Client
	baseURL string
	sid     string
	from    string
	to      string
	now     func() time.Time
	logger  *logger.Logger
}

type messageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// NewWhatsApp creates a notifier; client should not retry so a message is sent at most once
func NewWhatsApp(cfg config.TwilioConfig, client *httputil.Client, log *logger.Logger) (*WhatsApp, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.To == "" {
		return nil, ErrNotConfigured
	}

	creds := base64.StdEncoding.EncodeToString([]byte(cfg.AccountSID + ":" + cfg.AuthToken))
	client.WithHeader("Authorization", "Basic "+creds)

	return &WhatsApp{
		http:    client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		sid:     cfg.AccountSID,
		from:    whatsappAddress(cfg.From),
		to:      whatsappAddress(cfg.To),
		now:     time.Now,
		logger:  log.WithComponent("whatsapp"),
	}, nil
}

// NotifyPlan sends the plan summary; plans without orders are not sent
func (w *WhatsApp) NotifyPlan(ctx context.Context, asOf time.Time, plan *planner.Plan) error {
	if plan == nil || len(plan.Orders) == 0 {
		return nil
	}
	sid, err := w.Send(ctx, FormatPlan(w.now(), plan.Orders, MaxMessageLength))
	if err != nil {
		return err
	}
	w.logger.WithFields(map[string]interface{}{
		"sid":   sid,
		"as_of": asOf.Format("2006-01-02"),
	}).Info("Plan sent on WhatsApp")
	return nil
}

// Send posts one message and returns its Twilio SID
func (w *WhatsApp) Send(ctx context.Context, body string) (string, error) {
	form := url.Values{}
	form.Set("From", w.from)
	form.Set("To", w.to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", w.baseURL, url.PathEscape(w.sid))
	resp, err := w.http.PostForm(ctx, endpoint, form)
	if err != nil {
		return "", fmt.Errorf("send whatsapp message: %w", err)
	}
	data, err := httputil.ReadBody(resp)
	if err != nil {
		return "", fmt.Errorf("send whatsapp message: %w", err)
	}

	var out messageResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode twilio response: %w", err)
	}
	return out.SID, nil
}

func whatsappAddress(number string) string {
	if number == "" || strings.HasPrefix(number, whatsappPrefix) {
		return number
	}
	return whatsappPrefix + number
}

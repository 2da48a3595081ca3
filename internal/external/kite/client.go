package kite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/wonny/xcelerator/pkg/config"
	"github.com/wonny/xcelerator/pkg/httputil"
	"github.com/wonny/xcelerator/pkg/logger"
)

// ErrNotConfigured is returned when API key or access token is missing
var ErrNotConfigured = errors.New("kite credentials not configured")

// APIError is an error envelope returned by Kite Connect
type APIError struct {
	Status    int
	ErrorType string
	Message   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kite %s (status %d): %s", e.ErrorType, e.Status, e.Message)
}

// Client handles communication with Zerodha Kite Connect v3
// ⭐ SSOT: Kite API calls live only in this package
type Client struct {
	http    *httputil.Client // reads, retried
	orders  *httputil.Client // order placement, never retried
	logger  *logger.Logger
	baseURL string
}

// NewClient creates a Kite client. orders must have retries disabled.
func NewClient(cfg config.KiteConfig, reads, orders *httputil.Client, log *logger.Logger) (*Client, error) {
	if cfg.APIKey == "" || cfg.AccessToken == "" {
		return nil, ErrNotConfigured
	}
	auth := fmt.Sprintf("token %s:%s", cfg.APIKey, cfg.AccessToken)
	for _, h := range []*httputil.Client{reads, orders} {
		h.WithHeader("X-Kite-Version", "3").WithHeader("Authorization", auth)
	}
	return &Client{
		http:    reads,
		orders:  orders,
		logger:  log.WithComponent("kite"),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}, nil
}

// envelope is the common Kite response shape
type envelope struct {
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
}

func (c *Client) get(ctx context.Context, path string, dest interface{}) error {
	resp, err := c.http.Get(ctx, c.baseURL+path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return decode(resp, dest)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, dest interface{}) error {
	resp, err := c.orders.PostForm(ctx, c.baseURL+path, form)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	return decode(resp, dest)
}

// decode unwraps the envelope into dest, turning error envelopes into *APIError
func decode(resp *http.Response, dest interface{}) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || env.Status != "success" {
		return &APIError{Status: resp.StatusCode, ErrorType: env.ErrorType, Message: env.Message}
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

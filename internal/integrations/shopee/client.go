package shopee

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrAuthentication marks responses that need a fresh login rather than
// a blind retry.
var ErrAuthentication = errors.New("shopee authentication failed")

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Client calls the Shopee status-query endpoint. Session credentials are
// an opaque header blob owned by the caller and passed through untouched.
type Client struct {
	baseURL string
	httpc   *http.Client

	rl          RateLimiter
	rlPerMinute int64
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9100"
	}
	return &Client{
		baseURL: baseURL,
		httpc: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) WithRateLimiter(rl RateLimiter, perMinute int64) *Client {
	c.rl = rl
	if perMinute > 0 {
		c.rlPerMinute = perMinute
	}
	return c
}

type ShipmentItem struct {
	ShipmentID         string `json:"shipment_id"`
	OrderStatus        int    `json:"order_status"`
	DriverName         string `json:"driver_name,omitempty"`
	CurrentStationName string `json:"current_station_name,omitempty"`
	BulkyType          int    `json:"bulky_type,omitempty"`
}

type StatusResponse struct {
	Data struct {
		List []ShipmentItem `json:"list"`
	} `json:"data"`
}

// FetchStatuses queries shipment statuses. The second return value is the
// verbatim response body for diagnostics.
func (c *Client) FetchStatuses(ctx context.Context, credentials map[string]string, trackingNumbers []string) (*StatusResponse, []byte, error) {
	if c.rl != nil && c.rlPerMinute > 0 {
		minuteKey := fmt.Sprintf("rl:shopee:%s", time.Now().UTC().Format("200601021504"))
		allowed, n, err := c.rl.Allow(ctx, minuteKey, c.rlPerMinute, 70*time.Second)
		if err != nil {
			return nil, nil, err
		}
		if !allowed {
			// Back off a little instead of hammering the platform.
			slog.Warn("shopee rate limit exceeded", "count", n)
			time.Sleep(500 * time.Millisecond)
		}
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parse base url")
	}
	u.Path = "/api/fleet/shipment/status"

	body, err := json.Marshal(map[string]any{"shipment_ids": trackingNumbers})
	if err != nil {
		return nil, nil, errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range credentials {
		req.Header.Set(k, v)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read response")
	}

	if isAuthFailure(resp.StatusCode, raw) {
		return nil, raw, ErrAuthentication
	}
	if resp.StatusCode/100 != 2 {
		return nil, raw, fmt.Errorf("shopee http %d", resp.StatusCode)
	}

	var sr StatusResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return nil, raw, errors.Wrap(err, "decode")
	}
	return &sr, raw, nil
}

// isAuthFailure classifies a response as needing re-authentication:
// 401/403, or an auth-flavoured body on any other error status.
func isAuthFailure(statusCode int, body []byte) bool {
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		return true
	}
	if statusCode/100 == 2 {
		return false
	}
	low := strings.ToLower(string(body))
	for _, kw := range []string{"unauthorized", "login required", "session expired", "invalid token"} {
		if strings.Contains(low, kw) {
			return true
		}
	}
	return false
}

// Package webhook delivers finished scrape results to the downstream
// collector endpoint.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/berserkarray/webscraperv2/models"
)

// SignatureHeader carries the HMAC-SHA256 of the request body when a
// secret is configured: "sha256=<hex>".
const SignatureHeader = "X-Webscraper-Signature"

const userAgent = "Webscraper-Collector/1.0"

// Client posts results to a single collector URL.
type Client struct {
	url        string
	secret     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a collector client. A zero timeout defaults to 10s.
func NewClient(url, secret string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:        url,
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Deliver sends payload once. Any transport failure or a status >= 300
// yields a DELIVERY_FAILED error; delivery is never retried.
func (c *Client) Deliver(ctx context.Context, payload models.CollectorPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeDelivery, "failed to marshal collector payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return models.NewScrapeError(models.ErrCodeDelivery, "failed to create collector request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(c.secret, body))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeDelivery, "collector request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.NewScrapeError(models.ErrCodeDelivery,
			fmt.Sprintf("failed to send data to the collector: status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet)), nil)
	}

	c.logger.Info("collector delivery succeeded", "job_id", payload.ID, "status", resp.StatusCode)
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

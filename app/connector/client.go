package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// apiClient wraps the shared HTTP plumbing all REST-backed connectors use:
// JSON requests, rate-limit header tracking, and status classification.
type apiClient struct {
	platform   string
	httpClient *http.Client
	userAgent  string

	mu        sync.Mutex
	rateLimit RateLimitState
}

func newAPIClient(platform string, httpClient *http.Client, userAgent string) *apiClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &apiClient{
		platform:   platform,
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

func (c *apiClient) RateLimit() RateLimitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rateLimit
}

// doJSON sends a JSON request and decodes the JSON response into out (when
// out is non-nil). Non-2xx responses are converted into the typed error
// taxonomy. Rate-limit headers are recorded on every response.
func (c *apiClient) doJSON(ctx context.Context, method, url string, headers map[string]string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return WrapError(KindPermanent, c.platform, "failed to encode request body", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return WrapError(KindPermanent, c.platform, "failed to create request", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return WrapError(KindTransient, c.platform, "request failed", err)
	}
	defer resp.Body.Close()

	c.updateRateLimit(resp.Header)

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return WrapError(KindTransient, c.platform, "failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncateBody(data))
		return classifyStatus(c.platform, resp.StatusCode, message, c.RateLimit().ResetAt)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return WrapError(KindTransient, c.platform, "failed to decode response", err)
		}
	}

	return nil
}

// updateRateLimit records the advisory rate-limit state from common response
// header variants (GitHub/Twitter/Mastodon style).
func (c *apiClient) updateRateLimit(h http.Header) {
	remaining, remainingOK := headerInt(h, "X-RateLimit-Remaining", "X-Rate-Limit-Remaining", "RateLimit-Remaining")
	resetAt, resetOK := headerReset(h)

	if !remainingOK && !resetOK {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if remainingOK {
		c.rateLimit.Remaining = remaining
	}
	if resetOK {
		c.rateLimit.ResetAt = resetAt
	}
}

func headerInt(h http.Header, names ...string) (int, bool) {
	for _, name := range names {
		if value := h.Get(name); value != "" {
			if n, err := strconv.Atoi(value); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// headerReset handles both epoch-seconds reset headers and RFC3339 variants
// (Mastodon), plus Retry-After seconds.
func headerReset(h http.Header) (time.Time, bool) {
	for _, name := range []string{"X-RateLimit-Reset", "X-Rate-Limit-Reset", "RateLimit-Reset"} {
		value := h.Get(name)
		if value == "" {
			continue
		}
		if epoch, err := strconv.ParseInt(value, 10, 64); err == nil {
			return time.Unix(epoch, 0).UTC(), true
		}
		if ts, err := time.Parse(time.RFC3339, value); err == nil {
			return ts.UTC(), true
		}
	}
	if value := h.Get("Retry-After"); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Now().UTC().Add(time.Duration(seconds) * time.Second), true
		}
	}
	return time.Time{}, false
}

func truncateBody(data []byte) string {
	const max = 200
	s := string(data)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

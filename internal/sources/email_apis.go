package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/browsint/browsint/internal/metrics"
)

// HunterVerify runs the Hunter.io email verifier. The data object of a
// successful response is returned as-is so score/status/disposable fields
// survive API additions.
func (c *Client) HunterVerify(ctx context.Context, email string) Payload {
	key, ok := c.creds.Get(ServiceHunter)
	if !ok {
		return Errf("Hunter.io API key not configured")
	}

	endpoint := fmt.Sprintf("%s/v2/email-verifier?email=%s&api_key=%s",
		c.cfg.HunterBaseURL, url.QueryEscape(email), url.QueryEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Errf("hunter request build: %v", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveSourceLookup("hunterio", "error")
		return Errf("hunter request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		metrics.ObserveSourceLookup("hunterio", "error")
		return Errf("hunter returned %d", resp.StatusCode)
	}

	var decoded struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		metrics.ObserveSourceLookup("hunterio", "error")
		return Errf("hunter response parse: %v", err)
	}
	metrics.ObserveSourceLookup("hunterio", "ok")
	if decoded.Data == nil {
		decoded.Data = map[string]any{}
	}
	return decoded.Data
}

// HIBPBreaches lists known breaches for an account. 404 means the clean
// answer "no breaches", not a failure.
func (c *Client) HIBPBreaches(ctx context.Context, email string) Payload {
	key, ok := c.creds.Get(ServiceHIBP)
	if !ok {
		return Errf("HIBP API key not configured")
	}

	endpoint := fmt.Sprintf("%s/api/v3/breachedaccount/%s?truncateResponse=false",
		c.cfg.HIBPBaseURL, url.PathEscape(email))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Errf("hibp request build: %v", err)
	}
	req.Header.Set("hibp-api-key", key)
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveSourceLookup("hibp", "error")
		return Errf("hibp request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch resp.StatusCode {
	case http.StatusOK:
		var breaches []map[string]any
		if err := json.Unmarshal(body, &breaches); err != nil {
			metrics.ObserveSourceLookup("hibp", "error")
			return Errf("hibp response parse: %v", err)
		}
		metrics.ObserveSourceLookup("hibp", "ok")
		return Payload{"breaches": breaches, "breach_count": len(breaches)}
	case http.StatusNotFound:
		metrics.ObserveSourceLookup("hibp", "ok")
		return Payload{"breaches": []map[string]any{}, "breach_count": 0}
	default:
		metrics.ObserveSourceLookup("hibp", "error")
		c.logger.Warn("hibp lookup failed", zap.String("email", email), zap.Int("status", resp.StatusCode))
		return Errf("hibp returned %d", resp.StatusCode)
	}
}

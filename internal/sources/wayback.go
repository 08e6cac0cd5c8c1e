package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/browsint/browsint/internal/metrics"
)

// WaybackSnapshots asks the CDX index for the latest captures of a domain.
func (c *Client) WaybackSnapshots(ctx context.Context, domain string) Payload {
	endpoint := fmt.Sprintf("%s/cdx/search/cdx?url=%s&output=json&fl=timestamp,original&limit=-5",
		c.cfg.WaybackBaseURL, url.QueryEscape(domain))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Errf("wayback request build: %v", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveSourceLookup("wayback", "error")
		return Errf("wayback request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		metrics.ObserveSourceLookup("wayback", "error")
		return Errf("wayback returned %d", resp.StatusCode)
	}

	// CDX JSON output is a row-oriented array whose first row names fields.
	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		metrics.ObserveSourceLookup("wayback", "error")
		return Errf("wayback response parse: %v", err)
	}

	snapshots := make([]Payload, 0, len(rows))
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		timestamp, original := row[0], row[1]
		snapshots = append(snapshots, Payload{
			"timestamp":   timestamp,
			"url":         original,
			"archive_url": fmt.Sprintf("https://web.archive.org/web/%s/%s", timestamp, original),
		})
	}
	metrics.ObserveSourceLookup("wayback", "ok")
	return Payload{
		"snapshot_count":   len(snapshots),
		"latest_snapshots": snapshots,
	}
}

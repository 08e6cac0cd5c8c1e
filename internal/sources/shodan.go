package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"

	"go.uber.org/zap"

	"github.com/browsint/browsint/internal/metrics"
)

type shodanHost struct {
	Ports     []int    `json:"ports"`
	Hostnames []string `json:"hostnames"`
	Org       string   `json:"org"`
	ISP       string   `json:"isp"`
	Vulns     []string `json:"vulns"`
	OS        string   `json:"os"`
	LastSeen  string   `json:"last_update"`
}

// ShodanHosts looks up host intelligence for each address and merges the
// results into one summary. One address failing is recorded per-address in
// data_by_ip and never aborts the batch.
func (c *Client) ShodanHosts(ctx context.Context, ips []string) Payload {
	key, ok := c.creds.Get(ServiceShodan)
	if !ok {
		return Errf("Shodan API key not configured")
	}

	dataByIP := Payload{}
	ports := map[int]struct{}{}
	hostnames := map[string]struct{}{}
	orgs := map[string]struct{}{}
	isps := map[string]struct{}{}
	vulns := map[string]struct{}{}

	for _, ip := range ips {
		host, err := c.shodanHost(ctx, ip, key)
		if err != nil {
			metrics.ObserveSourceLookup("shodan", "error")
			c.logger.Warn("shodan lookup failed", zap.String("ip", ip), zap.Error(err))
			dataByIP[ip] = Errf("%v", err)
			continue
		}
		metrics.ObserveSourceLookup("shodan", "ok")
		dataByIP[ip] = Payload{
			"ports":       host.Ports,
			"hostnames":   host.Hostnames,
			"org":         host.Org,
			"isp":         host.ISP,
			"vulns":       host.Vulns,
			"os":          host.OS,
			"last_update": host.LastSeen,
		}
		for _, p := range host.Ports {
			ports[p] = struct{}{}
		}
		for _, h := range host.Hostnames {
			hostnames[h] = struct{}{}
		}
		if host.Org != "" {
			orgs[host.Org] = struct{}{}
		}
		if host.ISP != "" {
			isps[host.ISP] = struct{}{}
		}
		for _, v := range host.Vulns {
			vulns[v] = struct{}{}
		}
	}

	return Payload{
		"ips_queried": len(ips),
		"data_by_ip":  dataByIP,
		"summary": Payload{
			"ports":           sortedInts(ports),
			"hostnames":       sortedStrings(hostnames),
			"organizations":   sortedStrings(orgs),
			"isps":            sortedStrings(isps),
			"vulnerabilities": sortedStrings(vulns),
		},
	}
}

func (c *Client) shodanHost(ctx context.Context, ip, key string) (*shodanHost, error) {
	endpoint := fmt.Sprintf("%s/shodan/host/%s?key=%s", c.cfg.ShodanBaseURL, url.PathEscape(ip), url.QueryEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shodan returned %d", resp.StatusCode)
	}
	var host shodanHost
	if err := json.Unmarshal(body, &host); err != nil {
		return nil, fmt.Errorf("shodan response parse: %w", err)
	}
	return &host, nil
}

func sortedInts(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

func sortedStrings(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

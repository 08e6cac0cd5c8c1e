package robots

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// TextFetcher is the slice of the fetch layer the analyzer needs.
type TextFetcher interface {
	Text(ctx context.Context, rawURL string, force bool) (string, bool)
}

// Analyzer fetches and caches parsed robots.txt data per host.
type Analyzer struct {
	fetcher TextFetcher
	logger  *zap.Logger
	cache   sync.Map // host -> *Data
}

// NewAnalyzer builds an Analyzer over the given fetcher.
func NewAnalyzer(fetcher TextFetcher, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{fetcher: fetcher, logger: logger}
}

// Get returns the parsed robots data for a site, fetching it on first use.
// An unreachable or missing robots.txt yields an empty rule set, which
// allows everything.
func (a *Analyzer) Get(ctx context.Context, site string) *Data {
	base, host := normalizeSite(site)
	if host == "" {
		return &Data{BaseURL: base}
	}
	if cached, ok := a.cache.Load(host); ok {
		return cached.(*Data)
	}

	robotsURL := base + "/robots.txt"
	text, ok := a.fetcher.Text(ctx, robotsURL, true)
	if !ok {
		a.logger.Debug("robots.txt unavailable", zap.String("url", robotsURL))
		// Remember the miss so a multi-page sweep of the same host does
		// not refetch robots.txt on every page.
		empty := &Data{BaseURL: base}
		a.cache.Store(host, empty)
		return empty
	}

	data := Parse(text, base)
	a.cache.Store(host, data)
	return data
}

// Allowed reports whether the URL's path is permitted by the site's
// wildcard rules.
func (a *Analyzer) Allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	data := a.Get(ctx, parsed.Scheme+"://"+parsed.Host)
	return data.Allowed(parsed.Path)
}

func normalizeSite(site string) (base, host string) {
	site = strings.TrimSpace(site)
	if site == "" {
		return "", ""
	}
	if !strings.Contains(site, "://") {
		site = "https://" + site
	}
	parsed, err := url.Parse(site)
	if err != nil || parsed.Host == "" {
		return site, ""
	}
	return parsed.Scheme + "://" + parsed.Host, parsed.Host
}

// Package sources implements the OSINT source adapters. Every adapter
// normalizes its result into a generic Payload; failures of any kind
// (HTTP errors, malformed responses, missing credentials, library faults)
// become an {"error": ...} payload and never escape as errors or panics.
package sources

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/likexian/whois"
	"go.uber.org/zap"

	"github.com/browsint/browsint/internal/fetch"
)

// Payload is the normalized success-or-error result of one adapter call.
type Payload = map[string]any

// Errf builds the error shape every adapter uses.
func Errf(format string, args ...any) Payload {
	return Payload{"error": fmt.Sprintf(format, args...)}
}

// IsErr reports whether a payload carries the error shape.
func IsErr(p Payload) bool {
	_, ok := p["error"]
	return ok
}

// Credential service names.
const (
	ServiceShodan = "shodan"
	ServiceHunter = "hunterio"
	ServiceHIBP   = "hibp"
)

// Credentials maps a service name to its API key. A missing key makes the
// adapter short-circuit with an error payload without attempting the call.
type Credentials map[string]string

// Get returns the key for a service and whether it is set.
func (c Credentials) Get(service string) (string, bool) {
	key, ok := c[service]
	return key, ok && key != ""
}

// ScanPolicy decides, ahead of time, whether cost-gated scans may run.
// There is no interactive prompting; the policy is resolved before the
// pipeline starts.
type ScanPolicy interface {
	AllowExpensiveScan(target, source string) bool
}

// StaticPolicy is a pre-resolved yes/no ScanPolicy.
type StaticPolicy bool

// AllowExpensiveScan implements ScanPolicy.
func (p StaticPolicy) AllowExpensiveScan(string, string) bool { return bool(p) }

// PageFetcher is the slice of the fetch layer the adapters use.
type PageFetcher interface {
	Text(ctx context.Context, rawURL string, force bool) (string, bool)
	Full(ctx context.Context, rawURL string) (*fetch.Response, bool)
}

// PathChecker gates crawled paths, typically a robots analyzer.
type PathChecker interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// Config tunes the adapters. Base URLs are overridable for tests.
type Config struct {
	HTTPTimeout    time.Duration
	ShodanBaseURL  string
	HunterBaseURL  string
	HIBPBaseURL    string
	WaybackBaseURL string
	UserAgent      string
}

// Client bundles the adapters with their shared dependencies.
type Client struct {
	cfg     Config
	creds   Credentials
	policy  ScanPolicy
	fetcher PageFetcher
	robots  PathChecker
	http    *http.Client
	logger  *zap.Logger

	// Seams for tests.
	whoisFn     func(target string) (string, error)
	dnsExchange exchangeFunc
}

// NewClient builds the adapter set. fetcher and robots may be nil when the
// page-crawling adapters are unused.
func NewClient(cfg Config, creds Credentials, policy ScanPolicy, fetcher PageFetcher, robots PathChecker, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}
	if policy == nil {
		policy = StaticPolicy(false)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Browsint/1.0"
	}
	c := &Client{
		cfg:     cfg,
		creds:   creds,
		policy:  policy,
		fetcher: fetcher,
		robots:  robots,
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
		logger:  logger,
	}
	c.whoisFn = func(target string) (string, error) { return whois.Whois(target) }
	c.dnsExchange = defaultExchange
	return c
}

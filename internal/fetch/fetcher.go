// Package fetch implements the polite, cached, retrying HTTP fetch layer.
// All fetching is synchronous; callers that want parallelism must do their
// own politeness accounting.
package fetch

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // cache file naming, not security
	"encoding/hex"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/browsint/browsint/internal/metrics"
)

// Response is the full result of one live fetch.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	FinalURL   string
	Encoding   string
}

// Config tunes the fetcher.
type Config struct {
	UserAgent string
	CacheDir  string
	// DelayMin/DelayMax bound the enforced inter-request delay window.
	DelayMin time.Duration
	DelayMax time.Duration
	Timeout  time.Duration
	Retries  int
}

// Fetcher performs polite HTTP GETs with an on-disk page cache. A single
// shared clock spaces requests regardless of target host.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger

	mu          sync.Mutex
	lastRequest time.Time

	// Seams for tests.
	now       func() time.Time
	sleep     func(time.Duration)
	randFloat func() float64
}

// New constructs a Fetcher and creates the cache directory when set.
func New(cfg Config, logger *zap.Logger) (*Fetcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.DelayMax < cfg.DelayMin {
		cfg.DelayMax = cfg.DelayMin
	}
	if cfg.CacheDir != "" {
		if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
			return nil, err
		}
	}

	base := colly.NewCollector(colly.UserAgent(cfg.UserAgent))
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: base,
		logger:        logger,
		now:           time.Now,
		sleep:         time.Sleep,
		randFloat:     rand.Float64,
	}, nil
}

// Text returns the decoded page body for a URL. The disk cache, keyed by
// an MD5 digest of the URL, is consulted unless force is set and written
// through after any successful 2xx fetch. Failures return ok=false.
func (f *Fetcher) Text(ctx context.Context, rawURL string, force bool) (string, bool) {
	cachePath := f.cachePath(rawURL)
	if !force && cachePath != "" {
		if body, err := os.ReadFile(cachePath); err == nil {
			metrics.ObserveFetch("cached", 0)
			return string(body), true
		}
	}

	resp, ok := f.Full(ctx, rawURL)
	if !ok {
		return "", false
	}
	text := decodeBody(resp)
	if cachePath != "" && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := os.WriteFile(cachePath, []byte(text), 0o644); err != nil {
			f.logger.Warn("cache write failed", zap.String("url", rawURL), zap.Error(err))
		}
	}
	return text, true
}

// Full performs a live fetch, bypassing the cache entirely: callers of the
// full accessor need current headers and status. Transport failures are
// retried with randomized, attempt-scaled backoff; after exhaustion the
// result is absent and logged, never an error.
func (f *Fetcher) Full(ctx context.Context, rawURL string) (*Response, bool) {
	f.waitPoliteness()

	attempts := f.cfg.Retries
	if attempts < 1 {
		attempts = 1
	}
	start := f.now()
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			metrics.ObserveFetch("failed", f.now().Sub(start).Seconds())
			return nil, false
		}
		resp, err := f.attempt(ctx, rawURL)
		if err == nil {
			metrics.ObserveFetch("ok", f.now().Sub(start).Seconds())
			return resp, true
		}
		f.logger.Warn("fetch attempt failed",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < attempts {
			backoff := time.Duration((2 + 3*f.randFloat()) * float64(attempt) * float64(time.Second))
			f.sleep(backoff)
		}
	}
	f.logger.Error("fetch failed after retries", zap.String("url", rawURL), zap.Int("retries", attempts))
	metrics.ObserveFetch("failed", f.now().Sub(start).Seconds())
	return nil, false
}

// attempt issues one GET through a collector clone. Non-2xx statuses are
// responses, not failures; only transport errors surface as errors.
func (f *Fetcher) attempt(ctx context.Context, rawURL string) (*Response, error) {
	collector := f.baseCollector.Clone()
	resultCh := make(chan attemptResult, 1)
	var once sync.Once
	send := func(res attemptResult) {
		once.Do(func() { resultCh <- res })
	}

	collector.OnResponse(func(r *colly.Response) {
		send(attemptResult{resp: responseFromColly(r, rawURL)})
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			send(attemptResult{resp: responseFromColly(r, rawURL)})
			return
		}
		if err == nil {
			err = errors.New("unknown fetch error")
		}
		send(attemptResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return nil, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return res.resp, res.err
	default:
		return nil, errors.New("fetch produced no result")
	}
}

type attemptResult struct {
	resp *Response
	err  error
}

func responseFromColly(r *colly.Response, rawURL string) *Response {
	headers := http.Header{}
	if r.Headers != nil {
		for k, v := range *r.Headers {
			cp := make([]string, len(v))
			copy(cp, v)
			headers[k] = cp
		}
	}
	finalURL := rawURL
	if r.Request != nil && r.Request.URL != nil {
		finalURL = r.Request.URL.String()
	}
	resp := &Response{
		StatusCode: r.StatusCode,
		Body:       append([]byte{}, r.Body...),
		Headers:    headers,
		FinalURL:   finalURL,
	}
	_, name, _ := charset.DetermineEncoding(resp.Body, headers.Get("Content-Type"))
	resp.Encoding = name
	return resp
}

// waitPoliteness blocks until the inter-request window has elapsed. The
// required spacing is sampled uniformly from [DelayMin, DelayMax] so call
// timing does not form a fixed signature.
func (f *Fetcher) waitPoliteness() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cfg.DelayMin > 0 && !f.lastRequest.IsZero() {
		window := f.cfg.DelayMin
		if span := f.cfg.DelayMax - f.cfg.DelayMin; span > 0 {
			window += time.Duration(f.randFloat() * float64(span))
		}
		elapsed := f.now().Sub(f.lastRequest)
		if elapsed < window {
			wait := window - elapsed
			if metrics.PolitenessWait != nil {
				metrics.PolitenessWait.Observe(wait.Seconds())
			}
			f.sleep(wait)
		}
	}
	f.lastRequest = f.now()
}

func (f *Fetcher) cachePath(rawURL string) string {
	if f.cfg.CacheDir == "" {
		return ""
	}
	sum := md5.Sum([]byte(rawURL)) //nolint:gosec // cache key only
	return filepath.Join(f.cfg.CacheDir, hex.EncodeToString(sum[:])+".html")
}

func decodeBody(resp *Response) string {
	reader, err := charset.NewReader(bytes.NewReader(resp.Body), resp.Headers.Get("Content-Type"))
	if err != nil {
		return string(resp.Body)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return string(resp.Body)
	}
	return string(decoded)
}

package webtech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/browsint/browsint/internal/fetch"
	"github.com/browsint/browsint/internal/robots"
	"github.com/browsint/browsint/internal/store"
)

// PageFetcher is the slice of the fetch layer the analyzer needs.
type PageFetcher interface {
	Full(ctx context.Context, rawURL string) (*fetch.Response, bool)
}

// RobotsSource provides parsed robots.txt data for a site.
type RobotsSource interface {
	Get(ctx context.Context, site string) *robots.Data
}

// Report is the technology fingerprint of one analyzed page.
type Report struct {
	URL             string            `json:"url"`
	FinalURL        string            `json:"final_url"`
	StatusCode      int               `json:"status_code"`
	WebServer       string            `json:"web_server,omitempty"`
	Frameworks      []string          `json:"frameworks"`
	JSLibraries     []string          `json:"js_libraries"`
	SecurityHeaders map[string]string `json:"security_headers"`
	MissingHeaders  []string          `json:"missing_headers"`
	Analytics       []string          `json:"analytics"`
	MetaTags        map[string]string `json:"meta_tags"`
	RobotsSensitive []string          `json:"robots_sensitive"`
	RobotsSitemaps  []string          `json:"robots_sitemaps"`
}

// Analyzer fetches a page, fingerprints it and records the result in the
// web store.
type Analyzer struct {
	fetcher PageFetcher
	robots  RobotsSource
	store   *store.Store
	logger  *zap.Logger
}

// NewAnalyzer builds an Analyzer. The robots source and store may be nil;
// the corresponding report sections and persistence are then skipped.
func NewAnalyzer(fetcher PageFetcher, robotsSource RobotsSource, st *store.Store, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{fetcher: fetcher, robots: robotsSource, store: st, logger: logger}
}

// Analyze fingerprints a site or page URL. Bare domains are tried over
// https first, then http. The report is persisted before returning.
func (a *Analyzer) Analyze(ctx context.Context, target string) (*Report, error) {
	candidates := candidateURLs(target)

	var resp *fetch.Response
	var requested string
	for _, u := range candidates {
		r, ok := a.fetcher.Full(ctx, u)
		if ok && r.StatusCode >= 200 && r.StatusCode < 400 {
			resp, requested = r, u
			break
		}
		if resp == nil && ok {
			resp, requested = r, u
		}
	}
	if resp == nil {
		return nil, fmt.Errorf("fetch %s: no response from any candidate URL", target)
	}

	report := &Report{
		URL:        requested,
		FinalURL:   resp.FinalURL,
		StatusCode: resp.StatusCode,
		WebServer:  resp.Headers.Get("Server"),
	}

	html := string(resp.Body)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		a.logger.Warn("page did not parse as HTML", zap.String("url", requested), zap.Error(err))
		doc = nil
	}

	report.Frameworks = Frameworks(doc, resp.Headers, resp.FinalURL)
	report.JSLibraries = JSLibraries(doc, html)
	report.SecurityHeaders, report.MissingHeaders = SecurityHeaders(resp.Headers)
	report.Analytics = Analytics(html)
	report.MetaTags = MetaTags(doc)

	if a.robots != nil {
		if data := a.robots.Get(ctx, siteOf(requested)); data != nil {
			report.RobotsSensitive = data.SensitivePaths
			report.RobotsSitemaps = data.Sitemaps
		}
	}

	if a.store != nil {
		if err := a.persist(ctx, report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

func (a *Analyzer) persist(ctx context.Context, r *Report) error {
	_, err := a.store.Exec(ctx, store.Web, `
		INSERT INTO site_analysis (
			url, final_url, status_code, web_server,
			frameworks, js_libraries, security_headers, missing_headers,
			analytics, meta_tags, robots_sensitive, robots_sitemaps
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.URL, r.FinalURL, r.StatusCode, r.WebServer,
		asJSON(r.Frameworks), asJSON(r.JSLibraries),
		asJSON(r.SecurityHeaders), asJSON(r.MissingHeaders),
		asJSON(r.Analytics), asJSON(r.MetaTags),
		asJSON(r.RobotsSensitive), asJSON(r.RobotsSitemaps))
	if err != nil {
		return fmt.Errorf("record site analysis: %w", err)
	}
	return nil
}

// candidateURLs expands a bare domain into scheme-qualified attempts and
// passes through already qualified URLs untouched.
func candidateURLs(target string) []string {
	target = strings.TrimSpace(target)
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return []string{target}
	}
	return []string{"https://" + target, "http://" + target}
}

func siteOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}

func asJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

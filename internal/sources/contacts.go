package sources

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/browsint/browsint/internal/extract"
	"github.com/browsint/browsint/internal/metrics"
)

// Paths where sites usually expose contact details. The root page is
// always included.
var contactPagePaths = []string{
	"",
	"/contact", "/contact-us", "/contatti", "/contacto",
	"/about", "/about-us", "/chi-siamo",
	"/privacy-policy", "/impressum", "/team",
}

// WebsiteContacts sweeps a site's likely contact pages and extracts
// filtered emails and phone numbers. HTTPS is preferred with a plain HTTP
// fallback per page; robots-disallowed paths are skipped.
func (c *Client) WebsiteContacts(ctx context.Context, domain string) Payload {
	if c.fetcher == nil {
		return Errf("page fetcher not configured")
	}

	emailSet := map[string]struct{}{}
	phoneSet := map[string]struct{}{}
	checked := 0

	for _, path := range contactPagePaths {
		if ctx.Err() != nil {
			break
		}
		text, ok := c.fetchContactPage(ctx, domain, path)
		if !ok {
			continue
		}
		checked++
		for _, email := range extract.Emails(text) {
			emailSet[email] = struct{}{}
		}
		for _, phone := range extract.FilterPhones(extract.Phones(text, "")) {
			phoneSet[phone] = struct{}{}
		}
	}

	emails := extract.FilterEmails(setToSlice(emailSet), domain, false)
	phones := setToSlice(phoneSet)
	c.logger.Debug("website contact sweep done",
		zap.String("domain", domain),
		zap.Int("pages_checked", checked),
		zap.Int("emails", len(emails)),
		zap.Int("phones", len(phones)))
	metrics.ObserveSourceLookup("website", "ok")

	return Payload{
		"emails":        emails,
		"phones":        phones,
		"pages_checked": checked,
	}
}

func (c *Client) fetchContactPage(ctx context.Context, domain, path string) (string, bool) {
	for _, scheme := range []string{"https://", "http://"} {
		pageURL := scheme + domain + path
		if c.robots != nil && !c.robots.Allowed(ctx, pageURL) {
			c.logger.Debug("path disallowed by robots", zap.String("url", pageURL))
			return "", false
		}
		if text, ok := c.fetcher.Text(ctx, pageURL, false); ok {
			return text, true
		}
	}
	return "", false
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

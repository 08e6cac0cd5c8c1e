// Package webtech analyzes fetched pages for frameworks, JavaScript
// libraries, analytics beacons and security headers.
package webtech

import (
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// securityHeaders maps response header names to the short label reported
// for them.
var securityHeaders = []struct {
	header string
	label  string
}{
	{"Strict-Transport-Security", "HSTS"},
	{"Content-Security-Policy", "CSP"},
	{"X-Frame-Options", "X-Frame-Options"},
	{"X-Content-Type-Options", "X-Content-Type-Options"},
	{"Referrer-Policy", "Referrer-Policy"},
	{"Permissions-Policy", "Permissions-Policy"},
	{"X-XSS-Protection", "X-XSS-Protection"},
}

var jsLibraryPatterns = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"jQuery", regexp.MustCompile(`(?i)jquery[.\-]`)},
	{"React", regexp.MustCompile(`(?i)react(\.production|\.development|[.\-]dom)`)},
	{"AngularJS", regexp.MustCompile(`(?i)angular(\.min)?\.js`)},
	{"Angular", regexp.MustCompile(`(?i)main\.[0-9a-f]+\.js|zone\.js`)},
	{"Vue.js", regexp.MustCompile(`(?i)vue(\.runtime)?(\.global)?(\.min)?\.js`)},
	{"Bootstrap JS", regexp.MustCompile(`(?i)bootstrap(\.bundle)?(\.min)?\.js`)},
	{"Lodash", regexp.MustCompile(`(?i)lodash(\.min)?\.js`)},
	{"Moment.js", regexp.MustCompile(`(?i)moment(\.min)?\.js`)},
	{"GSAP", regexp.MustCompile(`(?i)gsap(\.min)?\.js|TweenMax`)},
	{"D3.js", regexp.MustCompile(`(?i)\bd3(\.v\d+)?(\.min)?\.js`)},
}

var analyticsPatterns = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"Google Analytics", regexp.MustCompile(`(?i)google-analytics\.com|gtag\(`)},
	{"Google Tag Manager", regexp.MustCompile(`(?i)googletagmanager\.com|GTM-[A-Z0-9]+`)},
	{"Facebook Pixel", regexp.MustCompile(`(?i)connect\.facebook\.net|fbq\(`)},
	{"Matomo", regexp.MustCompile(`(?i)matomo\.js|piwik\.js`)},
	{"Hotjar", regexp.MustCompile(`(?i)static\.hotjar\.com|hjid`)},
	{"HubSpot", regexp.MustCompile(`(?i)js\.hs-scripts\.com|hubspot`)},
}

// Frameworks detects the CMS/framework behind a page from its generator
// meta tag, server headers, asset paths and URL shape. Empty when nothing
// matched.
func Frameworks(doc *goquery.Document, headers http.Header, pageURL string) []string {
	var found []string
	add := func(name string) {
		for _, f := range found {
			if f == name {
				return
			}
		}
		found = append(found, name)
	}

	if doc != nil {
		doc.Find("meta").Each(func(_ int, sel *goquery.Selection) {
			name, _ := sel.Attr("name")
			if !strings.EqualFold(name, "generator") {
				return
			}
			if content, ok := sel.Attr("content"); ok && strings.TrimSpace(content) != "" {
				add(strings.TrimSpace(content))
			}
		})
	}
	for _, h := range []string{"X-Powered-By", "X-Generator"} {
		if v := headers.Get(h); v != "" {
			add(v)
		}
	}

	var html string
	if doc != nil {
		html, _ = doc.Html()
	}
	lower := strings.ToLower(html)
	switch {
	case strings.Contains(lower, "wp-content") || strings.Contains(lower, "wp-includes"):
		add("WordPress")
	case strings.Contains(lower, "/sites/default/files") || strings.Contains(lower, "drupal"):
		add("Drupal")
	case strings.Contains(lower, "/media/jui/") || strings.Contains(lower, "joomla"):
		add("Joomla")
	}
	if strings.Contains(lower, "cdn.shopify.com") || strings.Contains(lower, "powered by shopify") {
		add("Shopify")
	}
	if strings.Contains(lower, "squarespace.com") {
		add("Squarespace")
	}
	if strings.Contains(lower, "wix.com") || strings.Contains(lower, "wixstatic.com") {
		add("Wix")
	}

	lowerURL := strings.ToLower(pageURL)
	if strings.Contains(lowerURL, "/wp-admin") || strings.Contains(lowerURL, "/wp-login") {
		add("WordPress")
	}
	return found
}

// JSLibraries scans script sources first, then falls back to loose content
// heuristics reported with a "(likely)" suffix.
func JSLibraries(doc *goquery.Document, html string) []string {
	found := make(map[string]struct{})
	if doc != nil {
		doc.Find("script[src]").Each(func(_ int, sel *goquery.Selection) {
			src, _ := sel.Attr("src")
			for _, lib := range jsLibraryPatterns {
				if lib.pattern.MatchString(src) {
					found[lib.name] = struct{}{}
				}
			}
		})
	}
	if strings.Contains(html, "window.jQuery") || strings.Contains(html, "jQuery(") {
		if _, ok := found["jQuery"]; !ok {
			found["jQuery (likely)"] = struct{}{}
		}
	}
	if strings.Contains(html, "data-reactroot") || strings.Contains(html, "__NEXT_DATA__") {
		if _, ok := found["React"]; !ok {
			found["React (likely)"] = struct{}{}
		}
	}
	if strings.Contains(html, "ng-app") || strings.Contains(html, "ng-controller") {
		if _, ok := found["AngularJS"]; !ok {
			found["AngularJS (likely)"] = struct{}{}
		}
	}
	if strings.Contains(html, "v-for=") || strings.Contains(html, "v-if=") {
		if _, ok := found["Vue.js"]; !ok {
			found["Vue.js (likely)"] = struct{}{}
		}
	}

	out := make([]string, 0, len(found))
	for name := range found {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SecurityHeaders splits the watched response headers into present
// (label -> value) and missing (labels).
func SecurityHeaders(headers http.Header) (present map[string]string, missing []string) {
	present = make(map[string]string)
	for _, sh := range securityHeaders {
		if v := headers.Get(sh.header); v != "" {
			present[sh.label] = v
		} else {
			missing = append(missing, sh.label)
		}
	}
	return present, missing
}

// Analytics detects tracking/analytics beacons from page content.
func Analytics(html string) []string {
	var found []string
	for _, a := range analyticsPatterns {
		if a.pattern.MatchString(html) {
			found = append(found, a.name)
		}
	}
	return found
}

// MetaTags collects name/property -> content pairs.
func MetaTags(doc *goquery.Document) map[string]string {
	tags := make(map[string]string)
	if doc == nil {
		return tags
	}
	doc.Find("meta").Each(func(_ int, sel *goquery.Selection) {
		key, ok := sel.Attr("name")
		if !ok || key == "" {
			key, _ = sel.Attr("property")
		}
		content, _ := sel.Attr("content")
		if key != "" && content != "" {
			tags[strings.ToLower(key)] = content
		}
	})
	return tags
}

// Package robots parses robots.txt files into ordered rule sets and
// evaluates path permissions, flagging administrative-looking paths.
package robots

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Rule is one Allow/Disallow directive in file order.
type Rule struct {
	Path      string `json:"path"`
	Allow     bool   `json:"allow"`
	Sensitive bool   `json:"sensitive"`
}

// Data is the parsed view of one robots.txt file. Rules keep file order;
// only the wildcard user-agent block contributes rules and crawl delay.
type Data struct {
	BaseURL        string   `json:"base_url"`
	Rules          []Rule   `json:"rules"`
	Sitemaps       []string `json:"sitemaps"`
	SensitivePaths []string `json:"sensitive_paths"`
	CrawlDelay     float64  `json:"crawl_delay"`
}

var sensitivePatterns = compilePatterns([]string{
	"admin", "backup", "staging", "dev", "test", "beta",
	"wp-admin", "administrator", "login", "user", "console",
	"dashboard", "private", "secret", "internal", "config",
	"setup", "install", "phpmy", "sql", "database", "db",
	"temp", "tmp", "old", "bak",
	`\.git`, `\.svn`, `\.env`,
	"api/internal", "api/private", `api/v\d+/admin`,
})

func compilePatterns(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile("(?i)"+p))
	}
	return out
}

// Parse walks the file line by line tracking the active user-agent block.
// Non-wildcard blocks are skipped; Sitemap lines apply file-wide.
func Parse(text, baseURL string) *Data {
	data := &Data{BaseURL: baseURL}
	seenSensitive := make(map[string]struct{})
	inWildcard := false

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			inWildcard = value == "*"
		case "sitemap":
			if value != "" {
				data.Sitemaps = append(data.Sitemaps, value)
			}
		case "allow", "disallow":
			if !inWildcard || value == "" {
				continue
			}
			rule := Rule{
				Path:      value,
				Allow:     key == "allow",
				Sensitive: IsSensitivePath(value),
			}
			data.Rules = append(data.Rules, rule)
			if rule.Sensitive {
				if _, dup := seenSensitive[value]; !dup {
					seenSensitive[value] = struct{}{}
					data.SensitivePaths = append(data.SensitivePaths, value)
				}
			}
		case "crawl-delay":
			if !inWildcard {
				continue
			}
			if delay, err := strconv.ParseFloat(value, 64); err == nil && delay >= 0 {
				data.CrawlDelay = delay
			}
		}
	}
	return data
}

// IsSensitivePath reports whether a rule path matches the fixed list of
// administrative or internal-looking fragments.
func IsSensitivePath(path string) bool {
	for _, p := range sensitivePatterns {
		if p.MatchString(path) {
			return true
		}
	}
	return false
}

// Allowed resolves the longest matching rule path for the given URL path;
// most specific wins, default allow when nothing matches.
func (d *Data) Allowed(path string) bool {
	if d == nil || len(d.Rules) == 0 {
		return true
	}
	if path == "" {
		path = "/"
	}
	rules := make([]Rule, len(d.Rules))
	copy(rules, d.Rules)
	sort.SliceStable(rules, func(i, j int) bool {
		return len(rules[i].Path) > len(rules[j].Path)
	})
	for _, rule := range rules {
		if strings.HasPrefix(path, rule.Path) {
			return rule.Allow
		}
	}
	return true
}

// Package extract implements contact extraction and noise filtering for
// emails, phone numbers and domain identifiers found in arbitrary text.
package extract

import (
	"regexp"
	"sort"
	"strings"
)

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9][A-Za-z0-9._%+-]{1,64}@(?:[A-Za-z0-9-]{1,63}\.){1,8}[A-Za-z]{2,63}\b`)

// Domains that only ever appear in documentation snippets and templates.
var placeholderDomains = map[string]struct{}{
	"example.com":    {},
	"domain.com":     {},
	"yoursite.com":   {},
	"yourdomain.com": {},
	"example.org":    {},
	"email.com":      {},
	"test.com":       {},
	"sample.com":     {},
}

// Registrar, privacy-proxy and error-tracker domains that show up in WHOIS
// payloads and page source but are never a real point of contact.
var serviceDomains = map[string]struct{}{
	"sentry.io":                {},
	"sentry.wixpress.com":      {},
	"sentry-next.wixpress.com": {},
	"contactprivacy.com":       {},
	"whois.tucows.com":         {},
	"domainsbyproxy.com":       {},
	"secureserver.net":         {},
	"hostmaster.sk":            {},
	"nic.it":                   {},
}

// Local parts containing any of these terms are kept even when the domain
// does not match the profiling target.
var meaningfulTerms = []string{
	"info", "contact", "support", "hello", "sales", "admin",
	"contatti", "assistenza", "ufficio", "office", "segreteria",
	"privacy", "legal", "team", "staff", "help", "customer",
	"clienti", "richieste", "richiesta", "partnerships", "marketing",
}

var assetExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg",
	".css", ".js", ".pdf", ".doc", ".mp3", ".mp4",
}

var (
	md5LocalPattern  = regexp.MustCompile(`^[0-9a-f]{32}@`)
	uuidLocalPattern = regexp.MustCompile(`^[0-9a-f]{8}-?[0-9a-f]{4}-?[0-9a-f]{4}-?[0-9a-f]{4}-?[0-9a-f]{12}$`)
	longHexPattern   = regexp.MustCompile(`^[0-9a-f]{12,64}$`)
)

// Emails scans text for email candidates and drops the obvious noise:
// placeholder domains, hash-shaped local parts, keyboard smash and
// addresses that are really asset filenames.
func Emails(text string) []string {
	seen := make(map[string]struct{})
	for _, match := range emailPattern.FindAllString(text, -1) {
		email := strings.ToLower(match)
		local, domain, ok := splitEmail(email)
		if !ok {
			continue
		}
		if _, excluded := placeholderDomains[domain]; excluded {
			continue
		}
		if md5LocalPattern.MatchString(email) {
			continue
		}
		if uuidLocalPattern.MatchString(local) {
			continue
		}
		if len(local) > 4 && distinctChars(local) <= 2 {
			continue
		}
		if hasAssetExtension(email) {
			continue
		}
		seen[email] = struct{}{}
	}
	return sortedKeys(seen)
}

// FilterEmails applies the domain-scoped second pass: service domains are
// dropped unless keepService, hash-shaped local parts are dropped, and the
// remainder is kept only on a target-domain match or a meaningful local
// part. Everything else is dropped.
func FilterEmails(emails []string, targetDomain string, keepService bool) []string {
	target := strings.ToLower(strings.TrimSpace(targetDomain))
	bare := strings.TrimPrefix(target, "www.")

	kept := make(map[string]struct{})
	for _, raw := range emails {
		email := strings.ToLower(strings.TrimSpace(raw))
		local, domain, ok := splitEmail(email)
		if !ok {
			continue
		}
		if !keepService {
			if _, svc := serviceDomains[domain]; svc {
				continue
			}
		}
		if uuidLocalPattern.MatchString(local) || longHexPattern.MatchString(local) {
			continue
		}
		if target != "" && (domain == target || domain == "mail."+target || domain == bare) {
			kept[email] = struct{}{}
			continue
		}
		if containsMeaningfulTerm(local) {
			kept[email] = struct{}{}
		}
	}
	return sortedKeys(kept)
}

func splitEmail(email string) (local, domain string, ok bool) {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", "", false
	}
	return email[:at], email[at+1:], true
}

func containsMeaningfulTerm(local string) bool {
	for _, term := range meaningfulTerms {
		if strings.Contains(local, term) {
			return true
		}
	}
	return false
}

func hasAssetExtension(s string) bool {
	for _, ext := range assetExtensions {
		if strings.HasSuffix(s, ext) {
			return true
		}
	}
	return false
}

func distinctChars(s string) int {
	set := make(map[rune]struct{}, len(s))
	for _, r := range s {
		set[r] = struct{}{}
	}
	return len(set)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

package extract

import "strings"

// ValidateDomain normalizes a user-supplied domain: scheme, path, query,
// port and a leading www. are stripped and the result lowercased. Returns
// the cleaned domain and whether it is syntactically valid.
func ValidateDomain(raw string) (string, bool) {
	d := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexAny(d, "/?"); i >= 0 {
		d = d[:i]
	}
	if i := strings.Index(d, ":"); i >= 0 {
		d = d[:i]
	}
	d = strings.TrimPrefix(d, "www.")

	if d == "" {
		return "", false
	}
	labels := strings.Split(d, ".")
	if len(labels) < 2 {
		return "", false
	}
	tld := labels[len(labels)-1]
	if len(tld) < 2 || len(tld) > 63 || !isAlpha(tld) {
		return "", false
	}
	for _, label := range labels[:len(labels)-1] {
		if !validLabel(label) {
			return "", false
		}
	}
	return d, true
}

func validLabel(label string) bool {
	if len(label) < 1 || len(label) > 63 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-' {
			continue
		}
		return false
	}
	return true
}

func isAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return true
}

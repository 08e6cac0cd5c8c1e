// Package profile implements entity resolution and the profile store:
// canonical entities, per-source snapshots, contact extraction and full
// profile assembly.
package profile

import (
	"time"

	"github.com/browsint/browsint/internal/sources"
)

// NormalizeJSON returns a copy of v with every time.Time rendered as an
// ISO-8601 string, recursively through maps and slices, so payloads are
// stable under JSON round-trips.
func NormalizeJSON(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = NormalizeJSON(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = NormalizeJSON(val)
		}
		return out
	default:
		return v
	}
}

// StructuredFields derives the small flattened summary stored next to the
// raw snapshot, keyed by source kind.
func StructuredFields(source string, data map[string]any) map[string]any {
	out := map[string]any{}
	switch source {
	case "domain":
		structuredDomainFields(out, data)
	case "email":
		structuredEmailFields(out, data)
	case "social":
		structuredSocialFields(out, data)
	}
	return out
}

func structuredDomainFields(out, data map[string]any) {
	if whois, ok := subPayload(data, "whois"); ok && !sources.IsErr(whois) {
		for _, field := range []string{"registrar", "creation_date", "expiration_date", "domain_name", "org", "name_servers"} {
			if v, present := whois[field]; present {
				out[field] = v
			}
		}
	}
	if dnsRecords, ok := subPayload(data, "dns"); ok && !sources.IsErr(dnsRecords) {
		out["dns_records"] = dnsRecords
	}
	if shodan, ok := subPayload(data, "shodan"); ok && !sources.IsErr(shodan) {
		if summary, ok := subPayload(shodan, "summary"); ok {
			out["shodan"] = map[string]any{
				"ports":         summary["ports"],
				"hostnames":     summary["hostnames"],
				"organizations": summary["organizations"],
				"isps":          summary["isps"],
			}
		}
	}
	if wayback, ok := subPayload(data, "wayback"); ok && !sources.IsErr(wayback) {
		out["wayback_snapshot_count"] = wayback["snapshot_count"]
		out["wayback_latest_snapshots"] = firstN(wayback["latest_snapshots"], 5)
	}
}

func structuredEmailFields(out, data map[string]any) {
	if hunter, ok := subPayload(data, "hunterio"); ok && !sources.IsErr(hunter) {
		for _, field := range []string{"status", "score", "disposable", "webmail"} {
			if v, present := hunter[field]; present {
				out["hunterio_"+field] = v
			}
		}
	}
	if hibp, ok := subPayload(data, "hibp"); ok && !sources.IsErr(hibp) {
		out["breach_count"] = hibp["breach_count"]
		var names []string
		for _, breach := range toSlice(hibp["breaches"]) {
			if m, ok := breach.(map[string]any); ok {
				if name, ok := m["Name"].(string); ok {
					names = append(names, name)
				}
			}
			if len(names) == 5 {
				break
			}
		}
		out["breached_sites"] = names
	}
}

func structuredSocialFields(out, data map[string]any) {
	presence := map[string]any{}
	if profiles, ok := subPayload(data, "profiles"); ok {
		for platform, v := range profiles {
			entry, ok := v.(map[string]any)
			if !ok {
				continue
			}
			if exists, _ := entry["exists"].(bool); exists {
				presence[platform] = entry["url"]
			}
		}
	}
	out["social_media_presence"] = presence
	out["platform_count"] = len(presence)
}

func subPayload(data map[string]any, key string) (map[string]any, bool) {
	v, ok := data[key].(map[string]any)
	return v, ok
}

func toSlice(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out
	}
	return nil
}

func firstN(v any, n int) []any {
	items := toSlice(v)
	if len(items) > n {
		items = items[:n]
	}
	return items
}

package profile

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeJSONRendersTimes(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("CET", 3600)
	in := map[string]any{
		"when":   time.Date(2024, 6, 1, 13, 0, 0, 0, loc),
		"nested": []any{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "text"},
		"count":  3,
	}
	out := NormalizeJSON(in).(map[string]any)

	require.Equal(t, "2024-06-01T12:00:00Z", out["when"])
	require.Equal(t, "2024-01-01T00:00:00Z", out["nested"].([]any)[0])
	require.Equal(t, 3, out["count"])
	// The input tree is left untouched.
	require.IsType(t, time.Time{}, in["when"])
}

func TestStructuredFieldsDomain(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"whois": map[string]any{
			"registrar":    "Example Registrar",
			"domain_name":  "acme.test",
			"name_servers": []string{"ns1.acme.test", "ns2.acme.test"},
		},
		"dns": map[string]any{"A": []string{"1.2.3.4"}},
		"shodan": map[string]any{
			"summary": map[string]any{
				"ports":         []int{80, 443},
				"hostnames":     []string{"web.acme.test"},
				"organizations": []string{"Acme"},
				"isps":          []string{"Acme ISP"},
			},
		},
		"wayback": map[string]any{
			"snapshot_count":   7,
			"latest_snapshots": []any{"a", "b", "c", "d", "e", "f", "g"},
		},
	}
	out := StructuredFields(SourceDomain, data)

	require.Equal(t, "Example Registrar", out["registrar"])
	require.Equal(t, []string{"ns1.acme.test", "ns2.acme.test"}, out["name_servers"])
	require.Equal(t, data["dns"], out["dns_records"])
	require.Equal(t, []int{80, 443}, out["shodan"].(map[string]any)["ports"])
	require.Equal(t, 7, out["wayback_snapshot_count"])
	require.Len(t, out["wayback_latest_snapshots"], 5)
}

func TestStructuredFieldsSkipsFailedSources(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"whois": map[string]any{"error": "lookup failed"},
		"dns":   map[string]any{"A": []string{"1.2.3.4"}},
	}
	out := StructuredFields(SourceDomain, data)

	require.NotContains(t, out, "registrar")
	require.Contains(t, out, "dns_records")
}

func TestStructuredFieldsEmail(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"hunterio": map[string]any{"status": "valid", "score": 92, "disposable": false},
		"hibp": map[string]any{
			"breach_count": 2,
			"breaches": []any{
				map[string]any{"Name": "Adobe"},
				map[string]any{"Name": "LinkedIn"},
			},
		},
	}
	out := StructuredFields(SourceEmail, data)

	require.Equal(t, "valid", out["hunterio_status"])
	require.Equal(t, 92, out["hunterio_score"])
	require.Equal(t, 2, out["breach_count"])
	require.Equal(t, []string{"Adobe", "LinkedIn"}, out["breached_sites"])
}

func TestStructuredFieldsSocial(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"profiles": map[string]any{
			"GitHub":  map[string]any{"exists": true, "url": "https://github.com/acmedev"},
			"Twitter": map[string]any{"exists": false, "url": "https://twitter.com/acmedev"},
		},
	}
	out := StructuredFields(SourceSocial, data)

	presence := out["social_media_presence"].(map[string]any)
	require.Equal(t, map[string]any{"GitHub": "https://github.com/acmedev"}, presence)
	require.Equal(t, 1, out["platform_count"])
}

func TestWalkStringsVisitsEveryLeaf(t *testing.T) {
	t.Parallel()

	tree := map[string]any{
		"emails": []string{"a@acme.test", "b@acme.test"},
		"nested": map[string]any{
			"contact_email": "c@acme.test",
			"misc":          []any{"free text", 42, map[string]any{"phone": "+1 415 555 2671"}},
		},
	}

	var visited []string
	walkStrings("", tree, func(key, value string) {
		visited = append(visited, key+"="+value)
	})
	sort.Strings(visited)

	require.Equal(t, []string{
		"contact_email=c@acme.test",
		"emails=a@acme.test",
		"emails=b@acme.test",
		"misc=free text",
		"phone=+1 415 555 2671",
	}, visited)
}

func TestWalkStringsDescendsMapSlices(t *testing.T) {
	t.Parallel()

	// Adapter payloads carry record lists typed as []map[string]any
	// (breach lists, snapshot lists); their leaves must be visited too.
	tree := map[string]any{
		"breaches": []map[string]any{
			{"Name": "Adobe", "Description": "contact breach-admin@acme.test for details"},
			{"Name": "LinkedIn"},
		},
	}

	var visited []string
	walkStrings("", tree, func(_, value string) {
		visited = append(visited, value)
	})

	require.NotEmpty(t, visited)
	require.Contains(t, visited, "contact breach-admin@acme.test for details")
	require.Contains(t, visited, "LinkedIn")
}

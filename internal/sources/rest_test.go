package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func restClient(t *testing.T, handler http.Handler, creds Credentials) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := Config{
		ShodanBaseURL:  srv.URL,
		HunterBaseURL:  srv.URL,
		HIBPBaseURL:    srv.URL,
		WaybackBaseURL: srv.URL,
	}
	return NewClient(cfg, creds, StaticPolicy(true), nil, nil, zap.NewNop())
}

func TestShodanHostsBatchIsolatesFailures(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/shodan/host/1.2.3.4":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"ports": [443, 80],
				"hostnames": ["web.acme.test"],
				"org": "Acme Corp",
				"isp": "Acme ISP",
				"vulns": ["CVE-2024-0001"]
			}`))
		default:
			http.Error(w, "no information", http.StatusNotFound)
		}
	})
	c := restClient(t, handler, Credentials{ServiceShodan: "k"})

	p := c.ShodanHosts(context.Background(), []string{"1.2.3.4", "bad-ip"})
	require.False(t, IsErr(p))
	require.Equal(t, 2, p["ips_queried"])

	dataByIP := p["data_by_ip"].(Payload)
	good := dataByIP["1.2.3.4"].(Payload)
	require.Equal(t, []int{443, 80}, good["ports"])
	bad := dataByIP["bad-ip"].(Payload)
	require.True(t, IsErr(bad))

	summary := p["summary"].(Payload)
	require.Equal(t, []int{80, 443}, summary["ports"])
	require.Equal(t, []string{"web.acme.test"}, summary["hostnames"])
	require.Equal(t, []string{"Acme Corp"}, summary["organizations"])
	require.Equal(t, []string{"CVE-2024-0001"}, summary["vulnerabilities"])
}

func TestShodanHostsMissingKeyShortCircuits(t *testing.T) {
	t.Parallel()

	called := false
	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })
	c := restClient(t, handler, nil)

	p := c.ShodanHosts(context.Background(), []string{"1.2.3.4"})
	require.True(t, IsErr(p))
	require.False(t, called)
}

func TestHunterVerifyReturnsDataObject(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/email-verifier", r.URL.Path)
		require.Equal(t, "info@acme.test", r.URL.Query().Get("email"))
		require.Equal(t, "k", r.URL.Query().Get("api_key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": {"status": "valid", "score": 92, "disposable": false, "webmail": false}}`))
	})
	c := restClient(t, handler, Credentials{ServiceHunter: "k"})

	p := c.HunterVerify(context.Background(), "info@acme.test")
	require.False(t, IsErr(p))
	require.Equal(t, "valid", p["status"])
	require.InDelta(t, 92, p["score"].(float64), 0.001)
}

func TestHunterVerifyHTTPErrorBecomesPayload(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})
	c := restClient(t, handler, Credentials{ServiceHunter: "k"})

	p := c.HunterVerify(context.Background(), "info@acme.test")
	require.True(t, IsErr(p))
	require.Contains(t, p["error"], "429")
}

func TestHIBPBreachesFoundAndClean(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "k", r.Header.Get("hibp-api-key"))
		switch r.URL.Path {
		case "/api/v3/breachedaccount/pwned@acme.test":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"Name": "Adobe"}, {"Name": "LinkedIn"}]`))
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	})
	c := restClient(t, handler, Credentials{ServiceHIBP: "k"})

	p := c.HIBPBreaches(context.Background(), "pwned@acme.test")
	require.False(t, IsErr(p))
	require.Equal(t, 2, p["breach_count"])

	clean := c.HIBPBreaches(context.Background(), "clean@acme.test")
	require.False(t, IsErr(clean))
	require.Equal(t, 0, clean["breach_count"])
}

func TestWaybackSnapshotsParsesCDXRows(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/cdx/search/cdx", r.URL.Path)
		require.Equal(t, "acme.test", r.URL.Query().Get("url"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			["timestamp","original"],
			["20240101000000","http://acme.test/"],
			["20240601000000","https://acme.test/"]
		]`))
	})
	c := restClient(t, handler, nil)

	p := c.WaybackSnapshots(context.Background(), "acme.test")
	require.False(t, IsErr(p))
	require.Equal(t, 2, p["snapshot_count"])
	snaps := p["latest_snapshots"].([]Payload)
	require.Equal(t, "20240101000000", snaps[0]["timestamp"])
	require.Equal(t, "https://web.archive.org/web/20240101000000/http://acme.test/", snaps[0]["archive_url"])
}

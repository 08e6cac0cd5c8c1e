package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/browsint/browsint/internal/profile"
	"github.com/browsint/browsint/internal/webtech"
)

type fakeProfiler struct {
	profiles map[string]*profile.Profile
	lastOp   string
}

func (f *fakeProfiler) resolve(op, target string) (*profile.Profile, error) {
	f.lastOp = op
	if p, ok := f.profiles[target]; ok {
		return p, nil
	}
	switch target {
	case "invalid":
		return nil, fmt.Errorf("%w: %q", profile.ErrInvalidInput, target)
	default:
		return nil, fmt.Errorf("%w: %q", profile.ErrNotFound, target)
	}
}

func (f *fakeProfiler) ProfileDomain(_ context.Context, d string) (*profile.Profile, error) {
	return f.resolve("domain", d)
}

func (f *fakeProfiler) ProfileEmail(_ context.Context, e string) (*profile.Profile, error) {
	return f.resolve("email", e)
}

func (f *fakeProfiler) ProfileUsername(_ context.Context, u string) (*profile.Profile, error) {
	return f.resolve("username", u)
}

func (f *fakeProfiler) Summaries(context.Context) ([]profile.Summary, error) {
	out := make([]profile.Summary, 0, len(f.profiles))
	for _, p := range f.profiles {
		out = append(out, profile.Summary{Entity: p.Entity})
	}
	return out, nil
}

func (f *fakeProfiler) ByID(_ context.Context, id int64) (*profile.Profile, error) {
	for _, p := range f.profiles {
		if p.Entity.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: entity %d", profile.ErrNotFound, id)
}

func (f *fakeProfiler) ByIdentifier(_ context.Context, identifier string) (*profile.Profile, error) {
	return f.resolve("lookup", identifier)
}

type fakeAnalyzer struct {
	report *webtech.Report
	err    error
}

func (f fakeAnalyzer) Analyze(context.Context, string) (*webtech.Report, error) {
	return f.report, f.err
}

type fakeAdmin struct {
	backups []string
	err     error
}

func (f *fakeAdmin) Backup(name string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	path := "/backups/" + name + "_20240601_120000.db"
	f.backups = append(f.backups, path)
	return path, nil
}

func (f *fakeAdmin) Size(string) (int64, error) { return 4096, f.err }

func testServer(t *testing.T, p *fakeProfiler, a SiteAnalyzer, admin StoreAdmin) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(p, a, admin, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func acmeProfile() *profile.Profile {
	return &profile.Profile{
		Entity: profile.Entity{ID: 1, Kind: profile.KindCompany, Name: "acme.test", Domain: "acme.test"},
		Snapshots: map[string]profile.Snapshot{
			profile.SourceDomain: {Source: profile.SourceDomain},
		},
	}
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestProfileDomainEndpoint(t *testing.T) {
	t.Parallel()

	p := &fakeProfiler{profiles: map[string]*profile.Profile{"acme.test": acmeProfile()}}
	srv := testServer(t, p, fakeAnalyzer{}, &fakeAdmin{})

	resp := postJSON(t, srv.URL+"/v1/profiles/domain", `{"target": "acme.test"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "domain", p.lastOp)
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var got profile.Profile
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, "acme.test", got.Entity.Name)
}

func TestProfileEndpointsMapErrors(t *testing.T) {
	t.Parallel()

	p := &fakeProfiler{profiles: map[string]*profile.Profile{}}
	srv := testServer(t, p, fakeAnalyzer{}, &fakeAdmin{})

	resp := postJSON(t, srv.URL+"/v1/profiles/domain", `{"target": "invalid"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/v1/profiles/email", `{}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/v1/profiles/username", `not json`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLookupAndGetProfile(t *testing.T) {
	t.Parallel()

	p := &fakeProfiler{profiles: map[string]*profile.Profile{"acme.test": acmeProfile()}}
	srv := testServer(t, p, fakeAnalyzer{}, &fakeAdmin{})

	resp, err := http.Get(srv.URL + "/v1/profiles/lookup?identifier=acme.test")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "lookup", p.lastOp)

	resp, err = http.Get(srv.URL + "/v1/profiles/1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/profiles/99")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/profiles/abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListProfiles(t *testing.T) {
	t.Parallel()

	p := &fakeProfiler{profiles: map[string]*profile.Profile{"acme.test": acmeProfile()}}
	srv := testServer(t, p, fakeAnalyzer{}, &fakeAdmin{})

	resp, err := http.Get(srv.URL + "/v1/profiles")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 1, body.Count)
}

func TestAnalyzeEndpoint(t *testing.T) {
	t.Parallel()

	analyzer := fakeAnalyzer{report: &webtech.Report{URL: "https://acme.test", StatusCode: 200}}
	srv := testServer(t, &fakeProfiler{}, analyzer, &fakeAdmin{})

	resp := postJSON(t, srv.URL+"/v1/analyze", `{"target": "acme.test"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report webtech.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	require.Equal(t, "https://acme.test", report.URL)

	failing := fakeAnalyzer{err: fmt.Errorf("fetch acme.test: no response")}
	srv2 := testServer(t, &fakeProfiler{}, failing, &fakeAdmin{})
	resp = postJSON(t, srv2.URL+"/v1/analyze", `{"target": "acme.test"}`)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestBackupEndpoint(t *testing.T) {
	t.Parallel()

	admin := &fakeAdmin{}
	srv := testServer(t, &fakeProfiler{}, fakeAnalyzer{}, admin)

	resp := postJSON(t, srv.URL+"/v1/admin/backup/osint", ``)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, admin.backups, 1)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "osint", body["store"])
	require.Contains(t, body["backup"], "osint_")
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	srv := testServer(t, &fakeProfiler{}, fakeAnalyzer{}, &fakeAdmin{})

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

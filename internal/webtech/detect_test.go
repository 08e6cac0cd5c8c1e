package webtech

import (
	"net/http"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const fixtureHTML = `<!DOCTYPE html>
<html>
<head>
	<meta name="generator" content="WordPress 6.4">
	<meta name="description" content="Acme widgets">
	<meta property="og:title" content="Acme">
	<script src="/wp-content/themes/acme/js/jquery.min.js"></script>
	<script src="https://cdn.example.net/react.production.min.js"></script>
	<script>
		gtag('config', 'G-XYZ');
		fbq('init', '123');
	</script>
</head>
<body>
	<div data-reactroot></div>
	<div v-if="show">maybe</div>
</body>
</html>`

func fixtureDoc(t *testing.T) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fixtureHTML))
	require.NoError(t, err)
	return doc
}

func TestFrameworksFromMetaHeadersAndMarkers(t *testing.T) {
	t.Parallel()

	headers := http.Header{}
	headers.Set("X-Powered-By", "PHP/8.2")

	found := Frameworks(fixtureDoc(t), headers, "https://acme.test/")
	require.Contains(t, found, "WordPress 6.4")
	require.Contains(t, found, "PHP/8.2")
	require.Contains(t, found, "WordPress")
}

func TestFrameworksFromURLShape(t *testing.T) {
	t.Parallel()

	found := Frameworks(nil, http.Header{}, "https://acme.test/wp-admin/login.php")
	require.Equal(t, []string{"WordPress"}, found)
}

func TestJSLibrariesScriptSrcBeatsHeuristics(t *testing.T) {
	t.Parallel()

	libs := JSLibraries(fixtureDoc(t), fixtureHTML)
	require.Contains(t, libs, "jQuery")
	require.Contains(t, libs, "React")
	// Script-src detections suppress their "(likely)" fallbacks.
	require.NotContains(t, libs, "React (likely)")
	// No vue script tag, only the template marker.
	require.Contains(t, libs, "Vue.js (likely)")
}

func TestSecurityHeadersSplit(t *testing.T) {
	t.Parallel()

	headers := http.Header{}
	headers.Set("Strict-Transport-Security", "max-age=63072000")
	headers.Set("X-Content-Type-Options", "nosniff")

	present, missing := SecurityHeaders(headers)
	require.Equal(t, "max-age=63072000", present["HSTS"])
	require.Equal(t, "nosniff", present["X-Content-Type-Options"])
	require.Contains(t, missing, "CSP")
	require.Contains(t, missing, "X-Frame-Options")
	require.Len(t, present, 2)
	require.Len(t, missing, 5)
}

func TestAnalyticsDetection(t *testing.T) {
	t.Parallel()

	found := Analytics(fixtureHTML)
	require.Contains(t, found, "Google Analytics")
	require.Contains(t, found, "Facebook Pixel")
	require.NotContains(t, found, "Matomo")
}

func TestMetaTags(t *testing.T) {
	t.Parallel()

	tags := MetaTags(fixtureDoc(t))
	require.Equal(t, "Acme widgets", tags["description"])
	require.Equal(t, "Acme", tags["og:title"])
	require.Equal(t, "WordPress 6.4", tags["generator"])
}

package sources

import (
	"context"
	"fmt"
	"net/http"

	"github.com/browsint/browsint/internal/metrics"
)

// Platform URL templates probed for a username. Probes go through the
// polite fetcher, so they share the global politeness clock.
var socialPlatforms = []struct {
	name     string
	template string
}{
	{"GitHub", "https://github.com/%s"},
	{"Twitter", "https://twitter.com/%s"},
	{"Instagram", "https://www.instagram.com/%s"},
	{"Reddit", "https://www.reddit.com/user/%s"},
	{"Facebook", "https://www.facebook.com/%s"},
	{"LinkedIn", "https://www.linkedin.com/in/%s"},
}

// SocialProfiles checks each platform for a claimed profile. Only an HTTP
// 200 counts as a claim.
func (c *Client) SocialProfiles(ctx context.Context, username string) Payload {
	if c.fetcher == nil {
		return Errf("page fetcher not configured")
	}

	profiles := Payload{}
	found := 0
	for _, platform := range socialPlatforms {
		profileURL := fmt.Sprintf(platform.template, username)
		resp, ok := c.fetcher.Full(ctx, profileURL)
		if !ok {
			continue
		}
		if resp.StatusCode == http.StatusOK {
			profiles[platform.name] = Payload{
				"url":        profileURL,
				"status":     "Claimed",
				"exists":     true,
				"confidence": 1.0,
			}
			found++
		}
	}
	metrics.ObserveSourceLookup("social", "ok")
	return Payload{
		"profiles": profiles,
		"summary": Payload{
			"username":          username,
			"platforms_checked": len(socialPlatforms),
			"profiles_found":    found,
		},
	}
}

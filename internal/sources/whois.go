package sources

import (
	"context"
	"net"
	"strings"

	whoisparser "github.com/likexian/whois-parser"
	"go.uber.org/zap"

	"github.com/browsint/browsint/internal/metrics"
)

// WhoisLookup queries registration data for a domain or IP literal. IP
// targets return the raw registry text only; domains are parsed into the
// normalized field set. A record missing every core field is flagged
// incomplete rather than treated as an error.
func (c *Client) WhoisLookup(ctx context.Context, target string) Payload {
	if err := ctx.Err(); err != nil {
		return Errf("whois lookup canceled: %v", err)
	}
	raw, err := c.whoisFn(target)
	if err != nil {
		metrics.ObserveSourceLookup("whois", "error")
		c.logger.Warn("whois lookup failed", zap.String("target", target), zap.Error(err))
		return Errf("whois lookup failed: %v", err)
	}
	metrics.ObserveSourceLookup("whois", "ok")

	if net.ParseIP(target) != nil {
		return Payload{"ip": target, "raw": raw}
	}
	return normalizeWhois(raw)
}

// normalizeWhois parses raw registry output into the stable key set the
// profile store expects.
func normalizeWhois(raw string) Payload {
	parsed, err := whoisparser.Parse(raw)
	if err != nil {
		return Errf("whois parse failed: %v", err)
	}

	p := Payload{}
	if parsed.Domain != nil {
		p["domain_name"] = strings.ToLower(parsed.Domain.Domain)
		p["creation_date"] = parsed.Domain.CreatedDate
		p["expiration_date"] = parsed.Domain.ExpirationDate
		p["updated_date"] = parsed.Domain.UpdatedDate
		p["status"] = parsed.Domain.Status
		ns := make([]string, 0, len(parsed.Domain.NameServers))
		for _, server := range parsed.Domain.NameServers {
			ns = append(ns, strings.ToLower(server))
		}
		p["name_servers"] = ns
	}
	if parsed.Registrar != nil {
		p["registrar"] = parsed.Registrar.Name
	}
	var emails []string
	org := ""
	for _, contact := range []*whoisparser.Contact{parsed.Registrant, parsed.Administrative, parsed.Technical} {
		if contact == nil {
			continue
		}
		if org == "" && contact.Organization != "" {
			org = contact.Organization
		}
		if contact.Email != "" {
			emails = append(emails, strings.ToLower(contact.Email))
		}
	}
	p["org"] = org
	p["emails"] = emails

	if isIncompleteWhois(p) {
		p["incomplete"] = true
	}
	return p
}

func isIncompleteWhois(p Payload) bool {
	name, _ := p["domain_name"].(string)
	registrar, _ := p["registrar"].(string)
	created, _ := p["creation_date"].(string)
	ns, _ := p["name_servers"].([]string)
	return name == "" && registrar == "" && created == "" && len(ns) == 0
}

package sources

import (
	"context"
	"net"
	"strings"
)

// Email domains of public mail providers, used for the keyless fallback
// analysis.
var publicMailProviders = map[string]struct{}{
	"gmail.com":      {},
	"yahoo.com":      {},
	"outlook.com":    {},
	"hotmail.com":    {},
	"protonmail.com": {},
	"icloud.com":     {},
	"aol.com":        {},
	"live.com":       {},
}

// DomainOSINT aggregates every domain-scoped source for a target. IP
// literals take the short path: DNS skipped, Wayback marked not
// applicable, Shodan queried for the literal itself. The Shodan step is
// always gated on a configured credential and the scan policy, and for
// hostnames additionally on resolved A records. Per-source failures land
// in their own slot; the aggregate always returns.
func (c *Client) DomainOSINT(ctx context.Context, target string) Payload {
	isIP := net.ParseIP(target) != nil
	result := Payload{
		"target": target,
		"is_ip":  isIP,
		"whois":  c.WhoisLookup(ctx, target),
	}

	if isIP {
		if _, hasKey := c.creds.Get(ServiceShodan); hasKey && c.policy.AllowExpensiveScan(target, "shodan") {
			result["shodan"] = c.ShodanHosts(ctx, []string{target})
		}
		result["wayback"] = Errf("Not applicable for IP addresses")
		return result
	}

	dnsPayload := c.DNSRecords(ctx, target)
	result["dns"] = dnsPayload

	if aRecords := aRecordsOf(dnsPayload); len(aRecords) > 0 {
		if _, hasKey := c.creds.Get(ServiceShodan); hasKey && c.policy.AllowExpensiveScan(target, "shodan") {
			result["shodan"] = c.ShodanHosts(ctx, aRecords)
		}
	}

	result["wayback"] = c.WaybackSnapshots(ctx, target)
	return result
}

// EmailOSINT aggregates the email-scoped sources. When a credential is
// missing its adapter reports the error payload and the keyless basic
// analysis fills in what can be derived from the address alone.
func (c *Client) EmailOSINT(ctx context.Context, email string) Payload {
	result := Payload{
		"target":   email,
		"hunterio": c.HunterVerify(ctx, email),
		"hibp":     c.HIBPBreaches(ctx, email),
	}

	_, hasHunter := c.creds.Get(ServiceHunter)
	_, hasHIBP := c.creds.Get(ServiceHIBP)
	if !hasHunter || !hasHIBP {
		result["basic_analysis"] = basicEmailAnalysis(email)
	}
	return result
}

func basicEmailAnalysis(email string) Payload {
	domain := ""
	if at := strings.LastIndex(email, "@"); at >= 0 && at < len(email)-1 {
		domain = strings.ToLower(email[at+1:])
	}
	_, isPublic := publicMailProviders[domain]
	return Payload{
		"domain":             domain,
		"is_public_provider": isPublic,
	}
}

func aRecordsOf(dnsPayload Payload) []string {
	if IsErr(dnsPayload) {
		return nil
	}
	records, ok := dnsPayload["A"].([]string)
	if !ok {
		return nil
	}
	return records
}

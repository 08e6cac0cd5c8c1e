package sources

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/browsint/browsint/internal/metrics"
)

// Public resolvers queried in order until one answers.
var defaultResolvers = []string{"8.8.8.8:53", "1.1.1.1:53", "9.9.9.9:53"}

const (
	dnsQueryTimeout = 3 * time.Second
	dnsTotalBudget  = 7 * time.Second
)

var dnsQueryTypes = []struct {
	name  string
	qtype uint16
}{
	{"A", dns.TypeA},
	{"AAAA", dns.TypeAAAA},
	{"MX", dns.TypeMX},
	{"NS", dns.TypeNS},
	{"TXT", dns.TypeTXT},
	{"SOA", dns.TypeSOA},
	{"CNAME", dns.TypeCNAME},
	{"SRV", dns.TypeSRV},
	{"CAA", dns.TypeCAA},
}

type exchangeFunc func(ctx context.Context, msg *dns.Msg, server string) (*dns.Msg, error)

func defaultExchange(ctx context.Context, msg *dns.Msg, server string) (*dns.Msg, error) {
	client := &dns.Client{Timeout: dnsQueryTimeout}
	resp, _, err := client.ExchangeContext(ctx, msg, server)
	return resp, err
}

// DNSRecords queries the fixed ordered record-type set against the
// resolver pool. An empty list is an authoritative "no records" for that
// type; a per-type failure is recorded as an error string entry; NXDOMAIN
// or a fully unreachable pool on the first type aborts the remaining
// types and returns an error payload.
func (c *Client) DNSRecords(ctx context.Context, domain string) Payload {
	records := Payload{}
	deadline := time.Now().Add(dnsTotalBudget)

	for _, qt := range dnsQueryTypes {
		if time.Now().After(deadline) {
			records[qt.name] = "error: total DNS budget exceeded"
			continue
		}
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(domain), qt.qtype)
		msg.RecursionDesired = true

		resp, err := c.exchangeAny(ctx, msg)
		if err != nil {
			// Every resolver failing on the very first type means the
			// pool is unreachable; querying eight more types against it
			// would only burn the budget.
			if len(records) == 0 {
				metrics.ObserveSourceLookup("dns", "error")
				return Errf("DNS lookup failed for %s: %v", domain, err)
			}
			records[qt.name] = fmt.Sprintf("error: %v", err)
			continue
		}
		if resp.Rcode == dns.RcodeNameError {
			metrics.ObserveSourceLookup("dns", "nxdomain")
			return Errf("NXDOMAIN: %s does not resolve", domain)
		}
		records[qt.name] = formatAnswers(qt.qtype, resp.Answer)
	}
	metrics.ObserveSourceLookup("dns", "ok")
	return records
}

func (c *Client) exchangeAny(ctx context.Context, msg *dns.Msg) (*dns.Msg, error) {
	var lastErr error
	for _, server := range defaultResolvers {
		resp, err := c.dnsExchange(ctx, msg, server)
		if err == nil && resp != nil {
			return resp, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no resolver produced a response")
	}
	return nil, lastErr
}

// formatAnswers renders answer records in the store-facing string format.
// Always returns a non-nil slice so "no records" is a real empty list.
func formatAnswers(qtype uint16, answers []dns.RR) []string {
	out := []string{}
	type mxEntry struct {
		pref uint16
		text string
	}
	var mx []mxEntry

	for _, rr := range answers {
		switch rec := rr.(type) {
		case *dns.A:
			out = append(out, rec.A.String())
		case *dns.AAAA:
			out = append(out, rec.AAAA.String())
		case *dns.MX:
			mx = append(mx, mxEntry{rec.Preference, fmt.Sprintf("%d %s", rec.Preference, strings.TrimSuffix(rec.Mx, "."))})
		case *dns.NS:
			out = append(out, strings.TrimSuffix(rec.Ns, "."))
		case *dns.TXT:
			out = append(out, strings.Join(rec.Txt, ""))
		case *dns.SOA:
			out = append(out, fmt.Sprintf("mname=%s rname=%s serial=%d refresh=%d retry=%d expire=%d minimum=%d",
				strings.TrimSuffix(rec.Ns, "."), strings.TrimSuffix(rec.Mbox, "."),
				rec.Serial, rec.Refresh, rec.Retry, rec.Expire, rec.Minttl))
		case *dns.CNAME:
			out = append(out, strings.TrimSuffix(rec.Target, "."))
		case *dns.SRV:
			out = append(out, fmt.Sprintf("%s:%d priority=%d weight=%d",
				strings.TrimSuffix(rec.Target, "."), rec.Port, rec.Priority, rec.Weight))
		case *dns.CAA:
			out = append(out, fmt.Sprintf("%d %s %q", rec.Flag, rec.Tag, rec.Value))
		}
	}

	if qtype == dns.TypeMX {
		sort.Slice(mx, func(i, j int) bool { return mx[i].pref < mx[j].pref })
		for _, entry := range mx {
			out = append(out, entry.text)
		}
	}
	return out
}

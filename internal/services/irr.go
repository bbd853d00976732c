package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"whoisgate/internal/classify"
	"whoisgate/internal/registry"
)

const irrExplorerBase = "https://irrexplorer.nlnog.net/api/prefixes/prefix"

type irrExplorerSet struct {
	Prefix string `json:"prefix"`
	RIR    struct {
		RPKIRouteStatus string `json:"rpkiRouteStatus"`
	} `json:"rir"`
	IRRRoutes map[string][]struct {
		Origin        string `json:"origin"`
		RPKIMaxLength int    `json:"rpkiMaxLength"`
	} `json:"irrRoutes"`
	Messages []struct {
		Category string `json:"category"`
		Text     string `json:"text"`
	} `json:"messages"`
}

// registerIRR wires the aggregate -IRR "IRR explorer" suffix and the
// per-registry -RADB/-RIPE/... suffixes, the latter querying each
// registry's own WHOIS server directly (no IANA referral, per the
// suffix grammar's explicit registry selection).
func (d *Deps) registerIRR(reg *registry.Registry) {
	reg.Register(classify.KindIRRExplorer, func(ctx *registry.Context) (string, error) {
		u := fmt.Sprintf("%s/%s", irrExplorerBase, url.PathEscape(ctx.Query.Payload))
		var sets []irrExplorerSet
		if err := d.getJSON(ctx.Ctx, u, &sets); err != nil {
			return comment("IRR Explorer lookup failed: %v", err), nil
		}
		var b strings.Builder
		b.WriteString(comment("IRR Explorer aggregation for %s", ctx.Query.Payload))
		b.WriteString(comment("Data from https://irrexplorer.nlnog.net/"))
		for _, s := range sets {
			fmt.Fprintf(&b, "prefix: %s\n", s.Prefix)
			fmt.Fprintf(&b, "rpki-status: %s\n", s.RIR.RPKIRouteStatus)
			for source, routes := range s.IRRRoutes {
				for _, r := range routes {
					fmt.Fprintf(&b, "irr-route: %s origin=%s max-length=%d\n", source, r.Origin, r.RPKIMaxLength)
				}
			}
			for _, m := range s.Messages {
				fmt.Fprintf(&b, "remark: [%s] %s\n", m.Category, m.Text)
			}
		}
		return b.String(), nil
	}, false)

	irrServers := map[string]string{
		"RADB": "whois.radb.net", "ALTDB": "whois.altdb.net",
		"AFRINIC": "whois.afrinic.net", "APNIC": "whois.apnic.net",
		"ARIN": "rr.arin.net", "BELL": "whois.in.bell.ca",
		"JPIRR": "jpirr.nic.ad.jp", "LACNIC": "irr.lacnic.net",
		"LEVEL3": "rr.level3.net", "NTTCOM": "rr.ntt.net",
		"RIPE": "whois.ripe.net", "TC": "whois.twnic.tw",
	}
	reg.Register(classify.KindIRRRegistry, func(ctx *registry.Context) (string, error) {
		host, ok := irrServers[ctx.Query.Registry]
		if !ok {
			return comment("unknown IRR registry %q", ctx.Query.Registry), nil
		}
		qctx, cancel := context.WithTimeout(ctx.Ctx, 10*time.Second)
		defer cancel()
		resp := d.WhoisClient.QueryHost(qctx, host, ctx.Query.Payload)
		return comment("IRR registry %s (%s)", ctx.Query.Registry, host) + resp, nil
	}, false)
}

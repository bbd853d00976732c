package services

import (
	"whoisgate/internal/classify"
	"whoisgate/internal/registry"
)

// registerWhois wires the five raw query kinds to the upstream WHOIS
// client, which itself handles referral chasing and DN42 fallback.
func (d *Deps) registerWhois(reg *registry.Registry) {
	handler := func(ctx *registry.Context) (string, error) {
		return d.WhoisClient.Query(ctx.Ctx, ctx.Query.Payload, ctx.Query.DN42Eligible), nil
	}
	for _, kind := range []classify.Kind{
		classify.KindRawDomain, classify.KindRawIPv4, classify.KindRawIPv6,
		classify.KindRawASN, classify.KindRawCIDR,
	} {
		reg.Register(kind, handler, true)
	}
}

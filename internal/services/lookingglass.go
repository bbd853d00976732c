package services

import (
	"fmt"
	"strings"

	"whoisgate/internal/classify"
	"whoisgate/internal/registry"
)

const ripeLookingGlassURL = "https://stat.ripe.net/data/looking-glass/data.json?resource="

type lookingGlassResponse struct {
	Data struct {
		RRCs []struct {
			RRC   string `json:"rrc"`
			Peers []struct {
				ASNOrigin string `json:"as_origin"`
				Prefix    string `json:"prefix"`
				NextHop   string `json:"next_hop"`
				ASPath    string `json:"as_path"`
			} `json:"peers"`
		} `json:"rrcs"`
	} `json:"data"`
}

// registerLookingGlass wires -LG to the RIPE Stat looking-glass API,
// which reports the BGP view of a resource from many route collectors
// at once.
func (d *Deps) registerLookingGlass(reg *registry.Registry) {
	reg.Register(classify.KindLookingGlass, func(ctx *registry.Context) (string, error) {
		var lg lookingGlassResponse
		if err := d.getJSON(ctx.Ctx, ripeLookingGlassURL+ctx.Query.Payload, &lg); err != nil {
			return comment("looking glass lookup failed: %v", err), nil
		}
		var b strings.Builder
		b.WriteString(comment("RIPE Stat looking glass for %s", ctx.Query.Payload))
		b.WriteString(comment("Data from https://stat.ripe.net/"))
		if len(lg.Data.RRCs) == 0 {
			b.WriteString(comment("no looking glass data available"))
		}
		for _, rrc := range lg.Data.RRCs {
			for _, p := range rrc.Peers {
				fmt.Fprintf(&b, "route-collector: %s\n", rrc.RRC)
				fmt.Fprintf(&b, "origin: AS%s\n", p.ASNOrigin)
				fmt.Fprintf(&b, "prefix: %s\n", p.Prefix)
				fmt.Fprintf(&b, "next-hop: %s\n", p.NextHop)
				fmt.Fprintf(&b, "as-path: %s\n\n", p.ASPath)
			}
		}
		return b.String(), nil
	}, false)
}

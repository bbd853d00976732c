package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"whoisgate/internal/classify"
	"whoisgate/internal/registry"
)

const bgpToolsHost = "bgp.tools"

// registerBGPTool wires -BGPTOOL, -PREFIXES, -GEO, and -RIRGEO. All
// four are thin views over bgp.tools and RIPE Stat data, grouped here
// because they share the same "one upstream lookup, one formatter"
// shape.
func (d *Deps) registerBGPTool(reg *registry.Registry) {
	reg.Register(classify.KindBGPTool, func(ctx *registry.Context) (string, error) {
		qctx, cancel := context.WithTimeout(ctx.Ctx, 10*time.Second)
		defer cancel()
		// bgp.tools expects a leading " -v " flag on its WHOIS queries
		// to request verbose, human-readable output.
		resp := d.WhoisClient.QueryHost(qctx, bgpToolsHost, " -v "+ctx.Query.Payload)
		return comment("BGP Tools query") + comment("Data from bgp.tools") + resp, nil
	}, false)

	reg.Register(classify.KindPrefixes, func(ctx *registry.Context) (string, error) {
		var ov ripeASOverview
		url := fmt.Sprintf("https://stat.ripe.net/data/announced-prefixes/data.json?resource=%s", ctx.Query.Payload)
		if err := d.getJSON(ctx.Ctx, url, &ov); err != nil {
			return comment("prefixes lookup failed: %v", err), nil
		}
		var b strings.Builder
		b.WriteString(comment("Announced prefixes for %s", ctx.Query.Payload))
		b.WriteString(comment("Data from https://stat.ripe.net/"))
		for _, p := range ov.Data.Prefixes {
			fmt.Fprintf(&b, "prefix: %s\n", p.Prefix)
		}
		return b.String(), nil
	}, false)

	reg.Register(classify.KindGeo, func(ctx *registry.Context) (string, error) {
		return d.geolocate(ctx.Ctx, ctx.Query.Payload, "https://stat.ripe.net/data/geoloc/data.json?resource=")
	}, false)

	reg.Register(classify.KindRIRGeo, func(ctx *registry.Context) (string, error) {
		return d.geolocate(ctx.Ctx, ctx.Query.Payload, "https://stat.ripe.net/data/rir-geo/data.json?resource=")
	}, false)
}

type ripeASOverview struct {
	Data struct {
		Prefixes []struct {
			Prefix string `json:"prefix"`
		} `json:"prefixes"`
	} `json:"data"`
}

type ripeGeoResponse struct {
	Data struct {
		Locations []struct {
			Country   string  `json:"country"`
			City      string  `json:"city"`
			Resource  string  `json:"resource"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"locations"`
	} `json:"data"`
}

func (d *Deps) geolocate(ctx context.Context, resource, baseURL string) (string, error) {
	var geo ripeGeoResponse
	if err := d.getJSON(ctx, baseURL+resource, &geo); err != nil {
		return comment("geolocation lookup failed: %v", err), nil
	}
	var b strings.Builder
	b.WriteString(comment("Geolocation for %s", resource))
	b.WriteString(comment("Data from https://stat.ripe.net/"))
	for _, l := range geo.Data.Locations {
		fmt.Fprintf(&b, "resource: %s\n", l.Resource)
		fmt.Fprintf(&b, "country: %s\n", l.Country)
		if l.City != "" {
			fmt.Fprintf(&b, "city: %s\n", l.City)
		}
		fmt.Fprintf(&b, "coordinates: %.4f, %.4f\n\n", l.Latitude, l.Longitude)
	}
	return b.String(), nil
}

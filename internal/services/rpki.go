package services

import (
	"fmt"
	"strings"

	"whoisgate/internal/classify"
	"whoisgate/internal/registry"
)

const rpkiAPIBase = "https://rpki.akae.re/api/v1/validity"

type rpkiValidity struct {
	ValidatedRoute struct {
		Route struct {
			OriginASN string `json:"origin_asn"`
			Prefix    string `json:"prefix"`
		} `json:"route"`
		Validity struct {
			State       string `json:"state"`
			Description string `json:"description"`
			VRPs        struct {
				Matched   []rpkiVRP `json:"matched"`
				Unmatched struct {
					ASN    []rpkiVRP `json:"asn"`
					Prefix []rpkiVRP `json:"prefix"`
				} `json:"unmatched_as"`
			} `json:"VRPs"`
		} `json:"validity"`
	} `json:"validated_route"`
}

type rpkiVRP struct {
	ASN    string `json:"asn"`
	Prefix string `json:"prefix"`
	MaxLen int    `json:"max_length"`
}

// registerRPKI wires -RPKI to the akae.re route-origin validator.
// The classifier only strips the trailing "-RPKI" suffix (§6), so the
// payload still carries the wire form "<prefix>-AS<number>"; a
// payload with no "-AS<digits>" tail yields a usage diagnostic rather
// than guessing the other half.
func (d *Deps) registerRPKI(reg *registry.Registry) {
	reg.Register(classify.KindRPKI, func(ctx *registry.Context) (string, error) {
		prefix, asn, ok := splitRPKIPayload(ctx.Query.Payload)
		if !ok {
			return comment("RPKI query must be <prefix>-AS<number>-RPKI, e.g. 192.0.2.0/24-AS64496-RPKI"), nil
		}

		var v rpkiValidity
		url := fmt.Sprintf("%s/%s/%s", rpkiAPIBase, asn, prefix)
		if err := d.getJSON(ctx.Ctx, url, &v); err != nil {
			return comment("RPKI lookup failed: %v", err), nil
		}

		var b strings.Builder
		b.WriteString(comment("RPKI Route Origin Validation"))
		b.WriteString(comment("Data from %s", rpkiAPIBase))
		fmt.Fprintf(&b, "route: %s\n", v.ValidatedRoute.Route.Prefix)
		fmt.Fprintf(&b, "origin: AS%s\n", v.ValidatedRoute.Route.OriginASN)
		fmt.Fprintf(&b, "validity: %s\n", v.ValidatedRoute.Validity.State)
		if v.ValidatedRoute.Validity.Description != "" {
			fmt.Fprintf(&b, "descr: %s\n", v.ValidatedRoute.Validity.Description)
		}
		for _, m := range v.ValidatedRoute.Validity.VRPs.Matched {
			fmt.Fprintf(&b, "vrp-matched: AS%s %s max-length %d\n", m.ASN, m.Prefix, m.MaxLen)
		}
		return b.String(), nil
	}, false)
}

// splitRPKIPayload parses the classifier's "<prefix>-AS<digits>" wire
// form (spec.md §6) by finding the last "-AS" tail whose remainder is
// all digits, so a prefix itself containing hyphens or slashes (CIDR
// notation) is never mistaken for the separator. It also tolerates
// the legacy "ASN/prefix" and "ASN prefix" forms some earlier clients
// send.
func splitRPKIPayload(payload string) (prefix, asn string, ok bool) {
	upper := strings.ToUpper(payload)
	if idx := strings.LastIndex(upper, "-AS"); idx > 0 {
		candidate := upper[idx+3:]
		if candidate != "" && isAllDigits(candidate) {
			return payload[:idx], candidate, true
		}
	}
	for _, sep := range []string{"/", " "} {
		if idx := strings.Index(payload, sep); idx > 0 {
			asnPart := strings.TrimPrefix(strings.ToUpper(payload[:idx]), "AS")
			if isAllDigits(asnPart) {
				return payload[idx+len(sep):], asnPart, true
			}
		}
	}
	return "", "", false
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

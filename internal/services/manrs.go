package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"whoisgate/internal/classify"
	"whoisgate/internal/registry"
)

const (
	manrsAPIURL   = "https://api.manrs.org/asns"
	manrsCacheKey = "manrs_asns"
	manrsCacheTTL = 14 * 24 * time.Hour
)

type manrsAPIResponse struct {
	ASNs []uint64 `json:"asns"`
}

// registerManrs wires -MANRS to a membership check against the MANRS
// participant ASN list, cached for two weeks since the upstream set
// changes slowly and the API has no per-ASN lookup endpoint.
func (d *Deps) registerManrs(reg *registry.Registry) {
	reg.Register(classify.KindMANRS, func(ctx *registry.Context) (string, error) {
		asn, ok := normalizeASN(ctx.Query.Payload)
		if !ok {
			return comment("MANRS query requires an AS number, e.g. AS15169-MANRS"), nil
		}

		asns, err := d.manrsParticipants(ctx.Ctx)
		if err != nil {
			return comment("MANRS lookup failed: %v", err), nil
		}

		member := false
		for _, a := range asns {
			if a == asn {
				member = true
				break
			}
		}

		var b strings.Builder
		b.WriteString(comment("MANRS participation check for AS%d", asn))
		if member {
			b.WriteString("manrs-participant: yes\n")
		} else {
			b.WriteString("manrs-participant: no\n")
		}
		b.WriteString(comment("For more information about MANRS, visit: https://www.manrs.org/"))
		b.WriteString(comment("MANRS API at https://api.manrs.org/"))
		return b.String(), nil
	}, false)
}

func (d *Deps) manrsParticipants(ctx context.Context) ([]uint64, error) {
	if d.Store != nil {
		if cached, err := d.Store.Get(servicesCacheSubdb, manrsCacheKey); err == nil {
			return decodeASNList(cached), nil
		}
	}

	var resp manrsAPIResponse
	if err := d.getJSON(ctx, manrsAPIURL, &resp); err != nil {
		return nil, err
	}

	if d.Store != nil {
		_ = d.Store.Put(servicesCacheSubdb, manrsCacheKey, encodeASNList(resp.ASNs), manrsCacheTTL)
	}
	return resp.ASNs, nil
}

func normalizeASN(payload string) (uint64, bool) {
	t := strings.TrimSpace(strings.ToUpper(payload))
	t = strings.TrimPrefix(t, "AS")
	n, err := strconv.ParseUint(t, 10, 64)
	return n, err == nil
}

func encodeASNList(asns []uint64) []byte {
	parts := make([]string, len(asns))
	for i, a := range asns {
		parts[i] = strconv.FormatUint(a, 10)
	}
	return []byte(strings.Join(parts, ","))
}

func decodeASNList(data []byte) []uint64 {
	if len(data) == 0 {
		return nil
	}
	parts := strings.Split(string(data), ",")
	out := make([]uint64, 0, len(parts))
	for _, p := range parts {
		if n, err := strconv.ParseUint(p, 10, 64); err == nil {
			out = append(out, n)
		}
	}
	return out
}

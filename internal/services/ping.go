package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"whoisgate/internal/classify"
	"whoisgate/internal/registry"
)

type globalpingPingOptions struct {
	Packets  int    `json:"packets"`
	Protocol string `json:"protocol"`
}

type globalpingLocation struct {
	Magic string `json:"magic"`
}

type globalpingPingRequest struct {
	Type               string                `json:"type"`
	Target             string                `json:"target"`
	Limit              int                   `json:"limit"`
	MeasurementOptions globalpingPingOptions `json:"measurementOptions"`
	Locations          []globalpingLocation  `json:"locations,omitempty"`
}

type globalpingPingMeasurement struct {
	Status  string `json:"status"`
	Results []struct {
		Probe struct {
			Country string `json:"country"`
			City    string `json:"city"`
			ASN     int    `json:"asn"`
			Network string `json:"network"`
		} `json:"probe"`
		Result struct {
			RawOutput string `json:"rawOutput"`
			Stats     struct {
				Min  float64 `json:"min"`
				Avg  float64 `json:"avg"`
				Max  float64 `json:"max"`
				Loss float64 `json:"loss"`
			} `json:"stats"`
		} `json:"result"`
	} `json:"results"`
}

// parsePingTarget splits the optional "target-location" form the
// original service accepts (e.g. "1.1.1.1-tw-PING" arrives here as
// "1.1.1.1-tw"): the location code is a short, dot-free tag trailing
// the last hyphen, and the remainder must look like an IP or a
// domain so a hyphenated hostname isn't mistaken for one.
func parsePingTarget(payload string) (target string, location string) {
	idx := strings.LastIndex(payload, "-")
	if idx <= 0 {
		return payload, ""
	}
	candidateTarget := payload[:idx]
	candidateLoc := payload[idx+1:]
	looksLikeTarget := strings.Contains(candidateTarget, ".") || net.ParseIP(candidateTarget) != nil
	if looksLikeTarget && candidateLoc != "" && len(candidateLoc) <= 5 && !strings.Contains(candidateLoc, ".") {
		return candidateTarget, candidateLoc
	}
	return payload, ""
}

// registerPing wires -PING to the Globalping measurement API, the
// same multi-vantage-point backend -TRACE/-TRACEROUTE use, so the
// gateway process never needs CAP_NET_RAW to answer a ping query.
func (d *Deps) registerPing(reg *registry.Registry) {
	reg.Register(classify.KindPing, func(ctx *registry.Context) (string, error) {
		target, location := parsePingTarget(ctx.Query.Payload)

		id, err := d.globalpingCreatePing(ctx.Ctx, target, location)
		if err != nil {
			return comment("ping measurement failed: %v", err), nil
		}

		m, err := d.globalpingPollPing(ctx.Ctx, id, 30*time.Second)
		if err != nil {
			return comment("ping polling failed: %v", err), nil
		}

		var b strings.Builder
		if location != "" {
			b.WriteString(comment("Ping to %s from %s (via globalping.io)", target, location))
		} else {
			b.WriteString(comment("Ping to %s (via globalping.io)", target))
		}
		for _, r := range m.Results {
			fmt.Fprintf(&b, "probe: %s, %s (AS%d, %s)\n", r.Probe.City, r.Probe.Country, r.Probe.ASN, r.Probe.Network)
			fmt.Fprintf(&b, "min/avg/max: %.2f/%.2f/%.2f ms, loss %.1f%%\n", r.Result.Stats.Min, r.Result.Stats.Avg, r.Result.Stats.Max, r.Result.Stats.Loss)
			b.WriteString("\n")
		}
		return b.String(), nil
	}, false)
}

func (d *Deps) globalpingCreatePing(ctx context.Context, target, location string) (string, error) {
	req := globalpingPingRequest{
		Type:   "ping",
		Target: target,
		Limit:  5,
		MeasurementOptions: globalpingPingOptions{
			Packets:  4,
			Protocol: "ICMP",
		},
	}
	if location != "" {
		req.Locations = []globalpingLocation{{Magic: location}}
	}

	body, _ := json.Marshal(req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, globalpingMeasurementsURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := d.HTTP.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var cr globalpingCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", err
	}
	return cr.ID, nil
}

func (d *Deps) globalpingPollPing(ctx context.Context, id string, timeout time.Duration) (*globalpingPingMeasurement, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var m globalpingPingMeasurement
		if err := d.getJSON(ctx, globalpingMeasurementsURL+"/"+id, &m); err != nil {
			return nil, err
		}
		if m.Status == "finished" {
			return &m, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("measurement %s did not finish within %s", id, timeout)
}

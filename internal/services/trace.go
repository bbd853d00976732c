package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"whoisgate/internal/classify"
	"whoisgate/internal/registry"
)

const globalpingMeasurementsURL = "https://api.globalping.io/v1/measurements"

type globalpingCreateRequest struct {
	Type   string `json:"type"`
	Target string `json:"target"`
	Limit  int    `json:"limit"`
}

type globalpingCreateResponse struct {
	ID string `json:"id"`
}

type globalpingMeasurement struct {
	Status  string `json:"status"`
	Results []struct {
		Probe struct {
			Country string `json:"country"`
			City    string `json:"city"`
			ASN     int    `json:"asn"`
		} `json:"probe"`
		Result struct {
			RawOutput string `json:"rawOutput"`
			Hops      []struct {
				ResolvedAddress  string `json:"resolvedAddress"`
				ResolvedHostname string `json:"resolvedHostname"`
				Timings          []struct {
					RTT float64 `json:"rtt"`
				} `json:"timings"`
			} `json:"hops"`
		} `json:"result"`
	} `json:"results"`
}

// registerTrace wires -TRACE/-TRACEROUTE to the Globalping measurement
// API rather than issuing raw ICMP/UDP probes from the gateway process
// itself — Globalping avoids the CAP_NET_RAW requirement a self-hosted
// traceroute would need and gives multi-vantage-point results for
// free, matching the upstream project's own choice of backend.
func (d *Deps) registerTrace(reg *registry.Registry) {
	reg.Register(classify.KindTrace, func(ctx *registry.Context) (string, error) {
		id, err := d.globalpingCreate(ctx.Ctx, ctx.Query.Payload)
		if err != nil {
			return comment("traceroute measurement failed: %v", err), nil
		}

		m, err := d.globalpingPoll(ctx.Ctx, id, 10*time.Second)
		if err != nil {
			return comment("traceroute polling failed: %v", err), nil
		}

		var b strings.Builder
		b.WriteString(comment("Traceroute to %s (via globalping.io)", ctx.Query.Payload))
		for _, r := range m.Results {
			fmt.Fprintf(&b, "probe: %s, %s (AS%d)\n", r.Probe.City, r.Probe.Country, r.Probe.ASN)
			for i, hop := range r.Result.Hops {
				rtt := "*"
				if len(hop.Timings) > 0 {
					rtt = fmt.Sprintf("%.1fms", hop.Timings[0].RTT)
				}
				fmt.Fprintf(&b, "hop-%d: %s (%s) %s\n", i+1, hop.ResolvedAddress, hop.ResolvedHostname, rtt)
			}
			b.WriteString("\n")
		}
		return b.String(), nil
	}, false)
}

func (d *Deps) globalpingCreate(ctx context.Context, target string) (string, error) {
	body, _ := json.Marshal(globalpingCreateRequest{Type: "traceroute", Target: target, Limit: 1})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, globalpingMeasurementsURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.HTTP.Do(req)
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

func (d *Deps) globalpingPoll(ctx context.Context, id string, timeout time.Duration) (*globalpingMeasurement, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var m globalpingMeasurement
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

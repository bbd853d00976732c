package services

import (
	"fmt"
	"net/url"
	"strings"

	"whoisgate/internal/classify"
	"whoisgate/internal/registry"
)

type crtShEntry struct {
	IssuerName   string `json:"issuer_name"`
	NameValue    string `json:"name_value"`
	NotBefore    string `json:"not_before"`
	NotAfter     string `json:"not_after"`
	SerialNumber string `json:"serial_number"`
}

const crtShMaxEntries = 20

// registerCRT wires -CRT to crt.sh's certificate-transparency search,
// listing the most recent certificates observed for the domain.
func (d *Deps) registerCRT(reg *registry.Registry) {
	reg.Register(classify.KindCRT, func(ctx *registry.Context) (string, error) {
		u := fmt.Sprintf("https://crt.sh/json?q=%s", url.QueryEscape(ctx.Query.Payload))
		var entries []crtShEntry
		if err := d.getJSON(ctx.Ctx, u, &entries); err != nil {
			return comment("certificate transparency lookup failed: %v", err), nil
		}

		var b strings.Builder
		b.WriteString(comment("Certificate transparency log entries for %s", ctx.Query.Payload))
		b.WriteString(comment("Data from https://crt.sh/"))
		if len(entries) > crtShMaxEntries {
			b.WriteString(comment("showing the %d most recent of %d entries", crtShMaxEntries, len(entries)))
			entries = entries[len(entries)-crtShMaxEntries:]
		}
		for _, e := range entries {
			fmt.Fprintf(&b, "cert-serial: %s\n", e.SerialNumber)
			fmt.Fprintf(&b, "cert-issuer: %s\n", e.IssuerName)
			fmt.Fprintf(&b, "cert-names: %s\n", strings.ReplaceAll(e.NameValue, "\n", ", "))
			fmt.Fprintf(&b, "cert-not-before: %s\n", e.NotBefore)
			fmt.Fprintf(&b, "cert-not-after: %s\n\n", e.NotAfter)
		}
		return b.String(), nil
	}, false)
}

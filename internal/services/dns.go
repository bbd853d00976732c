package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"

	"whoisgate/internal/classify"
	"whoisgate/internal/registry"
)

var dnsProbeTypes = []uint16{
	dns.TypeA, dns.TypeAAAA, dns.TypeMX, dns.TypeNS, dns.TypeTXT,
}

// registerDNS wires -DNS to a direct DNS probe against the system
// resolver's configured upstream (here a fixed public resolver, since
// the gateway process may not have its own /etc/resolv.conf context),
// reporting the common record types for the name in one response.
func (d *Deps) registerDNS(reg *registry.Registry) {
	reg.Register(classify.KindDNS, func(ctx *registry.Context) (string, error) {
		name := dns.Fqdn(ctx.Query.Payload)
		client := new(dns.Client)
		client.Timeout = 5 * time.Second

		var b strings.Builder
		b.WriteString(comment("DNS probe for %s", ctx.Query.Payload))
		any := false
		for _, rrType := range dnsProbeTypes {
			m := new(dns.Msg)
			m.SetQuestion(name, rrType)
			m.RecursionDesired = true

			resp, _, err := client.Exchange(m, "1.1.1.1:53")
			if err != nil || resp == nil {
				continue
			}
			for _, rr := range resp.Answer {
				fmt.Fprintf(&b, "%s\n", rr.String())
				any = true
			}
		}
		if !any {
			b.WriteString(comment("no records found"))
		}
		return b.String(), nil
	}, false)
}

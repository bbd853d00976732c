package services

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	"whoisgate/internal/classify"
	"whoisgate/internal/registry"
)

// registerSSL wires -SSL to a live TLS handshake against the target
// host, reporting the leaf certificate's subject, issuer, validity
// window, SAN list, and fingerprints.
func (d *Deps) registerSSL(reg *registry.Registry) {
	reg.Register(classify.KindSSL, func(ctx *registry.Context) (string, error) {
		host := ctx.Query.Payload
		addr := net.JoinHostPort(host, "443")

		dctx, cancel := context.WithTimeout(ctx.Ctx, 10*time.Second)
		defer cancel()

		var dialer net.Dialer
		rawConn, err := dialer.DialContext(dctx, "tcp", addr)
		if err != nil {
			return comment("SSL connection failed: %v", err), nil
		}
		defer rawConn.Close()
		_ = rawConn.SetDeadline(time.Now().Add(10 * time.Second))

		conn := tls.Client(rawConn, &tls.Config{ServerName: host})
		if err := conn.Handshake(); err != nil {
			return comment("SSL handshake failed: %v", err), nil
		}
		defer conn.Close()

		certs := conn.ConnectionState().PeerCertificates
		if len(certs) == 0 {
			return comment("no certificate presented by %s", host), nil
		}
		leaf := certs[0]

		sha1sum := sha1.Sum(leaf.Raw)
		sha256sum := sha256.Sum256(leaf.Raw)

		var b strings.Builder
		b.WriteString(comment("SSL certificate for %s", host))
		fmt.Fprintf(&b, "subject: %s\n", leaf.Subject.String())
		fmt.Fprintf(&b, "issuer: %s\n", leaf.Issuer.String())
		fmt.Fprintf(&b, "serial: %s\n", leaf.SerialNumber.String())
		fmt.Fprintf(&b, "not-before: %s\n", leaf.NotBefore.UTC().Format(time.RFC3339))
		fmt.Fprintf(&b, "not-after: %s\n", leaf.NotAfter.UTC().Format(time.RFC3339))
		fmt.Fprintf(&b, "signature-algorithm: %s\n", leaf.SignatureAlgorithm.String())
		for _, san := range leaf.DNSNames {
			fmt.Fprintf(&b, "san: %s\n", san)
		}
		fmt.Fprintf(&b, "is-ca: %t\n", leaf.IsCA)
		fmt.Fprintf(&b, "chain-length: %d\n", len(certs))
		fmt.Fprintf(&b, "fingerprint-sha1: %x\n", sha1sum)
		fmt.Fprintf(&b, "fingerprint-sha256: %x\n", sha256sum)
		return b.String(), nil
	}, false)
}

// Package whoisclient implements C5: an RFC 3912 client that talks to
// configured upstream WHOIS servers, follows at most one referral hop,
// and can fall back to the DN42 mirror when a query is DN42-eligible
// or the public response comes back empty.
package whoisclient

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"whoisgate/internal/logging"
)

// DN42Lookup is the subset of the DN42 manager the client needs for
// fallback; kept as a narrow interface so this package never imports
// internal/dn42 directly.
type DN42Lookup interface {
	LookupFallback(query string) (string, bool)
}

// Client issues RFC 3912 queries against a configured root upstream,
// with referral chasing and DN42 fallback.
type Client struct {
	root    string
	timeout time.Duration
	log     *logging.Logger
	dn42    DN42Lookup
}

func New(root string, timeout time.Duration, dn42 DN42Lookup, log *logging.Logger) *Client {
	return &Client{root: root, timeout: timeout, dn42: dn42, log: log.With("whoisclient")}
}

var referralRe = regexp.MustCompile(`(?im)^\s*(?:refer|whois|referralserver)\s*:\s*(?:whois://)?([a-zA-Z0-9.\-]+)`)

// Query performs the full referral-chasing lookup for query against
// the root upstream, per §4.5. When dn42Eligible is set, a successful
// DN42 lookup always wins over the public response — DN42-eligible
// ranges have no meaningful public registration, so the public
// server's "no match" boilerplate must never shadow a real DN42
// record. A non-eligible query still falls back to DN42 when the
// public response comes back empty.
func (c *Client) Query(ctx context.Context, query string, dn42Eligible bool) string {
	root, err := c.queryServer(ctx, c.root, query)
	if err != nil {
		c.log.Warn("root query to %s failed: %v", c.root, err)
		root = fmt.Sprintf("%% Error: upstream %s unavailable: %v\n", c.root, err)
	}

	response := root
	if referred := c.extractReferral(root); referred != "" && !strings.EqualFold(referred, c.root) {
		refResp, err := c.queryServer(ctx, referred, query)
		if err != nil {
			c.log.Warn("referred query to %s failed: %v", referred, err)
		} else {
			response = root + fmt.Sprintf("%% --- referred to %s ---\n", referred) + refResp
		}
	}

	if (strings.TrimSpace(response) == "" || dn42Eligible) && c.dn42 != nil {
		if dn42Resp, ok := c.dn42.LookupFallback(query); ok {
			return dn42Resp
		}
	}

	if strings.TrimSpace(response) == "" {
		return "% No data available for this query.\n"
	}
	return response
}

// QueryHost issues a single direct query against host, with no
// referral chasing and no DN42 fallback — used by handlers that
// target one specific registry server by name (IRR source servers,
// bgp.tools).
func (c *Client) QueryHost(ctx context.Context, host, query string) string {
	resp, err := c.queryServer(ctx, host, query)
	if err != nil {
		return fmt.Sprintf("%% Error: upstream %s unavailable: %v\n", host, err)
	}
	return resp
}

// queryServer issues exactly one RFC 3912 round trip: connect, write
// "query\r\n", read to EOF.
func (c *Client) queryServer(ctx context.Context, host, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	addr := host
	if !strings.Contains(addr, ":") {
		addr = net.JoinHostPort(addr, "43")
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write([]byte(query + "\r\n")); err != nil {
		return "", fmt.Errorf("write to %s: %w", addr, err)
	}

	var buf bytes.Buffer
	reader := bufio.NewReader(conn)
	if _, err := buf.ReadFrom(reader); err != nil && buf.Len() == 0 {
		return "", fmt.Errorf("read from %s: %w", addr, err)
	}
	return buf.String(), nil
}

// extractReferral finds the first referral line in a response, per
// §4.5/§9's "recognize at least refer:, whois:, ReferralServer:".
func (c *Client) extractReferral(response string) string {
	m := referralRe.FindStringSubmatch(response)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

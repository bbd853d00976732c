package whoisclient

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"whoisgate/internal/logging"
)

func TestExtractReferral(t *testing.T) {
	c := &Client{}
	tests := []struct {
		response string
		want     string
	}{
		{"domain: EXAMPLE.COM\nrefer: whois.example-registry.net\n", "whois.example-registry.net"},
		{"Whois: whois.apnic.net\n", "whois.apnic.net"},
		{"ReferralServer: whois://whois.ripe.net\n", "whois.ripe.net"},
		{"no referral line here\n", ""},
	}
	for _, tt := range tests {
		if got := c.extractReferral(tt.response); got != tt.want {
			t.Errorf("extractReferral(%q) = %q, want %q", tt.response, got, tt.want)
		}
	}
}

// fakeDN42 implements DN42Lookup for fallback tests.
type fakeDN42 struct {
	resp string
	ok   bool
}

func (f fakeDN42) LookupFallback(query string) (string, bool) { return f.resp, f.ok }

func startEchoWhoisServer(t *testing.T, response string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				r := bufio.NewReader(conn)
				_, _ = r.ReadString('\n')
				_, _ = conn.Write([]byte(response))
			}()
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func TestQueryHostReturnsUpstreamResponseVerbatim(t *testing.T) {
	addr := startEchoWhoisServer(t, "domain: EXAMPLE.COM\nstatus: active\n")
	c := New(addr, 2*time.Second, nil, logging.New("error"))

	got := c.QueryHost(context.Background(), addr, "example.com")
	if !strings.Contains(got, "domain: EXAMPLE.COM") {
		t.Errorf("QueryHost() = %q, want it to contain the upstream response", got)
	}
}

func TestQueryFallsBackToDN42WhenUpstreamEmpty(t *testing.T) {
	addr := startEchoWhoisServer(t, "")
	c := New(addr, 2*time.Second, fakeDN42{resp: "aut-num: AS4242420000\n", ok: true}, logging.New("error"))

	got := c.Query(context.Background(), "AS4242420000", false)
	if got != "aut-num: AS4242420000\n" {
		t.Errorf("Query() = %q, want the DN42 fallback response", got)
	}
}

// TestQueryPrefersDN42WhenEligibleEvenIfUpstreamNonEmpty covers the
// common case: the public root returns "No match" boilerplate for a
// DN42-eligible range rather than an empty string, and the DN42
// record must still win.
func TestQueryPrefersDN42WhenEligibleEvenIfUpstreamNonEmpty(t *testing.T) {
	addr := startEchoWhoisServer(t, "% No match found for AS4242420000\n")
	c := New(addr, 2*time.Second, fakeDN42{resp: "aut-num: AS4242420000\n", ok: true}, logging.New("error"))

	got := c.Query(context.Background(), "AS4242420000", true)
	if got != "aut-num: AS4242420000\n" {
		t.Errorf("Query() = %q, want the DN42 record to win over the non-empty public response", got)
	}
}

func TestQueryKeepsUpstreamWhenDN42LookupMisses(t *testing.T) {
	addr := startEchoWhoisServer(t, "domain: EXAMPLE.COM\nstatus: active\n")
	c := New(addr, 2*time.Second, fakeDN42{ok: false}, logging.New("error"))

	got := c.Query(context.Background(), "example.com", false)
	if !strings.Contains(got, "domain: EXAMPLE.COM") {
		t.Errorf("Query() = %q, want the upstream response when DN42 has nothing", got)
	}
}

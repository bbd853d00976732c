package color

import "testing"

func TestExtractHeaderProbe(t *testing.T) {
	_, probe, _, hasScheme := ExtractHeader("X-WHOIS-COLOR-PROBE: 1")
	if !probe || hasScheme {
		t.Errorf("expected probe=true, hasScheme=false, got probe=%v hasScheme=%v", probe, hasScheme)
	}
}

func TestExtractHeaderScheme(t *testing.T) {
	_, probe, scheme, hasScheme := ExtractHeader("X-WHOIS-COLOR: ripe")
	if probe || !hasScheme || scheme != SchemeRipe {
		t.Errorf("got probe=%v hasScheme=%v scheme=%v", probe, hasScheme, scheme)
	}
}

func TestExtractHeaderPassthrough(t *testing.T) {
	rest, probe, _, hasScheme := ExtractHeader("example.com\r\n")
	if probe || hasScheme || rest != "example.com" {
		t.Errorf("got rest=%q probe=%v hasScheme=%v", rest, probe, hasScheme)
	}
}

func TestColorizeKnownAttribute(t *testing.T) {
	in := "inetnum:        172.20.0.0/24\nsource:         DN42\n"
	out := Colorize(in, SchemeRipe)
	if out == in {
		t.Error("expected colorization to change recognized attribute lines")
	}
	if got := len(out); got <= len(in) {
		t.Errorf("expected colorized output to be longer due to ANSI codes, got %d <= %d", got, len(in))
	}
}

func TestColorizeUnmatchedLinesLeftIntact(t *testing.T) {
	in := "% a comment\n\nplain line\n"
	out := Colorize(in, SchemeRipe)
	if out != in {
		t.Errorf("expected unmatched lines to pass through unchanged, got %q", out)
	}
}

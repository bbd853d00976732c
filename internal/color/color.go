// Package color implements the in-band color negotiation and
// response colorization described in §6: a client may request a
// capability probe or a named scheme before its query line, and the
// response is then rewritten with ANSI escapes for the chosen scheme.
// Colorization always runs after patch application, per §4.8's patch-
// before-color mandate, so patch rules never need to parse ANSI
// sequences.
package color

import (
	"regexp"
	"strings"
)

// Scheme identifies one of the two supported color schemes.
type Scheme string

const (
	SchemeRipe     Scheme = "ripe"
	SchemeBGPTools Scheme = "bgptools"
)

// ParseScheme returns the Scheme named by s, case-insensitively.
func ParseScheme(s string) (Scheme, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ripe":
		return SchemeRipe, true
	case "bgptools":
		return SchemeBGPTools, true
	default:
		return "", false
	}
}

const (
	probeHeaderPrefix = "X-WHOIS-COLOR-PROBE:"
	colorHeaderPrefix = "X-WHOIS-COLOR:"
)

// CapabilityResponse is what the server sends back for a color-probe
// header, naming the schemes it supports.
const CapabilityResponse = "X-WHOIS-COLOR-SUPPORT: 1.0 schemes=ripe,bgptools\r\n"

// ExtractHeader inspects the first line of a raw request for either
// in-band header. It returns the remaining query text (the header
// line stripped), whether a capability probe was requested, and the
// requested scheme if any.
func ExtractHeader(line string) (rest string, probe bool, scheme Scheme, hasScheme bool) {
	trimmed := strings.TrimRight(line, "\r\n")
	upper := strings.ToUpper(trimmed)
	switch {
	case strings.HasPrefix(upper, probeHeaderPrefix):
		return "", true, "", false
	case strings.HasPrefix(upper, colorHeaderPrefix):
		value := strings.TrimSpace(trimmed[len(colorHeaderPrefix):])
		if sc, ok := ParseScheme(value); ok {
			return "", false, sc, true
		}
		return "", false, "", false
	default:
		return trimmed, false, "", false
	}
}

var attrLineRe = regexp.MustCompile(`^([A-Za-z0-9_-]+):(\s*)(.*)$`)

// ripeAttrColors assigns a foreground color per well-known attribute
// name in the style of the RIPE web whois's syntax highlighting.
var ripeAttrColors = map[string]string{
	"inetnum": "36", "inet6num": "36", "route": "33", "route6": "33",
	"origin": "35", "aut-num": "32", "as-name": "32",
	"mnt-by": "34", "admin-c": "34", "tech-c": "34",
	"source": "90", "descr": "37",
}

// bgpToolsAttrColors mirrors bgp.tools' terser, brighter palette.
var bgpToolsAttrColors = map[string]string{
	"inetnum": "96", "inet6num": "96", "route": "93", "route6": "93",
	"origin": "95", "aut-num": "92", "as-name": "92",
	"mnt-by": "94", "source": "2",
}

// Colorize rewrites response line by line, coloring known attribute
// names per the chosen scheme. Lines it doesn't recognize (comments,
// blank lines, continuations) pass through unchanged.
func Colorize(response string, scheme Scheme) string {
	palette := ripeAttrColors
	if scheme == SchemeBGPTools {
		palette = bgpToolsAttrColors
	}

	lines := strings.Split(response, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSuffix(line, "\r")
		m := attrLineRe.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		attr := strings.ToLower(m[1])
		code, ok := palette[attr]
		if !ok {
			continue
		}
		hadCR := strings.HasSuffix(line, "\r")
		colored := "\x1b[" + code + "m" + m[1] + "\x1b[0m:" + m[2] + m[3]
		if hadCR {
			colored += "\r"
		}
		lines[i] = colored
	}
	return strings.Join(lines, "\n")
}

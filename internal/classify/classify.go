// Package classify maps a raw WHOIS query line onto a QueryKind with
// a canonical payload. Classification follows the strict precedence
// order laid out by the dispatcher: special commands, plugin
// suffixes, the built-in suffix table (longest suffix first), DN42
// auto-detection, then well-formed raw token types, with domain as
// the universal fallback.
package classify

import (
	"net"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// Kind identifies one of the disjoint query kinds the dispatcher can
// produce.
type Kind string

const (
	KindRawDomain Kind = "raw_domain"
	KindRawIPv4   Kind = "raw_ipv4"
	KindRawIPv6   Kind = "raw_ipv6"
	KindRawASN    Kind = "raw_asn"
	KindRawCIDR   Kind = "raw_cidr"

	KindGeo          Kind = "geo"
	KindRIRGeo       Kind = "rirgeo"
	KindBGPTool      Kind = "bgptool"
	KindPrefixes     Kind = "prefixes"
	KindIRRExplorer  Kind = "irr_explorer"
	KindIRRRegistry  Kind = "irr_registry"
	KindLookingGlass Kind = "looking_glass"
	KindRPKI         Kind = "rpki"
	KindMANRS        Kind = "manrs"
	KindDNS          Kind = "dns"
	KindTrace        Kind = "trace"
	KindNTP          Kind = "ntp"
	KindPing         Kind = "ping"
	KindSSL          Kind = "ssl"
	KindCRT          Kind = "crt"
	KindMinecraftSrv Kind = "minecraft_server"
	KindMinecraftUsr Kind = "minecraft_user"
	KindSteamApp     Kind = "steam_app"
	KindSteamUser    Kind = "steam_user"
	KindSteamSearch  Kind = "steam_search"
	KindImdbTitle    Kind = "imdb_title"
	KindImdbSearch   Kind = "imdb_search"
	KindPackage      Kind = "package"
	KindWikipedia    Kind = "wikipedia"
	KindACGC         Kind = "acgc"
	KindLyric        Kind = "lyric"
	KindGithub       Kind = "github"
	KindEmail        Kind = "email"
	KindPixiv        Kind = "pixiv"
	KindMeal         Kind = "meal"
	KindPEN          Kind = "pen"
	KindICP          Kind = "icp"
	KindCFStatus     Kind = "cfstatus"
	KindPeeringDB    Kind = "peeringdb"
	KindRDAP         Kind = "rdap"
	KindDesc         Kind = "desc"

	KindUpdatePatch Kind = "update_patch"
	KindHelp        Kind = "help"

	KindPlugin  Kind = "plugin"
	KindInvalid Kind = "invalid"
)

// Query is the classifier's output: a kind plus its canonical payload
// and any kind-specific metadata needed by a handler.
type Query struct {
	Kind         Kind
	Payload      string
	Suffix       string // the matched suffix/tag, uppercased, without the leading '-'
	Registry     string // for IRR-registry / package-registry variants
	DN42Eligible bool
}

// irrRegistries are the explicit IRR source tags from the suffix
// grammar, excluding the aggregate "IRR" explorer tag.
var irrRegistries = map[string]bool{
	"RADB": true, "ALTDB": true, "AFRINIC": true, "APNIC": true,
	"ARIN": true, "BELL": true, "JPIRR": true, "LACNIC": true,
	"LEVEL3": true, "NTTCOM": true, "RIPE": true, "TC": true,
}

var packageRegistries = map[string]bool{
	"CARGO": true, "NPM": true, "PYPI": true, "AUR": true,
	"DEBIAN": true, "UBUNTU": true, "NIXOS": true, "OPENSUSE": true,
	"AOSC": true, "EPEL": true, "ALMA": true, "OPENWRT": true,
	"MODRINTH": true, "CURSEFORGE": true,
}

// suffixOrder lists every built-in suffix (without the leading '-')
// from longest to shortest so that overlapping tags — STEAMSEARCH
// before STEAM, IMDBSEARCH before IMDB — resolve correctly regardless
// of map iteration order.
var suffixOrder = buildSuffixOrder()

func buildSuffixOrder() []string {
	tags := []string{
		"EMAIL", "GEO", "RIRGEO", "BGPTOOL", "PREFIXES", "IRR",
		"LG", "RADB", "ALTDB", "AFRINIC", "APNIC", "ARIN", "BELL",
		"JPIRR", "LACNIC", "LEVEL3", "NTTCOM", "RIPE", "TC",
		"RPKI", "MANRS", "DNS", "TRACEROUTE", "TRACE", "NTP", "PING", "SSL", "CRT",
		"MINECRAFT", "MCU", "MC",
		"STEAMSEARCH", "STEAM", "IMDBSEARCH", "IMDB",
		"CARGO", "NPM", "PYPI", "AUR", "DEBIAN", "UBUNTU", "NIXOS",
		"OPENSUSE", "AOSC", "EPEL", "ALMA", "OPENWRT", "MODRINTH",
		"CURSEFORGE",
		"GITHUB", "WIKIPEDIA", "ACGC", "LYRIC", "PIXIV",
		"MEAL-CN", "MEAL", "PEN", "ICP", "CFSTATUS", "PEERINGDB",
		"RDAP", "DESC",
	}
	// Stable sort by descending length so that, whenever one "-TAG"
	// suffix is itself a suffix of another, the longer tag is always
	// tried first; tags of equal length keep the order listed above.
	for i := 1; i < len(tags); i++ {
		for j := i; j > 0 && len(tags[j]) > len(tags[j-1]); j-- {
			tags[j], tags[j-1] = tags[j-1], tags[j]
		}
	}
	return tags
}

// PluginSuffixes is queried live so newly loaded plugins take effect
// without rebuilding the classifier.
type PluginSuffixes interface {
	// Lookup returns the plugin name registered for suffix (without
	// leading '-', uppercased) and whether one exists.
	Lookup(suffix string) (string, bool)
}

// Classify implements the full precedence chain from §4.6.
func Classify(raw string, plugins PluginSuffixes) Query {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Query{Kind: KindInvalid, Payload: ""}
	}

	upper := strings.ToUpper(s)
	switch upper {
	case "HELP":
		return Query{Kind: KindHelp, Payload: s}
	case "UPDATE-PATCH":
		return Query{Kind: KindUpdatePatch, Payload: s}
	case "LYRIC":
		return Query{Kind: KindLyric, Payload: ""}
	}

	if plugins != nil {
		if kind, payload, suffix, ok := matchPluginSuffix(s, plugins); ok {
			return Query{Kind: kind, Payload: payload, Suffix: suffix}
		}
	}

	if q, ok := matchBuiltinSuffix(s); ok {
		return q
	}

	if isDN42Eligible(s) {
		q := classifyRaw(s)
		q.DN42Eligible = true
		return q
	}

	return classifyRaw(s)
}

func matchPluginSuffix(s string, plugins PluginSuffixes) (Kind, string, string, bool) {
	upper := strings.ToUpper(s)
	idx := strings.LastIndex(upper, "-")
	for idx > 0 {
		suffix := upper[idx+1:]
		if name, ok := plugins.Lookup(suffix); ok {
			_ = name
			return KindPlugin, s[:idx], suffix, true
		}
		idx = strings.LastIndex(upper[:idx], "-")
	}
	return "", "", "", false
}

func matchBuiltinSuffix(s string) (Query, bool) {
	upper := strings.ToUpper(s)
	for _, tag := range suffixOrder {
		suffix := "-" + tag
		if len(upper) <= len(suffix) || !strings.HasSuffix(upper, suffix) {
			continue
		}
		payload := s[:len(s)-len(suffix)]
		kind, registry := kindForTag(tag)
		return Query{Kind: kind, Payload: normalizePayload(kind, payload), Suffix: tag, Registry: registry}, true
	}
	return Query{}, false
}

func kindForTag(tag string) (Kind, string) {
	switch tag {
	case "EMAIL":
		return KindEmail, ""
	case "GEO":
		return KindGeo, ""
	case "RIRGEO":
		return KindRIRGeo, ""
	case "BGPTOOL":
		return KindBGPTool, ""
	case "PREFIXES":
		return KindPrefixes, ""
	case "IRR":
		return KindIRRExplorer, ""
	case "LG":
		return KindLookingGlass, ""
	case "RPKI":
		return KindRPKI, ""
	case "MANRS":
		return KindMANRS, ""
	case "DNS":
		return KindDNS, ""
	case "TRACE", "TRACEROUTE":
		return KindTrace, ""
	case "NTP":
		return KindNTP, ""
	case "PING":
		return KindPing, ""
	case "SSL":
		return KindSSL, ""
	case "CRT":
		return KindCRT, ""
	case "MINECRAFT", "MC":
		return KindMinecraftSrv, ""
	case "MCU":
		return KindMinecraftUsr, ""
	case "STEAM":
		return KindSteamApp, ""
	case "STEAMSEARCH":
		return KindSteamSearch, ""
	case "IMDB":
		return KindImdbTitle, ""
	case "IMDBSEARCH":
		return KindImdbSearch, ""
	case "GITHUB":
		return KindGithub, ""
	case "WIKIPEDIA":
		return KindWikipedia, ""
	case "ACGC":
		return KindACGC, ""
	case "LYRIC":
		return KindLyric, ""
	case "PIXIV":
		return KindPixiv, ""
	case "MEAL", "MEAL-CN":
		return KindMeal, ""
	case "PEN":
		return KindPEN, ""
	case "ICP":
		return KindICP, ""
	case "CFSTATUS":
		return KindCFStatus, ""
	case "PEERINGDB":
		return KindPeeringDB, ""
	case "RDAP":
		return KindRDAP, ""
	case "DESC":
		return KindDesc, ""
	}
	if irrRegistries[tag] {
		return KindIRRRegistry, tag
	}
	if packageRegistries[tag] {
		return KindPackage, tag
	}
	return KindRawDomain, ""
}

func normalizePayload(kind Kind, payload string) string {
	switch kind {
	case KindRawDomain, KindDNS, KindSSL, KindCRT, KindGeo, KindRIRGeo:
		return normalizeDomain(payload)
	default:
		return strings.TrimSpace(payload)
	}
}

func normalizeDomain(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if ascii, err := idna.Lookup.ToASCII(s); err == nil {
		return ascii
	}
	return s
}

// isDN42Eligible implements the four DN42 auto-detect rules from
// §4.6: .dn42 domains, DN42 ASN range, and RFC1918/CGNAT/link-local
// address space for both address families.
func isDN42Eligible(s string) bool {
	lower := strings.ToLower(s)
	if strings.HasSuffix(lower, ".dn42") {
		return true
	}
	if asn, ok := parseASN(s); ok {
		return asn >= 4242420000 && asn <= 4242423999
	}
	host := s
	if ip, _, err := net.ParseCIDR(s); err == nil {
		host = ip.String()
	}
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return isPrivateIPv4(v4)
		}
		return isPrivateIPv6(ip)
	}
	return false
}

func isPrivateIPv4(ip net.IP) bool {
	privateBlocks := []string{
		"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16",
		"100.64.0.0/10", "169.254.0.0/16",
	}
	for _, cidr := range privateBlocks {
		_, block, _ := net.ParseCIDR(cidr)
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

func isPrivateIPv6(ip net.IP) bool {
	_, fc00, _ := net.ParseCIDR("fc00::/7")
	_, fe80, _ := net.ParseCIDR("fe80::/10")
	return fc00.Contains(ip) || fe80.Contains(ip)
}

// parseASN accepts "AS1234", "as1234", or a bare decimal number.
func parseASN(s string) (uint32, bool) {
	t := strings.TrimSpace(s)
	upper := strings.ToUpper(t)
	if strings.HasPrefix(upper, "AS") {
		t = t[2:]
	}
	n, err := strconv.ParseUint(t, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

// classifyRaw classifies a token with no matched suffix: well-formed
// IPv4/IPv6/CIDR/ASN, with domain as the universal fallback.
func classifyRaw(s string) Query {
	if _, _, err := net.ParseCIDR(s); err == nil {
		return Query{Kind: KindRawCIDR, Payload: s}
	}
	if ip := net.ParseIP(s); ip != nil {
		if ip.To4() != nil {
			return Query{Kind: KindRawIPv4, Payload: ip.String()}
		}
		return Query{Kind: KindRawIPv6, Payload: ip.String()}
	}
	if asn, ok := parseASN(s); ok && strings.HasPrefix(strings.ToUpper(s), "AS") {
		return Query{Kind: KindRawASN, Payload: "AS" + strconv.FormatUint(uint64(asn), 10)}
	}
	return Query{Kind: KindRawDomain, Payload: normalizeDomain(s)}
}

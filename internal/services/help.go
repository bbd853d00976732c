package services

import (
	"fmt"
	"strings"

	"whoisgate/internal/classify"
	"whoisgate/internal/patch"
	"whoisgate/internal/registry"
)

// helpSuffixes groups the built-in query suffixes by concern for
// -HELP's output. Package-registry and IRR-source tags are summarized
// rather than listed individually since they share one handler each.
var helpSuffixes = []struct {
	group    string
	suffixes string
}{
	{"network", "-GEO -RIRGEO -BGPTOOL -PREFIXES -IRR -LG -RPKI -MANRS -DNS -TRACE -NTP -PING -SSL -CRT -EMAIL -DESC"},
	{"IRR sources", "-RADB -ALTDB -AFRINIC -APNIC -ARIN -BELL -JPIRR -LACNIC -LEVEL3 -NTTCOM -RIPE -TC"},
	{"games", "-MINECRAFT -MC -MCU -STEAM -STEAMSEARCH -IMDB -IMDBSEARCH -PIXIV"},
	{"packages", "-CARGO -NPM -PYPI -AUR -DEBIAN -UBUNTU -NIXOS -OPENSUSE -AOSC -EPEL -ALMA -OPENWRT -MODRINTH -CURSEFORGE"},
	{"misc", "-GITHUB -WIKIPEDIA -ACGC -LYRIC -MEAL -MEAL-CN -PEN -ICP -CFSTATUS -PEERINGDB -RDAP"},
}

func (d *Deps) registerHelp(reg *registry.Registry) {
	reg.Register(classify.KindHelp, func(ctx *registry.Context) (string, error) {
		var b strings.Builder
		b.WriteString(comment("supported query suffixes, by concern:"))
		for _, g := range helpSuffixes {
			fmt.Fprintf(&b, "%%   %-12s %s\n", g.group+":", g.suffixes)
		}
		b.WriteString(comment("bare domains, IPv4/IPv6 addresses, CIDR blocks, and AS numbers are queried directly"))
		if d.Patch != nil {
			if files := d.Patch.Active().Files; len(files) > 0 {
				names := make([]string, len(files))
				for i, f := range files {
					names[i] = f.Name
				}
				fmt.Fprintf(&b, "%% loaded patches: %s\n", strings.Join(names, ", "))
			}
		}
		return b.String(), nil
	}, false)

	reg.Register(classify.KindUpdatePatch, func(ctx *registry.Context) (string, error) {
		if d.Patch == nil {
			return comment("patch updates are not configured"), nil
		}
		reports, err := d.Patch.Update(d.PatchIndexURL)
		if err != nil {
			return comment("patch update failed: %v", err), nil
		}
		return patch.FormatReport(reports), nil
	}, false)
}

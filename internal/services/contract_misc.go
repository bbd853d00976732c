package services

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"whoisgate/internal/classify"
	"whoisgate/internal/registry"
)

// --- Meal (TheMealDB) ---------------------------------------------------

type mealDBResponse struct {
	Meals []struct {
		Name         string `json:"strMeal"`
		Category     string `json:"strCategory"`
		Area         string `json:"strArea"`
		Instructions string `json:"strInstructions"`
		Source       string `json:"strSource"`
	} `json:"meals"`
}

func (d *Deps) registerMeal(reg *registry.Registry) {
	reg.Register(classify.KindMeal, func(ctx *registry.Context) (string, error) {
		var r mealDBResponse
		if err := d.getJSON(ctx.Ctx, "https://www.themealdb.com/api/json/v1/1/random.php", &r); err != nil || len(r.Meals) == 0 {
			return comment("random meal lookup failed"), nil
		}
		meal := r.Meals[0]
		var b strings.Builder
		b.WriteString(comment("Meal Information from TheMealDB"))
		b.WriteString(comment("https://www.themealdb.com/"))
		fmt.Fprintf(&b, "name: %s\n", meal.Name)
		fmt.Fprintf(&b, "category: %s\n", meal.Category)
		fmt.Fprintf(&b, "area: %s\n", meal.Area)
		fmt.Fprintf(&b, "instructions: %s\n", meal.Instructions)
		if meal.Source != "" {
			fmt.Fprintf(&b, "source: %s\n", meal.Source)
		}
		return b.String(), nil
	}, false)
}

// --- Pixiv ---------------------------------------------------------------

// registerPixiv degrades gracefully: the upstream project's Pixiv
// handler is built on a Python client (PyO3-bound), which has no
// equivalent library in this module's dependency graph, so the -PIXIV
// suffix resolves to a pointer at the public gallery rather than an
// unauthenticated scrape.
func (d *Deps) registerPixiv(reg *registry.Registry) {
	reg.Register(classify.KindPixiv, func(ctx *registry.Context) (string, error) {
		return comment("Pixiv artwork lookup requires an authenticated Pixiv session; see https://www.pixiv.net/en/artworks/%s", ctx.Query.Payload), nil
	}, false)
}

// --- IANA Private Enterprise Numbers -----------------------------------

const (
	penRegistryURL = "https://www.iana.org/assignments/enterprise-numbers/enterprise-numbers.txt"
	penCacheKey    = "iana_pen_registry"
	penCacheTTL    = 7 * 24 * time.Hour
)

type penEntry struct {
	Number       string
	Organization string
	Contact      string
	Email        string
}

// fetchPENRegistry downloads and parses IANA's bulk PEN text file,
// caching the raw bytes since it is tens of thousands of lines and
// changes infrequently.
func (d *Deps) fetchPENRegistry(ctx context.Context) ([]byte, error) {
	if d.Store != nil {
		if cached, err := d.Store.Get(servicesCacheSubdb, penCacheKey); err == nil {
			return cached, nil
		}
	}
	body, status, err := d.getBytes(ctx, penRegistryURL)
	if err != nil {
		return nil, err
	}
	if status != 200 {
		return nil, fmt.Errorf("iana pen registry: unexpected status %d", status)
	}
	if d.Store != nil {
		_ = d.Store.Put(servicesCacheSubdb, penCacheKey, body, penCacheTTL)
	}
	return body, nil
}

// parsePENEntry scans the four-line-per-record block format IANA
// publishes: number, organization, contact, email, each indented.
func parsePENEntry(body []byte, number string) (penEntry, bool) {
	lines := strings.Split(string(body), "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line != number {
			continue
		}
		entry := penEntry{Number: number}
		if i+1 < len(lines) {
			entry.Organization = strings.TrimSpace(lines[i+1])
		}
		if i+2 < len(lines) {
			entry.Contact = strings.TrimSpace(lines[i+2])
		}
		if i+3 < len(lines) {
			entry.Email = strings.TrimSpace(lines[i+3])
		}
		return entry, true
	}
	return penEntry{}, false
}

func (d *Deps) registerPEN(reg *registry.Registry) {
	reg.Register(classify.KindPEN, func(ctx *registry.Context) (string, error) {
		if _, err := strconv.Atoi(ctx.Query.Payload); err != nil {
			return comment("PEN query requires a numeric enterprise number"), nil
		}
		body, err := d.fetchPENRegistry(ctx.Ctx)
		if err != nil {
			return comment("IANA PEN registry fetch failed: %v", err), nil
		}
		entry, ok := parsePENEntry(body, ctx.Query.Payload)
		if !ok {
			return comment("PEN %s not found in the IANA registry", ctx.Query.Payload), nil
		}
		var b strings.Builder
		b.WriteString(comment("IANA Private Enterprise Number (PEN) Information"))
		b.WriteString(comment("https://www.iana.org/assignments/enterprise-numbers"))
		fmt.Fprintf(&b, "Enterprise-Number: %s\n", entry.Number)
		fmt.Fprintf(&b, "Organization: %s\n", entry.Organization)
		fmt.Fprintf(&b, "Contact: %s\n", entry.Contact)
		fmt.Fprintf(&b, "Email: %s\n", entry.Email)
		fmt.Fprintf(&b, "OID: 1.3.6.1.4.1.%s\n", entry.Number)
		fmt.Fprintf(&b, "OID-Prefix: 1.3.6.1.4.1\n")
		return b.String(), nil
	}, false)
}

// --- ICP (Baidu / DNSPod) -----------------------------------------------

type dnspodICPResponse struct {
	Data struct {
		ICP     string `json:"icp"`
		Company string `json:"unit_name"`
		Nature  string `json:"nature"`
		Update  string `json:"update_time"`
	} `json:"data"`
}

func (d *Deps) registerICP(reg *registry.Registry) {
	reg.Register(classify.KindICP, func(ctx *registry.Context) (string, error) {
		u := "https://icp.show/api/" + url.PathEscape(ctx.Query.Payload)
		var r dnspodICPResponse
		if err := d.getJSON(ctx.Ctx, u, &r); err != nil || r.Data.ICP == "" {
			return comment("no ICP filing found for %s", ctx.Query.Payload), nil
		}
		var b strings.Builder
		b.WriteString(comment("ICP filing for %s", ctx.Query.Payload))
		fmt.Fprintf(&b, "icp-number: %s\n", r.Data.ICP)
		fmt.Fprintf(&b, "unit-name: %s\n", r.Data.Company)
		fmt.Fprintf(&b, "unit-nature: %s\n", r.Data.Nature)
		fmt.Fprintf(&b, "updated: %s\n", r.Data.Update)
		return b.String(), nil
	}, false)
}

// --- Cloudflare Status ---------------------------------------------------

type cfStatusResponse struct {
	Status struct {
		Indicator   string `json:"indicator"`
		Description string `json:"description"`
	} `json:"status"`
}

func (d *Deps) registerCFStatus(reg *registry.Registry) {
	reg.Register(classify.KindCFStatus, func(ctx *registry.Context) (string, error) {
		var r cfStatusResponse
		if err := d.getJSON(ctx.Ctx, "https://www.cloudflarestatus.com/api/v2/status.json", &r); err != nil {
			return comment("Cloudflare status lookup failed: %v", err), nil
		}
		var b strings.Builder
		b.WriteString(comment("Cloudflare Status"))
		fmt.Fprintf(&b, "indicator: %s\n", r.Status.Indicator)
		fmt.Fprintf(&b, "description: %s\n", r.Status.Description)
		fmt.Fprintf(&b, "status-url: https://www.cloudflarestatus.com/\n")
		return b.String(), nil
	}, false)
}

// --- PeeringDB ------------------------------------------------------------

type peeringDBNetResponse struct {
	Data []struct {
		Name         string `json:"name"`
		ASN          int    `json:"asn"`
		Website      string `json:"website"`
		InfoType     string `json:"info_type"`
		LookingGlass string `json:"looking_glass"`
	} `json:"data"`
}

func (d *Deps) registerPeeringDB(reg *registry.Registry) {
	reg.Register(classify.KindPeeringDB, func(ctx *registry.Context) (string, error) {
		asn := strings.TrimPrefix(strings.ToUpper(ctx.Query.Payload), "AS")
		u := "https://www.peeringdb.com/api/net?asn=" + url.QueryEscape(asn)
		var r peeringDBNetResponse
		if err := d.getJSON(ctx.Ctx, u, &r); err != nil || len(r.Data) == 0 {
			return comment("no PeeringDB entry for AS%s", asn), nil
		}
		rec := r.Data[0]
		var b strings.Builder
		b.WriteString(comment("PeeringDB network AS%d", rec.ASN))
		fmt.Fprintf(&b, "name: %s\n", rec.Name)
		fmt.Fprintf(&b, "info-type: %s\n", rec.InfoType)
		fmt.Fprintf(&b, "website: %s\n", rec.Website)
		if rec.LookingGlass != "" {
			fmt.Fprintf(&b, "looking-glass: %s\n", rec.LookingGlass)
		}
		fmt.Fprintf(&b, "peeringdb-url: https://www.peeringdb.com/asn/%d\n", rec.ASN)
		return b.String(), nil
	}, false)
}

// --- RDAP -----------------------------------------------------------------

// registerRDAP serves -RDAP via rdap.org's public bootstrap
// redirector rather than a dedicated RDAP client library: the
// upstream project's RDAP handler is built on a Rust crate with no
// equivalent in this module's example pack, and rdap.org's
// bootstrap-and-redirect behavior makes a bare net/http GET
// sufficient.
func (d *Deps) registerRDAP(reg *registry.Registry) {
	reg.Register(classify.KindRDAP, func(ctx *registry.Context) (string, error) {
		kind := rdapObjectKind(ctx.Query.Payload)
		u := fmt.Sprintf("https://rdap.org/%s/%s", kind, url.PathEscape(ctx.Query.Payload))
		body, status, err := d.getBytes(ctx.Ctx, u)
		if err != nil {
			return comment("RDAP lookup failed: %v", err), nil
		}
		if status != 200 {
			return comment("RDAP lookup for %s returned status %d", ctx.Query.Payload, status), nil
		}
		var b strings.Builder
		b.WriteString(comment("RDAP response for %s (via rdap.org)", ctx.Query.Payload))
		b.Write(body)
		b.WriteString("\n")
		return b.String(), nil
	}, false)
}

func rdapObjectKind(payload string) string {
	upper := strings.ToUpper(payload)
	switch {
	case strings.HasPrefix(upper, "AS"):
		return "autnum"
	case strings.Contains(payload, ":") || strings.Contains(payload, "."):
		if looksLikeIP(payload) {
			return "ip"
		}
	}
	return "domain"
}

func looksLikeIP(s string) bool {
	for _, c := range s {
		if c != '.' && c != ':' && !strings.ContainsRune("0123456789abcdefABCDEF/", c) {
			return false
		}
	}
	return true
}

// --- Desc -----------------------------------------------------------------

var descLinePrefixes = []string{"descr:", "remarks:", "description:", "org-name:"}

// registerDesc implements -DESC: it runs the same WHOIS/DN42
// resolution the bare query would and extracts only the free-text
// descriptive lines, per the upstream project's "short description"
// convenience suffix.
func (d *Deps) registerDesc(reg *registry.Registry) {
	reg.Register(classify.KindDesc, func(ctx *registry.Context) (string, error) {
		raw := d.WhoisClient.Query(ctx.Ctx, ctx.Query.Payload, true)
		var b strings.Builder
		b.WriteString(comment("description lines for %s", ctx.Query.Payload))
		found := false
		for _, line := range strings.Split(raw, "\n") {
			lower := strings.ToLower(strings.TrimSpace(line))
			for _, prefix := range descLinePrefixes {
				if strings.HasPrefix(lower, prefix) {
					b.WriteString(strings.TrimSpace(line))
					b.WriteString("\n")
					found = true
					break
				}
			}
		}
		if !found {
			b.WriteString(comment("no description lines found"))
		}
		return b.String(), nil
	}, false)
}

// --- Email -----------------------------------------------------------------

var emailRegexp = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// registerEmail implements -EMAIL: it resolves the base object plus
// its "-MNT" and "-DN42" suffixed variants through DN42, also runs a
// regular WHOIS query for the base object, and extracts every email
// address found in the combined text.
func (d *Deps) registerEmail(reg *registry.Registry) {
	reg.Register(classify.KindEmail, func(ctx *registry.Context) (string, error) {
		var texts []string
		if d.DN42 != nil {
			for _, variant := range []string{ctx.Query.Payload, ctx.Query.Payload + "-MNT", ctx.Query.Payload + "-DN42"} {
				if r, ok := d.DN42.LookupFallback(variant); ok {
					texts = append(texts, r)
				}
			}
		}
		texts = append(texts, d.WhoisClient.Query(ctx.Ctx, ctx.Query.Payload, true))

		seen := map[string]bool{}
		var emails []string
		for _, text := range texts {
			for _, m := range emailRegexp.FindAllString(text, -1) {
				if !seen[m] {
					seen[m] = true
					emails = append(emails, m)
				}
			}
		}
		var b strings.Builder
		b.WriteString(comment("email addresses found for %s", ctx.Query.Payload))
		if len(emails) == 0 {
			b.WriteString(comment("none found"))
			return b.String(), nil
		}
		for _, e := range emails {
			fmt.Fprintf(&b, "email: %s\n", e)
		}
		return b.String(), nil
	}, false)
}

// Package services implements C6's handler surface: one file per
// concern, each registering its query kinds into the shared registry
// at startup. Handlers with real protocol weight (WHOIS referral
// chasing, DN42, RPKI, IRR, DNS, traceroute, SSL/CRT) are fully
// implemented; the long tail of third-party-API handlers (Steam,
// IMDb, GitHub, Wikipedia, ...) are real HTTP-calling handlers with a
// small, honest formatter rather than an exhaustive field mapping of
// each upstream API, per spec.md §1's own scope note.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"whoisgate/internal/dn42"
	"whoisgate/internal/logging"
	"whoisgate/internal/patch"
	"whoisgate/internal/registry"
	"whoisgate/internal/store"
	"whoisgate/internal/whoisclient"
)

const userAgent = "whoisgate/1.0 (+https://github.com/)"

// servicesCacheSubdb holds small, long-TTL caches for handlers that
// poll a bulk upstream dataset (MANRS ASN list, IANA PEN registry)
// rather than querying per-lookup.
const servicesCacheSubdb = "services_cache"

// Deps is the shared set of components every handler may need.
type Deps struct {
	WhoisClient *whoisclient.Client
	DN42        *dn42.Manager
	Patch       *patch.Manager
	Store       *store.Store
	Log         *logging.Logger
	HTTP        *http.Client

	// OMDbAPIKey enables the -IMDB/-IMDBSEARCH handlers; left empty,
	// they degrade to a message pointing at where to get one, matching
	// the upstream project's own graceful-degradation behavior.
	OMDbAPIKey string

	// PatchIndexURL is the default remote index UPDATE-PATCH fetches
	// from, since that query carries no URL argument of its own.
	PatchIndexURL string
}

func NewDeps(wc *whoisclient.Client, d *dn42.Manager, p *patch.Manager, st *store.Store, log *logging.Logger, omdbAPIKey, patchIndexURL string) *Deps {
	return &Deps{
		WhoisClient:   wc,
		DN42:          d,
		Patch:         p,
		Store:         st,
		Log:           log.With("services"),
		HTTP:          &http.Client{Timeout: 10 * time.Second},
		OMDbAPIKey:    omdbAPIKey,
		PatchIndexURL: patchIndexURL,
	}
}

// RegisterAll wires every built-in handler into reg.
func (d *Deps) RegisterAll(reg *registry.Registry) {
	d.registerWhois(reg)
	d.registerRPKI(reg)
	d.registerIRR(reg)
	d.registerLookingGlass(reg)
	d.registerBGPTool(reg)
	d.registerManrs(reg)
	d.registerDNS(reg)
	d.registerTrace(reg)
	d.registerNTP(reg)
	d.registerPing(reg)
	d.registerSSL(reg)
	d.registerCRT(reg)
	d.registerPackages(reg)
	d.registerContract(reg)
	d.registerHelp(reg)
}

// getJSON issues a GET request bound to ctx and decodes a JSON body
// into out. It sets a descriptive User-Agent, per the upstream
// etiquette every handler in this package follows. ctx is always the
// per-connection deadline context a handler receives via
// registry.Context.Ctx, so a slow upstream is bounded by the same
// deadline that bounds the rest of the request, per §4.9/§5.
func (d *Deps) getJSON(ctx context.Context, url string, out any) error {
	body, status, err := d.getBytes(ctx, url)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", url, status)
	}
	return json.Unmarshal(body, out)
}

func (d *Deps) getBytes(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.HTTP.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading %s: %w", url, err)
	}
	return body, resp.StatusCode, nil
}

// comment wraps lines with the "% " WHOIS comment prefix used
// throughout this package's formatted output.
func comment(format string, v ...any) string {
	return "% " + fmt.Sprintf(format, v...) + "\n"
}

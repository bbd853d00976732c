package dn42

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"whoisgate/internal/logging"
	"whoisgate/internal/store"
)

const httpCacheSubdb = "dn42_http"

// registryDirs lists the RPSL directories making up the mirror, keyed
// by the object-type attribute used as each file's primary key.
var registryDirs = map[string]string{
	"inetnum":      "data/inetnum",
	"inet6num":     "data/inet6num",
	"aut-num":      "data/aut-num",
	"route":        "data/route",
	"route6":       "data/route6",
	"dns":          "data/dns",
	"mntner":       "data/mntner",
	"person":       "data/person",
	"organisation": "data/organisation",
	"schema":       "data/schema",
	"as-block":     "data/as-block",
	"as-set":       "data/as-set",
	"route-set":    "data/route-set",
}

// Backend is either the git mirror or the HTTP fallback.
type Backend interface {
	// Refresh brings the backend's underlying data up to date.
	Refresh() error
	// Files returns the object-type and bytes for every registry
	// object currently available, calling fn for each.
	Files(fn func(objectType string, data []byte)) error
}

// Manager owns the active Index, swapped atomically on each refresh.
type Manager struct {
	backend Backend
	log     *logging.Logger
	active  atomic.Value // *Index
}

// New builds a Manager using the git backend when repoURL/mirrorPath
// are usable and the git binary exists, falling back to the HTTP
// backend otherwise — mirroring the platform-aware selection in the
// original implementation, but gated on tool availability rather than
// OS family, since the git binary is what actually matters in Go.
func New(backendKind, repoURL, mirrorPath, httpBaseURL string, cacheTTL time.Duration, st *store.Store, log *logging.Logger) *Manager {
	log = log.With("dn42")
	useGit := false
	if backendKind == "git" && repoURL != "" && mirrorPath != "" {
		if _, err := exec.LookPath("git"); err == nil {
			useGit = true
		} else {
			log.Warn("git binary not found, using the HTTP back-end")
		}
	}
	var backend Backend
	if useGit {
		backend = &gitBackend{repoURL: repoURL, mirrorPath: mirrorPath, log: log}
	} else {
		backend = &httpBackend{baseURL: httpBaseURL, cacheTTL: cacheTTL, store: st, log: log}
	}
	m := &Manager{backend: backend, log: log}
	m.active.Store(NewIndex())
	return m
}

// Active returns the current immutable index.
func (m *Manager) Active() *Index {
	return m.active.Load().(*Index)
}

// Refresh rebuilds the index from the backend and swaps it in
// atomically. Readers in flight keep using the prior index until this
// call returns.
func (m *Manager) Refresh() error {
	if err := m.backend.Refresh(); err != nil {
		return fmt.Errorf("dn42: backend refresh failed: %w", err)
	}

	idx := NewIndex()
	err := m.backend.Files(func(objectType string, data []byte) {
		rec, err := ParseRPSL(objectType, data)
		if err != nil || rec.PrimaryKey == "" {
			return
		}
		idx.Add(rec)
	})
	if err != nil {
		return fmt.Errorf("dn42: indexing failed: %w", err)
	}
	idx.builtAt = time.Now().Unix()
	m.active.Store(idx)
	m.log.Info("refreshed DN42 index: %d identifiers, %d ASNs, %d inetnum, %d inet6num",
		len(idx.byID), len(idx.byASN), len(idx.byInetnum), len(idx.byInet6num))
	return nil
}

// QueryASN renders the aut-num record for asn, or ("", false) on miss.
func (m *Manager) QueryASN(asn string) (string, bool) {
	r, ok := m.Active().ByASN(asn)
	if !ok {
		return "", false
	}
	return r.Render(), true
}

// QueryIP renders the most specific inet{,6}num record covering ip.
func (m *Manager) QueryIP(ip net.IP) (string, bool) {
	r, ok := m.Active().ByIP(ip)
	if !ok {
		return "", false
	}
	return r.Render(), true
}

// QueryID renders a record by object type and primary key, e.g. a
// maintainer or person handle.
func (m *Manager) QueryID(objectType, key string) (string, bool) {
	r, ok := m.Active().ByID(objectType, key)
	if !ok {
		return "", false
	}
	return r.Render(), true
}

// LookupFallback makes Manager satisfy both whoisclient.DN42Lookup and
// request.DN42Fallback: given a raw query token, it guesses whether
// it names an ASN, an IP/CIDR, or a bare object handle and tries the
// matching index, per §4.8 step 4.
func (m *Manager) LookupFallback(query string) (string, bool) {
	q := strings.TrimSpace(query)
	upper := strings.ToUpper(q)
	if strings.HasPrefix(upper, "AS") {
		if _, err := strconv.ParseUint(upper[2:], 10, 32); err == nil {
			return m.QueryASN(upper)
		}
	}
	if ip, _, err := net.ParseCIDR(q); err == nil {
		return m.QueryIP(ip)
	}
	if ip := net.ParseIP(q); ip != nil {
		return m.QueryIP(ip)
	}
	for _, objectType := range []string{"mntner", "person", "organisation", "as-set", "route-set"} {
		if r, ok := m.QueryID(objectType, q); ok {
			return r, ok
		}
	}
	return "", false
}

// gitBackend clones/pulls a registry mirror into a working directory
// and reads RPSL objects straight off disk.
type gitBackend struct {
	repoURL    string
	mirrorPath string
	log        *logging.Logger
}

func (g *gitBackend) Refresh() error {
	if _, err := os.Stat(filepath.Join(g.mirrorPath, ".git")); err != nil {
		g.log.Info("cloning DN42 mirror from %s into %s", g.repoURL, g.mirrorPath)
		if err := os.MkdirAll(filepath.Dir(g.mirrorPath), 0o755); err != nil {
			return err
		}
		cmd := exec.Command("git", "clone", "--depth", "1", g.repoURL, g.mirrorPath)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("git clone failed: %w: %s", err, out)
		}
		return nil
	}

	g.log.Debug("pulling DN42 mirror updates in %s", g.mirrorPath)
	cmd := exec.Command("git", "-C", g.mirrorPath, "pull", "--ff-only")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git pull failed: %w: %s", err, out)
	}
	return nil
}

func (g *gitBackend) Files(fn func(objectType string, data []byte)) error {
	for objectType, dir := range registryDirs {
		full := filepath.Join(g.mirrorPath, dir)
		entries, err := os.ReadDir(full)
		if err != nil {
			continue // directory absent in this mirror snapshot; not fatal
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			data, err := os.ReadFile(filepath.Join(full, e.Name()))
			if err != nil {
				continue
			}
			fn(objectType, data)
		}
	}
	return nil
}

// httpBackend fetches individual registry files on demand over HTTPS
// and caches them in the KV store under dn42_http.
type httpBackend struct {
	baseURL  string
	cacheTTL time.Duration
	store    *store.Store
	log      *logging.Logger
	client   http.Client
}

// Refresh for the HTTP backend is a light touch: it does not force a
// bulk re-fetch (cache invalidation is time-based per §4.4), it only
// verifies reachability.
func (h *httpBackend) Refresh() error {
	resp, err := h.client.Get(h.baseURL + "/")
	if err != nil {
		return fmt.Errorf("dn42 http backend unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}

// Files lists each registry directory and hands every object in it to
// fn. Listings and object files are served from the dn42_http cache
// while their TTL lasts and fetched over HTTP otherwise.
func (h *httpBackend) Files(fn func(objectType string, data []byte)) error {
	for objectType, dir := range registryDirs {
		names, err := h.listDirectory(dir)
		if err != nil {
			h.log.Debug("dn42 http backend: listing %s failed: %v", dir, err)
			continue
		}
		for _, name := range names {
			data, err := h.fetchFile(dir, name)
			if err != nil {
				continue
			}
			fn(objectType, data)
		}
	}
	return nil
}

func (h *httpBackend) listDirectory(dir string) ([]string, error) {
	cacheKey := "list:" + dir
	if cached, err := h.store.Get(httpCacheSubdb, cacheKey); err == nil {
		return strings.Split(string(cached), "\n"), nil
	}

	resp, err := h.client.Get(h.baseURL + "/" + dir + "/")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	names := parseDirectoryListing(string(body))
	_ = h.store.Put(httpCacheSubdb, cacheKey, []byte(strings.Join(names, "\n")), h.cacheTTL)
	return names, nil
}

func (h *httpBackend) fetchFile(dir, name string) ([]byte, error) {
	cacheKey := "file:" + dir + "/" + name
	if cached, err := h.store.Get(httpCacheSubdb, cacheKey); err == nil {
		return cached, nil
	}

	resp, err := h.client.Get(h.baseURL + "/" + dir + "/" + name)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	_ = h.store.Put(httpCacheSubdb, cacheKey, data, h.cacheTTL)
	return data, nil
}

// parseDirectoryListing extracts hrefs from a plain Apache/nginx-style
// autoindex page — the HTTP back-end's only assumption about the
// remote registry mirror's web server.
func parseDirectoryListing(html string) []string {
	var names []string
	for _, line := range strings.Split(html, "\n") {
		idx := strings.Index(line, `href="`)
		if idx < 0 {
			continue
		}
		rest := line[idx+len(`href="`):]
		end := strings.Index(rest, `"`)
		if end < 0 {
			continue
		}
		name := rest[:end]
		if name == "" || strings.HasPrefix(name, "/") || strings.HasPrefix(name, "..") || strings.HasSuffix(name, "/") {
			continue
		}
		names = append(names, name)
	}
	return names
}

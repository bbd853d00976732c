package patch

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"whoisgate/internal/logging"
	"whoisgate/internal/store"
)

const subdb = "patches"

// Metadata is the per-patch bookkeeping record kept alongside its
// body, per §3's "Patch bundle metadata".
type Metadata struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	SHA1     string `json:"sha1"`
	Size     int64  `json:"size"`
	Enabled  bool   `json:"enabled"`
	Priority int    `json:"priority"`
	Modified string `json:"modified"`
}

// indexEntry is one element of the remote patch index document.
type indexEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	SHA1        string `json:"sha1"`
	Size        int64  `json:"size"`
	Priority    int    `json:"priority"`
	Enabled     bool   `json:"enabled"`
	Modified    string `json:"modified"`
}

type remoteIndex struct {
	Version     string       `json:"version"`
	LastUpdated string       `json:"last_updated"`
	Patches     []indexEntry `json:"patches"`
}

// Manager owns the active RuleSet and mediates loads, reloads, and
// remote updates. The active set is an immutable snapshot swapped
// under atomic.Value so request workers never see a half-built set.
type Manager struct {
	store      *store.Store
	log        *logging.Logger
	active     atomic.Value // holds *RuleSet
	httpClient *http.Client
}

func New(st *store.Store, log *logging.Logger) *Manager {
	m := &Manager{
		store:      st,
		log:        log.With("patch"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	m.active.Store((*RuleSet)(nil))
	return m
}

// Active returns the current immutable rule set for request workers
// to apply against a response.
func (m *Manager) Active() *RuleSet {
	return m.active.Load().(*RuleSet)
}

// Load builds a RuleSet from every "file:*" entry currently in the
// "patches" sub-db and swaps it in atomically.
func (m *Manager) Load() error {
	var files []File
	err := m.store.Iter(subdb, "file:", func(e store.Entry) error {
		name := strings.TrimPrefix(e.Key, "file:")
		f, err := ParseFile(name, e.Value)
		if err != nil {
			m.log.Warn("skipping unparseable patch file %s: %v", name, err)
			return nil
		}
		files = append(files, *f)
		return nil
	})
	if err != nil {
		return fmt.Errorf("patch: load failed: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Ordinal < files[j].Ordinal })
	m.active.Store(&RuleSet{Files: files})
	m.log.Info("loaded %d patch files", len(files))
	return nil
}

// UpdateReport is one line of the WHOIS-formatted report returned by
// UPDATE-PATCH, per §4.2's remote-update entry point.
type UpdateReport struct {
	Name     string
	Expected string
	Actual   string
	Size     int64
	Priority int
	Modified string
	Status   string // "VERIFIED" or a failure reason
}

// Update fetches the remote patch index, verifies and stores every
// enabled entry whose SHA-1 matches, and reloads the active rule set
// from what's now in the store. A mismatched patch is reported as a
// failure and the previously stored copy (if any) is left untouched.
func (m *Manager) Update(indexURL string) ([]UpdateReport, error) {
	idx, err := m.fetchIndex(indexURL)
	if err != nil {
		return nil, fmt.Errorf("patch: failed to fetch index: %w", err)
	}

	var reports []UpdateReport
	for _, entry := range idx.Patches {
		report := UpdateReport{
			Name: entry.Name, Expected: entry.SHA1, Size: entry.Size,
			Priority: entry.Priority, Modified: entry.Modified,
		}
		if !entry.Enabled {
			report.Status = "DISABLED"
			reports = append(reports, report)
			continue
		}

		body, err := m.fetchBody(entry.URL)
		if err != nil {
			report.Status = fmt.Sprintf("FETCH_FAILED: %v", err)
			reports = append(reports, report)
			continue
		}

		sum := sha1.Sum(body)
		actual := hex.EncodeToString(sum[:])
		report.Actual = actual

		if actual != strings.ToLower(entry.SHA1) {
			report.Status = "MISMATCH"
			reports = append(reports, report)
			continue
		}

		if err := m.store.Put(subdb, "file:"+entry.Name, body, 0); err != nil {
			report.Status = fmt.Sprintf("STORE_FAILED: %v", err)
			reports = append(reports, report)
			continue
		}
		meta := Metadata{
			Name: entry.Name, URL: entry.URL, SHA1: actual, Size: entry.Size,
			Enabled: entry.Enabled, Priority: entry.Priority, Modified: entry.Modified,
		}
		metaBytes, _ := json.Marshal(meta)
		_ = m.store.Put(subdb, "meta:"+entry.Name, metaBytes, 0)

		report.Status = "VERIFIED"
		reports = append(reports, report)
	}

	if err := m.Load(); err != nil {
		m.log.Warn("reload after update failed: %v", err)
	}
	return reports, nil
}

func (m *Manager) fetchIndex(url string) (*remoteIndex, error) {
	resp, err := m.httpClient.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("index fetch: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var idx remoteIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

func (m *Manager) fetchBody(url string) ([]byte, error) {
	resp, err := m.httpClient.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// FormatReport renders UPDATE-PATCH's results as the WHOIS-style
// report §4.2 requires.
func FormatReport(reports []UpdateReport) string {
	var b strings.Builder
	b.WriteString("% UPDATE-PATCH report\n")
	for _, r := range reports {
		fmt.Fprintf(&b, "%% %-30s status=%-9s expected=%s actual=%s size=%d priority=%d modified=%s\n",
			r.Name, r.Status, r.Expected, r.Actual, r.Size, r.Priority, r.Modified)
	}
	return b.String()
}

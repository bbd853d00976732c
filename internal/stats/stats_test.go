package stats

import (
	"path/filepath"
	"testing"
	"time"

	"whoisgate/internal/logging"
	"whoisgate/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"), []string{subdb}, logging.New("error"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRecordRequestCounts(t *testing.T) {
	st := openTestStore(t)
	s := New(st)

	s.RecordRequest("raw_domain", 128, 10*time.Millisecond)
	s.RecordRequest("raw_domain", 256, 20*time.Millisecond)
	s.RecordRequest("dns", 64, 5*time.Millisecond)

	snap := s.Snapshot()
	if snap.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", snap.TotalRequests)
	}
	if snap.BytesOut != 448 {
		t.Errorf("BytesOut = %d, want 448", snap.BytesOut)
	}
	if snap.PerKindCounts["raw_domain"] != 2 {
		t.Errorf("per-kind raw_domain = %d, want 2", snap.PerKindCounts["raw_domain"])
	}
}

func TestFlushAndRestore(t *testing.T) {
	st := openTestStore(t)
	s := New(st)
	s.RecordRequest("help", 10, time.Millisecond)
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	s2 := New(st)
	snap := s2.Snapshot()
	if snap.TotalRequests != 1 {
		t.Errorf("restored TotalRequests = %d, want 1", snap.TotalRequests)
	}
}

func TestConnectionCounters(t *testing.T) {
	st := openTestStore(t)
	s := New(st)
	s.ConnectionOpened()
	s.ConnectionOpened()
	s.ConnectionClosed()
	if got := s.Snapshot().CurrentConns; got != 1 {
		t.Errorf("CurrentConns = %d, want 1", got)
	}
}

package store

import (
	"path/filepath"
	"testing"
	"time"

	"whoisgate/internal/logging"
)

func openTestStore(t *testing.T, subdbs ...string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	st, err := Open(path, subdbs, logging.New("error"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestPutGetRoundTrip(t *testing.T) {
	st := openTestStore(t, "things")

	if err := st.Put("things", "k1", []byte("v1"), 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := st.Get("things", "k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v1" {
		t.Errorf("Get = %q, want %q", got, "v1")
	}
}

func TestGetMissingKeyReturnsErrNotFound(t *testing.T) {
	st := openTestStore(t, "things")
	if _, err := st.Get("things", "absent"); err != ErrNotFound {
		t.Errorf("Get on absent key = %v, want ErrNotFound", err)
	}
}

func TestPutUnknownSubdbErrors(t *testing.T) {
	st := openTestStore(t, "things")
	if err := st.Put("no-such-subdb", "k", []byte("v"), 0); err == nil {
		t.Error("Put into an unregistered sub-db should error")
	}
}

func TestGetExpiresEntryAfterTTL(t *testing.T) {
	st := openTestStore(t, "things")

	if err := st.Put("things", "ttl-key", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := st.Get("things", "ttl-key"); err != nil {
		t.Fatalf("Get immediately after Put: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if _, err := st.Get("things", "ttl-key"); err != ErrNotFound {
		t.Errorf("Get after TTL expiry = %v, want ErrNotFound", err)
	}
}

func TestPutNoTTLNeverExpires(t *testing.T) {
	st := openTestStore(t, "things")
	if err := st.Put("things", "forever", []byte("v"), 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := st.Get("things", "forever"); err != nil {
		t.Errorf("Get on a no-TTL entry = %v, want nil error", err)
	}
}

func TestDeleteRemovesKey(t *testing.T) {
	st := openTestStore(t, "things")
	if err := st.Put("things", "gone-soon", []byte("v"), 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := st.Delete("things", "gone-soon"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := st.Get("things", "gone-soon"); err != ErrNotFound {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}
}

func TestIterSkipsExpiredAndNonMatchingKeys(t *testing.T) {
	st := openTestStore(t, "things")

	if err := st.Put("things", "pfx:a", []byte("a"), 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := st.Put("things", "pfx:b", []byte("b"), 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := st.Put("things", "pfx:expired", []byte("x"), 5*time.Millisecond); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := st.Put("things", "other:c", []byte("c"), 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	seen := map[string]string{}
	if err := st.Iter("things", "pfx:", func(e Entry) error {
		seen[e.Key] = string(e.Value)
		return nil
	}); err != nil {
		t.Fatalf("Iter: %v", err)
	}

	want := map[string]string{"pfx:a": "a", "pfx:b": "b"}
	if len(seen) != len(want) {
		t.Fatalf("Iter yielded %v, want %v", seen, want)
	}
	for k, v := range want {
		if seen[k] != v {
			t.Errorf("Iter[%q] = %q, want %q", k, seen[k], v)
		}
	}
}

func TestIterStopsEarlyOnError(t *testing.T) {
	st := openTestStore(t, "things")
	for _, k := range []string{"a", "b", "c"} {
		if err := st.Put("things", k, []byte(k), 0); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	errStop := ErrNotFound // reuse a sentinel rather than declaring a new one
	count := 0
	err := st.Iter("things", "", func(e Entry) error {
		count++
		return errStop
	})
	if err != errStop {
		t.Errorf("Iter returned %v, want the callback's error", err)
	}
	if count != 1 {
		t.Errorf("Iter called fn %d times, want exactly 1 (stop on first error)", count)
	}
}

func TestSweepRemovesOnlyExpiredEntries(t *testing.T) {
	st := openTestStore(t, "things", "more")

	if err := st.Put("things", "stays", []byte("v"), 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := st.Put("things", "expires1", []byte("v"), 5*time.Millisecond); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := st.Put("more", "expires2", []byte("v"), 5*time.Millisecond); err != nil {
		t.Fatalf("Put: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	removed, err := st.Sweep()
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 2 {
		t.Errorf("Sweep removed %d entries, want 2", removed)
	}

	if _, err := st.Get("things", "stays"); err != nil {
		t.Errorf("Get on a never-expired entry after Sweep = %v, want nil error", err)
	}
}

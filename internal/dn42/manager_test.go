package dn42

import (
	"errors"
	"testing"

	"whoisgate/internal/logging"
)

// fakeBackend is a Backend double that hands back a fixed set of RPSL
// object bytes on Files, with controllable failure on either method.
type fakeBackend struct {
	refreshErr error
	filesErr   error
	objects    []fakeObject
}

type fakeObject struct {
	objectType string
	data       []byte
}

func (b *fakeBackend) Refresh() error { return b.refreshErr }

func (b *fakeBackend) Files(fn func(objectType string, data []byte)) error {
	if b.filesErr != nil {
		return b.filesErr
	}
	for _, o := range b.objects {
		fn(o.objectType, o.data)
	}
	return nil
}

func newTestManager(backend Backend) *Manager {
	m := &Manager{backend: backend, log: logging.New("error")}
	m.active.Store(NewIndex())
	return m
}

func TestManagerRefreshSwapsInNewIndex(t *testing.T) {
	backend := &fakeBackend{objects: []fakeObject{
		{objectType: "aut-num", data: []byte("aut-num: AS4242420001\nsource: DN42\n")},
	}}
	m := newTestManager(backend)

	if _, ok := m.QueryASN("AS4242420001"); ok {
		t.Fatal("record should not be visible before the first Refresh")
	}

	if err := m.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, ok := m.QueryASN("AS4242420001"); !ok {
		t.Error("expected the refreshed index to contain the backend's record")
	}
}

func TestManagerRefreshLeavesActiveUntouchedOnBackendRefreshError(t *testing.T) {
	backend := &fakeBackend{objects: []fakeObject{
		{objectType: "aut-num", data: []byte("aut-num: AS4242420001\nsource: DN42\n")},
	}}
	m := newTestManager(backend)
	if err := m.Refresh(); err != nil {
		t.Fatalf("initial Refresh: %v", err)
	}
	before := m.Active()

	backend.refreshErr = errors.New("backend unreachable")
	backend.objects = []fakeObject{
		{objectType: "aut-num", data: []byte("aut-num: AS4242420002\nsource: DN42\n")},
	}
	if err := m.Refresh(); err == nil {
		t.Fatal("expected Refresh to propagate the backend's Refresh error")
	}

	if m.Active() != before {
		t.Error("a failed backend Refresh must leave the previously active index untouched")
	}
	if _, ok := m.QueryASN("AS4242420001"); !ok {
		t.Error("the prior record must still be queryable after a failed refresh")
	}
	if _, ok := m.QueryASN("AS4242420002"); ok {
		t.Error("the new backend's record must not be visible; its Refresh never succeeded")
	}
}

func TestManagerRefreshLeavesActiveUntouchedOnFilesError(t *testing.T) {
	backend := &fakeBackend{objects: []fakeObject{
		{objectType: "aut-num", data: []byte("aut-num: AS4242420001\nsource: DN42\n")},
	}}
	m := newTestManager(backend)
	if err := m.Refresh(); err != nil {
		t.Fatalf("initial Refresh: %v", err)
	}
	before := m.Active()

	backend.filesErr = errors.New("indexing failed partway through")
	if err := m.Refresh(); err == nil {
		t.Fatal("expected Refresh to propagate the backend's Files error")
	}

	if m.Active() != before {
		t.Error("a failed Files walk must leave the previously active index untouched — no reader may observe a partial rebuild")
	}
	if _, ok := m.QueryASN("AS4242420001"); !ok {
		t.Error("the prior record must still be queryable after a failed refresh")
	}
}

func TestManagerLookupFallbackRoutesByQueryShape(t *testing.T) {
	backend := &fakeBackend{objects: []fakeObject{
		{objectType: "aut-num", data: []byte("aut-num: AS4242420001\nsource: DN42\n")},
		{objectType: "inetnum", data: []byte("inetnum: 172.22.0.0/16\nsource: DN42\n")},
		{objectType: "mntner", data: []byte("mntner: EXAMPLE-MNT\nsource: DN42\n")},
	}}
	m := newTestManager(backend)
	if err := m.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if _, ok := m.LookupFallback("AS4242420001"); !ok {
		t.Error("expected an AS-prefixed query to resolve via the ASN index")
	}
	if _, ok := m.LookupFallback("172.22.5.1"); !ok {
		t.Error("expected a bare IP query to resolve via the inetnum index")
	}
	if _, ok := m.LookupFallback("EXAMPLE-MNT"); !ok {
		t.Error("expected a bare handle to resolve via the mntner identifier index")
	}
	if _, ok := m.LookupFallback("NO-SUCH-HANDLE"); ok {
		t.Error("expected an unknown handle to miss")
	}
}

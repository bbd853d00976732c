package dn42

import (
	"net"
	"testing"
)

func TestParseRPSL(t *testing.T) {
	body := []byte(
		"aut-num:        AS4242421234\n" +
			"as-name:        EXAMPLE-AS\n" +
			"descr:          Example DN42 network\n" +
			"                continuation of descr\n" +
			"mnt-by:         EXAMPLE-MNT\n" +
			"source:         DN42\n",
	)
	rec, err := ParseRPSL("aut-num", body)
	if err != nil {
		t.Fatalf("ParseRPSL: %v", err)
	}
	if rec.PrimaryKey != "AS4242421234" {
		t.Errorf("PrimaryKey = %q, want AS4242421234", rec.PrimaryKey)
	}
	descr, ok := rec.Get("descr")
	if !ok {
		t.Fatal("expected descr attribute")
	}
	if descr != "Example DN42 network continuation of descr" {
		t.Errorf("descr = %q, want continuation merged", descr)
	}
}

func TestIndexByASN(t *testing.T) {
	idx := NewIndex()
	rec, err := ParseRPSL("aut-num", []byte("aut-num: AS4242421234\nsource: DN42\n"))
	if err != nil {
		t.Fatalf("ParseRPSL: %v", err)
	}
	idx.Add(rec)

	if _, ok := idx.ByASN("as4242421234"); !ok {
		t.Error("expected case-insensitive ASN lookup to hit")
	}
	if _, ok := idx.ByASN("AS9999999999"); ok {
		t.Error("expected lookup for unknown ASN to miss")
	}
}

func TestIndexByIPMostSpecific(t *testing.T) {
	idx := NewIndex()
	wide, _ := ParseRPSL("inetnum", []byte("inetnum: 172.20.0.0/16\nsource: DN42\n"))
	narrow, _ := ParseRPSL("inetnum", []byte("inetnum: 172.20.1.0/24\nsource: DN42\n"))
	idx.Add(wide)
	idx.Add(narrow)

	rec, ok := idx.ByIP(net.ParseIP("172.20.1.5"))
	if !ok {
		t.Fatal("expected covering record to be found")
	}
	if rec.PrimaryKey != "172.20.1.0/24" {
		t.Errorf("ByIP returned %q, want the more specific /24", rec.PrimaryKey)
	}

	rec, ok = idx.ByIP(net.ParseIP("172.20.2.5"))
	if !ok || rec.PrimaryKey != "172.20.0.0/16" {
		t.Errorf("expected fallback to the wider /16 for an address outside the /24")
	}
}

func TestIndexRefreshAtomicity(t *testing.T) {
	m := &Manager{}
	m.active.Store(NewIndex())
	old := m.Active()

	next := NewIndex()
	rec, _ := ParseRPSL("aut-num", []byte("aut-num: AS4242420001\nsource: DN42\n"))
	next.Add(rec)
	m.active.Store(next)

	if _, ok := old.ByASN("AS4242420001"); ok {
		t.Error("the old index snapshot must not observe records from the new one")
	}
	if _, ok := m.Active().ByASN("AS4242420001"); !ok {
		t.Error("the new active index must observe the swapped-in record")
	}
}

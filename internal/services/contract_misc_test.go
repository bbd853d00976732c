package services

import "testing"

func TestParsePENEntry(t *testing.T) {
	body := []byte(`
1
IBM Corp
Joe Admin
joe@ibm.example

2
Example Org
Jane Admin
jane@example.org
`)
	entry, ok := parsePENEntry(body, "2")
	if !ok {
		t.Fatal("expected PEN 2 to be found")
	}
	if entry.Organization != "Example Org" {
		t.Errorf("Organization = %q, want %q", entry.Organization, "Example Org")
	}
	if entry.Email != "jane@example.org" {
		t.Errorf("Email = %q, want %q", entry.Email, "jane@example.org")
	}

	if _, ok := parsePENEntry(body, "999"); ok {
		t.Error("expected PEN 999 to be absent")
	}
}

func TestRDAPObjectKind(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{"AS15169", "autnum"},
		{"192.0.2.1", "ip"},
		{"2001:db8::1", "ip"},
		{"example.com", "domain"},
	}
	for _, tt := range tests {
		if got := rdapObjectKind(tt.payload); got != tt.want {
			t.Errorf("rdapObjectKind(%q) = %q, want %q", tt.payload, got, tt.want)
		}
	}
}

func TestEmailRegexpExtractsAddresses(t *testing.T) {
	text := "descr: contact admin\nadmin-email: ops@example.net plus backup@example.org\n"
	got := emailRegexp.FindAllString(text, -1)
	if len(got) != 2 || got[0] != "ops@example.net" || got[1] != "backup@example.org" {
		t.Errorf("FindAllString = %v, want [ops@example.net backup@example.org]", got)
	}
}

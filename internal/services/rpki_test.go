package services

import "testing"

func TestSplitRPKIPayload(t *testing.T) {
	tests := []struct {
		payload string
		prefix  string
		asn     string
		wantOK  bool
	}{
		{"192.0.2.0/24-AS64496", "192.0.2.0/24", "64496", true},
		{"2001:db8::/32-AS64496", "2001:db8::/32", "64496", true},
		{"AS15169/8.8.8.0/24", "8.8.8.0/24", "15169", true},
		{"AS15169 8.8.8.0/24", "8.8.8.0/24", "15169", true},
		{"192.0.2.0/24", "", "", false},
		{"garbage", "", "", false},
	}
	for _, tt := range tests {
		prefix, asn, ok := splitRPKIPayload(tt.payload)
		if ok != tt.wantOK {
			t.Errorf("splitRPKIPayload(%q) ok = %v, want %v", tt.payload, ok, tt.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if prefix != tt.prefix || asn != tt.asn {
			t.Errorf("splitRPKIPayload(%q) = (%q, %q), want (%q, %q)", tt.payload, prefix, asn, tt.prefix, tt.asn)
		}
	}
}

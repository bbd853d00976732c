package services

import "testing"

func TestParsePingTarget(t *testing.T) {
	tests := []struct {
		payload  string
		target   string
		location string
	}{
		{"1.1.1.1-tw", "1.1.1.1", "tw"},
		{"example.com-us", "example.com", "us"},
		{"1.1.1.1", "1.1.1.1", ""},
		{"example.com", "example.com", ""},
		{"my-hyphenated-host.example.com", "my-hyphenated-host.example.com", ""},
	}
	for _, tt := range tests {
		target, location := parsePingTarget(tt.payload)
		if target != tt.target || location != tt.location {
			t.Errorf("parsePingTarget(%q) = (%q, %q), want (%q, %q)", tt.payload, target, location, tt.target, tt.location)
		}
	}
}

package services

import "testing"

func TestNTPPacketRoundTrip(t *testing.T) {
	p := ntpPacket{
		liVnMode:       0x1B,
		stratum:        2,
		precision:      -20,
		rootDelay:      65536,
		rootDispersion: 32768,
		refID:          1,
		refTimestamp:   2,
		origTimestamp:  3,
		rxTimestamp:    4,
		txTimestamp:    5,
	}
	got, ok := unmarshalNTP(p.marshal())
	if !ok {
		t.Fatal("unmarshalNTP failed on a valid packet")
	}
	if got != p {
		t.Errorf("unmarshalNTP round-trip = %+v, want %+v", got, p)
	}
}

func TestUnmarshalNTPRejectsShortPacket(t *testing.T) {
	if _, ok := unmarshalNTP(make([]byte, 10)); ok {
		t.Error("expected unmarshalNTP to reject a short packet")
	}
}

func TestNTPStratumDesc(t *testing.T) {
	tests := []struct {
		stratum byte
		want    string
	}{
		{0, "unspecified or invalid"},
		{1, "primary reference (e.g. GPS, atomic clock)"},
		{5, "secondary reference (via NTP)"},
		{16, "reserved"},
	}
	for _, tt := range tests {
		if got := ntpStratumDesc(tt.stratum); got != tt.want {
			t.Errorf("ntpStratumDesc(%d) = %q, want %q", tt.stratum, got, tt.want)
		}
	}
}

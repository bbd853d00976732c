package classify

import "testing"

type fakePlugins map[string]string

func (f fakePlugins) Lookup(suffix string) (string, bool) {
	name, ok := f[suffix]
	return name, ok
}

func TestClassifySuffixLongestMatch(t *testing.T) {
	tests := []struct {
		input    string
		wantKind Kind
	}{
		{"bob-STEAM", KindSteamApp},
		{"bob-STEAMSEARCH", KindSteamSearch},
		{"tt0111161-IMDB", KindImdbTitle},
		{"shawshank-IMDBSEARCH", KindImdbSearch},
		{"play.example.com-MC", KindMinecraftSrv},
		{"play.example.com-MINECRAFT", KindMinecraftSrv},
		{"notch-MCU", KindMinecraftUsr},
		{"serde-CARGO", KindPackage},
		{"example.com-RIPE", KindIRRRegistry},
		{"pool.ntp.org-NTP", KindNTP},
		{"1.1.1.1-tw-PING", KindPing},
		{"example.com-TRACE", KindTrace},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Classify(tt.input, nil)
			if got.Kind != tt.wantKind {
				t.Errorf("Classify(%q).Kind = %v, want %v", tt.input, got.Kind, tt.wantKind)
			}
		})
	}
}

func TestClassifyRPKI(t *testing.T) {
	got := Classify("192.0.2.0/24-AS64496-RPKI", nil)
	if got.Kind != KindRPKI {
		t.Fatalf("Kind = %v, want KindRPKI", got.Kind)
	}
	if got.Payload != "192.0.2.0/24-AS64496" {
		t.Errorf("Payload = %q, want %q", got.Payload, "192.0.2.0/24-AS64496")
	}
}

func TestClassifyDN42Precedence(t *testing.T) {
	tests := []struct {
		input        string
		wantKind     Kind
		wantEligible bool
	}{
		{"AS4242420000", KindRawASN, true},
		{"AS64496", KindRawASN, false},
		{"10.1.2.3", KindRawIPv4, true},
		{"8.8.8.8", KindRawIPv4, false},
		{"fc00::1", KindRawIPv6, true},
		{"2001:db8::1", KindRawIPv6, false},
		{"foo.dn42", KindRawDomain, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Classify(tt.input, nil)
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.DN42Eligible != tt.wantEligible {
				t.Errorf("DN42Eligible = %v, want %v", got.DN42Eligible, tt.wantEligible)
			}
		})
	}
}

func TestClassifySuffixBeatsDN42(t *testing.T) {
	// A DN42-eligible token with a built-in suffix is routed by the
	// suffix, not auto-detected into DN42.
	got := Classify("10.1.2.3-DNS", nil)
	if got.Kind != KindDNS {
		t.Fatalf("Kind = %v, want KindDNS", got.Kind)
	}
}

func TestClassifyPluginSuffix(t *testing.T) {
	plugins := fakePlugins{"WEATHER": "weather"}
	got := Classify("ping-WEATHER", plugins)
	if got.Kind != KindPlugin {
		t.Fatalf("Kind = %v, want KindPlugin", got.Kind)
	}
	if got.Payload != "ping" {
		t.Errorf("Payload = %q, want %q", got.Payload, "ping")
	}
	if got.Suffix != "WEATHER" {
		t.Errorf("Suffix = %q, want WEATHER", got.Suffix)
	}
}

func TestClassifySpecialCommands(t *testing.T) {
	tests := []struct {
		input    string
		wantKind Kind
	}{
		{"HELP", KindHelp},
		{"help", KindHelp},
		{"UPDATE-PATCH", KindUpdatePatch},
		{"LYRIC", KindLyric},
	}
	for _, tt := range tests {
		got := Classify(tt.input, nil)
		if got.Kind != tt.wantKind {
			t.Errorf("Classify(%q).Kind = %v, want %v", tt.input, got.Kind, tt.wantKind)
		}
	}
}

func TestClassifyTotalityAndDeterminism(t *testing.T) {
	inputs := []string{
		"example.com", "192.0.2.1", "2001:db8::1", "192.0.2.0/24",
		"AS64496", "random garbage !!!", "-STEAM",
	}
	for _, in := range inputs {
		first := Classify(in, nil)
		second := Classify(in, nil)
		if first.Kind == "" {
			t.Errorf("Classify(%q) returned empty kind", in)
		}
		if first != second {
			t.Errorf("Classify(%q) not deterministic: %+v != %+v", in, first, second)
		}
	}
}

func TestClassifyFallbackDomain(t *testing.T) {
	got := Classify("Example.COM", nil)
	if got.Kind != KindRawDomain {
		t.Fatalf("Kind = %v, want KindRawDomain", got.Kind)
	}
	if got.Payload != "example.com" {
		t.Errorf("Payload = %q, want lower-cased domain", got.Payload)
	}
}

package registry

import (
	"testing"

	"whoisgate/internal/classify"
)

func TestRegisterAndResolve(t *testing.T) {
	r := New()
	r.Register(classify.KindHelp, func(ctx *Context) (string, error) {
		return "help text", nil
	}, false)

	entry, ok := r.Resolve(classify.Query{Kind: classify.KindHelp})
	if !ok {
		t.Fatal("expected HELP kind to resolve")
	}
	out, err := entry.Handler(&Context{})
	if err != nil || out != "help text" {
		t.Errorf("Handler() = %q, %v, want %q, nil", out, err, "help text")
	}
}

func TestRegisterPluginSuffixCollision(t *testing.T) {
	r := New()
	h := func(ctx *Context) (string, error) { return "", nil }
	if err := r.RegisterPlugin("WEATHER", "plugin-a", h); err != nil {
		t.Fatalf("first RegisterPlugin: %v", err)
	}
	if err := r.RegisterPlugin("WEATHER", "plugin-b", h); err == nil {
		t.Fatal("expected suffix collision to be rejected")
	}
}

func TestLookupSatisfiesClassifyInterface(t *testing.T) {
	r := New()
	h := func(ctx *Context) (string, error) { return "", nil }
	_ = r.RegisterPlugin("WEATHER", "weather-plugin", h)

	var ps classify.PluginSuffixes = r
	name, ok := ps.Lookup("WEATHER")
	if !ok || name != "weather-plugin" {
		t.Errorf("Lookup(WEATHER) = %q, %v, want weather-plugin, true", name, ok)
	}
	if _, ok := ps.Lookup("NOPE"); ok {
		t.Error("expected unregistered suffix to miss")
	}
}

func TestResolvePlugin(t *testing.T) {
	r := New()
	h := func(ctx *Context) (string, error) { return "pong", nil }
	_ = r.RegisterPlugin("PING", "ping-plugin", h)

	entry, ok := r.Resolve(classify.Query{Kind: classify.KindPlugin, Suffix: "PING"})
	if !ok {
		t.Fatal("expected plugin suffix to resolve")
	}
	out, _ := entry.Handler(&Context{})
	if out != "pong" {
		t.Errorf("Handler() = %q, want pong", out)
	}
}

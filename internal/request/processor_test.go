package request

import (
	"context"
	"testing"

	"whoisgate/internal/classify"
	"whoisgate/internal/registry"
)

type fakeDN42 struct {
	resp string
	ok   bool
}

func (f fakeDN42) LookupFallback(query string) (string, bool) { return f.resp, f.ok }

func TestProcessDispatchesToHandler(t *testing.T) {
	reg := registry.New()
	reg.Register(classify.KindHelp, func(ctx *registry.Context) (string, error) {
		return "help text\n", nil
	}, false)

	p := &Processor{Registry: reg, Banner: "% banner\n"}
	out := p.Process(context.Background(), Input{RawQuery: "HELP"})
	if out != "help text\n" {
		t.Errorf("Process() = %q, want %q", out, "help text\n")
	}
}

func TestProcessUnknownKindYieldsDiagnostic(t *testing.T) {
	reg := registry.New()
	p := &Processor{Registry: reg, Banner: "% banner\n"}
	out := p.Process(context.Background(), Input{RawQuery: "AS4242420000"})
	if out == "" {
		t.Error("expected a diagnostic line, got empty response")
	}
}

func TestProcessDN42FallbackOnEmptyHandlerResult(t *testing.T) {
	reg := registry.New()
	reg.Register(classify.KindRawASN, func(ctx *registry.Context) (string, error) {
		return "", nil
	}, true)

	p := &Processor{Registry: reg, DN42: fakeDN42{resp: "aut-num: AS4242420000\n", ok: true}}
	out := p.Process(context.Background(), Input{RawQuery: "AS4242420000"})
	if out != "aut-num: AS4242420000\n" {
		t.Errorf("Process() = %q, want DN42 fallback response", out)
	}
}

func TestProcessDN42EligibleOverridesNonEmptyHandlerResult(t *testing.T) {
	reg := registry.New()
	reg.Register(classify.KindRawASN, func(ctx *registry.Context) (string, error) {
		return "% No match found for AS4242420000\n", nil
	}, false)

	p := &Processor{Registry: reg, DN42: fakeDN42{resp: "aut-num: AS4242420000\n", ok: true}}
	out := p.Process(context.Background(), Input{RawQuery: "AS4242420000"})
	if out != "aut-num: AS4242420000\n" {
		t.Errorf("Process() = %q, want the DN42 record to win for a DN42-eligible query even though the handler returned a non-empty response", out)
	}
}

func TestProcessWithoutHandlerOrStatsYieldsDiagnostic(t *testing.T) {
	reg := registry.New()
	p := &Processor{Registry: reg}
	// No handler registered and no DN42: still returns a non-empty
	// diagnostic and must not panic recording stats (Stats is nil here).
	out := p.Process(context.Background(), Input{RawQuery: "example.com"})
	if out == "" {
		t.Error("expected non-empty diagnostic response")
	}
}

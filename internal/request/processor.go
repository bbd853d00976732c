// Package request implements C8: the pipeline that turns one raw
// query line into a finished response — classify, dispatch, DN42
// fallback, patch, colorize, record — matching §4.8's stage order
// exactly, including its mandated patch-before-color rule.
package request

import (
	"context"
	"fmt"
	"time"

	"whoisgate/internal/classify"
	"whoisgate/internal/color"
	"whoisgate/internal/patch"
	"whoisgate/internal/registry"
	"whoisgate/internal/stats"
	"whoisgate/internal/whoiserr"
)

// DN42Fallback is the narrow interface the processor needs for step 4
// of §4.8; internal/dn42's Manager satisfies it directly (main.go
// passes the Manager in), so this package never imports internal/dn42.
type DN42Fallback interface {
	LookupFallback(query string) (string, bool)
}

// Processor wires together the classifier, registry, patch engine,
// colorizer, and stats sink into the request pipeline.
type Processor struct {
	Registry *registry.Registry
	Patch    *patch.Manager
	Stats    *stats.Stats
	DN42     DN42Fallback
	Banner   string
}

// Input is everything C9 collects from a connection before handing
// off to the processor.
type Input struct {
	RawQuery string
	Peer     string
	Scheme   color.Scheme
	HasColor bool
}

// Process runs the full pipeline and returns the bytes to write back
// to the client. It never returns an error — handler/patch/DN42
// failures all degrade to a formatted diagnostic line within the
// response, per §4.8's "the processor never aborts the connection."
func (p *Processor) Process(ctx context.Context, in Input) string {
	start := time.Now()

	query := classify.Classify(in.RawQuery, p.Registry)
	entry, found := p.Registry.Resolve(query)

	var response string
	var err error
	if found {
		response, err = entry.Handler(&registry.Context{
			Ctx: ctx, Query: query, RawQuery: in.RawQuery, Peer: in.Peer,
		})
		if err != nil {
			response = p.Banner + whoiserr.Line(err)
		}
	} else {
		response = p.Banner + whoiserr.Line(whoiserr.New(whoiserr.ClassificationError,
			fmt.Sprintf("no handler for query kind %q", query.Kind)))
	}

	// A DN42-eligible query always prefers a successful DN42 lookup
	// over whatever the handler returned, even if that was non-empty
	// (§8 scenario 2); a merely DN42Fallback-capable handler only
	// falls back when it returned nothing at all, per §4.8 step 4.
	if p.DN42 != nil && (query.DN42Eligible || (response == "" && found && entry.DN42Fallback)) {
		if dn42Resp, ok := p.DN42.LookupFallback(in.RawQuery); ok {
			response = dn42Resp
		}
	}

	if p.Patch != nil {
		response = p.Patch.Active().Apply(in.RawQuery, response)
	}

	if in.HasColor {
		response = color.Colorize(response, in.Scheme)
	}

	if p.Stats != nil {
		p.Stats.RecordRequest(string(query.Kind), int64(len(response)), time.Since(start))
	}

	return response
}

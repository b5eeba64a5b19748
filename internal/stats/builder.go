// Package stats turns accumulated timing entries into the wire payload.
package stats

import (
	"math"

	"github.com/bft-labs/perfship/internal/domain"
	"github.com/bft-labs/perfship/internal/ports"
)

// Options controls how a StatPackage is built.
type Options struct {
	// TakeConnection includes the conn block when Network reports data.
	TakeConnection bool

	// Token is copied into the package verbatim.
	Token string

	// Deduplicate drops later entries whose name was already seen.
	Deduplicate bool

	// Network supplies connection hints. May be nil.
	Network ports.NetworkInfo
}

// Build projects entries onto the wire format. Entries keep their order; with
// Deduplicate the first entry for a name wins.
func Build(entries []domain.TimingEntry, opts Options) domain.StatPackage {
	pkg := domain.StatPackage{
		Token:     opts.Token,
		Resources: make([]domain.Resource, 0, len(entries)),
	}

	var seen map[string]struct{}
	if opts.Deduplicate {
		seen = make(map[string]struct{}, len(entries))
	}

	for _, e := range entries {
		if seen != nil {
			if _, dup := seen[e.Name]; dup {
				continue
			}
			seen[e.Name] = struct{}{}
		}
		pkg.Resources = append(pkg.Resources, resourceOf(e))
	}

	if opts.TakeConnection && opts.Network != nil {
		if info, ok := opts.Network.Connection(); ok {
			pkg.Conn = &domain.Connection{
				D:   round(info.Downlink * 1000),
				ET:  info.EffectiveType,
				RTT: round(info.RTT),
			}
		}
	}

	return pkg
}

// IsFulfilled reports whether pkg carries at least one resource.
// Unfulfilled packages must not be sent.
func IsFulfilled(pkg domain.StatPackage) bool {
	return len(pkg.Resources) > 0
}

func resourceOf(e domain.TimingEntry) domain.Resource {
	return domain.Resource{
		Metrics: domain.Metrics{
			DS: fixed(e.DomainLookupStart),
			DE: fixed(e.DomainLookupEnd),
			CS: fixed(e.ConnectStart),
			SS: fixed(e.SecureConnectionStart),
			CE: fixed(e.ConnectEnd),
			QS: fixed(e.RequestStart),
			PS: fixed(e.ResponseStart),
			PE: fixed(e.ResponseEnd),
			TS: e.TransferSize,
		},
		Meta: domain.Meta{
			N: e.Name,
			I: e.InitiatorType,
			P: e.NextHopProtocol,
		},
	}
}

// fixed maps an absent timestamp to 0 and rounds a present one to whole ms.
func fixed(v *float64) int64 {
	if v == nil {
		return 0
	}
	return round(*v)
}

// round rounds half away from zero and clamps to 0 for NaN and negatives,
// which hosts never legitimately report.
func round(v float64) int64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(math.Round(v))
}

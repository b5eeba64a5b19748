package domain

// EntryKind is the performance entry type a record source can be asked for.
type EntryKind string

const (
	// KindResource selects per-resource fetch timings.
	KindResource EntryKind = "resource"

	// KindNavigation selects the document navigation timing.
	KindNavigation EntryKind = "navigation"
)

// DefaultKinds are the entry kinds collected when none are configured.
var DefaultKinds = []EntryKind{KindResource, KindNavigation}

// TimingEntry mirrors the subset of PerformanceResourceTiming the collector
// reads. Timestamps are milliseconds relative to the host's time origin; a nil
// timestamp means the phase did not happen or the host did not report it.
//
// JSON names follow the browser API so that the output of
// JSON.stringify(performance.getEntries()) decodes without translation.
type TimingEntry struct {
	// Name is the resource URL and identifies the entry.
	Name string `json:"name"`

	// EntryType is "resource" or "navigation".
	EntryType EntryKind `json:"entryType"`

	// InitiatorType is the element or API that started the fetch ("script", "img", "fetch", ...).
	InitiatorType string `json:"initiatorType"`

	// NextHopProtocol is the ALPN protocol id negotiated ("h2", "http/1.1", "h3").
	NextHopProtocol string `json:"nextHopProtocol"`

	DomainLookupStart     *float64 `json:"domainLookupStart,omitempty"`
	DomainLookupEnd       *float64 `json:"domainLookupEnd,omitempty"`
	ConnectStart          *float64 `json:"connectStart,omitempty"`
	ConnectEnd            *float64 `json:"connectEnd,omitempty"`
	SecureConnectionStart *float64 `json:"secureConnectionStart,omitempty"`
	RequestStart          *float64 `json:"requestStart,omitempty"`
	ResponseStart         *float64 `json:"responseStart,omitempty"`
	ResponseEnd           *float64 `json:"responseEnd,omitempty"`

	// TransferSize is the number of bytes fetched over the network, headers
	// included. Zero for cache hits.
	TransferSize int64 `json:"transferSize"`
}

// Ms returns a pointer to v, for building entries with present timestamps.
func Ms(v float64) *float64 {
	return &v
}

// FilterByKind returns the entries whose EntryType is one of kinds, preserving order.
func FilterByKind(entries []TimingEntry, kinds ...EntryKind) []TimingEntry {
	if len(kinds) == 0 {
		return entries
	}
	out := make([]TimingEntry, 0, len(entries))
	for _, e := range entries {
		for _, k := range kinds {
			if e.EntryType == k {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

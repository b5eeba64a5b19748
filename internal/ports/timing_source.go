package ports

import "github.com/bft-labs/perfship/internal/domain"

// TimingSource exposes the host's buffered timing entries.
type TimingSource interface {
	// EntriesByType returns the currently buffered entries of the given kind
	// in arrival order. It must not block.
	EntriesByType(kind domain.EntryKind) []domain.TimingEntry
}

// TimingClearer is implemented by hosts that can drop entries already read,
// bounding memory and preventing duplicate reads.
type TimingClearer interface {
	ClearResourceTimings()
}

// TimingObserver is implemented by hosts that push entries as they arrive.
type TimingObserver interface {
	// Observe calls onBatch once per notification batch with entries of the
	// requested kinds. The returned stop function disconnects the observer;
	// implementations must tolerate it being called more than once.
	Observe(kinds []domain.EntryKind, onBatch func([]domain.TimingEntry)) (stop func(), err error)
}

package app

import (
	"sync"
	"time"

	"github.com/bft-labs/perfship/internal/clock"
	"github.com/bft-labs/perfship/internal/domain"
	"github.com/bft-labs/perfship/internal/ports"
	"github.com/bft-labs/perfship/pkg/log"
)

// DefaultPollInterval is how often a polling subscription snapshots a host
// that cannot push entries.
const DefaultPollInterval = 100 * time.Millisecond

// SourceConfig configures a Source.
type SourceConfig struct {
	// ClearAfterRead empties the host buffer after every snapshot when the
	// host supports it.
	ClearAfterRead bool

	// PollInterval is used when the host cannot be observed.
	PollInterval time.Duration
}

// Source reads timing entries from the host, either as a one-shot snapshot or
// as a stream of notification batches. A nil host behaves as a permanently
// empty source.
type Source struct {
	host   ports.TimingSource
	cfg    SourceConfig
	clock  clock.Clock
	logger log.Logger
}

// NewSource creates a Source over host.
func NewSource(host ports.TimingSource, cfg SourceConfig, clk clock.Clock, logger log.Logger) *Source {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Source{
		host:   host,
		cfg:    cfg,
		clock:  clk,
		logger: log.OrNoop(logger),
	}
}

// Supported reports whether the host exposes any timing data at all.
func (s *Source) Supported() bool {
	return s.host != nil
}

// Snapshot returns all buffered entries of kinds, kind by kind in the order
// requested and in arrival order within a kind. With ClearAfterRead and a host
// that supports it, the host buffer is emptied afterwards.
func (s *Source) Snapshot(kinds ...domain.EntryKind) []domain.TimingEntry {
	if s.host == nil {
		return nil
	}
	if len(kinds) == 0 {
		kinds = domain.DefaultKinds
	}

	var out []domain.TimingEntry
	for _, k := range kinds {
		out = append(out, s.host.EntriesByType(k)...)
	}

	if s.cfg.ClearAfterRead {
		if c, ok := s.host.(ports.TimingClearer); ok {
			c.ClearResourceTimings()
		}
	}
	return out
}

// Subscribe calls onBatch once per batch of newly arrived entries until the
// returned Subscription is cancelled. Hosts implementing ports.TimingObserver
// push their own batches; other hosts are polled. onBatch is never invoked
// concurrently with itself by the polling path.
func (s *Source) Subscribe(kinds []domain.EntryKind, onBatch func([]domain.TimingEntry)) *Subscription {
	if s.host == nil {
		return newSubscription(nil)
	}
	if len(kinds) == 0 {
		kinds = domain.DefaultKinds
	}

	if obs, ok := s.host.(ports.TimingObserver); ok {
		stop, err := obs.Observe(kinds, onBatch)
		if err != nil {
			s.logger.Debug("observer unavailable, source stays empty", log.Err(err))
			return newSubscription(nil)
		}
		return newSubscription(stop)
	}

	return s.poll(kinds, onBatch)
}

func (s *Source) poll(kinds []domain.EntryKind, onBatch func([]domain.TimingEntry)) *Subscription {
	ticker := s.clock.NewTicker(s.cfg.PollInterval)
	done := make(chan struct{})
	clearer, canClear := s.host.(ports.TimingClearer)
	canClear = canClear && s.cfg.ClearAfterRead
	delivered := make(map[domain.EntryKind]int, len(kinds))

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}

			var batch []domain.TimingEntry
			for _, k := range kinds {
				entries := s.host.EntriesByType(k)
				if canClear && k == domain.KindResource {
					batch = append(batch, entries...)
					continue
				}
				// Uncleared kinds keep everything; only entries past the
				// previous read are new. A shorter buffer was reset.
				n := delivered[k]
				if n > len(entries) {
					n = 0
				}
				batch = append(batch, entries[n:]...)
				delivered[k] = len(entries)
			}
			if canClear {
				clearer.ClearResourceTimings()
			}

			select {
			case <-done:
				return
			default:
			}
			if len(batch) > 0 {
				onBatch(batch)
			}
		}
	}()

	return newSubscription(func() { close(done) })
}

// Subscription is an active entry stream. Cancel is idempotent and safe to
// call from inside the batch callback.
type Subscription struct {
	once sync.Once
	stop func()
}

func newSubscription(stop func()) *Subscription {
	return &Subscription{stop: stop}
}

// Cancel stops further notifications.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
}

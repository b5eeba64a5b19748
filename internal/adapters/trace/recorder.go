// Package trace records resource timing entries for requests made through an
// instrumented http.RoundTripper, giving Go programs the same timing buffer a
// browser page exposes through performance.getEntriesByType.
package trace

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bft-labs/perfship/internal/clock"
	"github.com/bft-labs/perfship/internal/domain"
)

// DefaultBufferLimit matches the browser's default resource timing buffer.
const DefaultBufferLimit = 250

// Recorder is an http.RoundTripper that records one TimingEntry per completed
// request. It implements ports.TimingSource, ports.TimingClearer and
// ports.TimingObserver.
type Recorder struct {
	base   http.RoundTripper
	clock  clock.Clock
	origin time.Time
	limit  int
	hooks  []func(domain.TimingEntry)

	mu         sync.Mutex
	resources  []domain.TimingEntry
	navigation []domain.TimingEntry
	dropped    int
	observers  map[int]*observer
	nextID     int
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithBase sets the underlying transport. Default: http.DefaultTransport.
func WithBase(rt http.RoundTripper) Option {
	return func(r *Recorder) { r.base = rt }
}

// WithClock sets the clock timestamps are read from.
func WithClock(clk clock.Clock) Option {
	return func(r *Recorder) { r.clock = clk }
}

// WithOrigin sets the time origin all timestamps are relative to. Default:
// the moment New is called.
func WithOrigin(t time.Time) Option {
	return func(r *Recorder) { r.origin = t }
}

// WithBufferLimit caps the number of buffered resource entries. Entries past
// the cap still reach observers but are not buffered.
func WithBufferLimit(n int) Option {
	return func(r *Recorder) { r.limit = n }
}

// WithEntryHook calls fn for every recorded entry.
func WithEntryHook(fn func(domain.TimingEntry)) Option {
	return func(r *Recorder) { r.hooks = append(r.hooks, fn) }
}

// New creates a Recorder.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		base:      http.DefaultTransport,
		clock:     clock.Real(),
		limit:     DefaultBufferLimit,
		observers: make(map[int]*observer),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.origin.IsZero() {
		r.origin = r.clock.Now()
	}
	return r
}

// Client returns an http.Client that records through r.
func (r *Recorder) Client(timeout time.Duration) *http.Client {
	return &http.Client{Transport: r, Timeout: timeout}
}

// EntriesByType returns buffered entries of kind in completion order.
func (r *Recorder) EntriesByType(kind domain.EntryKind) []domain.TimingEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch kind {
	case domain.KindResource:
		return append([]domain.TimingEntry(nil), r.resources...)
	case domain.KindNavigation:
		return append([]domain.TimingEntry(nil), r.navigation...)
	default:
		return nil
	}
}

// ClearResourceTimings empties the resource buffer. Navigation entries stay,
// as they do in a browser.
func (r *Recorder) ClearResourceTimings() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources = nil
	r.dropped = 0
}

// Dropped returns how many resource entries did not fit the buffer since the
// last clear.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Observe delivers entries of kinds as they are recorded. Each observer gets
// its batches on its own goroutine, one batch at a time.
func (r *Recorder) Observe(kinds []domain.EntryKind, onBatch func([]domain.TimingEntry)) (func(), error) {
	o := newObserver(kinds, onBatch)

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.observers[id] = o
	r.mu.Unlock()

	go o.run()

	return func() {
		r.mu.Lock()
		delete(r.observers, id)
		r.mu.Unlock()
		o.stop()
	}, nil
}

func (r *Recorder) record(e domain.TimingEntry) {
	r.mu.Lock()
	if e.EntryType == domain.KindNavigation {
		r.navigation = append(r.navigation, e)
	} else if len(r.resources) < r.limit {
		r.resources = append(r.resources, e)
	} else {
		r.dropped++
	}
	observers := make([]*observer, 0, len(r.observers))
	for _, o := range r.observers {
		observers = append(observers, o)
	}
	r.mu.Unlock()

	for _, o := range observers {
		o.offer(e)
	}
	for _, fn := range r.hooks {
		fn(e)
	}
}

func (r *Recorder) since(t time.Time) *float64 {
	if t.IsZero() {
		return nil
	}
	return domain.Ms(float64(t.Sub(r.origin)) / float64(time.Millisecond))
}

type ctxKey int

const (
	initiatorKey ctxKey = iota
	navigationKey
)

// DefaultInitiator is the initiator type of requests without one in context.
const DefaultInitiator = "fetch"

// WithInitiator tags requests made with ctx with an initiator type such as
// "script", "img" or "css".
func WithInitiator(ctx context.Context, initiator string) context.Context {
	return context.WithValue(ctx, initiatorKey, initiator)
}

// WithNavigation marks requests made with ctx as the document navigation.
func WithNavigation(ctx context.Context) context.Context {
	return context.WithValue(ctx, navigationKey, true)
}

func initiatorOf(ctx context.Context) string {
	if v, ok := ctx.Value(initiatorKey).(string); ok && v != "" {
		return v
	}
	if isNavigation(ctx) {
		return "navigation"
	}
	return DefaultInitiator
}

func isNavigation(ctx context.Context) bool {
	v, _ := ctx.Value(navigationKey).(bool)
	return v
}

type observer struct {
	kinds   []domain.EntryKind
	onBatch func([]domain.TimingEntry)

	mu      sync.Mutex
	pending []domain.TimingEntry
	signal  chan struct{}
	quit    chan struct{}
	once    sync.Once
}

func newObserver(kinds []domain.EntryKind, onBatch func([]domain.TimingEntry)) *observer {
	return &observer{
		kinds:   kinds,
		onBatch: onBatch,
		signal:  make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}
}

func (o *observer) offer(e domain.TimingEntry) {
	if len(domain.FilterByKind([]domain.TimingEntry{e}, o.kinds...)) == 0 {
		return
	}
	o.mu.Lock()
	o.pending = append(o.pending, e)
	o.mu.Unlock()

	select {
	case o.signal <- struct{}{}:
	default:
	}
}

func (o *observer) run() {
	for {
		select {
		case <-o.quit:
			return
		case <-o.signal:
		}

		o.mu.Lock()
		batch := o.pending
		o.pending = nil
		o.mu.Unlock()

		select {
		case <-o.quit:
			return
		default:
		}
		if len(batch) > 0 {
			o.onBatch(batch)
		}
	}
}

func (o *observer) stop() {
	o.once.Do(func() { close(o.quit) })
}

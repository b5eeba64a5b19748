package app

import (
	"sync"
	"time"

	"github.com/bft-labs/perfship/internal/clock"
	"github.com/bft-labs/perfship/internal/domain"
	"github.com/bft-labs/perfship/internal/filter"
)

// Default flush policy values.
const (
	DefaultBufferCount  = 10
	DefaultFlushTimeout = 1000 * time.Millisecond
)

// FlushState is the state of a FlushController.
type FlushState int

const (
	// FlushArmed accepts entries and waits for a flush trigger.
	FlushArmed FlushState = iota

	// FlushDone is terminal: the buffer was handed downstream.
	FlushDone
)

// String returns a human-readable representation of the state.
func (s FlushState) String() string {
	switch s {
	case FlushArmed:
		return "Armed"
	case FlushDone:
		return "Flushed"
	default:
		return "Unknown"
	}
}

// FlushReason names the trigger that won.
type FlushReason string

const (
	FlushCount   FlushReason = "count"
	FlushTimeout FlushReason = "timeout"
	FlushStop    FlushReason = "stop"

	// FlushSnapshot marks a one-shot delivery that bypassed the controller.
	FlushSnapshot FlushReason = "snapshot"
)

// DeliverFunc receives the accumulated entries exactly once.
type DeliverFunc func(entries []domain.TimingEntry, reason FlushReason)

// FlushConfig configures a FlushController.
type FlushConfig struct {
	// BufferCount is the number of accepted entries that triggers delivery.
	BufferCount int

	// Timeout is measured from Start. Zero or negative disables the timer.
	Timeout time.Duration

	// Filter selects entries to accumulate. Nil accepts everything.
	Filter filter.Predicate
}

// FlushController accumulates filtered entries and delivers them once, on
// whichever comes first: BufferCount reached or Timeout elapsed. The losing
// trigger is a no-op. Entries arriving after the flush are still appended but
// never delivered; the controller is not reused.
type FlushController struct {
	mu      sync.Mutex
	cfg     FlushConfig
	clock   clock.Clock
	deliver DeliverFunc

	entries []domain.TimingEntry
	state   FlushState
	timer   *clock.Timer
	hooks   []func()
}

// NewFlushController creates an armed controller. Call Start to run the timer.
func NewFlushController(cfg FlushConfig, clk clock.Clock, deliver DeliverFunc) *FlushController {
	if cfg.BufferCount <= 0 {
		cfg.BufferCount = DefaultBufferCount
	}
	if cfg.Filter == nil {
		cfg.Filter = filter.MatchAll
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &FlushController{
		cfg:     cfg,
		clock:   clk,
		deliver: deliver,
		state:   FlushArmed,
	}
}

// Start arms the flush timeout. Calling it again has no effect.
func (c *FlushController) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil || c.state != FlushArmed || c.cfg.Timeout <= 0 {
		return
	}
	c.timer = c.clock.AfterFunc(c.cfg.Timeout, func() { c.OnTimeout() })
}

// OnFlushed registers fn to run after delivery, e.g. to cancel the
// subscription feeding the controller. Registering after the flush runs fn
// immediately.
func (c *FlushController) OnFlushed(fn func()) {
	c.mu.Lock()
	if c.state == FlushArmed {
		c.hooks = append(c.hooks, fn)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	fn()
}

// OnEntries filters batch, appends the survivors in order and delivers
// synchronously if the count threshold is reached. It reports whether this
// call performed the delivery.
func (c *FlushController) OnEntries(batch []domain.TimingEntry) bool {
	c.mu.Lock()
	for _, e := range batch {
		if c.cfg.Filter(e.Name) {
			c.entries = append(c.entries, e)
		}
	}
	if c.state != FlushArmed || len(c.entries) < c.cfg.BufferCount {
		c.mu.Unlock()
		return false
	}
	return c.flushLocked(FlushCount)
}

// OnTimeout delivers whatever has accumulated, possibly nothing, unless a
// flush already happened. It reports whether this call performed the delivery.
func (c *FlushController) OnTimeout() bool {
	return c.flush(FlushTimeout)
}

// Flush delivers early, as on page unload. It reports whether this call
// performed the delivery.
func (c *FlushController) Flush() bool {
	return c.flush(FlushStop)
}

// State returns the current state.
func (c *FlushController) State() FlushState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Len returns the number of accumulated entries.
func (c *FlushController) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *FlushController) flush(reason FlushReason) bool {
	c.mu.Lock()
	if c.state != FlushArmed {
		c.mu.Unlock()
		return false
	}
	return c.flushLocked(reason)
}

// flushLocked transitions to FlushDone and delivers. It must be called with
// c.mu held and releases it before running callbacks.
func (c *FlushController) flushLocked(reason FlushReason) bool {
	c.state = FlushDone
	if c.timer != nil {
		c.timer.Stop()
	}
	delivered := make([]domain.TimingEntry, len(c.entries))
	copy(delivered, c.entries)
	hooks := c.hooks
	c.hooks = nil
	c.mu.Unlock()

	if c.deliver != nil {
		c.deliver(delivered, reason)
	}
	for _, fn := range hooks {
		fn()
	}
	return true
}

package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/perfship/internal/clock"
	"github.com/bft-labs/perfship/internal/domain"
	"github.com/bft-labs/perfship/internal/filter"
	"github.com/bft-labs/perfship/internal/ports"
	"github.com/bft-labs/perfship/internal/stats"
	"github.com/bft-labs/perfship/pkg/log"
)

// CollectorConfig contains the resolved settings for one collection run.
type CollectorConfig struct {
	// Endpoint is the full collection URL.
	Endpoint string
	Token    string

	// Filter selects entries by name. Nil accepts everything.
	Filter filter.Predicate
	Kinds  []domain.EntryKind

	BufferCount int

	// FlushTimeout of zero selects snapshot mode: read once, send once.
	FlushTimeout time.Duration

	TakeConnection bool
	Deduplicate    bool
	ClearAfterRead bool
	PollInterval   time.Duration

	// ProbeURL, when set, is requested once before collection so its cold DNS
	// lookup is recorded. Its entry bypasses Filter.
	ProbeURL string
}

// FlushEvent describes a delivery decision.
type FlushEvent struct {
	Reason    FlushReason
	Entries   int
	Resources int
	Sent      bool
	Duration  time.Duration
}

// FlushEventEmitter is called after every flush, sent or skipped.
type FlushEventEmitter interface {
	OnFlush(event FlushEvent)
}

// CollectorDeps are the collaborators a Collector is wired to.
type CollectorDeps struct {
	Timing  ports.TimingSource
	Network ports.NetworkInfo
	Sender  ports.PackageSender
	Prober  ports.Prober
	Clock   clock.Clock
	Logger  log.Logger

	Flushes FlushEventEmitter
	States  EventEmitter
}

// Collector wires Source, FlushController, the package builder and the
// sender for a single page load.
type Collector struct {
	cfg       CollectorConfig
	deps      CollectorDeps
	source    *Source
	lifecycle *Lifecycle
	logger    log.Logger
	started   time.Time

	mu         sync.Mutex
	controller *FlushController
	sub        *Subscription
	stopped    bool

	done     chan struct{}
	doneOnce sync.Once
}

// NewCollector creates a collector. It does nothing until Start.
func NewCollector(cfg CollectorConfig, deps CollectorDeps) *Collector {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	logger := log.OrNoop(deps.Logger)
	if cfg.Filter == nil {
		cfg.Filter = filter.MatchAll
	}
	if cfg.ProbeURL != "" {
		base := cfg.Filter
		probe := cfg.ProbeURL
		cfg.Filter = func(name string) bool { return name == probe || base(name) }
	}
	if len(cfg.Kinds) == 0 {
		cfg.Kinds = domain.DefaultKinds
	}

	return &Collector{
		cfg:  cfg,
		deps: deps,
		source: NewSource(deps.Timing, SourceConfig{
			ClearAfterRead: cfg.ClearAfterRead,
			PollInterval:   cfg.PollInterval,
		}, deps.Clock, logger),
		lifecycle: NewLifecycle(logger, deps.States),
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start begins collection. With a nil ready channel collection begins before
// Start returns; otherwise it begins once ready is closed, mirroring a page
// that defers work until its document is parsed. Start never blocks on the
// network.
func (c *Collector) Start(ctx context.Context, ready <-chan struct{}) error {
	if err := c.lifecycle.TransitionTo(StateCollecting, "start"); err != nil {
		return err
	}
	c.started = c.deps.Clock.Now()

	ctx, cancel := context.WithCancel(ctx)
	c.lifecycle.SetCancel(cancel)

	if !c.source.Supported() {
		c.logger.Debug("timing unsupported, nothing to collect", log.Err(domain.ErrUnsupported))
	}

	probing := c.cfg.ProbeURL != "" && c.deps.Prober != nil
	if probing && c.cfg.FlushTimeout > 0 {
		c.spawn(func() { c.probe(ctx) })
	}

	// A snapshot only sees the probe if it has completed, so snapshot mode
	// waits for it before reading.
	if ready == nil && !(probing && c.cfg.FlushTimeout <= 0) {
		c.begin(ctx)
		return nil
	}

	c.spawn(func() {
		if ready != nil {
			select {
			case <-ready:
			case <-ctx.Done():
				return
			}
		}
		if probing && c.cfg.FlushTimeout <= 0 {
			c.probe(ctx)
		}
		if ctx.Err() != nil {
			return
		}
		c.begin(ctx)
	})
	return nil
}

// Stop flushes whatever has accumulated, cancels the subscription and waits
// for in-flight deliveries until ctx expires or ShutdownTimeout elapses.
func (c *Collector) Stop(ctx context.Context) error {
	if !c.lifecycle.CanStop() {
		if c.lifecycle.State() == StateIdle {
			return domain.ErrNotRunning
		}
		return nil
	}

	c.mu.Lock()
	c.stopped = true
	ctrl, sub := c.controller, c.sub
	c.mu.Unlock()

	if ctrl != nil {
		ctrl.Flush()
	}
	if sub != nil {
		sub.Cancel()
	}
	c.lifecycle.Cancel()

	timeout := ShutdownTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	err := c.lifecycle.WaitWithTimeout(timeout)

	if w, ok := c.deps.Sender.(interface{ Wait(context.Context) error }); ok && err == nil {
		err = w.Wait(ctx)
	}

	_ = c.lifecycle.TransitionTo(StateStopped, "stop")
	c.finish()
	return err
}

// State returns the lifecycle state.
func (c *Collector) State() State {
	return c.lifecycle.State()
}

// Done is closed once the run has delivered (or skipped) its package, failed,
// or been stopped.
func (c *Collector) Done() <-chan struct{} {
	return c.done
}

// Controller returns the flush controller of a streaming run, or nil.
func (c *Collector) Controller() *FlushController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

// begin starts collecting. It does nothing once Stop has run, so a worker
// that was already past its readiness wait cannot arm a timer after shutdown.
func (c *Collector) begin(ctx context.Context) {
	defer c.recoverInto("begin")

	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if stopped {
		c.logger.Debug("collector stopped before collection began")
		return
	}

	if c.cfg.FlushTimeout <= 0 {
		entries := c.source.Snapshot(c.cfg.Kinds...)
		kept := make([]domain.TimingEntry, 0, len(entries))
		for _, e := range entries {
			if c.cfg.Filter(e.Name) {
				kept = append(kept, e)
			}
		}
		c.deliver(ctx, kept, FlushSnapshot)
		return
	}

	ctrl, sub, ok := c.arm(ctx)
	if !ok {
		return
	}

	ctrl.OnFlushed(sub.Cancel)
	ctrl.Start()

	c.logger.Debug("collecting",
		log.Int("buffer_count", ctrl.cfg.BufferCount),
		log.Duration("timeout", c.cfg.FlushTimeout),
	)
}

// arm creates the controller and subscription and publishes them under c.mu,
// unless Stop got there first.
func (c *Collector) arm(ctx context.Context) (*FlushController, *Subscription, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return nil, nil, false
	}

	ctrl := NewFlushController(FlushConfig{
		BufferCount: c.cfg.BufferCount,
		Timeout:     c.cfg.FlushTimeout,
		Filter:      c.cfg.Filter,
	}, c.deps.Clock, func(entries []domain.TimingEntry, reason FlushReason) {
		c.deliver(ctx, entries, reason)
	})
	c.sub = c.source.Subscribe(c.cfg.Kinds, func(batch []domain.TimingEntry) {
		defer c.recoverInto("batch")
		ctrl.OnEntries(batch)
	})
	c.controller = ctrl
	return ctrl, c.sub, true
}

func (c *Collector) deliver(ctx context.Context, entries []domain.TimingEntry, reason FlushReason) {
	defer c.recoverInto("deliver")
	defer c.finish()

	pkg := stats.Build(entries, stats.Options{
		TakeConnection: c.cfg.TakeConnection,
		Token:          c.cfg.Token,
		Deduplicate:    c.cfg.Deduplicate,
		Network:        c.deps.Network,
	})

	event := FlushEvent{
		Reason:    reason,
		Entries:   len(entries),
		Resources: len(pkg.Resources),
		Duration:  c.deps.Clock.Now().Sub(c.started),
	}

	if stats.IsFulfilled(pkg) && c.deps.Sender != nil {
		c.deps.Sender.Send(ctx, c.cfg.Endpoint, pkg)
		event.Sent = true
		c.logger.Debug("package handed to transport",
			log.String("reason", string(reason)),
			log.Int("resources", event.Resources),
			log.String("endpoint", c.cfg.Endpoint),
		)
	} else {
		c.logger.Debug("package unfulfilled, not sent",
			log.String("reason", string(reason)),
			log.Int("entries", event.Entries),
			log.Err(domain.ErrEmptyPackage),
		)
	}

	_ = c.lifecycle.TransitionTo(StateFlushed, string(reason))

	if c.deps.Flushes != nil {
		c.deps.Flushes.OnFlush(event)
	}
}

func (c *Collector) probe(ctx context.Context) {
	defer c.recoverInto("probe")
	if err := c.deps.Prober.Probe(ctx, c.cfg.ProbeURL); err != nil {
		c.logger.Debug("probe failed", log.String("url", c.cfg.ProbeURL), log.Err(err))
	}
}

func (c *Collector) spawn(fn func()) {
	c.lifecycle.AddWorker()
	go func() {
		defer c.lifecycle.WorkerDone()
		fn()
	}()
}

// recoverInto absorbs a panic from host collaborators, logging it at debug
// level and moving the collector to StateFailed.
func (c *Collector) recoverInto(stage string) {
	r := recover()
	if r == nil {
		return
	}
	c.logger.Debug("collector panic recovered",
		log.String("stage", stage),
		log.Err(fmt.Errorf("panic: %v", r)),
	)
	_ = c.lifecycle.TransitionTo(StateFailed, stage)
	c.finish()
}

func (c *Collector) finish() {
	c.doneOnce.Do(func() { close(c.done) })
}

package perfship

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/bft-labs/perfship/internal/adapters/beacon"
	httpAdapter "github.com/bft-labs/perfship/internal/adapters/http"
	"github.com/bft-labs/perfship/internal/adapters/netinfo"
	"github.com/bft-labs/perfship/internal/adapters/trace"
	"github.com/bft-labs/perfship/internal/app"
	"github.com/bft-labs/perfship/internal/probe"
	"github.com/bft-labs/perfship/pkg/log"
)

// Collector gathers timing entries for one run and delivers them once.
// Use New to create one, then Start. A Collector cannot be restarted.
type Collector struct {
	config   Config
	opts     options
	core     *app.Collector
	recorder *trace.Recorder
	queue    *beacon.Queue
	logger   log.Logger

	stopOnce sync.Once
	stopErr  error
}

// New creates a Collector with the given configuration.
// Returns an error wrapping ErrInvalidConfig if the configuration is invalid.
func New(cfg Config, opts ...Option) (*Collector, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pred, _ := cfg.predicate()
	kinds, _ := cfg.kinds()

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := log.OrNoop(o.logger)
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	c := &Collector{config: cfg, opts: o, logger: logger}

	timing := o.timing
	network := o.network
	if timing == nil {
		var recOpts []trace.Option
		if network == nil {
			est := netinfo.NewEstimator(0)
			network = est
			recOpts = append(recOpts, trace.WithEntryHook(est.Observe))
		}
		if o.clock != nil {
			recOpts = append(recOpts, trace.WithClock(o.clock))
		}
		c.recorder = trace.New(recOpts...)
		timing = c.recorder
	}

	poster := httpAdapter.NewPoster(o.httpClient, cfg.Compress)
	b := o.beacon
	if b == nil && !o.noBeacon {
		c.queue = beacon.NewQueue(poster, beacon.QueueConfig{}, logger)
		b = c.queue
	}
	if o.noBeacon {
		b = nil
	}
	transport := httpAdapter.NewTransport(b, poster, logger)

	coreCfg := app.CollectorConfig{
		Endpoint:       cfg.Endpoint(),
		Token:          cfg.Token,
		Filter:         pred,
		Kinds:          kinds,
		BufferCount:    cfg.BufferCount,
		FlushTimeout:   cfg.FlushTimeout,
		TakeConnection: cfg.TakeConnection,
		Deduplicate:    cfg.Deduplicate,
		ClearAfterRead: cfg.ClearAfterRead,
		PollInterval:   cfg.PollInterval,
	}

	deps := app.CollectorDeps{
		Timing:  timing,
		Network: network,
		Sender:  transport,
		Clock:   o.clock,
		Logger:  logger,
	}
	if o.eventHandler != nil {
		emitter := &eventEmitterWrapper{handler: o.eventHandler}
		deps.Flushes = emitter
		deps.States = emitter
	}

	if cfg.ResolveRandom {
		if target, ok := probe.Target(cfg.Prefixes); ok {
			client := o.probeClient
			if client == nil && c.recorder != nil {
				client = c.recorder.Client(cfg.HTTPTimeout)
			}
			if client != nil {
				coreCfg.ProbeURL = target
				deps.Prober = probe.New(client)
			} else {
				logger.Debug("resolve-random needs a probe client for a custom timing source")
			}
		}
	}

	c.core = app.NewCollector(coreCfg, deps)
	return c, nil
}

// Start begins collection. It returns immediately; with WithReady the
// collection itself begins once the ready channel is closed.
// Returns ErrAlreadyStarted on a second call.
func (c *Collector) Start(ctx context.Context) error {
	return c.core.Start(ctx, c.opts.ready)
}

// Stop delivers whatever has accumulated if nothing was delivered yet, then
// waits for queued deliveries until ctx is done.
// Returns ErrNotRunning if Start was never called.
func (c *Collector) Stop(ctx context.Context) error {
	if c.core.State() == app.StateIdle {
		return ErrNotRunning
	}
	c.stopOnce.Do(func() {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, app.ShutdownTimeout)
			defer cancel()
		}
		err := c.core.Stop(ctx)
		if c.queue != nil {
			if qerr := c.queue.Close(ctx); qerr != nil && err == nil {
				err = qerr
			}
		}
		c.stopErr = err
	})
	return c.stopErr
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (c *Collector) Status() State {
	return convertState(c.core.State())
}

// Done is closed once the package has been delivered or skipped, or the run
// was abandoned.
func (c *Collector) Done() <-chan struct{} {
	return c.core.Done()
}

// Client returns an HTTP client whose requests are recorded, or nil when a
// custom timing source was configured.
func (c *Collector) Client() *http.Client {
	if c.recorder == nil {
		return nil
	}
	return c.recorder.Client(c.config.HTTPTimeout)
}

// Transport returns the recording round tripper, or nil when a custom
// timing source was configured.
func (c *Collector) Transport() http.RoundTripper {
	if c.recorder == nil {
		return nil
	}
	return c.recorder
}

// Config returns the resolved configuration.
func (c *Collector) Config() Config {
	return c.config
}

// Collect resolves configuration from attrs, then creates and starts a
// Collector. It never fails: on any error or panic it logs at debug level and
// returns nil, and nothing is collected.
func Collect(ctx context.Context, attrs AttributeSource, opts ...Option) (c *Collector) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := log.OrNoop(o.logger)

	defer func() {
		if r := recover(); r != nil {
			logger.Debug("collect aborted", log.Err(fmt.Errorf("panic: %v", r)))
			c = nil
		}
	}()

	cfg, err := ConfigFromAttributes(attrs)
	if err != nil {
		logger.Debug("collect disabled", log.Err(err))
		return nil
	}
	c, err = New(cfg, opts...)
	if err != nil {
		logger.Debug("collect disabled", log.Err(err))
		return nil
	}
	if err := c.Start(ctx); err != nil {
		logger.Debug("collect not started", log.Err(err))
		return nil
	}
	logger.Debug("collect started",
		log.String("endpoint", cfg.Endpoint()),
		log.Duration("delay", cfg.FlushTimeout),
		log.Int("prefixes", len(cfg.Prefixes)),
	)
	return c
}

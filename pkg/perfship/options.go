package perfship

import (
	"github.com/bft-labs/perfship/internal/clock"
)

// Option configures optional behavior of a Collector.
type Option func(*options)

// options holds the optional configuration for a Collector.
type options struct {
	httpClient   HTTPClient
	probeClient  HTTPClient
	logger       Logger
	eventHandler EventHandler
	timing       TimingSource
	network      NetworkInfo
	beacon       Beacon
	noBeacon     bool
	ready        <-chan struct{}
	clock        clock.Clock
}

// WithHTTPClient sets the client used to deliver packages.
// If not provided, a client with Config.HTTPTimeout is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for collector events.
// If not provided, no events are emitted.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithTimingSource collects from src instead of the built-in recording
// transport. Collector.Client then returns nil.
func WithTimingSource(src TimingSource) Option {
	return func(o *options) {
		o.timing = src
	}
}

// WithNetworkInfo sets the connection-quality source. By default hints are
// estimated from entries recorded by the built-in transport.
func WithNetworkInfo(info NetworkInfo) Option {
	return func(o *options) {
		o.network = info
	}
}

// WithBeacon replaces the built-in beacon queue.
func WithBeacon(b Beacon) Option {
	return func(o *options) {
		o.beacon = b
	}
}

// WithoutBeacon disables the beacon so every package goes out as a direct
// asynchronous POST.
func WithoutBeacon() Option {
	return func(o *options) {
		o.noBeacon = true
	}
}

// WithReady defers collection until ready is closed, as a page script waits
// for the document to be parsed.
func WithReady(ready <-chan struct{}) Option {
	return func(o *options) {
		o.ready = ready
	}
}

// WithProbeClient sets the client the ResolveRandom probe is issued through.
// It should record into the configured timing source. Defaults to the
// built-in recording client.
func WithProbeClient(client HTTPClient) Option {
	return func(o *options) {
		o.probeClient = client
	}
}

// withClock is used by tests to control time.
func withClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clock = clk
	}
}

package perfship

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bft-labs/perfship/internal/app"
	"github.com/bft-labs/perfship/internal/domain"
	"github.com/bft-labs/perfship/internal/filter"
	"github.com/bft-labs/perfship/internal/hostconfig"
)

// Endpoint defaults.
const (
	DefaultServiceURL = "https://insights-api.gcorelabs.com"
	DefaultBackend    = "collect"

	// BackendWG is the alternate collection backend.
	BackendWG = "collect-wg"
)

// Other defaults.
const (
	DefaultBufferCount  = app.DefaultBufferCount
	DefaultFlushTimeout = app.DefaultFlushTimeout
	DefaultHTTPTimeout  = 10 * time.Second
	DefaultPollInterval = app.DefaultPollInterval
)

// Filter modes.
const (
	FilterPrefix  = string(filter.ModePrefix)
	FilterPattern = string(filter.ModePattern)
)

// Entry kinds.
const (
	KindResource   = string(domain.KindResource)
	KindNavigation = string(domain.KindNavigation)
)

// Config holds the settings of one collection run. It is resolved once and
// not modified afterwards.
type Config struct {
	// ServiceURL is the collection base URL.
	ServiceURL string

	// Backend is the sub-path appended to ServiceURL.
	Backend string

	// Token identifies the site to the collector. Required.
	Token string

	// Prefixes restricts collection to URLs starting with one of them. Bare
	// hosts match both schemes. Empty collects everything.
	Prefixes []string

	// Patterns are regular expressions used instead of Prefixes when
	// FilterMode is "pattern".
	Patterns []string

	// FilterMode is "prefix" (default) or "pattern".
	FilterMode string

	// BufferCount is the number of matching entries that triggers delivery.
	BufferCount int

	// FlushTimeout is how long to wait for BufferCount entries before
	// delivering what has accumulated. Zero reads the source once and
	// delivers immediately.
	FlushTimeout time.Duration

	// TakeConnection adds the connection-quality block when available.
	TakeConnection bool

	// ResolveRandom requests one random subdomain of the first prefix host so
	// a cold DNS lookup is measured.
	ResolveRandom bool

	// Deduplicate keeps only the first entry per URL.
	Deduplicate bool

	// ClearAfterRead empties the source buffer after reading it.
	ClearAfterRead bool

	// Kinds are the entry types collected: "resource" and/or "navigation".
	Kinds []string

	// Compress gzips fallback POST bodies.
	Compress bool

	// HTTPTimeout bounds each delivery request.
	HTTPTimeout time.Duration

	// PollInterval is used for sources that cannot push entries.
	PollInterval time.Duration
}

// DefaultConfig returns a Config with every default applied. Start from it:
// SetDefaults cannot restore boolean defaults that were left false.
func DefaultConfig() Config {
	return Config{
		ServiceURL:     DefaultServiceURL,
		Backend:        DefaultBackend,
		FilterMode:     FilterPrefix,
		BufferCount:    DefaultBufferCount,
		FlushTimeout:   DefaultFlushTimeout,
		TakeConnection: true,
		Deduplicate:    true,
		ClearAfterRead: true,
		Kinds:          []string{KindResource, KindNavigation},
		HTTPTimeout:    DefaultHTTPTimeout,
		PollInterval:   DefaultPollInterval,
	}
}

// SetDefaults fills zero-valued fields. FlushTimeout is left alone because
// zero selects snapshot mode.
func (c *Config) SetDefaults() {
	if c.ServiceURL == "" {
		c.ServiceURL = DefaultServiceURL
	}
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	if c.FilterMode == "" {
		c.FilterMode = FilterPrefix
	}
	if c.BufferCount == 0 {
		c.BufferCount = DefaultBufferCount
	}
	if len(c.Kinds) == 0 {
		c.Kinds = []string{KindResource, KindNavigation}
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
}

// Validate checks the configuration. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return fmt.Errorf("%w: token is required", ErrInvalidConfig)
	}
	u, err := url.Parse(c.ServiceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: service URL %q is not absolute", ErrInvalidConfig, c.ServiceURL)
	}
	if c.BufferCount < 0 {
		return fmt.Errorf("%w: buffer count must be positive", ErrInvalidConfig)
	}
	if c.FlushTimeout < 0 {
		return fmt.Errorf("%w: flush timeout must not be negative", ErrInvalidConfig)
	}
	if _, err := c.predicate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.kinds(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Endpoint returns the full collection URL.
func (c *Config) Endpoint() string {
	base := strings.TrimRight(c.ServiceURL, "/")
	backend := strings.Trim(c.Backend, "/")
	if backend == "" {
		return base
	}
	return base + "/" + backend
}

func (c *Config) predicate() (filter.Predicate, error) {
	mode, err := filter.ParseMode(c.FilterMode)
	if err != nil {
		return nil, err
	}
	if mode == filter.ModePattern {
		return filter.New(mode, c.Patterns)
	}
	return filter.New(mode, c.Prefixes)
}

func (c *Config) kinds() ([]domain.EntryKind, error) {
	out := make([]domain.EntryKind, 0, len(c.Kinds))
	for _, k := range c.Kinds {
		switch kind := domain.EntryKind(strings.TrimSpace(k)); kind {
		case domain.KindResource, domain.KindNavigation:
			out = append(out, kind)
		default:
			return nil, fmt.Errorf("unknown entry kind %q", k)
		}
	}
	return out, nil
}

// ConfigFromAttributes resolves a Config from host attributes on top of
// DefaultConfig. As on a page, an absent delay attribute selects snapshot
// mode. The result is not validated.
func ConfigFromAttributes(attrs AttributeSource) (Config, error) {
	cfg := DefaultConfig()
	cfg.FlushTimeout = 0

	o, err := hostconfig.Parse(attrs)
	if err != nil {
		return cfg, err
	}
	if o.Token != nil {
		cfg.Token = *o.Token
	}
	if o.Prefixes != nil {
		cfg.Prefixes = o.Prefixes
	}
	if o.Patterns != nil {
		cfg.Patterns = o.Patterns
	}
	if o.FilterMode != nil {
		cfg.FilterMode = string(*o.FilterMode)
	}
	if o.Backend != nil && *o.Backend != "" {
		cfg.Backend = *o.Backend
	}
	if o.FlushTimeout != nil {
		cfg.FlushTimeout = *o.FlushTimeout
	}
	if o.ResolveRandom != nil {
		cfg.ResolveRandom = *o.ResolveRandom
	}
	if o.BufferCount != nil {
		cfg.BufferCount = *o.BufferCount
	}
	if o.Connection != nil {
		cfg.TakeConnection = *o.Connection
	}
	return cfg, nil
}

package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/perfship/internal/filter"
	"github.com/bft-labs/perfship/pkg/perfship"
)

// DefaultServiceURL is the default collection endpoint.
const DefaultServiceURL = perfship.DefaultServiceURL

// Config holds CLI configuration for perfship.
type Config struct {
	ServiceURL string
	Backend    string
	Token      string

	Prefixes   []string
	Patterns   []string
	FilterMode string
	Kinds      []string

	BufferCount  int
	Delay        time.Duration
	PollInterval time.Duration
	HTTPTimeout  time.Duration
	Concurrency  int

	Connection    bool
	ResolveRandom bool
	Dedup         bool
	Clear         bool
	Compress      bool

	// EntriesFile replaces request recording with a file of exported entries.
	EntriesFile string
	// Replay delivers entries already in EntriesFile, not only appended ones.
	Replay bool

	// Page is an HTML file whose collector <script> tag supplies settings.
	Page string

	LogLevel string
	DryRun   bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ServiceURL:   DefaultServiceURL,
		Backend:      perfship.DefaultBackend,
		FilterMode:   perfship.FilterPrefix,
		Kinds:        []string{perfship.KindResource, perfship.KindNavigation},
		BufferCount:  perfship.DefaultBufferCount,
		Delay:        perfship.DefaultFlushTimeout,
		PollInterval: perfship.DefaultPollInterval,
		HTTPTimeout:  perfship.DefaultHTTPTimeout,
		Concurrency:  4,
		Connection:   true,
		Dedup:        true,
		Clear:        true,
		Replay:       true,
		LogLevel:     "info",
	}
}

// Validate checks the configuration for errors and normalises the service URL.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return fmt.Errorf("token is required (flag, PERFSHIP_TOKEN, config file or --page)")
	}
	if c.ServiceURL == "" {
		c.ServiceURL = DefaultServiceURL
	}
	c.ServiceURL = strings.TrimRight(c.ServiceURL, "/")

	if c.BufferCount <= 0 {
		return fmt.Errorf("buffer count must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must not be negative")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if _, err := filter.ParseMode(c.FilterMode); err != nil {
		return err
	}
	return nil
}

// Library converts c to the library configuration.
func (c *Config) Library() perfship.Config {
	return perfship.Config{
		ServiceURL:     c.ServiceURL,
		Backend:        c.Backend,
		Token:          c.Token,
		Prefixes:       c.Prefixes,
		Patterns:       c.Patterns,
		FilterMode:     c.FilterMode,
		BufferCount:    c.BufferCount,
		FlushTimeout:   c.Delay,
		TakeConnection: c.Connection,
		ResolveRandom:  c.ResolveRandom,
		Deduplicate:    c.Dedup,
		ClearAfterRead: c.Clear,
		Kinds:          c.Kinds,
		Compress:       c.Compress,
		HTTPTimeout:    c.HTTPTimeout,
		PollInterval:   c.PollInterval,
	}
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setList sets a list if not empty and flag not changed.
func (s *configSetter) setList(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
// A bare number is read as milliseconds, matching the delay attribute.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	if ms, err := strconv.Atoi(value); err == nil {
		*dst = time.Duration(ms) * time.Millisecond
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

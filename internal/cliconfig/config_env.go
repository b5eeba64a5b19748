package cliconfig

import (
	"os"

	"github.com/bft-labs/perfship/internal/filter"
)

// ApplyEnvConfig applies configuration from environment variables (PERFSHIP_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("service-url", os.Getenv("PERFSHIP_SERVICE_URL"), &cfg.ServiceURL)
	s.setString("backend", os.Getenv("PERFSHIP_BACKEND"), &cfg.Backend)
	s.setString("token", os.Getenv("PERFSHIP_TOKEN"), &cfg.Token)
	s.setString("filter-mode", os.Getenv("PERFSHIP_FILTER_MODE"), &cfg.FilterMode)
	s.setString("entries", os.Getenv("PERFSHIP_ENTRIES"), &cfg.EntriesFile)
	s.setString("log-level", os.Getenv("PERFSHIP_LOG_LEVEL"), &cfg.LogLevel)

	s.setList("prefix", filter.SplitList(os.Getenv("PERFSHIP_PREFIXES")), &cfg.Prefixes)
	s.setList("pattern", filter.SplitList(os.Getenv("PERFSHIP_PATTERNS")), &cfg.Patterns)
	s.setList("kinds", filter.SplitList(os.Getenv("PERFSHIP_KINDS")), &cfg.Kinds)

	if err := s.setDuration("delay", os.Getenv("PERFSHIP_DELAY"), &cfg.Delay); err != nil {
		return err
	}
	if err := s.setDuration("poll", os.Getenv("PERFSHIP_POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", os.Getenv("PERFSHIP_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}

	if err := s.setIntFromString("buffer-count", os.Getenv("PERFSHIP_BUFFER_COUNT"), &cfg.BufferCount); err != nil {
		return err
	}
	if err := s.setIntFromString("concurrency", os.Getenv("PERFSHIP_CONCURRENCY"), &cfg.Concurrency); err != nil {
		return err
	}

	s.setBoolFromString("connection", os.Getenv("PERFSHIP_CONNECTION"), &cfg.Connection)
	s.setBoolFromString("resolve-random", os.Getenv("PERFSHIP_RESOLVE_RANDOM"), &cfg.ResolveRandom)
	s.setBoolFromString("dedup", os.Getenv("PERFSHIP_DEDUP"), &cfg.Dedup)
	s.setBoolFromString("clear", os.Getenv("PERFSHIP_CLEAR"), &cfg.Clear)
	s.setBoolFromString("compress", os.Getenv("PERFSHIP_COMPRESS"), &cfg.Compress)
	s.setBoolFromString("replay", os.Getenv("PERFSHIP_REPLAY"), &cfg.Replay)

	return nil
}

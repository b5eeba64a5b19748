package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config but uses strings for durations to make TOML and
// YAML friendly.
type FileConfig struct {
	ServiceURL    string   `toml:"service_url" yaml:"service_url"`
	Backend       string   `toml:"backend" yaml:"backend"`
	Token         string   `toml:"token" yaml:"token"`
	Prefixes      []string `toml:"prefixes" yaml:"prefixes"`
	Patterns      []string `toml:"patterns" yaml:"patterns"`
	FilterMode    string   `toml:"filter_mode" yaml:"filter_mode"`
	Kinds         []string `toml:"kinds" yaml:"kinds"`
	BufferCount   int      `toml:"buffer_count" yaml:"buffer_count"`
	Delay         string   `toml:"delay" yaml:"delay"`
	PollInterval  string   `toml:"poll_interval" yaml:"poll_interval"`
	HTTPTimeout   string   `toml:"http_timeout" yaml:"http_timeout"`
	Concurrency   int      `toml:"concurrency" yaml:"concurrency"`
	Connection    *bool    `toml:"connection" yaml:"connection"`
	ResolveRandom *bool    `toml:"resolve_random" yaml:"resolve_random"`
	Dedup         *bool    `toml:"dedup" yaml:"dedup"`
	Clear         *bool    `toml:"clear" yaml:"clear"`
	Compress      *bool    `toml:"compress" yaml:"compress"`
	EntriesFile   string   `toml:"entries" yaml:"entries"`
	Replay        *bool    `toml:"replay" yaml:"replay"`
	LogLevel      string   `toml:"log_level" yaml:"log_level"`
}

// LoadFileConfig reads a config file. Files ending in .yaml or .yml are
// parsed as YAML, anything else as TOML.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	default:
		err = toml.Unmarshal(b, &fc)
	}
	if err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.perfship/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".perfship", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("service-url", fc.ServiceURL, &cfg.ServiceURL)
	s.setString("backend", fc.Backend, &cfg.Backend)
	s.setString("token", fc.Token, &cfg.Token)
	s.setString("filter-mode", fc.FilterMode, &cfg.FilterMode)
	s.setString("entries", fc.EntriesFile, &cfg.EntriesFile)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	s.setList("prefix", fc.Prefixes, &cfg.Prefixes)
	s.setList("pattern", fc.Patterns, &cfg.Patterns)
	s.setList("kinds", fc.Kinds, &cfg.Kinds)

	if err := s.setDuration("delay", fc.Delay, &cfg.Delay); err != nil {
		return err
	}
	if err := s.setDuration("poll", fc.PollInterval, &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}

	s.setInt("buffer-count", fc.BufferCount, &cfg.BufferCount)
	s.setInt("concurrency", fc.Concurrency, &cfg.Concurrency)

	s.setBool("connection", fc.Connection, &cfg.Connection)
	s.setBool("resolve-random", fc.ResolveRandom, &cfg.ResolveRandom)
	s.setBool("dedup", fc.Dedup, &cfg.Dedup)
	s.setBool("clear", fc.Clear, &cfg.Clear)
	s.setBool("compress", fc.Compress, &cfg.Compress)
	s.setBool("replay", fc.Replay, &cfg.Replay)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

package cliconfig

import (
	"fmt"
	"os"

	"github.com/bft-labs/perfship/internal/hostconfig"
)

// LoadPage reads the collector <script> tag attributes from an HTML file.
func LoadPage(path string) (hostconfig.Attributes, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	attrs, err := hostconfig.FromMarkup(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return attrs, nil
}

// ApplyAttributes applies host attributes to the Config struct, respecting
// flags that have been explicitly set. As on a page, a missing delay
// attribute selects snapshot mode.
func ApplyAttributes(cfg *Config, attrs hostconfig.Source, changed map[string]bool) error {
	o, err := hostconfig.Parse(attrs)
	if err != nil {
		return err
	}
	s := newConfigSetter(changed)

	if o.Token != nil {
		s.setString("token", *o.Token, &cfg.Token)
	}
	s.setList("prefix", o.Prefixes, &cfg.Prefixes)
	s.setList("pattern", o.Patterns, &cfg.Patterns)
	if o.FilterMode != nil {
		s.setString("filter-mode", string(*o.FilterMode), &cfg.FilterMode)
	}
	if o.Backend != nil {
		s.setString("backend", *o.Backend, &cfg.Backend)
	}
	if o.BufferCount != nil {
		s.setInt("buffer-count", *o.BufferCount, &cfg.BufferCount)
	}
	s.setBool("resolve-random", o.ResolveRandom, &cfg.ResolveRandom)
	s.setBool("connection", o.Connection, &cfg.Connection)

	if !changed["delay"] {
		cfg.Delay = 0
		if o.FlushTimeout != nil {
			cfg.Delay = *o.FlushTimeout
		}
	}
	return nil
}

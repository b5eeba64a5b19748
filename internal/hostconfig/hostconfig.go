// Package hostconfig reads collector settings supplied by the host page, the
// data-* attributes of the <script> tag that loads the collector:
//
//	<script src="perf.js" data-token="abc" data-prefix="cdn.example.com" data-delay="1000"></script>
package hostconfig

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/bft-labs/perfship/internal/domain"
	"github.com/bft-labs/perfship/internal/filter"
)

// Attribute names, without the data- prefix.
const (
	AttrToken         = "token"
	AttrPrefix        = "prefix"
	AttrPrefixes      = "prefixes"
	AttrPatterns      = "patterns"
	AttrFilterMode    = "filter-mode"
	AttrBackend       = "backend"
	AttrDelay         = "delay"
	AttrResolveRandom = "resolve-random"
	AttrBufferCount   = "buffer-count"
	AttrConnection    = "connection"
)

// ErrNoCollectorTag is returned by FromMarkup when no <script> carries a
// data-token attribute.
var ErrNoCollectorTag = errors.New("no <script> tag with data-token")

// Attributes is an in-memory ports.AttributeSource.
type Attributes map[string]string

// Attr implements ports.AttributeSource.
func (a Attributes) Attr(name string) (string, bool) {
	v, ok := a[name]
	return v, ok
}

// FromMarkup returns the data-* attributes of the first <script> element
// that has a data-token attribute.
func FromMarkup(r io.Reader) (Attributes, error) {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, fmt.Errorf("parse markup: %w", err)
			}
			return nil, ErrNoCollectorTag
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "script" {
				continue
			}
			attrs := make(Attributes)
			for _, a := range tok.Attr {
				if name, ok := strings.CutPrefix(a.Key, "data-"); ok {
					attrs[name] = a.Val
				}
			}
			if _, ok := attrs[AttrToken]; ok {
				return attrs, nil
			}
		}
	}
}

// Source is what Parse reads from; ports.AttributeSource satisfies it.
type Source interface {
	Attr(name string) (string, bool)
}

// Overrides holds the settings present in the host attributes. Nil fields
// were absent and keep their defaults.
type Overrides struct {
	Token         *string
	Prefixes      []string
	Patterns      []string
	FilterMode    *filter.Mode
	Backend       *string
	FlushTimeout  *time.Duration
	ResolveRandom *bool
	BufferCount   *int
	Connection    *bool
}

// Parse reads every recognised attribute from src. Malformed values are
// reported together, wrapped in domain.ErrInvalidConfig.
func Parse(src Source) (Overrides, error) {
	var (
		o    Overrides
		errs []error
	)
	if src == nil {
		return o, nil
	}

	if v, ok := src.Attr(AttrToken); ok {
		v = strings.TrimSpace(v)
		o.Token = &v
	}
	for _, name := range []string{AttrPrefix, AttrPrefixes} {
		if v, ok := src.Attr(name); ok {
			o.Prefixes = append(o.Prefixes, filter.SplitList(v)...)
		}
	}
	if v, ok := src.Attr(AttrPatterns); ok {
		o.Patterns = filter.SplitList(v)
	}
	if v, ok := src.Attr(AttrFilterMode); ok {
		m, err := filter.ParseMode(v)
		if err != nil {
			errs = append(errs, err)
		} else {
			o.FilterMode = &m
		}
	}
	if v, ok := src.Attr(AttrBackend); ok {
		v = strings.Trim(strings.TrimSpace(v), "/")
		o.Backend = &v
	}
	if v, ok := src.Attr(AttrDelay); ok {
		d, err := parseDelay(v)
		if err != nil {
			errs = append(errs, err)
		} else {
			o.FlushTimeout = &d
		}
	}
	if v, ok := src.Attr(AttrResolveRandom); ok {
		b, err := parseBool(AttrResolveRandom, v)
		if err != nil {
			errs = append(errs, err)
		} else {
			o.ResolveRandom = &b
		}
	}
	if v, ok := src.Attr(AttrBufferCount); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("%s: want a positive integer, got %q", AttrBufferCount, v))
		} else {
			o.BufferCount = &n
		}
	}
	if v, ok := src.Attr(AttrConnection); ok {
		b, err := parseBool(AttrConnection, v)
		if err != nil {
			errs = append(errs, err)
		} else {
			o.Connection = &b
		}
	}

	if len(errs) > 0 {
		return o, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, errors.Join(errs...))
	}
	return o, nil
}

// parseDelay reads milliseconds. Empty means 0, i.e. snapshot mode.
func parseDelay(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("%s: want milliseconds, got %q", AttrDelay, v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// parseBool treats a present but empty attribute as true, as HTML does.
func parseBool(name, v string) (bool, error) {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, name) {
		return true, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: want a boolean, got %q", name, v)
	}
	return b, nil
}

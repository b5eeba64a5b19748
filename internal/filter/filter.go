// Package filter decides which timing entries are relevant for telemetry.
//
// Two matching semantics exist and a deployment picks exactly one of them:
// literal prefixes (the default) or regular expressions matched anywhere in the
// resource URL. Prefix lists are expanded with ExpandPrefixes before use so a
// bare host covers both schemes.
package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// Predicate reports whether a resource identifier is telemetry-relevant.
// Predicates are pure: same input, same answer, no side effects.
type Predicate func(name string) bool

// Mode selects the matching semantics.
type Mode string

const (
	ModePrefix  Mode = "prefix"
	ModePattern Mode = "pattern"
)

// ParseMode parses a mode name; empty means ModePrefix.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModePrefix:
		return ModePrefix, nil
	case ModePattern:
		return ModePattern, nil
	default:
		return "", fmt.Errorf("unknown filter mode %q", s)
	}
}

// MatchAll accepts every identifier.
func MatchAll(string) bool { return true }

// Prefix accepts an identifier iff it starts with at least one of prefixes.
// With no prefixes it accepts nothing; callers wanting "no filter" use MatchAll.
func Prefix(prefixes ...string) Predicate {
	ps := append([]string(nil), prefixes...)
	return func(name string) bool {
		for _, p := range ps {
			if strings.HasPrefix(name, p) {
				return true
			}
		}
		return false
	}
}

// Pattern accepts an identifier iff at least one expression matches anywhere in it.
func Pattern(patterns ...*regexp.Regexp) Predicate {
	rs := append([]*regexp.Regexp(nil), patterns...)
	return func(name string) bool {
		for _, re := range rs {
			if re.MatchString(name) {
				return true
			}
		}
		return false
	}
}

// CompilePatterns compiles expressions, failing on the first invalid one.
func CompilePatterns(exprs ...string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", expr, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// ExpandPrefixes turns every bare host into its https:// and http:// forms.
// Entries that already carry an http:// or https:// scheme are kept as is. Blank entries are
// dropped, surrounding whitespace trimmed and duplicates removed; order is kept.
func ExpandPrefixes(raw []string) []string {
	seen := make(map[string]struct{}, len(raw)*2)
	out := make([]string, 0, len(raw)*2)
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if hasScheme(item) {
			add(item)
			continue
		}
		add("https://" + item)
		add("http://" + item)
	}
	return out
}

func hasScheme(item string) bool {
	lower := strings.ToLower(item)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// SplitList splits a comma-separated attribute value into trimmed, non-empty items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// New builds the predicate for a deployment. An empty list matches everything.
func New(mode Mode, items []string) (Predicate, error) {
	if len(items) == 0 {
		return MatchAll, nil
	}
	switch mode {
	case ModePattern:
		res, err := CompilePatterns(items...)
		if err != nil {
			return nil, err
		}
		return Pattern(res...), nil
	case ModePrefix, "":
		return Prefix(ExpandPrefixes(items)...), nil
	default:
		return nil, fmt.Errorf("unknown filter mode %q", mode)
	}
}

package hostconfig

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bft-labs/perfship/internal/domain"
	"github.com/bft-labs/perfship/internal/filter"
)

const page = `<!doctype html>
<html>
<head>
  <script src="/vendor.js" data-analytics="ignored"></script>
  <script async src="https://cdn.example.com/perf.js"
          data-token="f00d" data-prefix="cdn.example.com, https://static.example.com"
          data-backend="/collect-wg/" data-delay="1500" data-resolve-random></script>
  <script data-token="second"></script>
</head>
<body></body>
</html>`

func TestFromMarkup(t *testing.T) {
	attrs, err := FromMarkup(strings.NewReader(page))
	if err != nil {
		t.Fatalf("FromMarkup() error = %v", err)
	}

	want := map[string]string{
		"token":          "f00d",
		"prefix":         "cdn.example.com, https://static.example.com",
		"backend":        "/collect-wg/",
		"delay":          "1500",
		"resolve-random": "",
	}
	if len(attrs) != len(want) {
		t.Errorf("got %d attributes, want %d: %v", len(attrs), len(want), attrs)
	}
	for k, v := range want {
		if got, ok := attrs.Attr(k); !ok || got != v {
			t.Errorf("Attr(%q) = %q, %v; want %q", k, got, ok, v)
		}
	}
}

func TestFromMarkup_NoCollectorTag(t *testing.T) {
	_, err := FromMarkup(strings.NewReader(`<html><script src="a.js"></script></html>`))
	if !errors.Is(err, ErrNoCollectorTag) {
		t.Errorf("FromMarkup() error = %v, want ErrNoCollectorTag", err)
	}
}

func TestParse(t *testing.T) {
	o, err := Parse(Attributes{
		"token":          " f00d ",
		"prefix":         "cdn.example.com",
		"prefixes":       "a.co,b.co",
		"patterns":       `\.js$`,
		"filter-mode":    "pattern",
		"backend":        "/collect-wg/",
		"delay":          "1500",
		"resolve-random": "",
		"buffer-count":   "20",
		"connection":     "false",
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if *o.Token != "f00d" {
		t.Errorf("Token = %q", *o.Token)
	}
	if fmt.Sprint(o.Prefixes) != "[cdn.example.com a.co b.co]" {
		t.Errorf("Prefixes = %v", o.Prefixes)
	}
	if fmt.Sprint(o.Patterns) != `[\.js$]` {
		t.Errorf("Patterns = %v", o.Patterns)
	}
	if *o.FilterMode != filter.ModePattern {
		t.Errorf("FilterMode = %v", *o.FilterMode)
	}
	if *o.Backend != "collect-wg" {
		t.Errorf("Backend = %q", *o.Backend)
	}
	if *o.FlushTimeout != 1500*time.Millisecond {
		t.Errorf("FlushTimeout = %v", *o.FlushTimeout)
	}
	if !*o.ResolveRandom {
		t.Error("ResolveRandom = false for a bare attribute")
	}
	if *o.BufferCount != 20 {
		t.Errorf("BufferCount = %d", *o.BufferCount)
	}
	if *o.Connection {
		t.Error("Connection = true, want false")
	}
}

func TestParse_Absent(t *testing.T) {
	o, err := Parse(Attributes{"token": "t"})
	if err != nil {
		t.Fatal(err)
	}
	if o.FlushTimeout != nil || o.ResolveRandom != nil || o.BufferCount != nil || o.Backend != nil || o.Prefixes != nil {
		t.Errorf("absent attributes set: %+v", o)
	}

	if o, err := Parse(nil); err != nil || o.Token != nil {
		t.Errorf("Parse(nil) = %+v, %v", o, err)
	}
}

func TestParse_EmptyDelayIsSnapshot(t *testing.T) {
	o, err := Parse(Attributes{"delay": ""})
	if err != nil {
		t.Fatal(err)
	}
	if *o.FlushTimeout != 0 {
		t.Errorf("FlushTimeout = %v, want 0", *o.FlushTimeout)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		attrs Attributes
	}{
		{"delay", Attributes{"delay": "soon"}},
		{"negative delay", Attributes{"delay": "-5"}},
		{"bool", Attributes{"resolve-random": "maybe"}},
		{"buffer count", Attributes{"buffer-count": "0"}},
		{"filter mode", Attributes{"filter-mode": "glob"}},
		{"connection", Attributes{"connection": "sometimes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.attrs)
			if !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("Parse() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

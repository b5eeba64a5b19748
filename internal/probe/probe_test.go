package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestTarget(t *testing.T) {
	fixed := func() string { return "abc" }
	tests := []struct {
		name     string
		prefixes []string
		want     string
		ok       bool
	}{
		{"bare host", []string{"cdn.example.com"}, "https://abc.cdn.example.com/", true},
		{"full url", []string{"http://static.example.com/assets"}, "https://abc.static.example.com/", true},
		{"port stripped", []string{"https://a.co:8443"}, "https://abc.a.co/", true},
		{"skips blanks", []string{" ", "a.co"}, "https://abc.a.co/", true},
		{"none", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := target(tt.prefixes, fixed)
			if got != tt.want || ok != tt.ok {
				t.Errorf("target() = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestTarget_RandomName(t *testing.T) {
	a, _ := Target([]string{"a.co"})
	b, _ := Target([]string{"a.co"})
	if a == b {
		t.Errorf("two probes share a name: %s", a)
	}
	label := strings.TrimSuffix(strings.TrimPrefix(a, "https://"), ".a.co/")
	if _, err := uuid.Parse(label); err != nil {
		t.Errorf("label %q is not a UUID: %v", label, err)
	}
}

func TestProber_Probe(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if err := New(srv.Client()).Probe(context.Background(), srv.URL+"/"); err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if hits != 1 {
		t.Errorf("server hit %d times, want 1", hits)
	}
}

func TestProber_ProbeFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if err := New(nil).Probe(context.Background(), url); err == nil {
		t.Error("Probe() error = nil for an unreachable host")
	}
}

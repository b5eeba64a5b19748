package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/perfship/internal/cliconfig"
	"github.com/bft-labs/perfship/pkg/perfship"
)

type collectLog struct {
	mu       sync.Mutex
	packages []perfship.StatPackage
}

func (l *collectLog) handler(w http.ResponseWriter, r *http.Request) {
	var pkg perfship.StatPackage
	if err := json.NewDecoder(r.Body).Decode(&pkg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	l.mu.Lock()
	l.packages = append(l.packages, pkg)
	l.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (l *collectLog) Packages() []perfship.StatPackage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]perfship.StatPackage(nil), l.packages...)
}

func TestRun_DeliversFetchedURLs(t *testing.T) {
	tests := []struct {
		name  string
		delay time.Duration
	}{
		{"snapshot", 0},
		{"streaming timeout", 300 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, "content of "+r.URL.Path)
			}))
			defer site.Close()

			collected := &collectLog{}
			collector := httptest.NewServer(http.HandlerFunc(collected.handler))
			defer collector.Close()

			cfg := cliconfig.DefaultConfig()
			cfg.Token = "tok"
			cfg.ServiceURL = collector.URL
			cfg.Prefixes = []string{site.URL}
			cfg.Delay = tt.delay
			cfg.HTTPTimeout = 5 * time.Second
			if err := cfg.Validate(); err != nil {
				t.Fatal(err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			urls := []string{site.URL + "/", site.URL + "/app.js", site.URL + "/app.css"}
			if err := run(ctx, cfg, urls, zerolog.Nop()); err != nil {
				t.Fatalf("run() error = %v", err)
			}

			pkgs := collected.Packages()
			if len(pkgs) != 1 {
				t.Fatalf("collector got %d packages, want 1", len(pkgs))
			}
			if got := len(pkgs[0].Resources); got != 3 {
				t.Errorf("package has %d resources, want 3", got)
			}
			if pkgs[0].Token != "tok" {
				t.Errorf("token = %q", pkgs[0].Token)
			}
		})
	}
}

func TestRun_RejectsInput(t *testing.T) {
	cfg := cliconfig.DefaultConfig()
	cfg.Token = "tok"

	if err := run(context.Background(), cfg, nil, zerolog.Nop()); err == nil {
		t.Error("run() without URLs or entries should fail")
	}

	cfg.EntriesFile = "entries.ndjson"
	if err := run(context.Background(), cfg, []string{"https://a.co/"}, zerolog.Nop()); err == nil {
		t.Error("run() with both URLs and entries should fail")
	}
}

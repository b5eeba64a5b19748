package cliconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bft-labs/perfship/internal/domain"
	"github.com/bft-labs/perfship/internal/hostconfig"
)

const page = `<!doctype html>
<html><head>
<script src="/app.js"></script>
<script src="/perf.js" data-token="page-token" data-prefix="cdn.example.com" data-resolve-random></script>
</head><body></body></html>`

func TestLoadPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.html")
	if err := os.WriteFile(path, []byte(page), 0644); err != nil {
		t.Fatal(err)
	}

	attrs, err := LoadPage(path)
	if err != nil {
		t.Fatalf("LoadPage() error = %v", err)
	}
	if attrs["token"] != "page-token" || attrs["prefix"] != "cdn.example.com" {
		t.Errorf("attrs = %v", attrs)
	}
}

func TestLoadPage_NoCollectorTag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.html")
	if err := os.WriteFile(path, []byte(`<script src="/app.js"></script>`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPage(path); !errors.Is(err, hostconfig.ErrNoCollectorTag) {
		t.Errorf("LoadPage() error = %v, want ErrNoCollectorTag", err)
	}
}

func TestApplyAttributes(t *testing.T) {
	tests := []struct {
		name      string
		attrs     hostconfig.Attributes
		changed   map[string]bool
		wantDelay time.Duration
		wantErr   error
	}{
		{
			name:      "no delay selects snapshot mode",
			attrs:     hostconfig.Attributes{"token": "t", "resolve-random": ""},
			changed:   map[string]bool{},
			wantDelay: 0,
		},
		{
			name:      "delay attribute in ms",
			attrs:     hostconfig.Attributes{"token": "t", "delay": "750"},
			changed:   map[string]bool{},
			wantDelay: 750 * time.Millisecond,
		},
		{
			name:      "delay flag wins",
			attrs:     hostconfig.Attributes{"token": "t"},
			changed:   map[string]bool{"delay": true},
			wantDelay: time.Second,
		},
		{
			name:    "malformed attribute",
			attrs:   hostconfig.Attributes{"token": "t", "buffer-count": "lots"},
			changed: map[string]bool{},
			wantErr: domain.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			err := ApplyAttributes(&cfg, tt.attrs, tt.changed)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ApplyAttributes() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyAttributes() error = %v", err)
			}
			if cfg.Delay != tt.wantDelay {
				t.Errorf("Delay = %v, want %v", cfg.Delay, tt.wantDelay)
			}
			if cfg.Token != "t" {
				t.Errorf("Token = %q", cfg.Token)
			}
		})
	}
}

func TestApplyAttributes_FlagsWin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Prefixes = []string{"flag.example.com"}

	err := ApplyAttributes(&cfg, hostconfig.Attributes{
		"token":          "t",
		"prefix":         "page.example.com",
		"resolve-random": "true",
	}, map[string]bool{"prefix": true})
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(cfg.Prefixes) != "[flag.example.com]" {
		t.Errorf("Prefixes = %v", cfg.Prefixes)
	}
	if !cfg.ResolveRandom {
		t.Error("ResolveRandom not applied")
	}
}

package cliconfig

import (
	"fmt"
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		changed map[string]bool
		check   func(t *testing.T, cfg Config)
		wantErr bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"PERFSHIP_TOKEN":        "env-token",
				"PERFSHIP_PREFIXES":     "cdn.a.com, cdn.b.com",
				"PERFSHIP_DELAY":        "2500",
				"PERFSHIP_BUFFER_COUNT": "25",
				"PERFSHIP_BACKEND":      "collect-wg",
				"PERFSHIP_CONNECTION":   "false",
				"PERFSHIP_COMPRESS":     "1",
			},
			changed: map[string]bool{},
			check: func(t *testing.T, cfg Config) {
				if cfg.Token != "env-token" || cfg.Backend != "collect-wg" {
					t.Errorf("strings = %+v", cfg)
				}
				if fmt.Sprint(cfg.Prefixes) != "[cdn.a.com cdn.b.com]" {
					t.Errorf("Prefixes = %v", cfg.Prefixes)
				}
				if cfg.Delay != 2500*time.Millisecond || cfg.BufferCount != 25 {
					t.Errorf("Delay = %v, BufferCount = %d", cfg.Delay, cfg.BufferCount)
				}
				if cfg.Connection || !cfg.Compress {
					t.Errorf("Connection = %v, Compress = %v", cfg.Connection, cfg.Compress)
				}
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"PERFSHIP_TOKEN": "env-token",
				"PERFSHIP_DELAY": "5s",
			},
			changed: map[string]bool{"token": true},
			check: func(t *testing.T, cfg Config) {
				if cfg.Token != "flag-token" {
					t.Errorf("Token = %q, want flag-token", cfg.Token)
				}
				if cfg.Delay != 5*time.Second {
					t.Errorf("Delay = %v, want 5s", cfg.Delay)
				}
			},
		},
		{
			name:    "returns error for invalid duration",
			envVars: map[string]string{"PERFSHIP_DELAY": "later"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid int",
			envVars: map[string]string{"PERFSHIP_BUFFER_COUNT": "many"},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := DefaultConfig()
			cfg.Token = "flag-token"
			err := ApplyEnvConfig(&cfg, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyEnvConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestConfigPrecedence(t *testing.T) {
	// file < env < flags
	cfg := DefaultConfig()
	cfg.Backend = "flag-backend"
	changed := map[string]bool{"backend": true}

	fc := FileConfig{
		Token:       "file-token",
		Backend:     "file-backend",
		BufferCount: 5,
	}
	if err := ApplyFileConfig(&cfg, fc, changed); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PERFSHIP_TOKEN", "env-token")
	t.Setenv("PERFSHIP_BACKEND", "env-backend")
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatal(err)
	}

	if cfg.Token != "env-token" {
		t.Errorf("Token = %q, want env-token", cfg.Token)
	}
	if cfg.Backend != "flag-backend" {
		t.Errorf("Backend = %q, want flag-backend", cfg.Backend)
	}
	if cfg.BufferCount != 5 {
		t.Errorf("BufferCount = %d, want 5 from file", cfg.BufferCount)
	}
}

package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true
	falseVal := false

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		check      func(t *testing.T, cfg Config)
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				Token:         "file-token",
				Prefixes:      []string{"cdn.example.com"},
				Delay:         "3s",
				BufferCount:   20,
				ResolveRandom: &trueVal,
				Dedup:         &falseVal,
			},
			changed: map[string]bool{},
			check: func(t *testing.T, cfg Config) {
				if cfg.Token != "file-token" || cfg.Delay != 3*time.Second || cfg.BufferCount != 20 {
					t.Errorf("cfg = %+v", cfg)
				}
				if !cfg.ResolveRandom || cfg.Dedup {
					t.Errorf("ResolveRandom = %v, Dedup = %v", cfg.ResolveRandom, cfg.Dedup)
				}
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				Token:    "file-token",
				Prefixes: []string{"file.example.com"},
			},
			changed: map[string]bool{"prefix": true},
			check: func(t *testing.T, cfg Config) {
				if fmt.Sprint(cfg.Prefixes) != "[flag.example.com]" {
					t.Errorf("Prefixes = %v, want flag value", cfg.Prefixes)
				}
				if cfg.Token != "file-token" {
					t.Errorf("Token = %q", cfg.Token)
				}
			},
		},
		{
			name:       "zero values keep defaults",
			fileConfig: FileConfig{},
			changed:    map[string]bool{},
			check: func(t *testing.T, cfg Config) {
				if cfg.BufferCount != 10 || !cfg.Connection || cfg.Delay != time.Second {
					t.Errorf("defaults lost: %+v", cfg)
				}
			},
		},
		{
			name:       "invalid duration",
			fileConfig: FileConfig{HTTPTimeout: "forever"},
			changed:    map[string]bool{},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Prefixes = []string{"flag.example.com"}

			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyFileConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "config.toml",
			content: `
token = "test-token"
prefixes = ["cdn.example.com", "static.example.com"]
delay = "1500ms"
connection = false
`,
		},
		{
			name: "yaml",
			file: "config.yaml",
			content: `
token: test-token
prefixes:
  - cdn.example.com
  - static.example.com
delay: 1500ms
connection: false
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			fc, err := LoadFileConfig(configPath)
			if err != nil {
				t.Fatalf("LoadFileConfig() error = %v", err)
			}
			if fc.Token != "test-token" {
				t.Errorf("Token = %q", fc.Token)
			}
			if len(fc.Prefixes) != 2 || fc.Prefixes[1] != "static.example.com" {
				t.Errorf("Prefixes = %v", fc.Prefixes)
			}
			if fc.Delay != "1500ms" {
				t.Errorf("Delay = %q", fc.Delay)
			}
			if fc.Connection == nil || *fc.Connection {
				t.Errorf("Connection = %v, want false", fc.Connection)
			}
		})
	}
}

func TestLoadFileConfig_InvalidFile(t *testing.T) {
	_, err := LoadFileConfig("/nonexistent/config.toml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFileConfig_InvalidContent(t *testing.T) {
	files := map[string]string{
		"config.toml": "token = [unterminated",
		"config.yml":  "token: [unterminated",
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), name)
			if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadFileConfig(configPath)
			if err == nil {
				t.Fatal("expected parse error")
			}
			if !strings.Contains(err.Error(), name) {
				t.Errorf("error %q does not name the file", err)
			}
		})
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()
	if path != "" && !strings.HasSuffix(path, filepath.Join(".perfship", "config.toml")) {
		t.Errorf("DefaultConfigPath() = %s", path)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingFile := filepath.Join(tmpDir, "exists.txt")
	if err := os.WriteFile(existingFile, []byte("test"), 0644); err != nil {
		t.Fatal(err)
	}

	if !FileExists(existingFile) {
		t.Error("FileExists() = false for existing file")
	}
	if FileExists(filepath.Join(tmpDir, "missing.txt")) {
		t.Error("FileExists() = true for missing file")
	}
}

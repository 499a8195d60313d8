package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dvallejo/tunesync/internal/constants"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Format != constants.DefaultFormat {
		t.Errorf("Expected format %s, got %s", constants.DefaultFormat, cfg.Format)
	}
	if cfg.Workers != constants.DefaultWorkers {
		t.Errorf("Expected workers %d, got %d", constants.DefaultWorkers, cfg.Workers)
	}
	if cfg.CacheCapacity != constants.DefaultCacheCapacity {
		t.Errorf("Expected cache capacity %d, got %d", constants.DefaultCacheCapacity, cfg.CacheCapacity)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
output_dir = "/music"
format = "flac"
workers = 5
spotify_client_id = "abc"
spotify_client_secret = "def"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.OutputDir != "/music" {
		t.Errorf("Expected output dir /music, got %s", cfg.OutputDir)
	}
	if cfg.Format != "flac" {
		t.Errorf("Expected format flac, got %s", cfg.Format)
	}
	if cfg.Workers != 5 {
		t.Errorf("Expected 5 workers, got %d", cfg.Workers)
	}
	if !cfg.HasSpotifyCredentials() {
		t.Error("Expected spotify credentials to be present")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("not [valid toml"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TUNESYNC_FORMAT", "flac")
	t.Setenv("TUNESYNC_WORKERS", "7")
	t.Setenv("SPOTIFY_CLIENT_ID", "env-id")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Format != "flac" {
		t.Errorf("Expected env format flac, got %s", cfg.Format)
	}
	if cfg.Workers != 7 {
		t.Errorf("Expected env workers 7, got %d", cfg.Workers)
	}
	if cfg.SpotifyClientID != "env-id" {
		t.Errorf("Expected env client id, got %s", cfg.SpotifyClientID)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"flac accepted", func(c *Config) { c.Format = "flac" }, false},
		{"empty output dir", func(c *Config) { c.OutputDir = "" }, true},
		{"bad format", func(c *Config) { c.Format = "wav" }, true},
		// Formats the tagging layer cannot write must not validate, or every
		// retrieval would end in a tagging failure.
		{"untaggable format m4a", func(c *Config) { c.Format = "m4a" }, true},
		{"untaggable format opus", func(c *Config) { c.Format = "opus" }, true},
		{"zero workers", func(c *Config) { c.Workers = 0 }, true},
		{"zero capacity", func(c *Config) { c.CacheCapacity = 0 }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, true},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriteTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")

	if err := WriteTemplate(path); err != nil {
		t.Fatalf("WriteTemplate failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("template should be loadable: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("template config should validate: %v", err)
	}

	// Second write must refuse to overwrite.
	if err := WriteTemplate(path); err == nil {
		t.Error("Expected error when template already exists")
	}
}

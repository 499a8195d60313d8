package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/dvallejo/tunesync/internal/constants"
)

// Config holds all application configuration.
type Config struct {
	OutputDir        string `toml:"output_dir"`
	Format           string `toml:"format"`
	Quality          string `toml:"quality"`
	Workers          int    `toml:"workers"`
	SearchLimit      int    `toml:"search_limit"`
	CacheFile        string `toml:"cache_file"`
	CacheCapacity    int    `toml:"cache_capacity"`
	CatalogDBPath    string `toml:"catalog_db_path"`
	TrackFilesDBPath string `toml:"track_files_db_path"`
	SpotifyClientID  string `toml:"spotify_client_id"`
	SpotifySecret    string `toml:"spotify_client_secret"`
	YTDLPPath        string `toml:"ytdlp_path"`
	LogLevel         string `toml:"log_level"`
	LogFormat        string `toml:"log_format"`
}

// DefaultPath returns the default config file location
// (~/.config/tunesync/config.toml).
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tunesync", "config.toml")
}

func defaultCachePath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "tunesync", constants.DefaultCacheFile)
}

// Load loads configuration with defaults, then the TOML file at path (if it
// exists), then environment variable overrides. A missing file is not an
// error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := &Config{
		OutputDir:     constants.DefaultOutputDir,
		Format:        constants.DefaultFormat,
		Quality:       constants.DefaultQuality,
		Workers:       constants.DefaultWorkers,
		SearchLimit:   constants.DefaultSearchLimit,
		CacheFile:     defaultCachePath(),
		CacheCapacity: constants.DefaultCacheCapacity,
		YTDLPPath:     constants.DefaultYTDLPBinary,
		LogLevel:      "info",
		LogFormat:     "text",
	}

	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.OutputDir = getEnv("TUNESYNC_OUTPUT_DIR", cfg.OutputDir)
	cfg.Format = getEnv("TUNESYNC_FORMAT", cfg.Format)
	cfg.Quality = getEnv("TUNESYNC_QUALITY", cfg.Quality)
	cfg.CacheFile = getEnv("TUNESYNC_CACHE_FILE", cfg.CacheFile)
	cfg.CatalogDBPath = getEnv("TUNESYNC_CATALOG_DB", cfg.CatalogDBPath)
	cfg.TrackFilesDBPath = getEnv("TUNESYNC_TRACK_FILES_DB", cfg.TrackFilesDBPath)
	cfg.SpotifyClientID = getEnv("SPOTIFY_CLIENT_ID", cfg.SpotifyClientID)
	cfg.SpotifySecret = getEnv("SPOTIFY_CLIENT_SECRET", cfg.SpotifySecret)
	cfg.YTDLPPath = getEnv("TUNESYNC_YTDLP_PATH", cfg.YTDLPPath)
	cfg.LogLevel = getEnv("TUNESYNC_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("TUNESYNC_LOG_FORMAT", cfg.LogFormat)

	if v, ok := os.LookupEnv("TUNESYNC_WORKERS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v, ok := os.LookupEnv("TUNESYNC_CACHE_CAPACITY"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CacheCapacity = n
		}
	}
}

// Validate validates the configuration and returns detailed errors.
func (c *Config) Validate() error {
	var errs []string

	if c.OutputDir == "" {
		errs = append(errs, "output_dir cannot be empty")
	}

	validFormats := map[string]bool{
		constants.FormatMP3:  true,
		constants.FormatFLAC: true,
	}
	if !validFormats[c.Format] {
		errs = append(errs, fmt.Sprintf("format must be one of: mp3, flac, got: %s", c.Format))
	}

	if c.Workers < 1 {
		errs = append(errs, fmt.Sprintf("workers must be at least 1, got: %d", c.Workers))
	}
	if c.SearchLimit < 1 {
		errs = append(errs, fmt.Sprintf("search_limit must be at least 1, got: %d", c.SearchLimit))
	}
	if c.CacheCapacity < 1 {
		errs = append(errs, fmt.Sprintf("cache_capacity must be at least 1, got: %d", c.CacheCapacity))
	}
	if c.CacheFile == "" {
		errs = append(errs, "cache_file cannot be empty")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Sprintf("log_level must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.LogFormat] {
		errs = append(errs, fmt.Sprintf("log_format must be one of: text, json, got: %s", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// HasSpotifyCredentials reports whether API credentials are configured.
func (c *Config) HasSpotifyCredentials() bool {
	return c.SpotifyClientID != "" && c.SpotifySecret != ""
}

// WriteTemplate writes a commented config template to path, creating parent
// directories. Refuses to overwrite an existing file.
func WriteTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	template := `# tunesync configuration

# Directory downloaded tracks are written to.
output_dir = "downloads"

# Output audio format: mp3 or flac.
format = "mp3"
quality = "320"

# Concurrent downloads.
workers = 3

# Secondary-source search results considered per track.
search_limit = 5

# Query cache (capacity-bounded, oldest-inserted evicted first).
cache_capacity = 1000

# Local catalog databases (optional; all tracks are treated as missing
# when absent).
catalog_db_path = ""
track_files_db_path = ""

# Spotify API credentials (client-credentials flow).
spotify_client_id = ""
spotify_client_secret = ""

log_level = "info"
log_format = "text"
`
	return os.WriteFile(path, []byte(template), constants.FilePermissions)
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// Package config loads mapforge settings: a YAML file for everything
// structural, a .env file and the process environment for secrets and
// per-machine overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/mapforge/internal/database"
	"github.com/lawnchairsociety/mapforge/internal/logger"
	"github.com/lawnchairsociety/mapforge/internal/storage"
)

// Config holds all mapforge configuration.
type Config struct {
	API     APIConfig            `yaml:"api"`
	Assets  AssetsConfig         `yaml:"assets"`
	Poll    PollConfig           `yaml:"poll"`
	Map     MapConfig            `yaml:"map"`
	Journal JournalConfig        `yaml:"journal"`
	Storage storage.MirrorConfig `yaml:"storage"`
	Cache   CacheConfig          `yaml:"cache"`
	Logging logger.Config        `yaml:"logging"`
}

// APIConfig holds the hosted generator connection settings.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`

	// APIKey is normally supplied through PIXELLAB_API_KEY rather than the
	// config file.
	APIKey string `yaml:"api_key"`

	Timeout time.Duration `yaml:"timeout"`

	// RetryAttempts is the total number of tries per request, including
	// the first.
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
	MaxBackoff    time.Duration `yaml:"max_backoff"`
}

// AssetsConfig locates generated files on disk.
type AssetsConfig struct {
	TilesetsDir string `yaml:"tilesets_dir"`
	MapsDir     string `yaml:"maps_dir"`
}

// PollConfig is the default budget for waiting on a tileset job.
type PollConfig struct {
	MaxWait  time.Duration `yaml:"max_wait"`
	Interval time.Duration `yaml:"interval"`
}

// MapConfig holds assembly defaults.
type MapConfig struct {
	// Seed drives the random terrain pattern. 0 picks a time-based seed.
	Seed  int64 `yaml:"seed"`
	Scale int   `yaml:"scale"`
}

// JournalConfig enables the job journal used to resume polling.
type JournalConfig struct {
	Enabled         bool `yaml:"enabled"`
	database.Config `yaml:",inline"`
}

// CacheConfig sizes the in-memory cache of loaded tilesets.
type CacheConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxTilesets int64         `yaml:"max_tilesets"`
	TTL         time.Duration `yaml:"ttl"`
}

// DefaultConfig returns a Config with working defaults for a local checkout.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:       "https://api.pixellab.ai",
			Timeout:       60 * time.Second,
			RetryAttempts: 3,
			RetryBackoff:  500 * time.Millisecond,
			MaxBackoff:    10 * time.Second,
		},
		Assets: AssetsConfig{
			TilesetsDir: filepath.Join("assets", "tilesets"),
			MapsDir:     filepath.Join("assets", "maps"),
		},
		Poll: PollConfig{
			MaxWait:  300 * time.Second,
			Interval: 5 * time.Second,
		},
		Map: MapConfig{
			Scale: 1,
		},
		Journal: JournalConfig{
			Enabled: true,
			Config:  database.DefaultConfig(filepath.Join("assets", "mapforge.db")),
		},
		Storage: storage.MirrorConfig{
			Region: "us-east-1",
			Prefix: "mapforge",
		},
		Cache: CacheConfig{
			Enabled:     true,
			MaxTilesets: 32,
			TTL:         30 * time.Minute,
		},
		Logging: logger.DefaultConfig(),
	}
}

// LoadConfig loads configuration from a YAML file over the defaults and
// applies environment overrides. A missing file yields the defaults;
// unknown keys are an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := decode(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// into the environment without overwriting variables already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv() {
	c.API.APIKey = getEnv("PIXELLAB_API_KEY", c.API.APIKey)
	c.API.BaseURL = getEnv("PIXELLAB_BASE_URL", c.API.BaseURL)
	c.API.Timeout = getDurationEnv("PIXELLAB_TIMEOUT", c.API.Timeout)
	c.API.RetryAttempts = getIntEnv("PIXELLAB_RETRY_ATTEMPTS", c.API.RetryAttempts)

	if root := os.Getenv("MAPFORGE_ASSETS_DIR"); root != "" {
		c.Assets.TilesetsDir = filepath.Join(root, "tilesets")
		c.Assets.MapsDir = filepath.Join(root, "maps")
		c.Journal.SQLitePath = filepath.Join(root, "mapforge.db")
	}

	c.Poll.MaxWait = getDurationEnv("MAPFORGE_POLL_MAX_WAIT", c.Poll.MaxWait)
	c.Poll.Interval = getDurationEnv("MAPFORGE_POLL_INTERVAL", c.Poll.Interval)

	c.Journal.Driver = getEnv("MAPFORGE_DB_DRIVER", c.Journal.Driver)
	c.Journal.Postgres.Password = getEnv("MAPFORGE_DB_PASSWORD", c.Journal.Postgres.Password)

	c.Storage.AccessKey = getEnv("MAPFORGE_S3_ACCESS_KEY", c.Storage.AccessKey)
	c.Storage.SecretKey = getEnv("MAPFORGE_S3_SECRET_KEY", c.Storage.SecretKey)

	c.Logging.ApplyEnv()
}

// Validate checks settings that would otherwise fail deep inside a run.
// A missing API key is not an error here; commands that never call the
// generator do not need one.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("config: api.base_url is required")
	}
	if c.API.RetryAttempts < 1 {
		return fmt.Errorf("config: api.retry_attempts must be at least 1, got %d", c.API.RetryAttempts)
	}
	if c.Poll.Interval <= 0 || c.Poll.MaxWait <= 0 {
		return fmt.Errorf("config: poll.interval and poll.max_wait must be positive")
	}
	if c.Map.Scale < 1 {
		return fmt.Errorf("config: map.scale must be at least 1, got %d", c.Map.Scale)
	}
	if c.Assets.TilesetsDir == "" || c.Assets.MapsDir == "" {
		return fmt.Errorf("config: assets.tilesets_dir and assets.maps_dir are required")
	}
	if c.Journal.Enabled {
		if err := c.Journal.Config.Validate(); err != nil {
			return fmt.Errorf("config: journal: %w", err)
		}
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("config: storage.bucket is required when the mirror is enabled")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the imagesync client.
//
// Units: all intervals and timeouts are time.Duration values.
type Config struct {
	GatewayURL     string        `env:"IMAGESYNC_GATEWAY_URL"`
	RequestTimeout time.Duration `env:"IMAGESYNC_REQUEST_TIMEOUT"`
	UploadTimeout  time.Duration `env:"IMAGESYNC_UPLOAD_TIMEOUT"`

	// DataDir holds the database, the originals and the thumbnails.
	DataDir string `env:"IMAGESYNC_DATA_DIR"`
	// CacheDir holds purgeable medium and large derivatives.
	CacheDir string `env:"IMAGESYNC_CACHE_DIR"`
	// DatabaseFile defaults to DataDir/imagesync.db when empty.
	DatabaseFile string `env:"IMAGESYNC_DATABASE_FILE"`

	MemoryCacheEntries int `env:"IMAGESYNC_MEMORY_CACHE_ENTRIES"`
	// DerivativeWorkers bounds concurrent resizes; 0 means GOMAXPROCS.
	DerivativeWorkers int `env:"IMAGESYNC_DERIVATIVE_WORKERS"`

	OnlineCheckInterval time.Duration `env:"IMAGESYNC_ONLINE_CHECK_INTERVAL"`
	RetryInterval       time.Duration `env:"IMAGESYNC_RETRY_INTERVAL"`

	// MetricsAddr enables a Prometheus listener when non-empty.
	MetricsAddr string `env:"IMAGESYNC_METRICS_ADDR"`
	LogLevel    string `env:"IMAGESYNC_LOG_LEVEL"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.GatewayURL = "http://127.0.0.1:8080"
	c.RequestTimeout = 30 * time.Second
	c.UploadTimeout = 120 * time.Second
	c.DataDir = "imagesync-data"
	c.CacheDir = filepath.Join(os.TempDir(), "imagesync-cache")
	c.DatabaseFile = ""
	c.MemoryCacheEntries = 64
	c.DerivativeWorkers = 0
	c.OnlineCheckInterval = 5 * time.Second
	c.RetryInterval = 60 * time.Second
	c.MetricsAddr = ""
	c.LogLevel = "info"
}

// DatabasePath resolves DatabaseFile against DataDir.
func (c *Config) DatabasePath() string {
	if c.DatabaseFile != "" {
		return c.DatabaseFile
	}
	return filepath.Join(c.DataDir, "imagesync.db")
}

func (c *Config) OriginalsDir() string { return filepath.Join(c.DataDir, "originals") }

func (c *Config) ThumbnailsDir() string { return filepath.Join(c.DataDir, "thumbnails") }

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment and command-line flags. Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	return load(os.Args[1:])
}

func load(args []string) *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, args)
	parseEnv(cfg)
	parseFlags(cfg, args)
	return cfg
}

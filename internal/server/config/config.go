// Package config handles configuration for the development gateway,
// including defaults, JSON overlay, environment and command-line flags.
package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the imagesync gateway.
//
// Fields:
//   - ListenAddr: bind address for the REST endpoint.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty keeps all state in memory.
//   - TokenValidity: lifetime of a device secret.
//   - S3User / S3Password: credentials for the S3-compatible backend.
//   - S3Bucket / S3Region / S3BaseEndpoint: object storage settings. An empty
//     endpoint keeps objects in memory, served under PublicURL/objects/.
//   - PublicURL: base URL the gateway is reachable at.
//   - PresignExpiry: lifetime of presigned upload URLs.
type Config struct {
	ListenAddr     string        `env:"IMAGESYNC_GATEWAY_LISTEN_ADDR"`
	PublicURL      string        `env:"IMAGESYNC_GATEWAY_PUBLIC_URL"`
	DatabaseDSN    string        `env:"IMAGESYNC_GATEWAY_DATABASE_DSN"`
	TokenValidity  time.Duration `env:"IMAGESYNC_GATEWAY_TOKEN_VALIDITY"`
	S3User         string        `env:"IMAGESYNC_GATEWAY_S3_USER"`
	S3Password     string        `env:"IMAGESYNC_GATEWAY_S3_PASSWORD"`
	S3Bucket       string        `env:"IMAGESYNC_GATEWAY_S3_BUCKET"`
	S3Region       string        `env:"IMAGESYNC_GATEWAY_S3_REGION"`
	S3BaseEndpoint string        `env:"IMAGESYNC_GATEWAY_S3_ENDPOINT"`
	PresignExpiry  time.Duration `env:"IMAGESYNC_GATEWAY_PRESIGN_EXPIRY"`
	// Metrics mounts /metrics on the REST router.
	Metrics  bool   `env:"IMAGESYNC_GATEWAY_METRICS"`
	LogLevel string `env:"IMAGESYNC_GATEWAY_LOG_LEVEL"`
}

// LoadDefaults populates Config with development defaults.
// NOTE: the S3 credentials match a local MinIO and must be overridden elsewhere.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":8080"
	c.PublicURL = "http://127.0.0.1:8080"
	c.DatabaseDSN = ""
	c.TokenValidity = 24 * time.Hour
	c.S3User = "admin"
	c.S3Password = "secretpassword"
	c.S3Bucket = "imagesync"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = ""
	c.PresignExpiry = 15 * time.Minute
	c.Metrics = true
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally command-line flags.
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

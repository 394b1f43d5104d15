package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/flagx"
	"github.com/dmitrijs2005/imagesync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	ListenAddr     *string         `json:"listen_addr"`
	PublicURL      *string         `json:"public_url"`
	DatabaseDSN    *string         `json:"database_dsn"`
	TokenValidity  *timex.Duration `json:"token_validity"`
	S3User         *string         `json:"s3_user"`
	S3Password     *string         `json:"s3_password"`
	S3Bucket       *string         `json:"s3_bucket"`
	S3Region       *string         `json:"s3_region"`
	S3BaseEndpoint *string         `json:"s3_base_endpoint"`
	PresignExpiry  *timex.Duration `json:"presign_expiry"`
	Metrics        *bool           `json:"metrics"`
	LogLevel       *string         `json:"log_level"`
}

// parseJson overlays Config with the file named by -c or -config.
// Panics on read or unmarshal errors.
func parseJson(cfg *Config, args []string) {
	path := flagx.ConfigPath(args)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	set(&cfg.ListenAddr, jc.ListenAddr)
	set(&cfg.PublicURL, jc.PublicURL)
	set(&cfg.DatabaseDSN, jc.DatabaseDSN)
	setDuration(&cfg.TokenValidity, jc.TokenValidity)
	set(&cfg.S3User, jc.S3User)
	set(&cfg.S3Password, jc.S3Password)
	set(&cfg.S3Bucket, jc.S3Bucket)
	set(&cfg.S3Region, jc.S3Region)
	set(&cfg.S3BaseEndpoint, jc.S3BaseEndpoint)
	setDuration(&cfg.PresignExpiry, jc.PresignExpiry)
	set(&cfg.Metrics, jc.Metrics)
	set(&cfg.LogLevel, jc.LogLevel)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}

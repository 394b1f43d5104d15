package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/flagx"
	"github.com/dmitrijs2005/imagesync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields distinguish absent keys from zero values, so a partial file only
// overrides what it names.
type JsonConfig struct {
	GatewayURL          *string         `json:"gateway_url"`
	RequestTimeout      *timex.Duration `json:"request_timeout"`
	UploadTimeout       *timex.Duration `json:"upload_timeout"`
	DataDir             *string         `json:"data_dir"`
	CacheDir            *string         `json:"cache_dir"`
	DatabaseFile        *string         `json:"database_file"`
	MemoryCacheEntries  *int            `json:"memory_cache_entries"`
	DerivativeWorkers   *int            `json:"derivative_workers"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	RetryInterval       *timex.Duration `json:"retry_interval"`
	MetricsAddr         *string         `json:"metrics_addr"`
	LogLevel            *string         `json:"log_level"`
}

// parseJson overlays Config with the file named by -c or -config. Without
// either flag nothing is loaded. Panics on read or unmarshal errors.
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

	set(&cfg.GatewayURL, jc.GatewayURL)
	setDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	setDuration(&cfg.UploadTimeout, jc.UploadTimeout)
	set(&cfg.DataDir, jc.DataDir)
	set(&cfg.CacheDir, jc.CacheDir)
	set(&cfg.DatabaseFile, jc.DatabaseFile)
	set(&cfg.MemoryCacheEntries, jc.MemoryCacheEntries)
	set(&cfg.DerivativeWorkers, jc.DerivativeWorkers)
	setDuration(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	setDuration(&cfg.RetryInterval, jc.RetryInterval)
	set(&cfg.MetricsAddr, jc.MetricsAddr)
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

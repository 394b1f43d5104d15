package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
)

// parseEnv overlays Config with IMAGESYNC_* variables. Unset variables leave
// the current values alone. Panics on malformed values.
func parseEnv(cfg *Config) {
	if err := env.Parse(cfg); err != nil {
		panic(fmt.Errorf("read environment: %w", err))
	}
}

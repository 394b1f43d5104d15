// Package config loads runtime configuration for the imagesync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. IMAGESYNC_* environment variables.
//  4. Command-line flags, which override earlier values.
//
// # JSON schema
//
// Durations use timex.Duration, so values can be strings like "5s" or
// integer seconds:
//
//	{
//	  "gateway_url": "http://127.0.0.1:8080",
//	  "data_dir": "/var/lib/imagesync",
//	  "online_check_interval": "5s",
//	  "retry_interval": 60
//	}
package config

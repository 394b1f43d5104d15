package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   gateway base URL
//	-d string   data directory
//	-i int      online check interval (seconds)
//	-r int      retry scan interval (seconds)
//	-m string   metrics listen address
//	-l string   log level
//
// Only these flags are parsed; everything else in args is ignored.
func parseFlags(cfg *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-i", "-r", "-m", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.GatewayURL, "a", cfg.GatewayURL, "gateway base URL")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	retryInterval := fs.Int("r", int(cfg.RetryInterval.Seconds()), "retry scan interval (in seconds)")
	fs.StringVar(&cfg.MetricsAddr, "m", cfg.MetricsAddr, "metrics listen address, empty to disable")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "i":
			cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
		case "r":
			cfg.RetryInterval = time.Duration(*retryInterval) * time.Second
		}
	})
}

package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/flagx"
)

// parseFlags populates selected gateway Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   REST bind address (e.g., ":8080")
//	-o string   public base URL
//	-d string   PostgreSQL DSN, empty for in-memory state
//	-t int      device token validity, minutes
//	-u string   S3 user
//	-p string   S3 password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/"), empty for in-memory objects
//	-x int      presigned URL expiry, minutes
//	-l string   log level
//
// Duration flags are accepted as integers in minutes and only override the
// current value when given.
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-a", "-o", "-d", "-t", "-u", "-p", "-b", "-g", "-e", "-x", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to run server")
	fs.StringVar(&config.PublicURL, "o", config.PublicURL, "public base URL")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")

	tokenValidity := fs.Int("t", int(config.TokenValidity.Minutes()), "token validity (in minutes)")

	fs.StringVar(&config.S3User, "u", config.S3User, "S3 user")
	fs.StringVar(&config.S3Password, "p", config.S3Password, "S3 password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	presignExpiry := fs.Int("x", int(config.PresignExpiry.Minutes()), "presigned URL expiry (in minutes)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.TokenValidity = time.Duration(*tokenValidity) * time.Minute
		case "x":
			config.PresignExpiry = time.Duration(*presignExpiry) * time.Minute
		}
	})
}

package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/storefront/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   HTTP bind address (e.g. ":4444")
//	-g string   ops gRPC bind address
//	-d string   PostgreSQL DSN
//	-s string   session token secret
//	-f string   frontend base URL
//	-r string   Redis address ("" disables rate limiting)
//	-l string   log level
//
// Arguments are filtered through flagx.FilterArgs first so the -c/-config
// flag handled by parseJson does not trip this flag set.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-d", "-s", "-f", "-r", "-l"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.HTTPAddr, "a", cfg.HTTPAddr, "address and port to serve HTTP on")
	fs.StringVar(&cfg.GRPCAddr, "g", cfg.GRPCAddr, "address and port to serve gRPC health on")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "secret key")
	fs.StringVar(&cfg.FrontendURL, "f", cfg.FrontendURL, "frontend base URL")
	fs.StringVar(&cfg.RedisAddr, "r", cfg.RedisAddr, "redis address")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}

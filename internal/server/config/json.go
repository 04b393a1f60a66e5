package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/storefront/internal/flagx"
	"github.com/dmitrijs2005/storefront/internal/timex"
)

// jsonConfig is the on-disk shape. Durations go through timex.Duration so
// the file may say "15m" as well as a nanosecond count.
type jsonConfig struct {
	Config
	RateLimitWindow timex.Duration `json:"rate_limit_window"`
}

// parseJson overlays values from the file named by -c/-config. Only fields
// present with a non-zero value in the file replace what cfg already holds.
// No flag means nothing to load.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var c jsonConfig
	if err := json.Unmarshal(raw, &c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&cfg.HTTPAddr, c.HTTPAddr)
	setString(&cfg.GRPCAddr, c.GRPCAddr)
	setString(&cfg.DatabaseDSN, c.DatabaseDSN)
	setString(&cfg.SecretKey, c.SecretKey)
	setString(&cfg.FrontendURL, c.FrontendURL)
	setString(&cfg.LogLevel, c.LogLevel)
	setString(&cfg.MailTransport, c.MailTransport)
	setString(&cfg.MailFrom, c.MailFrom)
	setString(&cfg.SESRegion, c.SESRegion)
	setString(&cfg.SESEndpoint, c.SESEndpoint)
	setString(&cfg.S3AccessKey, c.S3AccessKey)
	setString(&cfg.S3SecretKey, c.S3SecretKey)
	setString(&cfg.S3Bucket, c.S3Bucket)
	setString(&cfg.S3Region, c.S3Region)
	setString(&cfg.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&cfg.RedisAddr, c.RedisAddr)
	setString(&cfg.OTELEndpoint, c.OTELEndpoint)

	if len(c.CORSOrigins) > 0 {
		cfg.CORSOrigins = c.CORSOrigins
	}
	if c.ResetRequestLimit > 0 {
		cfg.ResetRequestLimit = c.ResetRequestLimit
	}
	if c.SigninAttemptLimit > 0 {
		cfg.SigninAttemptLimit = c.SigninAttemptLimit
	}
	if c.RateLimitWindow.Duration > 0 {
		cfg.RateLimitWindow = c.RateLimitWindow.Duration
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

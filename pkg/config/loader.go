package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load fills cfg from environment variables according to its `env` tags.
// Defaults come from `envDefault`; list values split on `envSeparator`.
//
//	type Config struct {
//	    HTTPPort int           `env:"AUTH_HTTP_PORT" envDefault:"8001"`
//	    Brokers  []string      `env:"KAFKA_BROKERS" envSeparator:","`
//	    TokenTTL time.Duration `env:"VERIFICATION_TOKEN_TTL" envDefault:"1h"`
//	}
//
// Validation beyond parsing (port ranges, secret strength) belongs to the
// caller.
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

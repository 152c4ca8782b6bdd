// Package realtime parses realtime command flags and composes the transport
// entrypoint.
package realtime

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/inkboard/inkboard/internal/platform/cmd"
	server "github.com/inkboard/inkboard/internal/services/realtime/app"
)

// Config holds realtime command configuration.
type Config struct {
	HTTPAddr    string `env:"INKBOARD_REALTIME_HTTP_ADDR" envDefault:":8090"`
	StoragePath string `env:"INKBOARD_REALTIME_DB_PATH"   envDefault:"inkboard.db"`
	TokenSecret string `env:"INKBOARD_JWT_SECRET"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "realtime HTTP listen address")
	fs.StringVar(&cfg.StoragePath, "db-path", cfg.StoragePath, "board snapshot SQLite path")
	fs.StringVar(&cfg.TokenSecret, "token-secret", cfg.TokenSecret, "shared secret for credential verification")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the realtime app and starts transport behavior.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRealtime, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:    cfg.HTTPAddr,
			StoragePath: cfg.StoragePath,
			TokenSecret: cfg.TokenSecret,
		}); err != nil {
			return fmt.Errorf("serve realtime: %w", err)
		}
		return nil
	})
}

// Package server wires configuration into the game server entrypoint.
package server

import (
	"context"
	"flag"

	app "github.com/Plabrum/trackstar/internal/game/app"
	"github.com/Plabrum/trackstar/internal/platform/cmd"
)

// ParseConfig loads env defaults and applies flag overrides.
func ParseConfig(fs *flag.FlagSet, args []string) (app.Config, error) {
	var cfg app.Config
	if err := cmd.ParseConfig(&cfg); err != nil {
		return app.Config{}, err
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The SQLite database path")
	if err := cmd.ParseArgs(fs, args); err != nil {
		return app.Config{}, err
	}
	return cfg, nil
}

// Run starts the game server.
func Run(ctx context.Context, cfg app.Config) error {
	return cmd.RunWithTelemetry(ctx, cmd.ServiceServer, func(ctx context.Context) error {
		return app.Run(ctx, cfg)
	})
}

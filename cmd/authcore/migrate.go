package main

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/MrEthical07/authcore/internal/backends"
)

func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "create the credential schema for the configured backend",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			ctx, cancel := context.WithTimeout(c.Context, backendConnectTimeout)
			defer cancel()
			if err := backends.Migrate(ctx, cfg, log); err != nil {
				return err
			}
			log.Info("migration applied", slog.String("backend", cfg.CredentialBackend))
			return nil
		},
	}
}

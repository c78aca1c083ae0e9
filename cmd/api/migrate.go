package main

import (
	"github.com/urfave/cli/v2"

	"github.com/yourusername/members-only/internal/db"
)

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations and exit",
		Action: func(cctx *cli.Context) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			conn, target, err := db.Open(cctx.Context, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := db.Migrate(cctx.Context, conn, target); err != nil {
				return err
			}
			logger.Info().Str("driver", target.Driver).Msg("Migrations applied")
			return nil
		},
	}
}

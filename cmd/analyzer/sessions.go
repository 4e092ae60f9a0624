package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/inventory-analyzer/internal/config"
	"github.com/andresuchdata/inventory-analyzer/internal/repository/postgres"
)

func sessionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "Maintain analysis sessions stored in Postgres",
		Subcommands: []*cli.Command{
			{
				Name:  "cleanup",
				Usage: "Delete expired sessions and their events",
				Action: func(c *cli.Context) error {
					cfg := config.Load()
					db, err := postgres.NewDB(&cfg.Database)
					if err != nil {
						return fmt.Errorf("failed to connect to database: %w", err)
					}
					defer db.Close()

					if err := postgres.EnsureSchema(c.Context, db); err != nil {
						return err
					}
					ids, err := postgres.NewSessionRepository(db).DeleteExpired(c.Context, time.Now())
					if err != nil {
						return fmt.Errorf("failed to delete expired sessions: %w", err)
					}
					log.Info().Int("deleted", len(ids)).Msg("expired sessions removed")
					return nil
				},
			},
		},
	}
}

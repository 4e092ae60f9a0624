package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/inventory-analyzer/internal/config"
	"github.com/andresuchdata/inventory-analyzer/pkg/logger"
)

func newDBURLFlag(required bool) *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string for run tracking",
		Required: required,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func setupLogging(c *cli.Context) error {
	cfg := config.Load()
	level := cfg.Log.Level
	if c.Bool("verbose") {
		level = "debug"
	}
	logger.SetOutput(os.Stderr, cfg.Log.Format)
	logger.SetLevel(level)
	return nil
}

func main() {
	app := &cli.App{
		Name:  "analyzer",
		Usage: "Analyze inventory exports from the command line",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before: setupLogging,
		Commands: []*cli.Command{
			analyzeCommand(),
			columnsCommand(),
			batchCommand(),
			runsCommand(),
			sessionsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("analyzer failed")
	}
}

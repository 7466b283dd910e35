package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/leadintake/internal/config"
	"github.com/leadintake/internal/database"
	"github.com/leadintake/internal/jobqueue"
	"github.com/leadintake/internal/logging"
)

// MigrateCommand applies the lead schema, and River's when the queue is on
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create or upgrade database tables",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "queue",
				Usage: "Also apply job queue migrations even if the queue is disabled",
			},
		},
		Action: runMigrate,
	}
}

func runMigrate(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)

	ctx := context.Background()
	db, err := database.NewDB(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.EnsureSchema(ctx, db); err != nil {
		return err
	}
	fmt.Println("Lead schema is up to date")

	if cfg.Queue.Enabled || c.Bool("queue") {
		url := cfg.Database.URL
		if url == "" {
			if url, err = database.LoadDatabaseURL(); err != nil {
				return err
			}
		}
		if err := jobqueue.Migrate(ctx, url); err != nil {
			return err
		}
		fmt.Println("Job queue schema is up to date")
	}
	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/leadintake/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "leadintake",
		Usage:   "Lead intake and qualification backend for remodeling contractors",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				Value:   "leadintake.toml",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from `FILE` before anything else",
			},
		},
		Before: func(c *cli.Context) error {
			if f := c.String("env-file"); f != "" {
				if err := cmd.LoadEnvFile(f); err != nil {
					return fmt.Errorf("failed to load env file: %w", err)
				}
			}
			return nil
		},
		Commands: []*cli.Command{
			cmd.APICommand(),
			cmd.MigrateCommand(),
			cmd.ConfigCommand(),
			cmd.EnvCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/leadintake/internal/config"
	"github.com/leadintake/internal/logging"
)

// ConfigCommand returns the config command
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a sample configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
						Value:   "leadintake.toml",
					},
				},
				Action: func(c *cli.Context) error {
					out := c.String("output")
					if err := config.InitConfig(out); err != nil {
						return fmt.Errorf("failed to initialize config: %w", err)
					}
					fmt.Printf("Wrote sample configuration to %s\n", out)
					return nil
				},
			},
			{
				Name:   "validate",
				Usage:  "Load the configuration (file and environment) and check it",
				Action: runConfigValidate,
			},
		},
	}
}

func runConfigValidate(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fmt.Printf("port:            %d\n", cfg.Server.Port)
	fmt.Printf("conversations:   %s (ttl %s)\n", cfg.Intake.Store, cfg.Intake.ConversationTTL)
	fmt.Printf("house lead owner: %d\n", cfg.Intake.DefaultContractorID)
	if cfg.AI.Provider != "" {
		fmt.Printf("ai:              %s/%s key=%s\n", cfg.AI.Provider, cfg.AI.Model, logging.MaskSecret(cfg.AI.APIKey))
	} else {
		fmt.Println("ai:              disabled")
	}
	fmt.Printf("job queue:       %t\n", cfg.Queue.Enabled)
	fmt.Println("Configuration is valid")
	return nil
}

package cmd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/leadintake/internal/ai"
	"github.com/leadintake/internal/api"
	"github.com/leadintake/internal/api/auth"
	"github.com/leadintake/internal/config"
	"github.com/leadintake/internal/contractors"
	"github.com/leadintake/internal/database"
	"github.com/leadintake/internal/intake"
	"github.com/leadintake/internal/jobqueue"
	"github.com/leadintake/internal/leads"
	"github.com/leadintake/internal/logging"
	"github.com/leadintake/internal/notify"
	"github.com/leadintake/internal/secrets"
)

// APICommand returns the CLI command for starting the API server
func APICommand() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Start the lead intake API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides server.port)",
			},
		},
		Action: runAPI,
	}
}

func runAPI(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)
	if p := c.Int("port"); p > 0 {
		cfg.Server.Port = p
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return err
	}
	if cfg.Secrets.SSMPrefix != "" {
		client, err := secrets.New(ssm.NewFromConfig(*awsCfg))
		if err != nil {
			return err
		}
		if err := secrets.Apply(ctx, client, cfg.Secrets.SSMPrefix, cfg); err != nil {
			return fmt.Errorf("failed to load secrets: %w", err)
		}
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := database.NewDB(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		return err
	}

	leadStore := leads.NewPostgresStore(db)
	contractorStore := contractors.NewPostgresStore(db)

	convStore, err := buildConversationStore(ctx, cfg, awsCfg)
	if err != nil {
		return err
	}

	notifier, err := buildNotifier(cfg)
	if err != nil {
		return err
	}
	dispatchCfg := notify.DispatcherConfig{
		Notifier:        notifier,
		Contractors:     contractorStore,
		FallbackAddress: cfg.Notify.Address,
		Timeout:         cfg.Notify.Timeout,
	}
	if cfg.Queue.Enabled {
		qcfg := jobqueue.DefaultQueueConfig()
		qcfg.MaxWorkers = cfg.Queue.MaxWorkers
		jq, err := jobqueue.NewJobQueue(ctx, cfg.Database.URL, notifier, qcfg)
		if err != nil {
			return err
		}
		if err := jq.Start(ctx); err != nil {
			return fmt.Errorf("failed to start job queue: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := jq.Stop(stopCtx); err != nil {
				log.Warn().Err(err).Msg("Job queue did not stop cleanly")
			}
		}()
		dispatchCfg.Queue = jq
	}
	dispatcher, err := notify.NewDispatcher(dispatchCfg)
	if err != nil {
		return err
	}
	defer dispatcher.Wait()

	opts := intake.ServiceOptions{
		Store:               convStore,
		Leads:               leadStore,
		Notifier:            dispatcher,
		DefaultContractorID: cfg.Intake.DefaultContractorID,
		ConversationTTL:     cfg.Intake.ConversationTTL,
	}
	if cfg.Intake.PromptsFile != "" {
		if opts.Prompts, err = intake.LoadPrompts(cfg.Intake.PromptsFile); err != nil {
			return err
		}
	}
	if err := wireAI(ctx, cfg, &opts); err != nil {
		return err
	}
	intakeSvc, err := intake.NewService(opts)
	if err != nil {
		return err
	}

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		if jwtSecret, err = randomSecret(); err != nil {
			return err
		}
		log.Warn().Msg("auth.jwt_secret not set; using a random secret, sessions end on restart")
	}
	tokens, err := auth.NewTokenService(jwtSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	tokens.StartCleanupScheduler(ctx, time.Hour)

	server, err := api.NewServer(cfg.Server.Port, api.Deps{
		Intake:         intakeSvc,
		Leads:          leadStore,
		Auth:           auth.NewService(contractorStore, tokens),
		RateLimit:      cfg.Server.RateLimit,
		RateLimitBurst: cfg.Server.RateLimitBurst,
	})
	if err != nil {
		return err
	}

	return server.Run(ctx)
}

// loadAWSConfig returns nil when nothing in cfg needs AWS
func loadAWSConfig(ctx context.Context, cfg *config.Config) (*aws.Config, error) {
	if cfg.Secrets.SSMPrefix == "" && cfg.Intake.Store != "dynamodb" {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &awsCfg, nil
}

func buildConversationStore(ctx context.Context, cfg *config.Config, awsCfg *aws.Config) (intake.Store, error) {
	if cfg.Intake.Store == "dynamodb" {
		store, err := intake.NewDynamoStore(dynamodb.NewFromConfig(*awsCfg), cfg.Intake.DynamoTable)
		if err != nil {
			return nil, err
		}
		log.Info().Str("table", cfg.Intake.DynamoTable).Msg("Conversations stored in DynamoDB")
		return store, nil
	}

	store := intake.NewMemoryStore()
	store.StartJanitor(ctx, time.Minute)
	log.Info().Msg("Conversations stored in memory")
	return store, nil
}

// wireAI leaves the classifier and summarizer unset when no provider is
// configured; the service then falls back to enum tokens and the
// placeholder summary.
func wireAI(ctx context.Context, cfg *config.Config, opts *intake.ServiceOptions) error {
	if cfg.AI.Provider == "" {
		log.Warn().Msg("No AI provider configured; summaries will use the placeholder text")
		return nil
	}
	conn, err := ai.NewConnector(ctx, ai.ConnectorOptions{
		Provider: ai.Provider(cfg.AI.Provider),
		APIKey:   cfg.AI.APIKey,
		BaseURL:  cfg.AI.BaseURL,
		ModelConfig: ai.ModelConfig{
			Model:       cfg.AI.Model,
			Temperature: 0.2,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create AI connector: %w", err)
	}
	opts.Summarizer = ai.NewLeadSummarizer(conn, cfg.AI.Timeout, cfg.AI.MaxRetries)
	opts.Classifier = ai.NewLeadClassifier(conn, cfg.AI.Timeout)
	return nil
}

func buildNotifier(cfg *config.Config) (notify.Notifier, error) {
	var channels notify.Multi

	if cfg.Notify.SMTP.Host != "" {
		email, err := notify.NewEmailNotifier(notify.SMTPConfig{
			Host:     cfg.Notify.SMTP.Host,
			Port:     cfg.Notify.SMTP.Port,
			Username: cfg.Notify.SMTP.Username,
			Password: cfg.Notify.SMTP.Password,
			From:     cfg.Notify.SMTP.From,
		})
		if err != nil {
			return nil, err
		}
		channels = append(channels, email)
	}

	if cfg.Notify.Twilio.AccountSID != "" {
		sms, err := notify.NewSMSNotifier(notify.TwilioConfig{
			AccountSID: cfg.Notify.Twilio.AccountSID,
			AuthToken:  cfg.Notify.Twilio.AuthToken,
			From:       cfg.Notify.Twilio.From,
			To:         cfg.Notify.Twilio.To,
			BaseURL:    cfg.Notify.Twilio.BaseURL,
		}, &http.Client{Timeout: cfg.Notify.Timeout})
		if err != nil {
			return nil, err
		}
		channels = append(channels, sms)
	}

	if len(channels) == 0 {
		log.Warn().Msg("No notification channel configured; leads are only logged")
		return notify.LogNotifier{}, nil
	}
	return channels, nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate jwt secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

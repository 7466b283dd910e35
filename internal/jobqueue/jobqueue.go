/*
Package jobqueue provides a River-based job queue for delivering lead notifications.

For configuration options, retry policies, and tuning parameters, see queue_config.go.
*/
package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/leadintake/internal/logging"
	"github.com/leadintake/internal/notify"
)

// NotifyLeadArgs represents the arguments for a lead notification job
type NotifyLeadArgs struct {
	Message notify.Message `json:"message"`
}

// Kind returns the job kind for River
func (NotifyLeadArgs) Kind() string {
	return "notify_lead"
}

// NotifyLeadWorker delivers queued lead notifications
type NotifyLeadWorker struct {
	river.WorkerDefaults[NotifyLeadArgs]
	notifier notify.Notifier
	timeout  time.Duration
}

// NewNotifyLeadWorker builds a worker around the delivery channel
func NewNotifyLeadWorker(notifier notify.Notifier, timeout time.Duration) *NotifyLeadWorker {
	return &NotifyLeadWorker{notifier: notifier, timeout: timeout}
}

// Timeout bounds a single delivery attempt
func (w *NotifyLeadWorker) Timeout(*river.Job[NotifyLeadArgs]) time.Duration {
	return w.timeout
}

// Work performs the delivery. A returned error makes River retry the job
// according to the client's retry policy.
func (w *NotifyLeadWorker) Work(ctx context.Context, job *river.Job[NotifyLeadArgs]) error {
	msg := job.Args.Message
	logger := logging.Component("jobqueue").With().Int64("lead_id", msg.LeadID).Logger()

	attempt := 0
	if job.JobRow != nil {
		attempt = job.Attempt
	}

	if err := w.notifier.Notify(ctx, msg); err != nil {
		logger.Warn().Err(err).Int("attempt", attempt).Msg("Queued lead notification failed")
		return fmt.Errorf("failed to deliver lead notification: %w", err)
	}

	logger.Info().Int("attempt", attempt).Msg("Queued lead notification delivered")
	return nil
}

// JobQueue manages the River job queue
type JobQueue struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
	config *QueueConfig
}

// NewJobQueue connects to Postgres, applies River's migrations and builds
// a client that delivers through notifier.
func NewJobQueue(ctx context.Context, databaseURL string, notifier notify.Notifier, config *QueueConfig) (*JobQueue, error) {
	if notifier == nil {
		return nil, errors.New("jobqueue: notifier is required")
	}
	if config == nil {
		config = DefaultQueueConfig()
	}
	config.normalize()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewNotifyLeadWorker(notifier, config.JobTimeout))

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:      config.RiverQueueConfig(),
		Workers:     workers,
		RetryPolicy: &config.RetryPolicy,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &JobQueue{
		client: client,
		pool:   pool,
		config: config,
	}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create River migrator: %w", err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("failed to apply River migrations: %w", err)
	}
	if len(res.Versions) > 0 {
		logger := logging.Component("jobqueue")
		logger.Info().Int("applied", len(res.Versions)).Msg("River migrations applied")
	}
	return nil
}

// Start starts the job queue workers
func (jq *JobQueue) Start(ctx context.Context) error {
	return jq.client.Start(ctx)
}

// Stop waits for running jobs, then releases the connection pool
func (jq *JobQueue) Stop(ctx context.Context) error {
	err := jq.client.Stop(ctx)
	jq.pool.Close()
	return err
}

// Enqueue inserts a notification job. Identical messages inserted within
// UniqueFor are collapsed into one job.
func (jq *JobQueue) Enqueue(ctx context.Context, msg notify.Message) error {
	res, err := jq.client.Insert(ctx, NotifyLeadArgs{Message: msg}, &river.InsertOpts{
		MaxAttempts: jq.config.MaxAttempts,
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: jq.config.UniqueFor,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to queue lead notification: %w", err)
	}
	if res.UniqueSkippedAsDuplicate {
		logger := logging.Component("jobqueue")
		logger.Debug().Int64("lead_id", msg.LeadID).Msg("Duplicate lead notification skipped")
	}
	return nil
}

// Migrate applies River's schema migrations without starting a client
func Migrate(ctx context.Context, databaseURL string) error {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()
	return migrate(ctx, pool)
}

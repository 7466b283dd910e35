/*
Package jobqueue configuration - tunable parameters for the River notification queue.

Lead notifications are inserted as River jobs when the queue is enabled, so a
slow or failing SMTP relay never holds up a visitor's request and a crashed
process does not lose the announcement.

## Quick Configuration Reference:

- MaxWorkers bounds concurrent deliveries (and database connections used by workers)
- MaxAttempts bounds how often a failing delivery is retried before River discards it
- RetryPolicy controls the backoff between attempts
- UniqueFor collapses duplicate inserts of the same message inside the window
*/
package jobqueue

import (
	"math"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// QueueConfig holds all configurable parameters for the job queue
type QueueConfig struct {
	MaxWorkers  int           // concurrent notification workers (default: 5)
	MaxAttempts int           // attempts per job including the first (default: 8)
	RetryPolicy RetryPolicy   // backoff between attempts
	JobTimeout  time.Duration // upper bound for a single delivery attempt (default: 30s)
	UniqueFor   time.Duration // window in which identical messages are deduplicated (default: 1h)
}

// RetryPolicy defines how failed jobs are retried. It satisfies
// river.ClientRetryPolicy.
type RetryPolicy struct {
	InitialInterval time.Duration // wait before the first retry
	MaxInterval     time.Duration // cap on any single wait
	Multiplier      float64       // growth factor per attempt
}

// DefaultQueueConfig returns the default configuration
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		MaxWorkers:  5,
		MaxAttempts: 8,
		RetryPolicy: RetryPolicy{
			InitialInterval: 5 * time.Second,
			MaxInterval:     30 * time.Minute,
			Multiplier:      3.0,
		},
		JobTimeout: 30 * time.Second,
		UniqueFor:  time.Hour,
	}
}

// DevelopmentQueueConfig fails fast so broken SMTP settings show up quickly
func DevelopmentQueueConfig() *QueueConfig {
	config := DefaultQueueConfig()
	config.MaxWorkers = 2
	config.MaxAttempts = 3
	config.RetryPolicy.MaxInterval = time.Minute
	return config
}

// RiverQueueConfig converts our config to River's queue configuration format
func (c *QueueConfig) RiverQueueConfig() map[string]river.QueueConfig {
	return map[string]river.QueueConfig{
		river.QueueDefault: {
			MaxWorkers: c.MaxWorkers,
		},
	}
}

func (c *QueueConfig) normalize() {
	def := DefaultQueueConfig()
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = def.MaxWorkers
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = def.JobTimeout
	}
	if c.UniqueFor <= 0 {
		c.UniqueFor = def.UniqueFor
	}
	if c.RetryPolicy.InitialInterval <= 0 {
		c.RetryPolicy = def.RetryPolicy
	}
}

// NextRetry schedules the next attempt of a failed job
func (p *RetryPolicy) NextRetry(job *rivertype.JobRow) time.Time {
	return time.Now().Add(p.Delay(job.Attempt))
}

// Delay returns the wait after the given (1-based) failed attempt
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialInterval) * math.Pow(mult, float64(attempt-1))
	if p.MaxInterval > 0 && d > float64(p.MaxInterval) {
		return p.MaxInterval
	}
	return time.Duration(d)
}

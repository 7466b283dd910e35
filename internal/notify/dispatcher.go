package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/leadintake/pkg/models"
)

// ContractorLookup finds the contractor a lead belongs to
type ContractorLookup interface {
	GetByID(ctx context.Context, id int64) (*models.Contractor, error)
}

// Enqueuer hands a message to a durable queue for delivery
type Enqueuer interface {
	Enqueue(ctx context.Context, msg Message) error
}

// DispatcherConfig configures a Dispatcher. Notifier is required.
type DispatcherConfig struct {
	Notifier    Notifier
	Contractors ContractorLookup
	// Queue, when set, receives messages instead of inline delivery.
	// Inline delivery is the fallback when enqueueing fails.
	Queue Enqueuer
	// FallbackAddress is used when the contractor has no email on file
	FallbackAddress string
	Timeout         time.Duration
	MaxInFlight     int
}

// Dispatcher delivers lead notifications without holding up the caller
// for longer than Timeout.
type Dispatcher struct {
	cfg DispatcherConfig
	sem chan struct{}
	wg  sync.WaitGroup
}

func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Notifier == nil {
		return nil, errors.New("notify: dispatcher needs a notifier")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 32
	}
	return &Dispatcher{cfg: cfg, sem: make(chan struct{}, cfg.MaxInFlight)}, nil
}

// NotifyLead announces a stored lead. Failures are logged, never returned.
func (d *Dispatcher) NotifyLead(ctx context.Context, lead *models.Lead) {
	// Delivery outlives the HTTP request that triggered it.
	ctx = context.WithoutCancel(ctx)

	// Lookup and enqueue run while the caller waits and share one deadline.
	callerCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	msg := BuildMessage(lead, d.resolveAddress(callerCtx, lead.ContractorID))

	if d.cfg.Queue != nil {
		err := d.cfg.Queue.Enqueue(callerCtx, msg)
		if err == nil {
			log.Debug().Int64("lead_id", lead.ID).Msg("Lead notification enqueued")
			return
		}
		log.Warn().Err(err).Int64("lead_id", lead.ID).Msg("Failed to enqueue lead notification, delivering inline")
	}

	select {
	case d.sem <- struct{}{}:
	default:
		log.Error().Int64("lead_id", lead.ID).Int("max_in_flight", d.cfg.MaxInFlight).Msg("Lead notification dropped: too many deliveries in flight")
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() { <-d.sem }()

		nctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
		if err := d.cfg.Notifier.Notify(nctx, msg); err != nil {
			log.Error().Err(err).Int64("lead_id", lead.ID).Msg("Lead notification failed")
			return
		}
		log.Info().Int64("lead_id", lead.ID).Msg("Lead notification sent")
	}()
}

// Wait blocks until inline deliveries started so far have finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) resolveAddress(ctx context.Context, contractorID int64) string {
	if d.cfg.Contractors == nil || contractorID <= 0 {
		return d.cfg.FallbackAddress
	}
	c, err := d.cfg.Contractors.GetByID(ctx, contractorID)
	if err != nil || c.Email == "" {
		if err != nil {
			log.Debug().Err(err).Int64("contractor_id", contractorID).Msg("Contractor lookup failed, using fallback notify address")
		}
		return d.cfg.FallbackAddress
	}
	return c.Email
}

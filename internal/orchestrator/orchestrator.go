package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AReid987/real-estate-agents/pkg/config"
	"github.com/AReid987/real-estate-agents/pkg/logging"
	"github.com/AReid987/real-estate-agents/pkg/models"

	"github.com/AReid987/real-estate-agents/internal/content"
	"github.com/AReid987/real-estate-agents/internal/listings"
	"github.com/AReid987/real-estate-agents/internal/notifications"
	"github.com/AReid987/real-estate-agents/internal/scheduler"
	"github.com/AReid987/real-estate-agents/internal/workflow"
)

// State is the orchestrator lifecycle state
type State string

const (
	StateStopped      State = "stopped"
	StateRunning      State = "running"
	StateShuttingDown State = "shutting_down"
)

// Config holds the loop intervals and error backoffs
type Config struct {
	PostInterval         time.Duration
	PostBackoff          time.Duration
	NotificationInterval time.Duration
	NotificationBackoff  time.Duration
	ListingInterval      time.Duration
	ListingBackoff       time.Duration
}

// DefaultConfig returns the production loop timings
func DefaultConfig() Config {
	return Config{
		PostInterval:         60 * time.Second,
		PostBackoff:          5 * time.Second,
		NotificationInterval: 30 * time.Second,
		NotificationBackoff:  5 * time.Second,
		ListingInterval:      30 * time.Minute,
		ListingBackoff:       60 * time.Second,
	}
}

// ConfigFromEnv returns the loop timings with env overrides applied
func ConfigFromEnv() Config {
	def := DefaultConfig()
	return Config{
		PostInterval:         config.GetEnvDuration("POST_LOOP_INTERVAL", def.PostInterval),
		PostBackoff:          config.GetEnvDuration("POST_LOOP_BACKOFF", def.PostBackoff),
		NotificationInterval: config.GetEnvDuration("NOTIFICATION_LOOP_INTERVAL", def.NotificationInterval),
		NotificationBackoff:  config.GetEnvDuration("NOTIFICATION_LOOP_BACKOFF", def.NotificationBackoff),
		ListingInterval:      config.GetEnvDuration("LISTING_LOOP_INTERVAL", def.ListingInterval),
		ListingBackoff:       config.GetEnvDuration("LISTING_LOOP_BACKOFF", def.ListingBackoff),
	}
}

// Orchestrator composes the domain components and runs the three periodic
// loops. It is an explicit lifecycle object: Initialize moves it to running,
// Shutdown cancels the loops and waits for them to drain.
type Orchestrator struct {
	cfg    Config
	logger logging.Logger

	generator  *content.Generator
	workflow   *workflow.Workflow
	scheduler  *scheduler.Scheduler
	dispatcher *notifications.Dispatcher
	ingester   *listings.Ingester

	mu        sync.Mutex
	state     State
	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	postTicks         atomic.Uint64
	notificationTicks atomic.Uint64
	listingTicks      atomic.Uint64
}

func New(
	cfg Config,
	logger logging.Logger,
	generator *content.Generator,
	wf *workflow.Workflow,
	sched *scheduler.Scheduler,
	dispatcher *notifications.Dispatcher,
	ingester *listings.Ingester,
) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		logger:     logger,
		generator:  generator,
		workflow:   wf,
		scheduler:  sched,
		dispatcher: dispatcher,
		ingester:   ingester,
		state:      StateStopped,
	}
}

// Initialize starts the periodic loops. It is an error to initialize an
// orchestrator that is not stopped.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateStopped {
		return fmt.Errorf("orchestrator is %s, cannot initialize", o.state)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.state = StateRunning
	o.startedAt = time.Now()

	o.wg.Add(3)
	go o.runLoop(loopCtx, "posts", o.cfg.PostInterval, o.cfg.PostBackoff, &o.postTicks, func(ctx context.Context) error {
		_, err := o.scheduler.ProcessDuePosts(ctx)
		return err
	})
	go o.runLoop(loopCtx, "notifications", o.cfg.NotificationInterval, o.cfg.NotificationBackoff, &o.notificationTicks, func(ctx context.Context) error {
		_, err := o.dispatcher.ProcessPending(ctx)
		return err
	})
	go o.runLoop(loopCtx, "listings", o.cfg.ListingInterval, o.cfg.ListingBackoff, &o.listingTicks, func(ctx context.Context) error {
		_, err := o.ingester.ProcessNewListings(ctx)
		return err
	})

	o.logger.WithFields(logging.Fields{
		"post_interval":         o.cfg.PostInterval,
		"notification_interval": o.cfg.NotificationInterval,
		"listing_interval":      o.cfg.ListingInterval,
	}).Info("Orchestrator started")

	return nil
}

// runLoop ticks fn at the given interval until the context is cancelled.
// A failed tick logs and backs off before the loop resumes; the next write
// happens no earlier than the backoff.
func (o *Orchestrator) runLoop(ctx context.Context, name string, interval, backoff time.Duration, ticks *atomic.Uint64, fn func(context.Context) error) {
	defer o.wg.Done()

	logger := o.logger.WithField("loop", name)
	logger.Info("Loop started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Loop stopped")
			return
		case <-ticker.C:
			ticks.Add(1)
			if err := fn(ctx); err != nil {
				if ctx.Err() != nil {
					logger.Info("Loop stopped")
					return
				}
				logger.WithError(err).Error("Loop tick failed, backing off")
				select {
				case <-ctx.Done():
					logger.Info("Loop stopped")
					return
				case <-time.After(backoff):
				}
			}
		}
	}
}

// Shutdown cancels the loops and waits for them to exit. Loops observe the
// cancellation within one interval and perform no further writes.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateRunning {
		state := o.state
		o.mu.Unlock()
		return fmt.Errorf("orchestrator is %s, cannot shut down", state)
	}
	o.state = StateShuttingDown
	cancel := o.cancel
	o.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("shutdown wait interrupted: %w", ctx.Err())
	}

	o.mu.Lock()
	o.state = StateStopped
	o.cancel = nil
	o.mu.Unlock()

	o.logger.Info("Orchestrator stopped")
	return nil
}

// State returns the current lifecycle state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// IsRunning reports whether the loops are active
func (o *Orchestrator) IsRunning() bool {
	return o.State() == StateRunning
}

// Status describes the orchestrator for the status endpoint
type Status struct {
	State     State             `json:"state"`
	StartedAt *time.Time        `json:"started_at,omitempty"`
	Loops     map[string]uint64 `json:"loops"`
}

// GetStatus reports the lifecycle state and per-loop tick counters
func (o *Orchestrator) GetStatus() Status {
	o.mu.Lock()
	state := o.state
	startedAt := o.startedAt
	o.mu.Unlock()

	status := Status{
		State: state,
		Loops: map[string]uint64{
			"posts":         o.postTicks.Load(),
			"notifications": o.notificationTicks.Load(),
			"listings":      o.listingTicks.Load(),
		},
	}
	if !startedAt.IsZero() {
		status.StartedAt = &startedAt
	}
	return status
}

// GenerateContentResult is returned by GenerateContent
type GenerateContentResult struct {
	Content  *models.ContentPiece            `json:"content"`
	Approval *workflow.ApprovalRequestResult `json:"approval"`
}

// GenerateContent generates a draft for the listing and immediately requests
// approval from the agent. The two steps are separate transactions; a crash
// in between leaves a draft with no pending request.
func (o *Orchestrator) GenerateContent(ctx context.Context, listingID, contentType, agentID string) (*GenerateContentResult, error) {
	piece, err := o.generator.Generate(ctx, listingID, contentType, agentID)
	if err != nil {
		return nil, err
	}

	approval, err := o.workflow.RequestApproval(ctx, piece.ID, agentID)
	if err != nil {
		return nil, fmt.Errorf("content %s generated but approval request failed: %w", piece.ID, err)
	}
	piece.Status = approval.Status

	return &GenerateContentResult{
		Content:  piece,
		Approval: approval,
	}, nil
}

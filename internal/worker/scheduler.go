package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/tracklog/apiserver/internal/mq"
)

// Pruner removes activities older than maxAge.
type Pruner interface {
	Prune(ctx context.Context, maxAge time.Duration) (int64, error)
}

// PrunePublisher hands prune requests to another worker through the broker.
type PrunePublisher interface {
	PublishPrune(ctx context.Context, req mq.PruneRequest) (string, error)
}

// Scheduler triggers retention pruning on a cron schedule. With a publisher
// it enqueues a request for the consumers; otherwise it prunes in-process.
type Scheduler struct {
	schedule  string
	maxAge    time.Duration
	pruner    Pruner
	publisher PrunePublisher
	logger    zerolog.Logger
}

// NewScheduler validates the cron schedule and builds a Scheduler. publisher may be nil.
func NewScheduler(schedule string, maxAge time.Duration, pruner Pruner, publisher PrunePublisher, logger zerolog.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}
	return &Scheduler{
		schedule:  schedule,
		maxAge:    maxAge,
		pruner:    pruner,
		publisher: publisher,
		logger:    logger.With().Str("component", "retention_scheduler").Logger(),
	}, nil
}

// Run starts the cron loop and blocks until ctx is cancelled. A job that is
// still running when ctx ends is waited for.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.schedule, func() {
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error().Err(err).Msg("scheduled retention run failed")
		}
	}); err != nil {
		return err
	}

	s.logger.Info().Str("schedule", s.schedule).Dur("max_age", s.maxAge).Msg("starting retention scheduler")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info().Msg("stopped retention scheduler")
	return nil
}

// RunOnce performs a single scheduled tick.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.publisher != nil {
		id, err := s.publisher.PublishPrune(ctx, mq.NewPruneRequest(s.maxAge))
		if err != nil {
			return fmt.Errorf("publish prune request: %w", err)
		}
		s.logger.Info().Str("message_id", id).Msg("published prune request")
		return nil
	}

	_, err := s.pruner.Prune(ctx, s.maxAge)
	return err
}

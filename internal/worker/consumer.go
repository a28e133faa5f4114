package worker

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/tracklog/apiserver/internal/mq"
)

// Subscriber delivers broker messages for a channel until ctx is cancelled.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// Consumer runs retention pruning for each request on mq.RetentionChannel.
type Consumer struct {
	queue  Subscriber
	pruner Pruner
	logger zerolog.Logger
}

func NewConsumer(queue Subscriber, pruner Pruner, logger zerolog.Logger) *Consumer {
	return &Consumer{
		queue:  queue,
		pruner: pruner,
		logger: logger.With().Str("component", "retention_consumer").Logger(),
	}
}

// Run blocks consuming prune requests until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info().Str("channel", mq.RetentionChannel).Msg("consuming prune requests")
	return c.queue.Subscribe(ctx, mq.RetentionChannel, c.handle)
}

func (c *Consumer) handle(ctx context.Context, msg mq.Message) error {
	req, err := mq.DecodePruneRequest(msg)
	if err != nil {
		c.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping malformed prune request")
		return err
	}

	pruned, err := c.pruner.Prune(ctx, req.MaxAge())
	if err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("prune request failed")
		return err
	}
	c.logger.Info().
		Str("message_id", msg.ID).
		Int64("pruned", pruned).
		Time("requested_at", req.RequestedAt).
		Msg("handled prune request")
	return nil
}

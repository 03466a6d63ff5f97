// Package consumer feeds event envelopes from the trigger topic into the
// targeting engine. Contract violations are logged and skipped so one bad
// producer cannot wedge the partition.
package consumer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"collabhub/internal/realtime/models"
)

// Fetcher is the subset of *kgo.Client the consumer polls.
type Fetcher interface {
	PollFetches(ctx context.Context) kgo.Fetches
}

// Publisher fans out a validated event descriptor.
type Publisher interface {
	Publish(ctx context.Context, ev models.Event) (*models.PublishResult, error)
}

type Consumer struct {
	fetcher   Fetcher
	publisher Publisher
	logger    *slog.Logger
}

func New(fetcher Fetcher, publisher Publisher, logger *slog.Logger) (*Consumer, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Consumer{fetcher: fetcher, publisher: publisher, logger: logger}, nil
}

// Run polls until ctx is cancelled or the client is closed. Offsets are
// committed by the client's autocommit; delivery stays best effort.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.fetcher.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.WarnContext(ctx, "trigger fetch failed",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})
		fetches.EachRecord(func(record *kgo.Record) {
			c.Handle(ctx, record)
		})
	}
}

// Handle publishes one record. It never fails: bad envelopes and publish
// errors are logged.
func (c *Consumer) Handle(ctx context.Context, record *kgo.Record) {
	ev, err := models.DecodeEvent(record.Value)
	if err != nil {
		c.logger.WarnContext(ctx, "skipping invalid event envelope",
			"topic", record.Topic,
			"partition", record.Partition,
			"offset", record.Offset,
			"key", string(record.Key),
			"error", err,
		)
		return
	}

	result, err := c.publisher.Publish(ctx, ev)
	if err != nil {
		c.logger.WarnContext(ctx, "trigger publish failed",
			"topic", record.Topic,
			"offset", record.Offset,
			"kind", ev.Kind(),
			"error", err,
		)
		return
	}
	c.logger.DebugContext(ctx, "trigger published",
		"topic", record.Topic,
		"offset", record.Offset,
		"event", result.Event,
		"recipients", result.Recipients,
	)
}

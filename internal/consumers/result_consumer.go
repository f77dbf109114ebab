package consumers

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"

	"minerva/internal/adapters/kafka"
	"minerva/internal/events"
	"minerva/internal/metrics"
	"minerva/internal/services/aggregator"
	"minerva/pkg/errors"
	"minerva/pkg/logger"
)

// ResultConsumer reacts to finalized agent results by re-evaluating the
// batch. Handler errors are logged and the message is skipped; the sweeper
// re-checks in-flight batches so a dropped trigger is never fatal.
type ResultConsumer struct {
	consumer   *kafka.Consumer
	aggregator *aggregator.Service
	log        *logger.Logger
}

// NewResultConsumer creates a consumer for the results.finalized topic
func NewResultConsumer(consumer *kafka.Consumer, agg *aggregator.Service) *ResultConsumer {
	return &ResultConsumer{
		consumer:   consumer,
		aggregator: agg,
		log:        logger.Get().With("component", "result_consumer"),
	}
}

// Run consumes until the context is cancelled
func (c *ResultConsumer) Run(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handle)
}

func (c *ResultConsumer) handle(ctx context.Context, msg kafkago.Message) (err error) {
	defer func() { metrics.RecordKafkaMessage(kafka.TopicResultFinalized, "consumed", err) }()

	var event events.ResultFinalizedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.log.Errorw("Malformed result event, skipping",
			"key", string(msg.Key), "error", err)
		return nil
	}

	if err := c.aggregator.CheckBatch(ctx, event.BatchID); err != nil {
		// An unknown batch means the event outlived its row; skip it
		if errors.Is(err, errors.ErrNotFound) {
			c.log.Warnw("Result event for unknown batch", "batch_id", event.BatchID)
			return nil
		}
		return errors.Wrapf(err, "check batch %s", event.BatchID)
	}

	return nil
}

// Close closes the underlying consumer
func (c *ResultConsumer) Close() error {
	return c.consumer.Close()
}

package events

import (
	"context"

	"minerva/internal/adapters/kafka"
	"minerva/internal/metrics"
	"minerva/pkg/errors"
	"minerva/pkg/logger"
)

// Publisher publishes pipeline events to Kafka
type Publisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(producer *kafka.Producer, log *logger.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		log:      log,
	}
}

// PublishResultFinalized publishes an agent result terminal-status event
func (p *Publisher) PublishResultFinalized(ctx context.Context, event ResultFinalizedEvent) error {
	return p.publish(ctx, kafka.TopicResultFinalized, event.BatchID.String(), event)
}

// PublishBatchCompleted publishes a batch completion event
func (p *Publisher) PublishBatchCompleted(ctx context.Context, event BatchCompletedEvent) error {
	return p.publish(ctx, kafka.TopicBatchCompleted, event.BatchID.String(), event)
}

// PublishBatchFailed publishes a batch failure event
func (p *Publisher) PublishBatchFailed(ctx context.Context, event BatchFailedEvent) error {
	return p.publish(ctx, kafka.TopicBatchFailed, event.BatchID.String(), event)
}

// publish sends the event keyed by batch id so per-batch ordering holds
func (p *Publisher) publish(ctx context.Context, topic string, key string, event interface{}) error {
	err := p.producer.Publish(ctx, topic, key, event)
	metrics.RecordKafkaMessage(topic, "produced", err)
	if err != nil {
		p.log.Errorw("Failed to publish event",
			"topic", topic,
			"key", key,
			"error", err,
		)
		return errors.Wrap(err, "send to kafka")
	}

	p.log.Debugw("Event published",
		"topic", topic,
		"key", key,
	)

	return nil
}

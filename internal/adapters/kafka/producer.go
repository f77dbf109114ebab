package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"minerva/pkg/errors"
	"minerva/pkg/logger"
)

// Producer publishes JSON events, one lazily created writer per topic.
type Producer struct {
	mu      sync.Mutex
	writers map[string]*kafka.Writer
	brokers []string
	log     *logger.Logger
}

// ProducerConfig holds producer configuration
type ProducerConfig struct {
	Brokers []string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig) *Producer {
	return &Producer{
		writers: make(map[string]*kafka.Writer),
		brokers: cfg.Brokers,
		log:     logger.Get().With("component", "kafka_producer"),
	}
}

func (p *Producer) writer(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		// Synchronous writes: callers rely on the error to decide whether
		// the event reached the broker
		Async: false,
	}

	p.writers[topic] = w
	return w
}

// Publish sends a JSON-encoded message to a topic. Broker failures come back
// as ErrUnavailable so callers can classify them as retryable.
func (p *Producer) Publish(ctx context.Context, topic string, key string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "marshal event for %s", topic)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer(topic).WriteMessages(ctx, msg); err != nil {
		p.log.Errorw("Failed to publish event", "topic", topic, "key", key, "error", err)
		return errors.Newf("publish to %s: %w: %v", topic, errors.ErrUnavailable, err)
	}

	p.log.Debugw("Event published", "topic", topic, "key", key)
	return nil
}

// Close closes every writer, collecting failures instead of stopping at the
// first one.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var merr errors.MultiError
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			merr.Add(errors.Wrapf(err, "close writer %s", topic))
		}
	}
	return merr.ToError()
}

// Package kafka publishes task lifecycle events for external consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// EventType identifies a task lifecycle event.
type EventType string

const (
	EventTaskSubmitted EventType = "task.submitted"
	EventTaskStarted   EventType = "task.started"
	EventTaskCompleted EventType = "task.completed"
	EventTaskFailed    EventType = "task.failed"
	EventTaskRetrying  EventType = "task.retrying"
)

// Event is the wire shape published to Kafka for a task lifecycle transition.
type Event struct {
	ID            string                 `json:"id"`
	Type          EventType              `json:"type"`
	TaskID        string                 `json:"task_id"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
}

// Publisher publishes task events to Kafka.
type Publisher struct {
	producer sarama.AsyncProducer
	config   *Config
	errors   chan error
}

// Config holds Kafka producer configuration.
type Config struct {
	Brokers []string
	Topic   string
}

// NewPublisher creates a new Kafka task event publisher.
func NewPublisher(config *Config) (*Publisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Version = sarama.V3_3_1_0

	producer, err := sarama.NewAsyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	p := &Publisher{
		producer: producer,
		config:   config,
		errors:   make(chan error, 100),
	}

	go p.handleErrors()
	go p.handleSuccesses()

	return p, nil
}

func newPublisherWithProducer(producer sarama.AsyncProducer, config *Config) *Publisher {
	p := &Publisher{
		producer: producer,
		config:   config,
		errors:   make(chan error, 100),
	}

	go p.handleErrors()
	go p.handleSuccesses()

	return p
}

type correlationIDKey struct{}

// WithCorrelationID attaches a correlation id to ctx for outgoing events.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// Publish publishes a single task event.
func (p *Publisher) Publish(ctx context.Context, event *Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if cid, ok := ctx.Value(correlationIDKey{}).(string); ok {
		event.CorrelationID = cid
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.config.Topic,
		Key:   sarama.StringEncoder(event.TaskID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("eventType"), Value: []byte(event.Type)},
			{Key: []byte("correlationId"), Value: []byte(event.CorrelationID)},
		},
		Timestamp: event.Timestamp,
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case err := <-p.errors:
		return fmt.Errorf("producer error: %w", err)
	}
}

// PublishBatch publishes multiple task events in order, stopping on first error.
func (p *Publisher) PublishBatch(ctx context.Context, events []*Event) error {
	for _, event := range events {
		if err := p.Publish(ctx, event); err != nil {
			return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
		}
	}
	return nil
}

// Close shuts down the producer.
func (p *Publisher) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close producer: %w", err)
	}
	close(p.errors)
	return nil
}

func (p *Publisher) handleErrors() {
	for err := range p.producer.Errors() {
		select {
		case p.errors <- fmt.Errorf("kafka producer error: %w", err.Err):
		default:
		}
	}
}

func (p *Publisher) handleSuccesses() {
	for range p.producer.Successes() {
	}
}

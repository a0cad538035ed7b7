package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/config"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/logger"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/tracing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaRelay forwards bus events to a Kafka topic as JSON envelopes.
type KafkaRelay struct {
	writer messageWriter
	topic  string
	log    *logger.Logger
}

type envelope struct {
	Name       string          `json:"name"`
	OccurredAt time.Time       `json:"occurredAt"`
	TraceID    string          `json:"traceId,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

// NewKafkaRelay returns nil when no broker is configured.
func NewKafkaRelay(cfg config.KafkaConfig, log *logger.Logger) *KafkaRelay {
	brokers := cfg.GetKafkaBrokers()
	if len(brokers) == 0 {
		return nil
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  cfg.GetKafkaEventsTopic(),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newKafkaRelay(writer, cfg.GetKafkaEventsTopic(), log)
}

func newKafkaRelay(writer messageWriter, topic string, log *logger.Logger) *KafkaRelay {
	if log == nil {
		log = logger.Nop()
	}
	return &KafkaRelay{writer: writer, topic: topic, log: log}
}

// Forward subscribes the relay to every named event on bus.
func (r *KafkaRelay) Forward(bus Bus, eventNames ...string) {
	for _, name := range eventNames {
		bus.Subscribe(name, r)
	}
}

// Handle publishes one event.
func (r *KafkaRelay) Handle(ctx context.Context, event Event) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", r.topic),
		attribute.String("event.name", event.EventName()),
	)

	payload, err := json.Marshal(event)
	if err != nil {
		tracing.Fail(span, err)
		return fmt.Errorf("marshal %s: %w", event.EventName(), err)
	}
	value, err := json.Marshal(envelope{
		Name:       event.EventName(),
		OccurredAt: event.OccurredAt(),
		TraceID:    tracing.TraceID(ctx),
		Payload:    payload,
	})
	if err != nil {
		tracing.Fail(span, err)
		return fmt.Errorf("marshal envelope: %w", err)
	}

	key := event.EventName()
	if keyed, ok := event.(Keyed); ok && keyed.PartitionKey() != "" {
		key = keyed.PartitionKey()
	}
	headers := []kafka.Header{{Key: "event_name", Value: []byte(event.EventName())}}
	if traceparent := tracing.TraceParent(ctx); traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceparent)})
	}

	if err := r.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value, Headers: headers}); err != nil {
		tracing.Fail(span, err)
		r.log.WithContext(ctx).Error("kafka publish failed", "topic", r.topic, "event", event.EventName(), "error", err)
		return err
	}
	return nil
}

// Close flushes pending messages.
func (r *KafkaRelay) Close() error {
	if r == nil {
		return nil
	}
	return r.writer.Close()
}

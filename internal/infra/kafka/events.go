package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
	"github.com/wasipo/harbor-sub000/internal/core/port"
	"github.com/wasipo/harbor-sub000/internal/infra/config"
)

const schemaVersion = "1.0"

// UserRegisteredEventType is the event type and topic suffix of registration events.
const UserRegisteredEventType = "user.registered"

const (
	headerEventType   = "event_type"
	headerContentType = "content-type"
)

// EventPublisher implements port.EventPublisher on top of Producer.
// Messages are keyed by user id so one user's events stay ordered.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type userRegisteredPayload struct {
	UserID       string         `json:"user_id"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	Status       string         `json:"status"`
	RegisteredAt time.Time      `json:"registered_at"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// headerCarrier lets the OpenTelemetry propagator write into Kafka record headers.
type headerCarrier struct {
	headers *[]sarama.RecordHeader
}

func (c headerCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	*c.headers = append(*c.headers, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		keys = append(keys, string(h.Key))
	}
	return keys
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	body, err := json.Marshal(eventEnvelope{
		EventID:   eventID,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	headers := []sarama.RecordHeader{
		{Key: []byte(headerEventType), Value: []byte(eventType)},
		{Key: []byte(headerContentType), Value: []byte("application/json")},
	}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{headers: &headers})

	message := &sarama.ProducerMessage{
		Topic:     p.producer.TopicName(eventType),
		Value:     sarama.ByteEncoder(body),
		Headers:   headers,
		Timestamp: ts.UTC(),
	}
	if userID != "" {
		message.Key = sarama.StringEncoder(userID)
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue %s event: %w", eventType, ctx.Err())
	}
}

// PublishUserRegistered enqueues a user.registered event.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := userRegisteredPayload{
		UserID:       event.UserID,
		Name:         event.Name,
		Email:        event.Email,
		Status:       event.Status,
		RegisteredAt: event.RegisteredAt.UTC(),
		Metadata:     event.Metadata,
	}
	return p.publish(ctx, event.EventID, UserRegisteredEventType, event.UserID, event.RegisteredAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)

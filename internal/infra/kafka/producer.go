package kafka

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/wasipo/harbor-sub000/internal/infra/config"
)

// ErrorHook is told about every message the broker finally rejected.
type ErrorHook func(topic string, err error)

// ProducerOption customizes a Producer.
type ProducerOption func(*Producer)

// WithErrorHook registers fn for delivery failures, typically a metrics counter.
func WithErrorHook(fn ErrorHook) ProducerOption {
	return func(p *Producer) { p.onError = fn }
}

// Producer wraps a sarama AsyncProducer and drains its error channel.
type Producer struct {
	producer    sarama.AsyncProducer
	logger      *zap.Logger
	topicPrefix string
	onError     ErrorHook
	drained     sync.WaitGroup
	closeOnce   sync.Once
}

// SaramaConfig translates settings into a sarama producer configuration.
func SaramaConfig(cfg config.KafkaSettings) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_5_0_0
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Acks)) {
	case "none":
		sc.Producer.RequiredAcks = sarama.NoResponse
	case "", "local":
		sc.Producer.RequiredAcks = sarama.WaitForLocal
	case "all":
		sc.Producer.RequiredAcks = sarama.WaitForAll
		sc.Producer.Idempotent = true
		sc.Net.MaxOpenRequests = 1
	default:
		return nil, fmt.Errorf("kafka acks must be none, local or all, got %q", cfg.Acks)
	}

	sc.Producer.Compression = sarama.CompressionSnappy
	sc.Producer.Flush.Frequency = 100 * time.Millisecond
	sc.Producer.Flush.Messages = 100
	sc.Producer.Retry.Max = 3
	sc.Producer.Return.Successes = false
	sc.Producer.Return.Errors = true
	sc.Metadata.Retry.Max = 3
	sc.Metadata.Retry.Backoff = 250 * time.Millisecond

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("validate kafka config: %w", err)
	}
	return sc, nil
}

// NewProducer connects an async producer to the configured brokers.
func NewProducer(cfg config.KafkaSettings, logger *zap.Logger, opts ...ProducerOption) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are not configured")
	}
	sc, err := SaramaConfig(cfg)
	if err != nil {
		return nil, err
	}

	async, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	logger.Info("kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
		zap.String("acks", cfg.Acks),
	)
	return newProducer(async, cfg.TopicPrefix, logger, opts...), nil
}

func newProducer(async sarama.AsyncProducer, topicPrefix string, logger *zap.Logger, opts ...ProducerOption) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Producer{producer: async, logger: logger, topicPrefix: topicPrefix}
	for _, opt := range opts {
		opt(p)
	}

	p.drained.Add(1)
	go p.drainErrors()
	return p
}

// drainErrors runs until sarama closes the error channel during shutdown.
func (p *Producer) drainErrors() {
	defer p.drained.Done()
	for perr := range p.producer.Errors() {
		if perr == nil {
			continue
		}
		topic := ""
		if perr.Msg != nil {
			topic = perr.Msg.Topic
		}
		p.logger.Error("kafka delivery failed", zap.String("topic", topic), zap.Error(perr.Err))
		if p.onError != nil {
			p.onError(topic, perr.Err)
		}
	}
}

// Input is where publishers enqueue messages.
func (p *Producer) Input() chan<- *sarama.ProducerMessage {
	return p.producer.Input()
}

// Close flushes buffered messages and waits for the error drain to finish. Safe to call twice.
func (p *Producer) Close() error {
	p.closeOnce.Do(func() {
		p.logger.Info("closing kafka producer")
		p.producer.AsyncClose()
		p.drained.Wait()
	})
	return nil
}

// TopicName prefixes eventType unless it already carries the prefix.
func (p *Producer) TopicName(eventType string) string {
	if p.topicPrefix == "" {
		return eventType
	}
	prefix := p.topicPrefix + "."
	if strings.HasPrefix(eventType, prefix) {
		return eventType
	}
	return prefix + eventType
}

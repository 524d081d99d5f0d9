package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
	"github.com/wasipo/harbor-sub000/internal/core/port"
	appLogger "github.com/wasipo/harbor-sub000/internal/infra/logger"
)

// StubPublisher logs events instead of sending them. It stands in when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	appLogger.FromContext(ctx, p.logger).Info("event not sent, kafka disabled",
		zap.String("event_type", UserRegisteredEventType),
		zap.String("user_id", event.UserID),
		zap.String("email", appLogger.MaskEmail(event.Email)),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)

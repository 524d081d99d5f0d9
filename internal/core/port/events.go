package port

import (
	"context"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
)

// EventPublisher hands domain events to the message bus.
// Callers publish after their transaction commits and treat failures as non-fatal.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
}

package domain

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// UserRegisteredEvent represents the payload for user.registered messages.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Name         string
	Email        string
	Status       string
	RegisteredAt time.Time
	Metadata     map[string]any
}

// NewUserRegisteredEvent builds the registration event for a freshly created user.
func NewUserRegisteredEvent(user User, at time.Time) UserRegisteredEvent {
	return UserRegisteredEvent{
		EventID:      ulid.Make().String(),
		UserID:       user.ID().String(),
		Name:         user.Name(),
		Email:        user.Email(),
		Status:       string(user.Status()),
		RegisteredAt: at.UTC(),
	}
}

package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/munezero-grace/student-registration-backend/internal/config"
	"github.com/munezero-grace/student-registration-backend/internal/metrics"
)

const (
	TypeUserRegistered = "user.registered"
	TypeUserDeleted    = "user.deleted"
)

// Event is a user-lifecycle notification published to the message bus.
type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"userId"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurredAt"`
}

func UserRegistered(userID, email string) Event {
	return Event{
		Type:       TypeUserRegistered,
		UserID:     userID,
		Email:      email,
		OccurredAt: time.Now(),
	}
}

func UserDeleted(userID, email string) Event {
	return Event{
		Type:       TypeUserDeleted,
		UserID:     userID,
		Email:      email,
		OccurredAt: time.Now(),
	}
}

// Producer publishes lifecycle events. Implementations exist for NATS and
// Kafka; the backend is selected by configuration.
type Producer interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// New builds the producer for the configured backend. An empty backend
// disables event publishing entirely.
func New(cfg config.EventsConfig, logger *slog.Logger, m *metrics.Metrics) (Producer, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "nats":
		return NewNATSProducer(cfg.URL, cfg.Subject, logger, m)
	case "kafka":
		return NewKafkaProducer(cfg.Brokers, cfg.Topic, logger, m)
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

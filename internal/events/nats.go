package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/munezero-grace/student-registration-backend/internal/metrics"

	"github.com/nats-io/nats.go"
)

type NATSProducer struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewNATSProducer(url string, subject string, logger *slog.Logger, m *metrics.Metrics) (*NATSProducer, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}

	logger.Info("NATS producer initialized", "url", url, "subject", subject)

	return &NATSProducer{
		conn:    nc,
		subject: subject,
		logger:  logger,
		metrics: m,
	}, nil
}

func (p *NATSProducer) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to marshal event", "error", err)
		return err
	}

	if err := p.conn.Publish(p.subject, payload); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish event to NATS", "error", err)
		return err
	}

	p.metrics.RecordEventPublished(ctx)
	p.logger.InfoContext(ctx, "event published to NATS", "subject", p.subject, "type", event.Type)
	return nil
}

func (p *NATSProducer) Close() error {
	p.conn.Close()
	return nil
}

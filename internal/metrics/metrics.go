package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	usersRegistered metric.Int64Counter
	logins          metric.Int64Counter
	loginFailures   metric.Int64Counter
	usersListViewed metric.Int64Counter
	userViewed      metric.Int64Counter
	userUpdated     metric.Int64Counter
	userDeleted     metric.Int64Counter
	eventsPublished metric.Int64Counter

	Database *DatabaseMetrics
}

func New(serviceName string) (*Metrics, error) {
	meter := otel.Meter(serviceName)

	m := &Metrics{}

	var err error

	m.usersRegistered, err = meter.Int64Counter(
		"registration_service.users.registered",
		metric.WithDescription("Total number of users registered"),
		metric.WithUnit("{user}"),
	)
	if err != nil {
		return nil, err
	}

	m.logins, err = meter.Int64Counter(
		"registration_service.logins.succeeded",
		metric.WithDescription("Total number of successful logins"),
		metric.WithUnit("{login}"),
	)
	if err != nil {
		return nil, err
	}

	m.loginFailures, err = meter.Int64Counter(
		"registration_service.logins.failed",
		metric.WithDescription("Total number of rejected logins"),
		metric.WithUnit("{login}"),
	)
	if err != nil {
		return nil, err
	}

	m.usersListViewed, err = meter.Int64Counter(
		"registration_service.users.list_viewed",
		metric.WithDescription("Total number of times the user list was viewed"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, err
	}

	m.userViewed, err = meter.Int64Counter(
		"registration_service.users.viewed",
		metric.WithDescription("Total number of single-user views"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, err
	}

	m.userUpdated, err = meter.Int64Counter(
		"registration_service.users.updated",
		metric.WithDescription("Total number of user updates"),
		metric.WithUnit("{update}"),
	)
	if err != nil {
		return nil, err
	}

	m.userDeleted, err = meter.Int64Counter(
		"registration_service.users.deleted",
		metric.WithDescription("Total number of user deletions"),
		metric.WithUnit("{delete}"),
	)
	if err != nil {
		return nil, err
	}

	m.eventsPublished, err = meter.Int64Counter(
		"registration_service.events.published",
		metric.WithDescription("Total number of lifecycle events published"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	database, err := NewDatabaseMetrics(meter)
	if err != nil {
		return nil, err
	}
	m.Database = database

	return m, nil
}

func (m *Metrics) RecordUserRegistered(ctx context.Context) {
	if m != nil && m.usersRegistered != nil {
		m.usersRegistered.Add(ctx, 1)
	}
}

func (m *Metrics) RecordLogin(ctx context.Context) {
	if m != nil && m.logins != nil {
		m.logins.Add(ctx, 1)
	}
}

func (m *Metrics) RecordLoginFailure(ctx context.Context) {
	if m != nil && m.loginFailures != nil {
		m.loginFailures.Add(ctx, 1)
	}
}

func (m *Metrics) RecordUsersListViewed(ctx context.Context) {
	if m != nil && m.usersListViewed != nil {
		m.usersListViewed.Add(ctx, 1)
	}
}

func (m *Metrics) RecordUserViewed(ctx context.Context) {
	if m != nil && m.userViewed != nil {
		m.userViewed.Add(ctx, 1)
	}
}

func (m *Metrics) RecordUserUpdated(ctx context.Context) {
	if m != nil && m.userUpdated != nil {
		m.userUpdated.Add(ctx, 1)
	}
}

func (m *Metrics) RecordUserDeleted(ctx context.Context) {
	if m != nil && m.userDeleted != nil {
		m.userDeleted.Add(ctx, 1)
	}
}

func (m *Metrics) RecordEventPublished(ctx context.Context) {
	if m != nil && m.eventsPublished != nil {
		m.eventsPublished.Add(ctx, 1)
	}
}

// NewMock creates a no-op Metrics instance for testing.
// The returned Metrics will safely ignore all Record* calls.
func NewMock() *Metrics {
	return &Metrics{Database: &DatabaseMetrics{}}
}

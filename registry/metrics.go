package registry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// metrics holds the otel counters for registry activity. Instrument
// creation failures are logged and the affected counter is skipped; the
// registry never fails because of observability setup.
type metrics struct {
	registrations metric.Int64Counter
	lookups       metric.Int64Counter
	conflicts     metric.Int64Counter
}

func newMetrics(meter metric.Meter, logger *slog.Logger) *metrics {
	if logger == nil {
		logger = slog.Default()
	}

	m := &metrics{}
	var err error

	m.registrations, err = meter.Int64Counter("enumid.registrations",
		metric.WithDescription("Number of name registrations by result"))
	if err != nil {
		logger.Warn("failed to create registrations counter", "error", err)
	}

	m.lookups, err = meter.Int64Counter("enumid.lookups",
		metric.WithDescription("Number of handle lookups by result"))
	if err != nil {
		logger.Warn("failed to create lookups counter", "error", err)
	}

	m.conflicts, err = meter.Int64Counter("enumid.conflicts",
		metric.WithDescription("Number of duplicate or cross-owner name conflicts"))
	if err != nil {
		logger.Warn("failed to create conflicts counter", "error", err)
	}

	return m
}

func (m *metrics) registration(ctx context.Context, result string) {
	if m == nil || m.registrations == nil {
		return
	}
	m.registrations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *metrics) lookup(ctx context.Context, result string) {
	if m == nil || m.lookups == nil {
		return
	}
	m.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *metrics) conflict(ctx context.Context) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.Add(ctx, 1)
}

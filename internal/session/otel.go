package session

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/dredgeapp/dredge/internal/session"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	rowsLoaded         metric.Int64Counter
	annotationsCreated metric.Int64Counter
	exports            metric.Int64Counter
}

func newMetrics() metrics {
	m := meter()
	fallback := noop.NewMeterProvider().Meter(instrumentationName)

	counter := func(name, desc string) metric.Int64Counter {
		c, err := m.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			c, _ = fallback.Int64Counter(name)
		}
		return c
	}

	return metrics{
		rowsLoaded:         counter("dredge.rows.loaded", "Rows loaded from position and sensor files"),
		annotationsCreated: counter("dredge.annotations.created", "Annotations saved"),
		exports:            counter("dredge.exports", "Completed exports"),
	}
}

func (m metrics) loaded(ctx context.Context, kind string, n int) {
	m.rowsLoaded.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
}

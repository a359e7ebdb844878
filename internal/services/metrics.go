package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "flowsmith/backend/internal/services"

type counters struct {
	generations metric.Int64Counter
	pushes      metric.Int64Counter
	pulls       metric.Int64Counter
	provisions  metric.Int64Counter
}

func newCounters() *counters {
	meter := otel.Meter(meterName)
	return &counters{
		generations: counter(meter, "flowsmith.generations", "Generation requests by outcome"),
		pushes:      counter(meter, "flowsmith.builder.pushes", "Flows pushed to the builder by outcome"),
		pulls:       counter(meter, "flowsmith.builder.pulls", "Flows pulled from the builder by outcome"),
		provisions:  counter(meter, "flowsmith.folders.provisioned", "Workspace folder provisioning by outcome"),
	}
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		c, _ = noop.NewMeterProvider().Meter(meterName).Int64Counter(name)
	}
	return c
}

func record(ctx context.Context, c metric.Int64Counter, outcome string) {
	c.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func outcomeOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

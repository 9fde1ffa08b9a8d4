package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/prperemyshlev/adlink-service"

// Flow completion outcomes
const (
	OutcomeLinked         = "linked"
	OutcomeUnverified     = "linked_unverified"
	OutcomeDenied         = "denied"
	OutcomeInvalidState   = "invalid_state"
	OutcomeTimedOut       = "timed_out"
	OutcomeExchangeFailed = "exchange_failed"
	OutcomeError          = "error"
)

// LinkMetrics records account linking counters. A nil *LinkMetrics is a no-op.
type LinkMetrics struct {
	initiated   otelmetric.Int64Counter
	completed   otelmetric.Int64Counter
	disconnects otelmetric.Int64Counter
}

// NewLinkMetrics registers the linking instruments on provider
func NewLinkMetrics(provider otelmetric.MeterProvider) (*LinkMetrics, error) {
	meter := provider.Meter(meterName)

	initiated, err := meter.Int64Counter("adlink.flows.initiated",
		otelmetric.WithDescription("Authorization flows started"))
	if err != nil {
		return nil, fmt.Errorf("failed to create initiated counter: %w", err)
	}

	completed, err := meter.Int64Counter("adlink.flows.completed",
		otelmetric.WithDescription("Authorization callbacks processed, by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create completed counter: %w", err)
	}

	disconnects, err := meter.Int64Counter("adlink.disconnects",
		otelmetric.WithDescription("Connections removed by their owner"))
	if err != nil {
		return nil, fmt.Errorf("failed to create disconnects counter: %w", err)
	}

	return &LinkMetrics{
		initiated:   initiated,
		completed:   completed,
		disconnects: disconnects,
	}, nil
}

func (m *LinkMetrics) FlowInitiated(ctx context.Context, platform string) {
	if m == nil {
		return
	}
	m.initiated.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("platform", platform)))
}

func (m *LinkMetrics) FlowCompleted(ctx context.Context, platform, outcome string) {
	if m == nil {
		return
	}
	m.completed.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("platform", platform),
		attribute.String("outcome", outcome),
	))
}

func (m *LinkMetrics) Disconnected(ctx context.Context, platform string) {
	if m == nil {
		return
	}
	m.disconnects.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("platform", platform)))
}

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/allisson/leasemq/internal/message/domain"
)

// StatsFunc returns a snapshot of both queue stores.
type StatsFunc func(ctx context.Context) (*domain.QueueStats, error)

// RegisterQueueGauges registers observable gauges for queue depth by state and archive size
// by outcome. The stats function is called on every scrape.
func RegisterQueueGauges(
	meterProvider metric.MeterProvider,
	namespace string,
	stats StatsFunc,
) (metric.Registration, error) {
	meter := meterProvider.Meter(namespace)

	messages, err := meter.Int64ObservableGauge(
		fmt.Sprintf("%s_messages", namespace),
		metric.WithDescription("Messages in the message store by lease state"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messages gauge: %w", err)
	}

	archived, err := meter.Int64ObservableGauge(
		fmt.Sprintf("%s_archived_messages", namespace),
		metric.WithDescription("Archive records by outcome"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create archived messages gauge: %w", err)
	}

	return meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		s, err := stats(ctx)
		if err != nil {
			return err
		}

		for state, count := range map[domain.MessageState]int64{
			domain.MessageStateUnclaimed: s.Unclaimed,
			domain.MessageStateLeased:    s.Leased,
			domain.MessageStateExpired:   s.Expired,
		} {
			o.ObserveInt64(messages, count, metric.WithAttributes(attribute.String("state", string(state))))
		}
		for outcome, count := range s.Archived {
			o.ObserveInt64(archived, count, metric.WithAttributes(attribute.String("outcome", string(outcome))))
		}
		return nil
	}, messages, archived)
}

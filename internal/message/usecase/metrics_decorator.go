package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/allisson/leasemq/internal/message/domain"
	"github.com/allisson/leasemq/internal/metrics"
)

const metricsDomain = "queue"

// statusOf maps an error to a metric status. Lost races are expected traffic, not errors.
func statusOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrNotAvailable):
		return "not_available"
	case errors.Is(err, domain.ErrLeaseConflict):
		return "conflict"
	default:
		return "error"
	}
}

func recordMetrics(ctx context.Context, m metrics.BusinessMetrics, operation string, start time.Time, err error) {
	status := statusOf(err)
	m.RecordOperation(ctx, metricsDomain, operation, status)
	m.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

// publishUseCaseWithMetrics decorates PublishUseCase with metrics instrumentation.
type publishUseCaseWithMetrics struct {
	next    PublishUseCase
	metrics metrics.BusinessMetrics
}

// NewPublishUseCaseWithMetrics wraps a PublishUseCase with metrics recording.
func NewPublishUseCaseWithMetrics(useCase PublishUseCase, m metrics.BusinessMetrics) PublishUseCase {
	return &publishUseCaseWithMetrics{next: useCase, metrics: m}
}

// Publish records metrics for publish operations.
func (p *publishUseCaseWithMetrics) Publish(ctx context.Context, payload json.RawMessage) (*domain.Message, error) {
	start := time.Now()
	msg, err := p.next.Publish(ctx, payload)
	recordMetrics(ctx, p.metrics, "message_publish", start, err)
	return msg, err
}

// leaseUseCaseWithMetrics decorates LeaseUseCase with metrics instrumentation.
type leaseUseCaseWithMetrics struct {
	next    LeaseUseCase
	metrics metrics.BusinessMetrics
}

// NewLeaseUseCaseWithMetrics wraps a LeaseUseCase with metrics recording.
func NewLeaseUseCaseWithMetrics(useCase LeaseUseCase, m metrics.BusinessMetrics) LeaseUseCase {
	return &leaseUseCaseWithMetrics{next: useCase, metrics: m}
}

// Acquire records metrics for lease acquisition.
func (l *leaseUseCaseWithMetrics) Acquire(ctx context.Context, id int64, duration time.Duration) (*domain.Lease, error) {
	start := time.Now()
	lease, err := l.next.Acquire(ctx, id, duration)
	recordMetrics(ctx, l.metrics, "lease_acquire", start, err)
	return lease, err
}

// Settle records metrics for settlement, labelled with the outcome.
func (l *leaseUseCaseWithMetrics) Settle(
	ctx context.Context,
	id int64,
	token time.Time,
	outcome domain.Outcome,
	handledBy string,
	details *string,
) (*domain.ArchiveRecord, error) {
	start := time.Now()
	rec, err := l.next.Settle(ctx, id, token, outcome, handledBy, details)
	recordMetrics(ctx, l.metrics, "lease_settle_"+string(outcome), start, err)
	return rec, err
}

// reclaimerUseCaseWithMetrics decorates ReclaimerUseCase with metrics instrumentation.
type reclaimerUseCaseWithMetrics struct {
	next    ReclaimerUseCase
	metrics metrics.BusinessMetrics
}

// NewReclaimerUseCaseWithMetrics wraps a ReclaimerUseCase with metrics recording.
// The sweeps triggered by Start are recorded as well.
func NewReclaimerUseCaseWithMetrics(useCase ReclaimerUseCase, m metrics.BusinessMetrics) ReclaimerUseCase {
	decorated := &reclaimerUseCaseWithMetrics{next: useCase, metrics: m}
	if inner, ok := useCase.(*reclaimerUseCase); ok {
		inner.sweeper = decorated
	}
	return decorated
}

// SweepExpiredLeases records metrics for lease sweeps.
func (r *reclaimerUseCaseWithMetrics) SweepExpiredLeases(ctx context.Context) (int, error) {
	start := time.Now()
	count, err := r.next.SweepExpiredLeases(ctx)
	recordMetrics(ctx, r.metrics, "reclaim_expired_leases", start, err)
	return count, err
}

// SweepStaleMessages records metrics for stale sweeps.
func (r *reclaimerUseCaseWithMetrics) SweepStaleMessages(ctx context.Context) (int, error) {
	start := time.Now()
	count, err := r.next.SweepStaleMessages(ctx)
	recordMetrics(ctx, r.metrics, "reclaim_stale_messages", start, err)
	return count, err
}

// Start delegates to the wrapped reclaimer.
func (r *reclaimerUseCaseWithMetrics) Start(ctx context.Context) error {
	return r.next.Start(ctx)
}

package notifier

import (
	"context"
	"math/rand/v2"
	"sync/atomic"

	"github.com/allisson/leasemq/internal/message/domain"
)

// Dropping discards a fraction of hints before they reach the wrapped notifier.
// It simulates a lossy transport; the stale sweep must still get every message processed.
type Dropping struct {
	next    Notifier
	rate    float64
	dropped atomic.Int64
	sample  func() float64
}

// NewDropping wraps next and discards hints with probability rate (0 keeps all, 1 drops all).
func NewDropping(next Notifier, rate float64) *Dropping {
	return &Dropping{next: next, rate: rate, sample: rand.Float64}
}

// Notify forwards the hint unless it is selected for dropping.
func (d *Dropping) Notify(ctx context.Context, channel domain.Channel, id int64) error {
	if d.rate > 0 && d.sample() < d.rate {
		d.dropped.Add(1)
		return nil
	}
	return d.next.Notify(ctx, channel, id)
}

// EmitsOnInsert defers to the wrapped notifier.
func (d *Dropping) EmitsOnInsert() bool {
	return EmitsOnInsert(d.next)
}

// Dropped returns how many hints were discarded.
func (d *Dropping) Dropped() int64 {
	return d.dropped.Load()
}

// Unwrap returns the wrapped notifier.
func (d *Dropping) Unwrap() Notifier {
	return d.next
}

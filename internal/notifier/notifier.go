// Package notifier delivers best-effort wake-up hints about queue activity.
//
// A hint only says "message id N may be worth looking at". Losing one never loses data:
// subscribers rescan the message store on every (re)connection and the reclaimer re-notifies
// messages that stay unclaimed for too long.
package notifier

import (
	"context"
	"strconv"

	"github.com/allisson/leasemq/internal/message/domain"
)

// Notifier publishes a hint for a message id on a channel.
type Notifier interface {
	Notify(ctx context.Context, channel domain.Channel, id int64) error
}

// Listener subscribes to channels. The first signal of every (re)connection carries
// Reconnected = true so the consumer can rescan. The returned channel is closed when
// ctx ends.
type Listener interface {
	Listen(ctx context.Context, channels ...domain.Channel) (<-chan domain.Signal, error)
}

// insertEmitter is implemented by notifiers whose store emits hints on insert by itself.
type insertEmitter interface {
	EmitsOnInsert() bool
}

// EmitsOnInsert reports whether the backend already emits new_message and dead_message
// from inside the store, in which case callers must not notify for inserts themselves.
func EmitsOnInsert(n Notifier) bool {
	if e, ok := n.(insertEmitter); ok {
		return e.EmitsOnInsert()
	}
	return false
}

// parseID decodes the decimal id carried by a notification payload.
func parseID(payload string) (int64, bool) {
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// deliver sends a signal unless ctx ends first.
func deliver(ctx context.Context, out chan<- domain.Signal, signal domain.Signal) bool {
	select {
	case out <- signal:
		return true
	case <-ctx.Done():
		return false
	}
}

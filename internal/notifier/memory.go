package notifier

import (
	"context"
	"sync"

	"github.com/allisson/leasemq/internal/database"
	"github.com/allisson/leasemq/internal/message/domain"
)

// Memory is an in-process Notifier and Listener. Signals are fanned out to the current
// subscribers and dropped when nobody listens or a subscriber buffer is full.
type Memory struct {
	mu          sync.RWMutex
	subscribers map[*memorySubscriber]struct{}
	bufferSize  int
}

type memorySubscriber struct {
	channels map[domain.Channel]struct{}
	out      chan domain.Signal
}

// NewMemory creates an in-process notifier. bufferSize bounds each subscriber queue.
func NewMemory(bufferSize int) *Memory {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Memory{
		subscribers: make(map[*memorySubscriber]struct{}),
		bufferSize:  bufferSize,
	}
}

// Notify fans the hint out, after commit when ctx carries a transaction.
func (m *Memory) Notify(ctx context.Context, channel domain.Channel, id int64) error {
	database.AfterCommit(ctx, func(context.Context) {
		m.broadcast(domain.Signal{Channel: channel, ID: id})
	})
	return nil
}

func (m *Memory) broadcast(signal domain.Signal) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for sub := range m.subscribers {
		if _, ok := sub.channels[signal.Channel]; !ok {
			continue
		}
		select {
		case sub.out <- signal:
		default:
		}
	}
}

// Listen registers a subscriber until ctx ends.
func (m *Memory) Listen(ctx context.Context, channels ...domain.Channel) (<-chan domain.Signal, error) {
	sub := &memorySubscriber{
		channels: make(map[domain.Channel]struct{}, len(channels)),
		out:      make(chan domain.Signal, m.bufferSize+len(channels)),
	}
	for _, channel := range channels {
		sub.channels[channel] = struct{}{}
		sub.out <- domain.Signal{Channel: channel, Reconnected: true}
	}

	m.mu.Lock()
	m.subscribers[sub] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subscribers, sub)
		m.mu.Unlock()
		close(sub.out)
	}()

	return sub.out, nil
}

// Subscribers returns the number of active subscribers.
func (m *Memory) Subscribers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers)
}

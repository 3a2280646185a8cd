package notifier

import (
	"context"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/allisson/leasemq/internal/database"
	apperrors "github.com/allisson/leasemq/internal/errors"
	"github.com/allisson/leasemq/internal/message/domain"
)

// DefaultRedisPrefix namespaces queue channels on a shared redis server.
const DefaultRedisPrefix = "leasemq:"

// RedisNotifier publishes hints with redis PUBLISH. Inside a transaction the publish is
// deferred until the transaction commits so subscribers never see uncommitted ids.
type RedisNotifier struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

// NewRedisNotifier creates a redis pub/sub notifier.
func NewRedisNotifier(client redis.UniversalClient, prefix string, logger *slog.Logger) *RedisNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisNotifier{client: client, prefix: prefix, logger: logger}
}

// Notify publishes immediately, or after commit when ctx carries a transaction.
func (r *RedisNotifier) Notify(ctx context.Context, channel domain.Channel, id int64) error {
	if !database.InTx(ctx) {
		return r.publish(ctx, channel, id)
	}

	database.AfterCommit(ctx, func(ctx context.Context) {
		if err := r.publish(ctx, channel, id); err != nil {
			r.logger.Warn(
				"failed to publish notification",
				slog.String("channel", string(channel)),
				slog.Int64("id", id),
				slog.Any("error", err),
			)
		}
	})
	return nil
}

func (r *RedisNotifier) publish(ctx context.Context, channel domain.Channel, id int64) error {
	if err := r.client.Publish(ctx, r.prefix+string(channel), id).Err(); err != nil {
		return apperrors.Wrap(err, "failed to publish")
	}
	return nil
}

// RedisListener subscribes with redis SUBSCRIBE. go-redis re-subscribes on its own after a
// dropped connection; every subscription confirmation is surfaced as a Reconnected signal.
type RedisListener struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

// NewRedisListener creates a redis pub/sub listener.
func NewRedisListener(client redis.UniversalClient, prefix string, logger *slog.Logger) *RedisListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisListener{client: client, prefix: prefix, logger: logger}
}

// Listen subscribes to the channels and starts forwarding messages.
func (r *RedisListener) Listen(ctx context.Context, channels ...domain.Channel) (<-chan domain.Signal, error) {
	names := make([]string, 0, len(channels))
	for _, channel := range channels {
		names = append(names, r.prefix+string(channel))
	}

	pubsub := r.client.Subscribe(ctx, names...)
	// Receive blocks until the first confirmation so connection errors surface here.
	first, err := pubsub.Receive(ctx)
	if err != nil {
		_ = pubsub.Close()
		return nil, apperrors.Wrap(err, "failed to subscribe")
	}

	out := make(chan domain.Signal, 64)
	go r.forward(ctx, pubsub, first, out)
	return out, nil
}

func (r *RedisListener) forward(ctx context.Context, pubsub *redis.PubSub, first any, out chan<- domain.Signal) {
	defer close(out)
	defer pubsub.Close() //nolint:errcheck

	if !r.handle(ctx, first, out) {
		return
	}

	messages := pubsub.ChannelWithSubscriptions()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if !r.handle(ctx, msg, out) {
				return
			}
		}
	}
}

func (r *RedisListener) handle(ctx context.Context, msg any, out chan<- domain.Signal) bool {
	switch m := msg.(type) {
	case *redis.Subscription:
		if m.Kind != "subscribe" {
			return true
		}
		return deliver(ctx, out, domain.Signal{Channel: r.channel(m.Channel), Reconnected: true})
	case *redis.Message:
		id, ok := parseID(m.Payload)
		if !ok {
			r.logger.Warn("ignoring malformed notification", slog.String("channel", m.Channel), slog.String("payload", m.Payload))
			return true
		}
		return deliver(ctx, out, domain.Signal{Channel: r.channel(m.Channel), ID: id})
	default:
		return true
	}
}

func (r *RedisListener) channel(name string) domain.Channel {
	return domain.Channel(strings.TrimPrefix(name, r.prefix))
}

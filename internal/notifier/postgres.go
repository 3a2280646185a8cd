package notifier

import (
	"context"
	"database/sql"
	"log/slog"
	"strconv"
	"time"

	"github.com/lib/pq"

	"github.com/allisson/leasemq/internal/database"
	apperrors "github.com/allisson/leasemq/internal/errors"
	"github.com/allisson/leasemq/internal/message/domain"
)

// PostgresNotifier publishes hints with pg_notify. Inside a transaction the hint is
// delivered by the server only when the transaction commits.
type PostgresNotifier struct {
	db *sql.DB
}

// NewPostgresNotifier creates a pg_notify based notifier.
func NewPostgresNotifier(db *sql.DB) *PostgresNotifier {
	return &PostgresNotifier{db: db}
}

// Notify runs pg_notify on the transaction in ctx, or on the pool when there is none.
func (p *PostgresNotifier) Notify(ctx context.Context, channel domain.Channel, id int64) error {
	querier := database.GetTx(ctx, p.db)

	_, err := querier.ExecContext(ctx, `SELECT pg_notify($1, $2)`, string(channel), strconv.FormatInt(id, 10))
	if err != nil {
		return apperrors.Wrap(err, "failed to notify")
	}
	return nil
}

// EmitsOnInsert is true: the messages and message_archive triggers emit inside the insert.
func (p *PostgresNotifier) EmitsOnInsert() bool {
	return true
}

// PostgresListener subscribes with LISTEN on a dedicated connection managed by pq.Listener.
type PostgresListener struct {
	dsn          string
	minReconnect time.Duration
	maxReconnect time.Duration
	pingInterval time.Duration
	logger       *slog.Logger
}

// NewPostgresListener creates a listener that reconnects with exponential backoff between
// minReconnect and maxReconnect.
func NewPostgresListener(dsn string, minReconnect, maxReconnect time.Duration, logger *slog.Logger) *PostgresListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresListener{
		dsn:          dsn,
		minReconnect: minReconnect,
		maxReconnect: maxReconnect,
		pingInterval: 90 * time.Second,
		logger:       logger,
	}
}

// Listen opens the LISTEN connection and starts forwarding notifications.
func (p *PostgresListener) Listen(ctx context.Context, channels ...domain.Channel) (<-chan domain.Signal, error) {
	listener := pq.NewListener(p.dsn, p.minReconnect, p.maxReconnect, p.onEvent)

	for _, channel := range channels {
		if err := listener.Listen(string(channel)); err != nil {
			_ = listener.Close()
			return nil, apperrors.Wrap(err, "failed to listen on "+string(channel))
		}
	}

	out := make(chan domain.Signal, 64)
	go p.forward(ctx, listener, channels, out)
	return out, nil
}

func (p *PostgresListener) forward(
	ctx context.Context,
	listener *pq.Listener,
	channels []domain.Channel,
	out chan<- domain.Signal,
) {
	defer close(out)
	defer listener.Close() //nolint:errcheck

	if !p.reconnected(ctx, channels, out) {
		return
	}

	ticker := time.NewTicker(p.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-listener.Notify:
			// pq sends nil after re-establishing the connection; anything may have been missed.
			if n == nil {
				if !p.reconnected(ctx, channels, out) {
					return
				}
				continue
			}

			id, ok := parseID(n.Extra)
			if !ok {
				p.logger.Warn("ignoring malformed notification", slog.String("channel", n.Channel), slog.String("payload", n.Extra))
				continue
			}
			if !deliver(ctx, out, domain.Signal{Channel: domain.Channel(n.Channel), ID: id}) {
				return
			}
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					p.logger.Debug("listener ping failed", slog.Any("error", err))
				}
			}()
		}
	}
}

func (p *PostgresListener) reconnected(ctx context.Context, channels []domain.Channel, out chan<- domain.Signal) bool {
	for _, channel := range channels {
		if !deliver(ctx, out, domain.Signal{Channel: channel, Reconnected: true}) {
			return false
		}
	}
	return true
}

func (p *PostgresListener) onEvent(event pq.ListenerEventType, err error) {
	switch event {
	case pq.ListenerEventConnected:
		p.logger.Debug("listener connected")
	case pq.ListenerEventDisconnected:
		p.logger.Warn("listener disconnected", slog.Any("error", err))
	case pq.ListenerEventReconnected:
		p.logger.Info("listener reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		p.logger.Error("listener connection attempt failed", slog.Any("error", err))
	}
}

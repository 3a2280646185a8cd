package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/allisson/leasemq/internal/errors"
	"github.com/allisson/leasemq/internal/message/domain"
	"github.com/allisson/leasemq/internal/notifier"
)

// ErrListenerClosed is returned by Run when the signal stream ends before ctx does.
var ErrListenerClosed = errors.New("listener closed")

// Leaser is the lease half of the queue protocol the worker drives.
type Leaser interface {
	Acquire(ctx context.Context, id int64, duration time.Duration) (*domain.Lease, error)
	Settle(
		ctx context.Context,
		id int64,
		token time.Time,
		outcome domain.Outcome,
		handledBy string,
		details *string,
	) (*domain.ArchiveRecord, error)
}

// Scanner lists message ids that can be claimed right now, in id order after afterID.
type Scanner interface {
	ListAvailableIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)
}

// Config holds the worker settings.
type Config struct {
	// ID is recorded as handled_by. Empty means a generated identity.
	ID            string
	Concurrency   int
	LeaseDuration time.Duration
	SafetyMargin  time.Duration
	// RescanLimit is the page size used when rescanning after a (re)connect.
	RescanLimit int
}

// Worker listens for new_message hints and processes the messages it manages to lease.
type Worker struct {
	config   Config
	listener notifier.Listener
	scanner  Scanner
	leaser   Leaser
	handler  Handler
	sem      *semaphore.Weighted
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Worker.
func New(
	config Config,
	listener notifier.Listener,
	scanner Scanner,
	leaser Leaser,
	handler Handler,
	logger *slog.Logger,
) *Worker {
	if config.ID == "" {
		config.ID = "worker-" + uuid.Must(uuid.NewV7()).String()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.RescanLimit <= 0 {
		config.RescanLimit = 100
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Worker{
		config:   config,
		listener: listener,
		scanner:  scanner,
		leaser:   leaser,
		handler:  handler,
		sem:      semaphore.NewWeighted(int64(config.Concurrency)),
		logger:   logger.With(slog.String("worker_id", config.ID)),
		now:      time.Now,
	}
}

// ID returns the identity recorded as handled_by.
func (w *Worker) ID() string {
	return w.config.ID
}

// Run consumes hints until ctx ends, then waits for in-flight messages to settle.
func (w *Worker) Run(ctx context.Context) error {
	signals, err := w.listener.Listen(ctx, domain.ChannelNewMessage)
	if err != nil {
		return errors.Wrap(err, "failed to listen for new messages")
	}

	w.logger.Info("worker started",
		slog.Int("concurrency", w.config.Concurrency),
		slog.Duration("lease_duration", w.config.LeaseDuration),
	)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return ctx.Err()
		case signal, ok := <-signals:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrListenerClosed
			}
			dispatch := func(id int64) error {
				if err := w.sem.Acquire(ctx, 1); err != nil {
					return ctx.Err()
				}
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer w.sem.Release(1)
					w.Process(context.WithoutCancel(ctx), id)
				}()
				return nil
			}

			if !signal.Reconnected {
				err = dispatch(signal.ID)
			} else {
				err = w.rescan(ctx, dispatch)
			}
			if err != nil {
				return err
			}
		}
	}
}

// rescan dispatches every available message, page by page, since hints sent while
// disconnected are gone. A failed page is logged and ends the rescan; the stale sweep
// re-notifies whatever it missed.
func (w *Worker) rescan(ctx context.Context, dispatch func(id int64) error) error {
	var afterID int64
	total := 0

	for {
		ids, err := w.scanner.ListAvailableIDs(ctx, afterID, w.config.RescanLimit)
		if err != nil {
			w.logger.Error("failed to rescan available messages",
				slog.Int64("after_id", afterID),
				slog.Any("error", err),
			)
			return nil
		}

		for _, id := range ids {
			if err := dispatch(id); err != nil {
				return err
			}
		}
		total += len(ids)

		if len(ids) < w.config.RescanLimit {
			break
		}
		afterID = ids[len(ids)-1]
	}

	w.logger.Info("rescanned available messages", slog.Int("count", total))
	return nil
}

// Process acquires, handles and settles a single message.
func (w *Worker) Process(ctx context.Context, id int64) {
	requestedAt := w.now()
	lease, err := w.leaser.Acquire(ctx, id, w.config.LeaseDuration)
	if err != nil {
		if errors.Is(err, domain.ErrNotAvailable) {
			w.logger.Debug("message not available", slog.Int64("message_id", id))
			return
		}
		w.logger.Error("failed to acquire message", slog.Int64("message_id", id), slog.Any("error", err))
		return
	}

	result := w.execute(ctx, lease, requestedAt)

	record, err := w.leaser.Settle(ctx, id, lease.Token, result.Outcome, w.config.ID, result.Details)
	if err != nil {
		if errors.Is(err, domain.ErrLeaseConflict) {
			w.logger.Debug("lease lost, result discarded",
				slog.Int64("message_id", id),
				slog.String("outcome", string(result.Outcome)),
			)
			return
		}
		w.logger.Error("failed to settle message", slog.Int64("message_id", id), slog.Any("error", err))
		return
	}

	w.logger.Info("message settled",
		slog.Int64("message_id", id),
		slog.Int64("archive_id", record.ID),
		slog.String("outcome", string(record.Outcome)),
	)
}

// execute runs the handler under a deadline strictly inside the lease. The lease cannot
// end before requestedAt plus the requested duration, so the budget is capped there too
// and a token read off a skewed clock never widens it.
func (w *Worker) execute(ctx context.Context, lease *domain.Lease, requestedAt time.Time) Result {
	now := w.now()
	remaining := lease.Remaining(now)
	if w.config.LeaseDuration > 0 {
		remaining = min(remaining, requestedAt.Add(w.config.LeaseDuration).Sub(now))
	}
	budget := remaining - w.config.SafetyMargin
	if budget <= 0 {
		w.logger.Error("lease expired before work could begin", slog.Int64("message_id", lease.MessageID()))
		return resultOf(domain.OutcomeFailed, "lease expired before work could begin")
	}

	hctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- resultOf(domain.OutcomeFailed, fmt.Sprintf("unhandled panic: %v", r))
			}
		}()
		result, err := w.handler.Handle(hctx, lease.Message.Payload)
		if err != nil {
			result = resultOf(domain.OutcomeFailed, fmt.Sprintf("unhandled error: %v", err))
		}
		done <- result
	}()

	select {
	case result := <-done:
		if !result.Outcome.IsWorkerOutcome() {
			return resultOf(domain.OutcomeFailed, fmt.Sprintf("invalid outcome %q", result.Outcome))
		}
		return result
	case <-hctx.Done():
		w.logger.Error("message timed out", slog.Int64("message_id", lease.MessageID()), slog.Duration("budget", budget))
		return resultOf(domain.OutcomeFailed, "timed out")
	}
}

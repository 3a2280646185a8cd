package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/allisson/leasemq/internal/database"
	apperrors "github.com/allisson/leasemq/internal/errors"
	"github.com/allisson/leasemq/internal/message/domain"
	"github.com/allisson/leasemq/internal/notifier"
)

const defaultSweepInterval = time.Minute

// ReclaimerConfig holds reclaimer configuration.
type ReclaimerConfig struct {
	LeaseSweepInterval time.Duration
	StaleSweepInterval time.Duration
	StaleThreshold     time.Duration
	BatchSize          int
}

// sweeper runs single reclaimer passes; Start drives it on tickers.
type sweeper interface {
	SweepExpiredLeases(ctx context.Context) (int, error)
	SweepStaleMessages(ctx context.Context) (int, error)
}

type reclaimerUseCase struct {
	sweeper     sweeper
	config      ReclaimerConfig
	txManager   database.TxManager
	messageRepo MessageRepository
	archiveRepo ArchiveRepository
	notifier    notifier.Notifier
	logger      *slog.Logger
}

// NewReclaimerUseCase creates a new ReclaimerUseCase.
func NewReclaimerUseCase(
	config ReclaimerConfig,
	txManager database.TxManager,
	messageRepo MessageRepository,
	archiveRepo ArchiveRepository,
	n notifier.Notifier,
	logger *slog.Logger,
) ReclaimerUseCase {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.LeaseSweepInterval <= 0 {
		config.LeaseSweepInterval = defaultSweepInterval
	}
	if config.StaleSweepInterval <= 0 {
		config.StaleSweepInterval = defaultSweepInterval
	}
	r := &reclaimerUseCase{
		config:      config,
		txManager:   txManager,
		messageRepo: messageRepo,
		archiveRepo: archiveRepo,
		notifier:    n,
		logger:      logger,
	}
	r.sweeper = r
	return r
}

// Start runs both sweeps once and then on their intervals until ctx ends.
func (r *reclaimerUseCase) Start(ctx context.Context) error {
	if r.logger != nil {
		r.logger.Info("starting reclaimer",
			slog.Duration("lease_sweep_interval", r.config.LeaseSweepInterval),
			slog.Duration("stale_sweep_interval", r.config.StaleSweepInterval),
			slog.Duration("stale_threshold", r.config.StaleThreshold),
			slog.Int("batch_size", r.config.BatchSize),
		)
	}

	r.runLeaseSweep(ctx)
	r.runStaleSweep(ctx)

	leaseTicker := time.NewTicker(r.config.LeaseSweepInterval)
	defer leaseTicker.Stop()
	staleTicker := time.NewTicker(r.config.StaleSweepInterval)
	defer staleTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			if r.logger != nil {
				r.logger.Info("stopping reclaimer")
			}
			return ctx.Err()
		case <-leaseTicker.C:
			r.runLeaseSweep(ctx)
		case <-staleTicker.C:
			r.runStaleSweep(ctx)
		}
	}
}

func (r *reclaimerUseCase) runLeaseSweep(ctx context.Context) {
	count, err := r.sweeper.SweepExpiredLeases(ctx)
	if r.logger == nil {
		return
	}
	if err != nil && ctx.Err() == nil {
		r.logger.Error("lease sweep failed", slog.Int("reclaimed", count), slog.Any("error", err))
		return
	}
	if count > 0 {
		r.logger.Info("reclaimed expired leases", slog.Int("count", count))
	}
}

func (r *reclaimerUseCase) runStaleSweep(ctx context.Context) {
	count, err := r.sweeper.SweepStaleMessages(ctx)
	if r.logger == nil {
		return
	}
	if err != nil && ctx.Err() == nil {
		r.logger.Error("stale sweep failed", slog.Int("renotified", count), slog.Any("error", err))
		return
	}
	if count > 0 {
		r.logger.Info("re-notified stale messages", slog.Int("count", count))
	}
}

// SweepExpiredLeases walks every expired lease in id order. Each message is archived in its
// own transaction; a failure is collected and the sweep moves on. A message settled or
// reclaimed concurrently is skipped.
func (r *reclaimerUseCase) SweepExpiredLeases(ctx context.Context) (int, error) {
	var errs []error
	var afterID int64
	reclaimed := 0

	for {
		ids, err := r.messageRepo.ListExpiredIDs(ctx, afterID, r.config.BatchSize)
		if err != nil {
			errs = append(errs, err)
			break
		}

		for _, id := range ids {
			afterID = id
			if ctx.Err() != nil {
				errs = append(errs, ctx.Err())
				return reclaimed, apperrors.Join(errs...)
			}

			ok, err := r.reclaim(ctx, id)
			if err != nil {
				errs = append(errs, fmt.Errorf("message %d: %w", id, err))
				continue
			}
			if ok {
				reclaimed++
			}
		}

		if len(ids) < r.config.BatchSize {
			break
		}
	}

	return reclaimed, apperrors.Join(errs...)
}

func (r *reclaimerUseCase) reclaim(ctx context.Context, id int64) (bool, error) {
	reclaimed := false
	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		msg, err := r.messageRepo.DeleteExpired(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrMessageNotFound) {
				return nil
			}
			return err
		}

		record := msg.Archive(domain.OutcomeLeaseExpired, domain.HandledByReclaimer, nil)
		if err := r.archiveRepo.Create(ctx, record); err != nil {
			return err
		}

		notifyDeadLetter(ctx, r.notifier, r.logger, record)
		reclaimed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if !reclaimed && r.logger != nil {
		r.logger.Debug("expired lease already handled", slog.Int64("message_id", id))
	}
	return reclaimed, nil
}

// SweepStaleMessages re-emits new_message for every message unclaimed for longer than the
// stale threshold.
func (r *reclaimerUseCase) SweepStaleMessages(ctx context.Context) (int, error) {
	var errs []error
	var afterID int64
	notified := 0

	for {
		ids, err := r.messageRepo.ListStaleIDs(ctx, r.config.StaleThreshold, afterID, r.config.BatchSize)
		if err != nil {
			errs = append(errs, err)
			break
		}

		for _, id := range ids {
			afterID = id
			if ctx.Err() != nil {
				errs = append(errs, ctx.Err())
				return notified, apperrors.Join(errs...)
			}

			if err := r.notifier.Notify(ctx, domain.ChannelNewMessage, id); err != nil {
				errs = append(errs, fmt.Errorf("message %d: %w", id, err))
				continue
			}
			notified++
		}

		if len(ids) < r.config.BatchSize {
			break
		}
	}

	return notified, apperrors.Join(errs...)
}

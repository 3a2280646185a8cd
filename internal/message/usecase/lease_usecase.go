package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/allisson/leasemq/internal/database"
	"github.com/allisson/leasemq/internal/message/domain"
	"github.com/allisson/leasemq/internal/notifier"
)

const maxHandledByLength = 50

type leaseUseCase struct {
	txManager   database.TxManager
	messageRepo MessageRepository
	archiveRepo ArchiveRepository
	notifier    notifier.Notifier
	logger      *slog.Logger
}

// NewLeaseUseCase creates a new LeaseUseCase.
func NewLeaseUseCase(
	txManager database.TxManager,
	messageRepo MessageRepository,
	archiveRepo ArchiveRepository,
	n notifier.Notifier,
	logger *slog.Logger,
) LeaseUseCase {
	return &leaseUseCase{
		txManager:   txManager,
		messageRepo: messageRepo,
		archiveRepo: archiveRepo,
		notifier:    n,
		logger:      logger,
	}
}

// Acquire takes a lease of the given duration on the message.
func (l *leaseUseCase) Acquire(ctx context.Context, id int64, duration time.Duration) (*domain.Lease, error) {
	if duration <= 0 {
		return nil, domain.ErrInvalidLeaseDuration
	}

	msg, err := l.messageRepo.Acquire(ctx, id, duration)
	if err != nil {
		if errors.Is(err, domain.ErrNotAvailable) && l.logger != nil {
			l.logger.Debug("message not available", slog.Int64("message_id", id))
		}
		return nil, err
	}

	return domain.NewLease(msg)
}

// Settle deletes the leased message and writes its archive record in one transaction.
func (l *leaseUseCase) Settle(
	ctx context.Context,
	id int64,
	token time.Time,
	outcome domain.Outcome,
	handledBy string,
	details *string,
) (*domain.ArchiveRecord, error) {
	if err := outcome.Validate(); err != nil {
		return nil, err
	}
	if !outcome.IsWorkerOutcome() {
		return nil, domain.ErrReservedOutcome
	}
	if handledBy == "" || utf8.RuneCountInString(handledBy) > maxHandledByLength {
		return nil, domain.ErrInvalidHandledBy
	}

	var record *domain.ArchiveRecord
	err := l.txManager.WithTx(ctx, func(ctx context.Context) error {
		msg, err := l.messageRepo.DeleteLeased(ctx, id, token)
		if err != nil {
			return err
		}

		record = msg.Archive(outcome, handledBy, details)
		if err := l.archiveRepo.Create(ctx, record); err != nil {
			return err
		}

		notifyDeadLetter(ctx, l.notifier, l.logger, record)
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrLeaseConflict) && l.logger != nil {
			l.logger.Debug("lease no longer held", slog.Int64("message_id", id), slog.Time("token", token))
		}
		return nil, err
	}

	return record, nil
}

// notifyDeadLetter emits dead_message for non-success records unless the store already does.
func notifyDeadLetter(ctx context.Context, n notifier.Notifier, logger *slog.Logger, record *domain.ArchiveRecord) {
	if !record.IsDeadLetter() || notifier.EmitsOnInsert(n) {
		return
	}
	if err := n.Notify(ctx, domain.ChannelDeadMessage, record.ID); err != nil && logger != nil {
		logger.Warn("failed to notify dead message", slog.Int64("archive_id", record.ID), slog.Any("error", err))
	}
}

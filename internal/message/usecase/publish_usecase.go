package usecase

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/allisson/leasemq/internal/database"
	"github.com/allisson/leasemq/internal/message/domain"
	"github.com/allisson/leasemq/internal/notifier"
)

type publishUseCase struct {
	txManager   database.TxManager
	messageRepo MessageRepository
	notifier    notifier.Notifier
	logger      *slog.Logger
}

// NewPublishUseCase creates a new PublishUseCase.
func NewPublishUseCase(
	txManager database.TxManager,
	messageRepo MessageRepository,
	n notifier.Notifier,
	logger *slog.Logger,
) PublishUseCase {
	return &publishUseCase{
		txManager:   txManager,
		messageRepo: messageRepo,
		notifier:    n,
		logger:      logger,
	}
}

// Publish inserts the message and emits new_message in the same transaction. Backends
// that emit on insert are not notified again.
func (p *publishUseCase) Publish(ctx context.Context, payload json.RawMessage) (*domain.Message, error) {
	if !json.Valid(payload) {
		return nil, domain.ErrInvalidPayload
	}

	var msg *domain.Message
	err := p.txManager.WithTx(ctx, func(ctx context.Context) error {
		created, err := p.messageRepo.Create(ctx, payload)
		if err != nil {
			return err
		}
		msg = created

		if notifier.EmitsOnInsert(p.notifier) {
			return nil
		}
		// A lost hint is recovered by the stale sweep, so it never fails the publish.
		if err := p.notifier.Notify(ctx, domain.ChannelNewMessage, created.ID); err != nil && p.logger != nil {
			p.logger.Warn("failed to notify new message", slog.Int64("message_id", created.ID), slog.Any("error", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return msg, nil
}

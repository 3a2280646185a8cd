package usecase

import (
	"context"

	"github.com/allisson/leasemq/internal/database"
	"github.com/allisson/leasemq/internal/message/domain"
)

type adminUseCase struct {
	txManager   database.TxManager
	messageRepo MessageRepository
	archiveRepo ArchiveRepository
}

// NewAdminUseCase creates a new AdminUseCase.
func NewAdminUseCase(
	txManager database.TxManager,
	messageRepo MessageRepository,
	archiveRepo ArchiveRepository,
) AdminUseCase {
	return &adminUseCase{
		txManager:   txManager,
		messageRepo: messageRepo,
		archiveRepo: archiveRepo,
	}
}

func (a *adminUseCase) ListMessages(ctx context.Context, offset, limit int) ([]*domain.Message, error) {
	return a.messageRepo.List(ctx, offset, limit)
}

func (a *adminUseCase) GetMessage(ctx context.Context, id int64) (*domain.Message, error) {
	return a.messageRepo.Get(ctx, id)
}

func (a *adminUseCase) ListArchive(
	ctx context.Context,
	outcome *domain.Outcome,
	offset, limit int,
) ([]*domain.ArchiveRecord, error) {
	if outcome != nil {
		if err := outcome.Validate(); err != nil {
			return nil, err
		}
	}
	return a.archiveRepo.List(ctx, outcome, offset, limit)
}

func (a *adminUseCase) GetArchiveRecord(ctx context.Context, id int64) (*domain.ArchiveRecord, error) {
	return a.archiveRepo.Get(ctx, id)
}

// Stats counts both stores. The two counts are not taken from the same snapshot.
func (a *adminUseCase) Stats(ctx context.Context) (*domain.QueueStats, error) {
	states, err := a.messageRepo.CountByState(ctx)
	if err != nil {
		return nil, err
	}

	archived, err := a.archiveRepo.CountByOutcome(ctx)
	if err != nil {
		return nil, err
	}

	return &domain.QueueStats{
		Unclaimed: states[domain.MessageStateUnclaimed],
		Leased:    states[domain.MessageStateLeased],
		Expired:   states[domain.MessageStateExpired],
		Archived:  archived,
	}, nil
}

// Clear empties both stores in one transaction.
func (a *adminUseCase) Clear(ctx context.Context) (*domain.ClearResult, error) {
	result := &domain.ClearResult{}
	err := a.txManager.WithTx(ctx, func(ctx context.Context) error {
		messages, err := a.messageRepo.DeleteAll(ctx)
		if err != nil {
			return err
		}

		archived, err := a.archiveRepo.DeleteAll(ctx)
		if err != nil {
			return err
		}

		result.Messages = messages
		result.Archived = archived
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

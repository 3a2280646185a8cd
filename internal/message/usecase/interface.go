// Package usecase implements the queue protocol: publishing messages, acquiring and settling
// leases, reclaiming expired leases and administrative inspection of both stores.
package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/allisson/leasemq/internal/message/domain"
)

// MessageRepository defines the message store operations. Every lease transition is a
// single conditional write decided by the database.
type MessageRepository interface {
	Create(ctx context.Context, payload json.RawMessage) (*domain.Message, error)
	Acquire(ctx context.Context, id int64, duration time.Duration) (*domain.Message, error)
	DeleteLeased(ctx context.Context, id int64, token time.Time) (*domain.Message, error)
	DeleteExpired(ctx context.Context, id int64) (*domain.Message, error)
	ListExpiredIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)
	ListStaleIDs(ctx context.Context, olderThan time.Duration, afterID int64, limit int) ([]int64, error)
	ListAvailableIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)
	Get(ctx context.Context, id int64) (*domain.Message, error)
	List(ctx context.Context, offset, limit int) ([]*domain.Message, error)
	CountByState(ctx context.Context) (map[domain.MessageState]int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// ArchiveRepository defines the archive store operations.
type ArchiveRepository interface {
	Create(ctx context.Context, record *domain.ArchiveRecord) error
	Get(ctx context.Context, id int64) (*domain.ArchiveRecord, error)
	List(ctx context.Context, outcome *domain.Outcome, offset, limit int) ([]*domain.ArchiveRecord, error)
	CountByOutcome(ctx context.Context) (map[domain.Outcome]int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// PublishUseCase inserts new messages.
type PublishUseCase interface {
	// Publish stores the payload as a new unclaimed message and emits a new_message hint.
	Publish(ctx context.Context, payload json.RawMessage) (*domain.Message, error)
}

// LeaseUseCase implements the acquire and settle halves of the lease protocol.
type LeaseUseCase interface {
	// Acquire returns a lease or domain.ErrNotAvailable when another actor owns the message
	// or it no longer exists.
	Acquire(ctx context.Context, id int64, duration time.Duration) (*domain.Lease, error)
	// Settle archives the message with the given outcome if the lease identified by token
	// is still live. Returns domain.ErrLeaseConflict otherwise; the caller must discard
	// its result.
	Settle(
		ctx context.Context,
		id int64,
		token time.Time,
		outcome domain.Outcome,
		handledBy string,
		details *string,
	) (*domain.ArchiveRecord, error)
}

// ReclaimerUseCase recovers from crashed workers and lost hints.
type ReclaimerUseCase interface {
	// SweepExpiredLeases archives every message whose lease lapsed as lease_expired.
	SweepExpiredLeases(ctx context.Context) (int, error)
	// SweepStaleMessages re-notifies messages left unclaimed longer than the threshold.
	SweepStaleMessages(ctx context.Context) (int, error)
	// Start runs both sweeps on their intervals until ctx ends.
	Start(ctx context.Context) error
}

// AdminUseCase exposes read access and the bulk clear used by operators and tests.
type AdminUseCase interface {
	ListMessages(ctx context.Context, offset, limit int) ([]*domain.Message, error)
	GetMessage(ctx context.Context, id int64) (*domain.Message, error)
	ListArchive(ctx context.Context, outcome *domain.Outcome, offset, limit int) ([]*domain.ArchiveRecord, error)
	GetArchiveRecord(ctx context.Context, id int64) (*domain.ArchiveRecord, error)
	Stats(ctx context.Context) (*domain.QueueStats, error)
	Clear(ctx context.Context) (*domain.ClearResult, error)
}

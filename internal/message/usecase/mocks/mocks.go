// Package mocks provides mock implementations of the queue use cases and repositories for testing.
package mocks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/leasemq/internal/message/domain"
)

// MockMessageRepository is a mock implementation of usecase.MessageRepository.
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, payload json.RawMessage) (*domain.Message, error) {
	args := m.Called(ctx, payload)
	return messageOrNil(args.Get(0)), args.Error(1)
}

func (m *MockMessageRepository) Acquire(ctx context.Context, id int64, duration time.Duration) (*domain.Message, error) {
	args := m.Called(ctx, id, duration)
	return messageOrNil(args.Get(0)), args.Error(1)
}

func (m *MockMessageRepository) DeleteLeased(ctx context.Context, id int64, token time.Time) (*domain.Message, error) {
	args := m.Called(ctx, id, token)
	return messageOrNil(args.Get(0)), args.Error(1)
}

func (m *MockMessageRepository) DeleteExpired(ctx context.Context, id int64) (*domain.Message, error) {
	args := m.Called(ctx, id)
	return messageOrNil(args.Get(0)), args.Error(1)
}

func (m *MockMessageRepository) ListExpiredIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	args := m.Called(ctx, afterID, limit)
	return idsOrNil(args.Get(0)), args.Error(1)
}

func (m *MockMessageRepository) ListStaleIDs(
	ctx context.Context,
	olderThan time.Duration,
	afterID int64,
	limit int,
) ([]int64, error) {
	args := m.Called(ctx, olderThan, afterID, limit)
	return idsOrNil(args.Get(0)), args.Error(1)
}

func (m *MockMessageRepository) ListAvailableIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	args := m.Called(ctx, afterID, limit)
	return idsOrNil(args.Get(0)), args.Error(1)
}

func (m *MockMessageRepository) Get(ctx context.Context, id int64) (*domain.Message, error) {
	args := m.Called(ctx, id)
	return messageOrNil(args.Get(0)), args.Error(1)
}

func (m *MockMessageRepository) List(ctx context.Context, offset, limit int) ([]*domain.Message, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) CountByState(ctx context.Context) (map[domain.MessageState]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.MessageState]int64), args.Error(1)
}

func (m *MockMessageRepository) DeleteAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockArchiveRepository is a mock implementation of usecase.ArchiveRepository.
type MockArchiveRepository struct {
	mock.Mock
}

func (m *MockArchiveRepository) Create(ctx context.Context, record *domain.ArchiveRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockArchiveRepository) Get(ctx context.Context, id int64) (*domain.ArchiveRecord, error) {
	args := m.Called(ctx, id)
	return recordOrNil(args.Get(0)), args.Error(1)
}

func (m *MockArchiveRepository) List(
	ctx context.Context,
	outcome *domain.Outcome,
	offset, limit int,
) ([]*domain.ArchiveRecord, error) {
	args := m.Called(ctx, outcome, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ArchiveRecord), args.Error(1)
}

func (m *MockArchiveRepository) CountByOutcome(ctx context.Context) (map[domain.Outcome]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.Outcome]int64), args.Error(1)
}

func (m *MockArchiveRepository) DeleteAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockNotifier is a mock implementation of notifier.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, channel domain.Channel, id int64) error {
	args := m.Called(ctx, channel, id)
	return args.Error(0)
}

// MockPublishUseCase is a mock implementation of usecase.PublishUseCase.
type MockPublishUseCase struct {
	mock.Mock
}

func (m *MockPublishUseCase) Publish(ctx context.Context, payload json.RawMessage) (*domain.Message, error) {
	args := m.Called(ctx, payload)
	return messageOrNil(args.Get(0)), args.Error(1)
}

// MockLeaseUseCase is a mock implementation of usecase.LeaseUseCase.
type MockLeaseUseCase struct {
	mock.Mock
}

func (m *MockLeaseUseCase) Acquire(ctx context.Context, id int64, duration time.Duration) (*domain.Lease, error) {
	args := m.Called(ctx, id, duration)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Lease), args.Error(1)
}

func (m *MockLeaseUseCase) Settle(
	ctx context.Context,
	id int64,
	token time.Time,
	outcome domain.Outcome,
	handledBy string,
	details *string,
) (*domain.ArchiveRecord, error) {
	args := m.Called(ctx, id, token, outcome, handledBy, details)
	return recordOrNil(args.Get(0)), args.Error(1)
}

// MockReclaimerUseCase is a mock implementation of usecase.ReclaimerUseCase.
type MockReclaimerUseCase struct {
	mock.Mock
}

func (m *MockReclaimerUseCase) SweepExpiredLeases(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockReclaimerUseCase) SweepStaleMessages(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockReclaimerUseCase) Start(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockAdminUseCase is a mock implementation of usecase.AdminUseCase.
type MockAdminUseCase struct {
	mock.Mock
}

func (m *MockAdminUseCase) ListMessages(ctx context.Context, offset, limit int) ([]*domain.Message, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockAdminUseCase) GetMessage(ctx context.Context, id int64) (*domain.Message, error) {
	args := m.Called(ctx, id)
	return messageOrNil(args.Get(0)), args.Error(1)
}

func (m *MockAdminUseCase) ListArchive(
	ctx context.Context,
	outcome *domain.Outcome,
	offset, limit int,
) ([]*domain.ArchiveRecord, error) {
	args := m.Called(ctx, outcome, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ArchiveRecord), args.Error(1)
}

func (m *MockAdminUseCase) GetArchiveRecord(ctx context.Context, id int64) (*domain.ArchiveRecord, error) {
	args := m.Called(ctx, id)
	return recordOrNil(args.Get(0)), args.Error(1)
}

func (m *MockAdminUseCase) Stats(ctx context.Context) (*domain.QueueStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueueStats), args.Error(1)
}

func (m *MockAdminUseCase) Clear(ctx context.Context) (*domain.ClearResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ClearResult), args.Error(1)
}

func messageOrNil(v any) *domain.Message {
	if v == nil {
		return nil
	}
	return v.(*domain.Message)
}

func recordOrNil(v any) *domain.ArchiveRecord {
	if v == nil {
		return nil
	}
	return v.(*domain.ArchiveRecord)
}

func idsOrNil(v any) []int64 {
	if v == nil {
		return nil
	}
	return v.([]int64)
}

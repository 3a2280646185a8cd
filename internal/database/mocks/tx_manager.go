// Package mocks provides mock implementations of the database abstractions for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockTxManager is a mock implementation of database.TxManager for testing.
// Tests usually make WithTx run the callback:
//
//	txManager.On("WithTx", mock.Anything, mock.Anything).
//		Run(func(args mock.Arguments) {
//			fn := args.Get(1).(func(context.Context) error)
//			_ = fn(args.Get(0).(context.Context))
//		}).Return(nil)
type MockTxManager struct {
	mock.Mock
}

// WithTx mocks the WithTx method of TxManager.
func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if rf, ok := args.Get(0).(func(context.Context, func(context.Context) error) error); ok {
		return rf(ctx, fn)
	}
	return args.Error(0)
}

// NewPassthroughTxManager returns a MockTxManager whose WithTx runs the callback on the
// given context and returns its error.
func NewPassthroughTxManager() *MockTxManager {
	m := &MockTxManager{}
	m.On("WithTx", mock.Anything, mock.Anything).
		Return(func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		})
	return m
}

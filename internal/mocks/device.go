package mocks

import (
	"context"

	"github.com/brettbedarf/treefs"
	"github.com/stretchr/testify/mock"
)

// MockDevice implements treefs.Device for testing across packages
type MockDevice struct {
	mock.Mock
}

func (m *MockDevice) Persist(ctx context.Context, p []byte) (int, error) {
	args := m.Called(ctx, p)

	// Handle function return types (for complex tests)
	if fn, ok := args.Get(0).(func(context.Context, []byte) int); ok {
		return fn(ctx, p), args.Error(1)
	}

	if args.Get(0) == nil {
		return 0, args.Error(1)
	}
	return args.Get(0).(int), args.Error(1)
}

func (m *MockDevice) Restore(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)

	if fn, ok := args.Get(0).(func(context.Context) []byte); ok {
		return fn(ctx), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

var _ treefs.Device = (*MockDevice)(nil)

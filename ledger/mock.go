package ledger

import (
	"context"

	"github.com/ruteri/timelock-vault/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockLedger mocks the TokenLedger interface
type MockLedger struct {
	mock.Mock
}

// ProgramID mocks the ProgramID method
func (m *MockLedger) ProgramID() interfaces.Address {
	args := m.Called()
	return args.Get(0).(interfaces.Address)
}

// OwnerOf mocks the OwnerOf method
func (m *MockLedger) OwnerOf(ctx context.Context, account interfaces.Address) (interfaces.Address, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(interfaces.Address), args.Error(1)
}

// Transfer mocks the Transfer method
func (m *MockLedger) Transfer(ctx context.Context, t interfaces.Transfer) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

// OpenAccount mocks the OpenAccount method
func (m *MockLedger) OpenAccount(ctx context.Context, account, authority interfaces.Address) error {
	args := m.Called(ctx, account, authority)
	return args.Error(0)
}

// Name returns a fixed identifier
func (m *MockLedger) Name() string {
	return "mock"
}

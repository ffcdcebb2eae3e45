// Package mocks provides shared mock implementations for testing.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/splitpay/split-engine/internal/domain"
	"github.com/splitpay/split-engine/internal/domain/ports"
)

// MockRecipientRepository mocks ports.RecipientRepository
type MockRecipientRepository struct {
	mock.Mock
}

func (m *MockRecipientRepository) Create(ctx context.Context, tx ports.DBTX, recipient *domain.Recipient) error {
	args := m.Called(ctx, tx, recipient)
	return args.Error(0)
}

func (m *MockRecipientRepository) Update(ctx context.Context, tx ports.DBTX, recipient *domain.Recipient) error {
	args := m.Called(ctx, tx, recipient)
	return args.Error(0)
}

func (m *MockRecipientRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.Recipient, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Recipient), args.Error(1)
}

func (m *MockRecipientRepository) ListByOwner(ctx context.Context, db ports.DBTX, ownerID string, limit, offset int32) ([]*domain.Recipient, error) {
	args := m.Called(ctx, db, ownerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Recipient), args.Error(1)
}

func (m *MockRecipientRepository) Delete(ctx context.Context, tx ports.DBTX, id string) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

// MockRuleRepository mocks ports.RuleRepository
type MockRuleRepository struct {
	mock.Mock
}

func (m *MockRuleRepository) Create(ctx context.Context, tx ports.DBTX, rule *domain.SplitRule) error {
	args := m.Called(ctx, tx, rule)
	return args.Error(0)
}

func (m *MockRuleRepository) Update(ctx context.Context, tx ports.DBTX, rule *domain.SplitRule) error {
	args := m.Called(ctx, tx, rule)
	return args.Error(0)
}

func (m *MockRuleRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.SplitRule, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SplitRule), args.Error(1)
}

func (m *MockRuleRepository) ListByOwner(ctx context.Context, db ports.DBTX, ownerID string, limit, offset int32) ([]*domain.SplitRule, error) {
	args := m.Called(ctx, db, ownerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SplitRule), args.Error(1)
}

func (m *MockRuleRepository) Delete(ctx context.Context, tx ports.DBTX, id string) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *MockRuleRepository) HasLineForRecipient(ctx context.Context, db ports.DBTX, ownerID, recipientID string) (bool, error) {
	args := m.Called(ctx, db, ownerID, recipientID)
	return args.Bool(0), args.Error(1)
}

// MockTransactionRepository mocks ports.TransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) CreateWithAllocations(ctx context.Context, tx ports.DBTX, txn *domain.SplitTransaction) error {
	args := m.Called(ctx, tx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.SplitTransaction, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SplitTransaction), args.Error(1)
}

func (m *MockTransactionRepository) GetBySaleID(ctx context.Context, db ports.DBTX, saleID string) (*domain.SplitTransaction, error) {
	args := m.Called(ctx, db, saleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SplitTransaction), args.Error(1)
}

func (m *MockTransactionRepository) GetAllocation(ctx context.Context, db ports.DBTX, allocationID string) (*domain.AllocationRecord, error) {
	args := m.Called(ctx, db, allocationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AllocationRecord), args.Error(1)
}

func (m *MockTransactionRepository) UpdateAllocationStatus(ctx context.Context, tx ports.DBTX, allocationID string, status domain.AllocationStatus, errorDetail string, processedAt *time.Time) error {
	args := m.Called(ctx, tx, allocationID, status, errorDetail, processedAt)
	return args.Error(0)
}

func (m *MockTransactionRepository) UpdateTransactionStatus(ctx context.Context, tx ports.DBTX, id string, status domain.TransactionStatus) error {
	args := m.Called(ctx, tx, id, status)
	return args.Error(0)
}

func (m *MockTransactionRepository) CountUnterminatedAllocations(ctx context.Context, db ports.DBTX, transactionID string) (int64, error) {
	args := m.Called(ctx, db, transactionID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) CountFailedAllocations(ctx context.Context, db ports.DBTX, transactionID string) (int64, error) {
	args := m.Called(ctx, db, transactionID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) HasUnterminatedForRule(ctx context.Context, db ports.DBTX, ruleID string) (bool, error) {
	args := m.Called(ctx, db, ruleID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransactionRepository) ListPendingOlderThan(ctx context.Context, db ports.DBTX, age time.Duration, limit int32) ([]*ports.PendingAllocation, error) {
	args := m.Called(ctx, db, age, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ports.PendingAllocation), args.Error(1)
}

func (m *MockTransactionRepository) CountAllocationsByStatus(ctx context.Context, db ports.DBTX) (map[domain.AllocationStatus]int64, error) {
	args := m.Called(ctx, db)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.AllocationStatus]int64), args.Error(1)
}

// MockQueuePublisher mocks ports.QueuePublisher
type MockQueuePublisher struct {
	mock.Mock
}

func (m *MockQueuePublisher) Publish(ctx context.Context, topic string, msg ports.SettlementMessage) error {
	args := m.Called(ctx, topic, msg)
	return args.Error(0)
}

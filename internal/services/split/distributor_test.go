package split_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/splitpay/split-engine/internal/domain"
	"github.com/splitpay/split-engine/internal/services/split"
	"github.com/splitpay/split-engine/internal/testutil/fixtures"
	"github.com/splitpay/split-engine/internal/testutil/mocks"
)

type distributorMocks struct {
	ruleRepo  *mocks.MockRuleRepository
	txRepo    *mocks.MockTransactionRepository
	publisher *mocks.MockQueuePublisher
	logger    *mocks.MockLogger
}

func newDistributor(m *distributorMocks) *split.Distributor {
	return split.NewDistributor(&mocks.MockDBPort{}, m.ruleRepo, m.txRepo, m.publisher, m.logger, split.Config{
		SettlementTopic: "settlement.allocations",
		DefaultCurrency: "BRL",
		PublishTimeout:  time.Second,
	})
}

func newDistributorMocks() *distributorMocks {
	return &distributorMocks{
		ruleRepo:  new(mocks.MockRuleRepository),
		txRepo:    new(mocks.MockTransactionRepository),
		publisher: new(mocks.MockQueuePublisher),
		logger:    mocks.NewMockLogger(),
	}
}

func testRule() *domain.SplitRule {
	return fixtures.Rule("rule-1", "owner-1", "rcp-a", "rcp-b")
}

func TestDistribute(t *testing.T) {
	t.Run("persists transaction and publishes one message per allocation", func(t *testing.T) {
		m := newDistributorMocks()
		d := newDistributor(m)

		m.txRepo.On("GetBySaleID", mock.Anything, nil, "sale-1").Return(nil, domain.ErrTransactionNotFound).Once()
		m.ruleRepo.On("GetByID", mock.Anything, nil, "rule-1").Return(testRule(), nil)

		var persisted *domain.SplitTransaction
		m.txRepo.On("CreateWithAllocations", mock.Anything, mock.Anything, mock.AnythingOfType("*domain.SplitTransaction")).
			Run(func(args mock.Arguments) {
				persisted = args.Get(2).(*domain.SplitTransaction)
			}).Return(nil)
		m.publisher.On("Publish", mock.Anything, "settlement.allocations", mock.AnythingOfType("ports.SettlementMessage")).Return(nil).Twice()

		got, err := d.Distribute(context.Background(), split.DistributeRequest{
			OwnerID:    "owner-1",
			SaleID:     "sale-1",
			RuleID:     "rule-1",
			TotalValue: 10000,
		})
		require.NoError(t, err)
		require.NotNil(t, persisted)
		assert.Equal(t, persisted.ID, got.ID)
		assert.Equal(t, domain.TransactionStatusPending, got.Status)
		assert.Equal(t, "BRL", got.Currency)
		assert.True(t, got.IsReconciled())
		require.Len(t, got.Allocations, 2)
		for _, alloc := range got.Allocations {
			assert.Equal(t, domain.AllocationStatusPending, alloc.Status)
		}
		m.publisher.AssertExpectations(t)
	})

	t.Run("returns the existing transaction for a repeated sale id", func(t *testing.T) {
		m := newDistributorMocks()
		d := newDistributor(m)

		existing := &domain.SplitTransaction{ID: "tx-1", SaleID: "sale-1", OwnerID: "owner-1", Currency: "BRL"}
		m.txRepo.On("GetBySaleID", mock.Anything, nil, "sale-1").Return(existing, nil)

		got, err := d.Distribute(context.Background(), split.DistributeRequest{
			OwnerID: "owner-1", SaleID: "sale-1", RuleID: "rule-1", TotalValue: 10000,
		})
		require.NoError(t, err)
		assert.Equal(t, "tx-1", got.ID)
		m.ruleRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything, mock.Anything)
		m.txRepo.AssertNotCalled(t, "CreateWithAllocations", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("recovers from a lost insert race on sale id", func(t *testing.T) {
		m := newDistributorMocks()
		d := newDistributor(m)

		winner := &domain.SplitTransaction{ID: "tx-winner", SaleID: "sale-1", OwnerID: "owner-1"}
		m.txRepo.On("GetBySaleID", mock.Anything, nil, "sale-1").Return(nil, domain.ErrTransactionNotFound).Once()
		m.ruleRepo.On("GetByID", mock.Anything, nil, "rule-1").Return(testRule(), nil)
		m.txRepo.On("CreateWithAllocations", mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrDuplicateSale)
		m.txRepo.On("GetBySaleID", mock.Anything, nil, "sale-1").Return(winner, nil).Once()

		got, err := d.Distribute(context.Background(), split.DistributeRequest{
			OwnerID: "owner-1", SaleID: "sale-1", RuleID: "rule-1", TotalValue: 10000,
		})
		require.NoError(t, err)
		assert.Equal(t, "tx-winner", got.ID)
		m.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("publish failure does not fail the distribution", func(t *testing.T) {
		m := newDistributorMocks()
		d := newDistributor(m)

		m.txRepo.On("GetBySaleID", mock.Anything, nil, "sale-1").Return(nil, domain.ErrTransactionNotFound)
		m.ruleRepo.On("GetByID", mock.Anything, nil, "rule-1").Return(testRule(), nil)
		m.txRepo.On("CreateWithAllocations", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		m.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrPublishFailed)

		got, err := d.Distribute(context.Background(), split.DistributeRequest{
			OwnerID: "owner-1", SaleID: "sale-1", RuleID: "rule-1", TotalValue: 10000,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusPending, got.Status)
		assert.NotEmpty(t, m.logger.WarnCalls)
	})

	t.Run("commission-only rule completes immediately with no allocations", func(t *testing.T) {
		m := newDistributorMocks()
		d := newDistributor(m)

		rule := &domain.SplitRule{ID: "rule-1", OwnerID: "owner-1", CommissionPercentage: pct("100")}
		m.txRepo.On("GetBySaleID", mock.Anything, nil, "sale-1").Return(nil, domain.ErrTransactionNotFound)
		m.ruleRepo.On("GetByID", mock.Anything, nil, "rule-1").Return(rule, nil)
		m.txRepo.On("CreateWithAllocations", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		got, err := d.Distribute(context.Background(), split.DistributeRequest{
			OwnerID: "owner-1", SaleID: "sale-1", RuleID: "rule-1", TotalValue: 12345,
		})
		require.NoError(t, err)
		assert.Empty(t, got.Allocations)
		assert.Equal(t, int64(12345), got.CommissionAmount)
		assert.Equal(t, domain.TransactionStatusCompleted, got.Status)
		m.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects negative totals before touching the store", func(t *testing.T) {
		m := newDistributorMocks()
		d := newDistributor(m)

		_, err := d.Distribute(context.Background(), split.DistributeRequest{
			OwnerID: "owner-1", SaleID: "sale-1", RuleID: "rule-1", TotalValue: -5,
		})
		require.Error(t, err)
		assert.True(t, domain.IsValidationError(err))
		m.txRepo.AssertNotCalled(t, "GetBySaleID", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("hides rules of other owners", func(t *testing.T) {
		m := newDistributorMocks()
		d := newDistributor(m)

		m.txRepo.On("GetBySaleID", mock.Anything, nil, "sale-1").Return(nil, domain.ErrTransactionNotFound)
		m.ruleRepo.On("GetByID", mock.Anything, nil, "rule-1").Return(testRule(), nil)

		_, err := d.Distribute(context.Background(), split.DistributeRequest{
			OwnerID: "owner-2", SaleID: "sale-1", RuleID: "rule-1", TotalValue: 100,
		})
		require.Error(t, err)
		assert.True(t, domain.IsNotFoundError(err))
	})
}

func TestReportStatus(t *testing.T) {
	pendingAlloc := func() *domain.AllocationRecord {
		return &domain.AllocationRecord{
			ID:            "alloc-1",
			TransactionID: "tx-1",
			RecipientID:   "rcp-a",
			Status:        domain.AllocationStatusPending,
			Amount:        100,
		}
	}

	t.Run("applies processing without touching the transaction status", func(t *testing.T) {
		m := newDistributorMocks()
		d := newDistributor(m)

		m.txRepo.On("GetAllocation", mock.Anything, nil, "alloc-1").Return(pendingAlloc(), nil)
		m.txRepo.On("UpdateAllocationStatus", mock.Anything, mock.Anything, "alloc-1",
			domain.AllocationStatusProcessing, "", (*time.Time)(nil)).Return(nil)

		err := d.ReportStatus(context.Background(), "alloc-1", domain.AllocationStatusProcessing, "")
		require.NoError(t, err)
		m.txRepo.AssertNotCalled(t, "UpdateTransactionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("completing the last allocation completes the transaction", func(t *testing.T) {
		m := newDistributorMocks()
		d := newDistributor(m)

		m.txRepo.On("GetAllocation", mock.Anything, nil, "alloc-1").Return(pendingAlloc(), nil)
		m.txRepo.On("UpdateAllocationStatus", mock.Anything, mock.Anything, "alloc-1",
			domain.AllocationStatusCompleted, "", mock.AnythingOfType("*time.Time")).Return(nil)
		m.txRepo.On("CountUnterminatedAllocations", mock.Anything, mock.Anything, "tx-1").Return(int64(0), nil)
		m.txRepo.On("CountFailedAllocations", mock.Anything, mock.Anything, "tx-1").Return(int64(0), nil)
		m.txRepo.On("UpdateTransactionStatus", mock.Anything, mock.Anything, "tx-1",
			domain.TransactionStatusCompleted).Return(nil)

		err := d.ReportStatus(context.Background(), "alloc-1", domain.AllocationStatusCompleted, "")
		require.NoError(t, err)
		m.txRepo.AssertExpectations(t)
	})

	t.Run("a failed allocation fails the transaction once all terminate", func(t *testing.T) {
		m := newDistributorMocks()
		d := newDistributor(m)

		m.txRepo.On("GetAllocation", mock.Anything, nil, "alloc-1").Return(pendingAlloc(), nil)
		m.txRepo.On("UpdateAllocationStatus", mock.Anything, mock.Anything, "alloc-1",
			domain.AllocationStatusFailed, "insufficient funds", mock.AnythingOfType("*time.Time")).Return(nil)
		m.txRepo.On("CountUnterminatedAllocations", mock.Anything, mock.Anything, "tx-1").Return(int64(0), nil)
		m.txRepo.On("CountFailedAllocations", mock.Anything, mock.Anything, "tx-1").Return(int64(1), nil)
		m.txRepo.On("UpdateTransactionStatus", mock.Anything, mock.Anything, "tx-1",
			domain.TransactionStatusFailed).Return(nil)

		err := d.ReportStatus(context.Background(), "alloc-1", domain.AllocationStatusFailed, "insufficient funds")
		require.NoError(t, err)
		m.txRepo.AssertExpectations(t)
	})

	t.Run("leaves the transaction pending while siblings are unsettled", func(t *testing.T) {
		m := newDistributorMocks()
		d := newDistributor(m)

		m.txRepo.On("GetAllocation", mock.Anything, nil, "alloc-1").Return(pendingAlloc(), nil)
		m.txRepo.On("UpdateAllocationStatus", mock.Anything, mock.Anything, "alloc-1",
			domain.AllocationStatusCompleted, "", mock.AnythingOfType("*time.Time")).Return(nil)
		m.txRepo.On("CountUnterminatedAllocations", mock.Anything, mock.Anything, "tx-1").Return(int64(2), nil)

		err := d.ReportStatus(context.Background(), "alloc-1", domain.AllocationStatusCompleted, "")
		require.NoError(t, err)
		m.txRepo.AssertNotCalled(t, "UpdateTransactionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects updates to a terminal allocation", func(t *testing.T) {
		m := newDistributorMocks()
		d := newDistributor(m)

		done := pendingAlloc()
		done.Status = domain.AllocationStatusCompleted
		m.txRepo.On("GetAllocation", mock.Anything, nil, "alloc-1").Return(done, nil)

		err := d.ReportStatus(context.Background(), "alloc-1", domain.AllocationStatusFailed, "too late")
		require.Error(t, err)
		assert.True(t, domain.IsConflictError(err))
		assert.Equal(t, domain.ErrorCodeConflictTerminalStatus, domain.GetErrorCode(err))
	})

	t.Run("rejects a pending target status", func(t *testing.T) {
		m := newDistributorMocks()
		d := newDistributor(m)

		err := d.ReportStatus(context.Background(), "alloc-1", domain.AllocationStatusPending, "")
		require.Error(t, err)
		assert.Equal(t, domain.ErrorCodeConflictBadTransition, domain.GetErrorCode(err))
	})

	t.Run("unknown allocation surfaces not found", func(t *testing.T) {
		m := newDistributorMocks()
		d := newDistributor(m)

		m.txRepo.On("GetAllocation", mock.Anything, nil, "ghost").Return(nil, domain.ErrAllocationNotFound)

		err := d.ReportStatus(context.Background(), "ghost", domain.AllocationStatusCompleted, "")
		require.Error(t, err)
		assert.True(t, domain.IsNotFoundError(err))
	})
}

func TestGetBySale(t *testing.T) {
	m := newDistributorMocks()
	d := newDistributor(m)

	m.txRepo.On("GetBySaleID", mock.Anything, nil, "sale-1").Return(&domain.SplitTransaction{
		ID: "tx-1", SaleID: "sale-1", OwnerID: "owner-2",
	}, nil)

	_, err := d.GetBySale(context.Background(), "owner-1", "sale-1")
	require.Error(t, err)
	assert.True(t, domain.IsNotFoundError(err))
}

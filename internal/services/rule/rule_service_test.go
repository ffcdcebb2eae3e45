package rule_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/splitpay/split-engine/internal/domain"
	"github.com/splitpay/split-engine/internal/services/rule"
	"github.com/splitpay/split-engine/internal/testutil/fixtures"
	"github.com/splitpay/split-engine/internal/testutil/mocks"
)

type ruleMocks struct {
	repo          *mocks.MockRuleRepository
	recipientRepo *mocks.MockRecipientRepository
	txRepo        *mocks.MockTransactionRepository
}

func newService(m *ruleMocks) *rule.Service {
	return rule.NewService(&mocks.MockDBPort{}, m.repo, m.recipientRepo, m.txRepo, mocks.NewMockLogger())
}

func newRuleMocks() *ruleMocks {
	return &ruleMocks{
		repo:          new(mocks.MockRuleRepository),
		recipientRepo: new(mocks.MockRecipientRepository),
		txRepo:        new(mocks.MockTransactionRepository),
	}
}

func activeRecipient(id, ownerID string) *domain.Recipient {
	return fixtures.Recipient(id, ownerID)
}

func pct(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestCreate(t *testing.T) {
	t.Run("persists a valid rule", func(t *testing.T) {
		m := newRuleMocks()
		svc := newService(m)

		m.recipientRepo.On("GetByID", mock.Anything, nil, "rcp-a").Return(activeRecipient("rcp-a", "owner-1"), nil)
		m.recipientRepo.On("GetByID", mock.Anything, nil, "rcp-b").Return(activeRecipient("rcp-b", "owner-1"), nil)
		m.repo.On("Create", mock.Anything, nil, mock.AnythingOfType("*domain.SplitRule")).Return(nil)

		got, err := svc.Create(context.Background(), rule.CreateRequest{
			OwnerID:              "owner-1",
			Name:                 "marketplace default",
			CommissionPercentage: pct("10"),
			Lines: []rule.LineInput{
				{RecipientID: "rcp-a", Kind: domain.AllocationKindPercentage, Value: pct("20")},
				{RecipientID: "rcp-b", Kind: domain.AllocationKindFixed, Value: pct("500")},
			},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, got.ID)
		assert.Len(t, got.Lines, 2)
		m.repo.AssertExpectations(t)
	})

	t.Run("rejects commission over one hundred", func(t *testing.T) {
		svc := newService(newRuleMocks())

		_, err := svc.Create(context.Background(), rule.CreateRequest{
			OwnerID:              "owner-1",
			Name:                 "bad",
			CommissionPercentage: pct("100.01"),
		})
		require.Error(t, err)
		assert.Equal(t, domain.ErrorCodeValidationPercentageRange, domain.GetErrorCode(err))
	})

	t.Run("rejects unknown recipient reference", func(t *testing.T) {
		m := newRuleMocks()
		svc := newService(m)

		m.recipientRepo.On("GetByID", mock.Anything, nil, "ghost").Return(nil, domain.ErrRecipientNotFound)

		_, err := svc.Create(context.Background(), rule.CreateRequest{
			OwnerID: "owner-1",
			Name:    "dangling",
			Lines: []rule.LineInput{
				{RecipientID: "ghost", Kind: domain.AllocationKindPercentage, Value: pct("10")},
			},
		})
		require.Error(t, err)
		assert.True(t, domain.IsReferenceError(err))
		assert.Equal(t, domain.ErrorCodeReferenceNotFound, domain.GetErrorCode(err))
	})

	t.Run("rejects another owner's recipient as unknown", func(t *testing.T) {
		m := newRuleMocks()
		svc := newService(m)

		m.recipientRepo.On("GetByID", mock.Anything, nil, "rcp-x").Return(activeRecipient("rcp-x", "owner-2"), nil)

		_, err := svc.Create(context.Background(), rule.CreateRequest{
			OwnerID: "owner-1",
			Name:    "cross-owner",
			Lines: []rule.LineInput{
				{RecipientID: "rcp-x", Kind: domain.AllocationKindPercentage, Value: pct("10")},
			},
		})
		require.Error(t, err)
		assert.Equal(t, domain.ErrorCodeReferenceNotFound, domain.GetErrorCode(err))
	})

	t.Run("rejects inactive recipient reference", func(t *testing.T) {
		m := newRuleMocks()
		svc := newService(m)

		inactive := activeRecipient("rcp-a", "owner-1")
		inactive.Active = false
		m.recipientRepo.On("GetByID", mock.Anything, nil, "rcp-a").Return(inactive, nil)

		_, err := svc.Create(context.Background(), rule.CreateRequest{
			OwnerID: "owner-1",
			Name:    "inactive",
			Lines: []rule.LineInput{
				{RecipientID: "rcp-a", Kind: domain.AllocationKindPercentage, Value: pct("10")},
			},
		})
		require.Error(t, err)
		assert.Equal(t, domain.ErrorCodeReferenceInactive, domain.GetErrorCode(err))
	})

	t.Run("rejects nonpositive fixed amount", func(t *testing.T) {
		m := newRuleMocks()
		svc := newService(m)

		m.recipientRepo.On("GetByID", mock.Anything, nil, "rcp-a").Return(activeRecipient("rcp-a", "owner-1"), nil)

		_, err := svc.Create(context.Background(), rule.CreateRequest{
			OwnerID: "owner-1",
			Name:    "zero fixed",
			Lines: []rule.LineInput{
				{RecipientID: "rcp-a", Kind: domain.AllocationKindFixed, Value: decimal.Zero},
			},
		})
		require.Error(t, err)
		assert.Equal(t, domain.ErrorCodeValidationFixedAmount, domain.GetErrorCode(err))
	})

	t.Run("rejects fractional fixed amount", func(t *testing.T) {
		m := newRuleMocks()
		svc := newService(m)

		m.recipientRepo.On("GetByID", mock.Anything, nil, "rcp-a").Return(activeRecipient("rcp-a", "owner-1"), nil)

		_, err := svc.Create(context.Background(), rule.CreateRequest{
			OwnerID: "owner-1",
			Name:    "fractional fixed",
			Lines: []rule.LineInput{
				{RecipientID: "rcp-a", Kind: domain.AllocationKindFixed, Value: pct("100.5")},
			},
		})
		require.Error(t, err)
		assert.Equal(t, domain.ErrorCodeValidationFixedAmount, domain.GetErrorCode(err))
	})

	t.Run("rejects budget over one hundred with computed sum", func(t *testing.T) {
		m := newRuleMocks()
		svc := newService(m)

		m.recipientRepo.On("GetByID", mock.Anything, nil, mock.Anything).Return(activeRecipient("rcp-a", "owner-1"), nil)

		_, err := svc.Create(context.Background(), rule.CreateRequest{
			OwnerID:              "owner-1",
			Name:                 "over budget",
			CommissionPercentage: pct("30"),
			Lines: []rule.LineInput{
				{RecipientID: "rcp-a", Kind: domain.AllocationKindPercentage, Value: pct("40")},
				{RecipientID: "rcp-a", Kind: domain.AllocationKindPercentage, Value: pct("35")},
			},
		})
		require.Error(t, err)
		assert.Equal(t, domain.ErrorCodeValidationBudgetExceeded, domain.GetErrorCode(err))
		assert.Contains(t, err.Error(), "105")
	})

	t.Run("fixed lines do not count against the percentage budget", func(t *testing.T) {
		m := newRuleMocks()
		svc := newService(m)

		m.recipientRepo.On("GetByID", mock.Anything, nil, mock.Anything).Return(activeRecipient("rcp-a", "owner-1"), nil)
		m.repo.On("Create", mock.Anything, nil, mock.AnythingOfType("*domain.SplitRule")).Return(nil)

		_, err := svc.Create(context.Background(), rule.CreateRequest{
			OwnerID:              "owner-1",
			Name:                 "fixed heavy",
			CommissionPercentage: pct("50"),
			Lines: []rule.LineInput{
				{RecipientID: "rcp-a", Kind: domain.AllocationKindPercentage, Value: pct("50")},
				{RecipientID: "rcp-a", Kind: domain.AllocationKindFixed, Value: pct("999999")},
			},
		})
		require.NoError(t, err)
	})
}

func TestUpdate(t *testing.T) {
	t.Run("replaces the line list wholesale", func(t *testing.T) {
		m := newRuleMocks()
		svc := newService(m)

		stored := &domain.SplitRule{
			ID:                   "rule-1",
			OwnerID:              "owner-1",
			Name:                 "old",
			CommissionPercentage: pct("10"),
			Lines: []domain.AllocationLine{
				{RecipientID: "rcp-a", Kind: domain.AllocationKindPercentage, Value: pct("20")},
			},
		}
		m.repo.On("GetByID", mock.Anything, nil, "rule-1").Return(stored, nil)
		m.recipientRepo.On("GetByID", mock.Anything, nil, "rcp-b").Return(activeRecipient("rcp-b", "owner-1"), nil)
		m.repo.On("Update", mock.Anything, nil, mock.AnythingOfType("*domain.SplitRule")).Return(nil)

		got, err := svc.Update(context.Background(), "owner-1", "rule-1", rule.UpdateRequest{
			Lines: []rule.LineInput{
				{RecipientID: "rcp-b", Kind: domain.AllocationKindPercentage, Value: pct("30")},
			},
		})
		require.NoError(t, err)
		require.Len(t, got.Lines, 1)
		assert.Equal(t, "rcp-b", got.Lines[0].RecipientID)
	})

	t.Run("re-validates the merged result", func(t *testing.T) {
		m := newRuleMocks()
		svc := newService(m)

		stored := &domain.SplitRule{
			ID:                   "rule-1",
			OwnerID:              "owner-1",
			Name:                 "tight",
			CommissionPercentage: pct("10"),
			Lines: []domain.AllocationLine{
				{RecipientID: "rcp-a", Kind: domain.AllocationKindPercentage, Value: pct("80")},
			},
		}
		m.repo.On("GetByID", mock.Anything, nil, "rule-1").Return(stored, nil)
		m.recipientRepo.On("GetByID", mock.Anything, nil, "rcp-a").Return(activeRecipient("rcp-a", "owner-1"), nil)

		newCommission := pct("25")
		_, err := svc.Update(context.Background(), "owner-1", "rule-1", rule.UpdateRequest{
			CommissionPercentage: &newCommission,
		})
		require.Error(t, err)
		assert.Equal(t, domain.ErrorCodeValidationBudgetExceeded, domain.GetErrorCode(err))
	})
}

func TestDelete(t *testing.T) {
	stored := &domain.SplitRule{ID: "rule-1", OwnerID: "owner-1", Name: "r"}

	t.Run("refuses delete while allocations are in flight", func(t *testing.T) {
		m := newRuleMocks()
		svc := newService(m)

		m.repo.On("GetByID", mock.Anything, nil, "rule-1").Return(stored, nil)
		m.txRepo.On("HasUnterminatedForRule", mock.Anything, nil, "rule-1").Return(true, nil)

		err := svc.Delete(context.Background(), "owner-1", "rule-1")
		require.Error(t, err)
		assert.Equal(t, domain.ErrorCodeConflictRuleInFlight, domain.GetErrorCode(err))
		m.repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("deletes once every allocation is terminal", func(t *testing.T) {
		m := newRuleMocks()
		svc := newService(m)

		m.repo.On("GetByID", mock.Anything, nil, "rule-1").Return(stored, nil)
		m.txRepo.On("HasUnterminatedForRule", mock.Anything, nil, "rule-1").Return(false, nil)
		m.repo.On("Delete", mock.Anything, nil, "rule-1").Return(nil)

		err := svc.Delete(context.Background(), "owner-1", "rule-1")
		require.NoError(t, err)
		m.repo.AssertExpectations(t)
	})
}

func TestMutationsRunInsideTransaction(t *testing.T) {
	// Every write goes through the transaction manager, so a failed begin
	// must surface before any repository statement runs.
	txErr := errors.New("begin tx: connection reset")
	stored := &domain.SplitRule{ID: "rule-1", OwnerID: "owner-1", Name: "r"}

	newFailingService := func(m *ruleMocks) *rule.Service {
		return rule.NewService(&mocks.MockDBPort{TxErr: txErr}, m.repo, m.recipientRepo, m.txRepo, mocks.NewMockLogger())
	}

	t.Run("create", func(t *testing.T) {
		m := newRuleMocks()
		svc := newFailingService(m)

		m.recipientRepo.On("GetByID", mock.Anything, nil, "rcp-a").Return(activeRecipient("rcp-a", "owner-1"), nil)

		_, err := svc.Create(context.Background(), rule.CreateRequest{
			OwnerID:              "owner-1",
			Name:                 "marketplace default",
			CommissionPercentage: pct("10"),
			Lines: []rule.LineInput{
				{RecipientID: "rcp-a", Kind: domain.AllocationKindPercentage, Value: pct("20")},
			},
		})
		require.ErrorIs(t, err, txErr)
		m.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("update", func(t *testing.T) {
		m := newRuleMocks()
		svc := newFailingService(m)

		m.repo.On("GetByID", mock.Anything, nil, "rule-1").Return(stored, nil)

		name := "renamed"
		_, err := svc.Update(context.Background(), "owner-1", "rule-1", rule.UpdateRequest{Name: &name})
		require.ErrorIs(t, err, txErr)
		m.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("delete", func(t *testing.T) {
		m := newRuleMocks()
		svc := newFailingService(m)

		m.repo.On("GetByID", mock.Anything, nil, "rule-1").Return(stored, nil)
		m.txRepo.On("HasUnterminatedForRule", mock.Anything, nil, "rule-1").Return(false, nil)

		err := svc.Delete(context.Background(), "owner-1", "rule-1")
		require.ErrorIs(t, err, txErr)
		m.repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
	})
}

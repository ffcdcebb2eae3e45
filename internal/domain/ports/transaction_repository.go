package ports

import (
	"context"
	"time"

	"github.com/splitpay/split-engine/internal/domain"
)

// PendingAllocation is the projection the reconciliation sweep works on:
// an allocation record still pending, joined to its transaction.
type PendingAllocation struct {
	AllocationID  string
	TransactionID string
	RecipientID   string
	Currency      string
	Amount        int64
}

// TransactionRepository defines the interface for split transaction and
// allocation record persistence
type TransactionRepository interface {
	// CreateWithAllocations persists a split transaction and all of its
	// allocation records. Callers run it inside WithTransaction so the
	// insert is atomic.
	CreateWithAllocations(ctx context.Context, tx DBTX, txn *domain.SplitTransaction) error

	// GetByID retrieves a transaction with its allocation records
	GetByID(ctx context.Context, db DBTX, id string) (*domain.SplitTransaction, error)

	// GetBySaleID retrieves a transaction by its sale reference. This is the
	// idempotency lookup: sale_id carries a uniqueness constraint.
	GetBySaleID(ctx context.Context, db DBTX, saleID string) (*domain.SplitTransaction, error)

	// GetAllocation retrieves a single allocation record
	GetAllocation(ctx context.Context, db DBTX, allocationID string) (*domain.AllocationRecord, error)

	// UpdateAllocationStatus advances an allocation record's lifecycle state
	UpdateAllocationStatus(ctx context.Context, tx DBTX, allocationID string, status domain.AllocationStatus, errorDetail string, processedAt *time.Time) error

	// UpdateTransactionStatus updates the derived transaction status
	UpdateTransactionStatus(ctx context.Context, tx DBTX, id string, status domain.TransactionStatus) error

	// CountUnterminatedAllocations counts allocations of this transaction
	// that have not reached completed or failed
	CountUnterminatedAllocations(ctx context.Context, db DBTX, transactionID string) (int64, error)

	// CountFailedAllocations counts allocations of this transaction in failed status
	CountFailedAllocations(ctx context.Context, db DBTX, transactionID string) (int64, error)

	// HasUnterminatedForRule reports whether any transaction produced from
	// ruleID still has allocations outside a terminal status. Used to block
	// rule deletes.
	HasUnterminatedForRule(ctx context.Context, db DBTX, ruleID string) (bool, error)

	// ListPendingOlderThan lists allocation records still pending after the
	// given age, for the reconciliation sweep to re-publish
	ListPendingOlderThan(ctx context.Context, db DBTX, age time.Duration, limit int32) ([]*PendingAllocation, error)

	// CountAllocationsByStatus returns allocation counts grouped by status
	CountAllocationsByStatus(ctx context.Context, db DBTX) (map[domain.AllocationStatus]int64, error)
}

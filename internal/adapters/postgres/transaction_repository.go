package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/splitpay/split-engine/internal/domain"
	"github.com/splitpay/split-engine/internal/domain/ports"
	"github.com/splitpay/split-engine/pkg/timeutil"
)

const pgUniqueViolation = "23505"

// TransactionRepository implements ports.TransactionRepository over pgx
type TransactionRepository struct {
	db ports.DBPort
}

// NewTransactionRepository creates a new split transaction repository
func NewTransactionRepository(db ports.DBPort) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

// CreateWithAllocations persists a split transaction and all of its
// allocation records. The unique constraint on sale_id backs distribute()
// idempotency; a violation surfaces as domain.ErrDuplicateSale so the
// caller can re-read the existing transaction.
func (r *TransactionRepository) CreateWithAllocations(ctx context.Context, tx ports.DBTX, txn *domain.SplitTransaction) error {
	q := r.executor(tx)

	commission, err := numericFromDecimal(txn.CommissionPercentage)
	if err != nil {
		return fmt.Errorf("create split transaction: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO split_transactions
			(id, sale_id, rule_id, owner_id, currency, status, commission_percentage, total_value, commission_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())`,
		txn.ID, txn.SaleID, txn.RuleID, txn.OwnerID, txn.Currency,
		string(txn.Status), commission, txn.TotalValue, txn.CommissionAmount)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrDuplicateSale.WithDetail("sale_id", txn.SaleID)
		}
		return fmt.Errorf("create split transaction: %w", err)
	}

	for i, alloc := range txn.Allocations {
		pct, err := numericFromDecimal(alloc.PercentageApplied)
		if err != nil {
			return fmt.Errorf("create allocation %d: %w", i, err)
		}
		_, err = q.Exec(ctx, `
			INSERT INTO allocation_records
				(id, transaction_id, recipient_id, kind, status, percentage_applied, amount, underfunded, position, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())`,
			alloc.ID, txn.ID, alloc.RecipientID, string(alloc.Kind),
			string(alloc.Status), pct, alloc.Amount, alloc.Underfunded, i)
		if err != nil {
			return fmt.Errorf("create allocation %d: %w", i, err)
		}
	}
	return nil
}

const transactionColumns = `id::text, sale_id, rule_id::text, owner_id, currency, status, commission_percentage, total_value, commission_amount, created_at, updated_at`

// GetByID retrieves a transaction with its allocation records
func (r *TransactionRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.SplitTransaction, error) {
	q := r.executor(db)

	row := q.QueryRow(ctx, `SELECT `+transactionColumns+` FROM split_transactions WHERE id = $1`, id)
	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound.WithDetail("transaction_id", id)
		}
		return nil, fmt.Errorf("get split transaction: %w", err)
	}

	if err := r.loadAllocations(ctx, q, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// GetBySaleID retrieves a transaction by its sale reference
func (r *TransactionRepository) GetBySaleID(ctx context.Context, db ports.DBTX, saleID string) (*domain.SplitTransaction, error) {
	q := r.executor(db)

	row := q.QueryRow(ctx, `SELECT `+transactionColumns+` FROM split_transactions WHERE sale_id = $1`, saleID)
	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound.WithDetail("sale_id", saleID)
		}
		return nil, fmt.Errorf("get split transaction by sale: %w", err)
	}

	if err := r.loadAllocations(ctx, q, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

const allocationColumns = `id::text, transaction_id::text, recipient_id::text, kind, status, percentage_applied, amount, underfunded, error_detail, processed_at, created_at, updated_at`

// GetAllocation retrieves a single allocation record
func (r *TransactionRepository) GetAllocation(ctx context.Context, db ports.DBTX, allocationID string) (*domain.AllocationRecord, error) {
	row := r.executor(db).QueryRow(ctx,
		`SELECT `+allocationColumns+` FROM allocation_records WHERE id = $1`, allocationID)

	alloc, err := scanAllocation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAllocationNotFound.WithDetail("allocation_id", allocationID)
		}
		return nil, fmt.Errorf("get allocation: %w", err)
	}
	return alloc, nil
}

// UpdateAllocationStatus advances an allocation record's lifecycle state.
// Amount and percentage are immutable; only status, error detail and
// processed-at change here.
func (r *TransactionRepository) UpdateAllocationStatus(ctx context.Context, tx ports.DBTX, allocationID string, status domain.AllocationStatus, errorDetail string, processedAt *time.Time) error {
	var processed pgtype.Timestamptz
	if processedAt != nil {
		processed = pgtype.Timestamptz{Time: *processedAt, Valid: true}
	}

	tag, err := r.executor(tx).Exec(ctx, `
		UPDATE allocation_records
		SET status = $2, error_detail = $3, processed_at = $4, updated_at = now()
		WHERE id = $1`,
		allocationID, string(status), nullText(errorDetail), processed)
	if err != nil {
		return fmt.Errorf("update allocation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAllocationNotFound.WithDetail("allocation_id", allocationID)
	}
	return nil
}

// UpdateTransactionStatus updates the derived transaction status
func (r *TransactionRepository) UpdateTransactionStatus(ctx context.Context, tx ports.DBTX, id string, status domain.TransactionStatus) error {
	tag, err := r.executor(tx).Exec(ctx, `
		UPDATE split_transactions
		SET status = $2, updated_at = now()
		WHERE id = $1`,
		id, string(status))
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound.WithDetail("transaction_id", id)
	}
	return nil
}

// CountUnterminatedAllocations counts allocations not yet completed or failed
func (r *TransactionRepository) CountUnterminatedAllocations(ctx context.Context, db ports.DBTX, transactionID string) (int64, error) {
	var count int64
	err := r.executor(db).QueryRow(ctx, `
		SELECT COUNT(*) FROM allocation_records
		WHERE transaction_id = $1 AND status NOT IN ('completed', 'failed')`,
		transactionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unterminated allocations: %w", err)
	}
	return count, nil
}

// CountFailedAllocations counts allocations in failed status
func (r *TransactionRepository) CountFailedAllocations(ctx context.Context, db ports.DBTX, transactionID string) (int64, error) {
	var count int64
	err := r.executor(db).QueryRow(ctx, `
		SELECT COUNT(*) FROM allocation_records
		WHERE transaction_id = $1 AND status = 'failed'`,
		transactionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count failed allocations: %w", err)
	}
	return count, nil
}

// HasUnterminatedForRule reports whether any transaction produced from the
// rule still has unsettled allocations
func (r *TransactionRepository) HasUnterminatedForRule(ctx context.Context, db ports.DBTX, ruleID string) (bool, error) {
	var exists bool
	err := r.executor(db).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM allocation_records a
			JOIN split_transactions t ON t.id = a.transaction_id
			WHERE t.rule_id = $1 AND a.status NOT IN ('completed', 'failed')
		)`, ruleID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check in-flight transactions for rule: %w", err)
	}
	return exists, nil
}

// ListPendingOlderThan lists allocation records still pending after the given age
func (r *TransactionRepository) ListPendingOlderThan(ctx context.Context, db ports.DBTX, age time.Duration, limit int32) ([]*ports.PendingAllocation, error) {
	cutoff := timeutil.Now().Add(-age)

	rows, err := r.executor(db).Query(ctx, `
		SELECT a.id::text, a.transaction_id::text, a.recipient_id::text, t.currency, a.amount
		FROM allocation_records a
		JOIN split_transactions t ON t.id = a.transaction_id
		WHERE a.status = 'pending' AND a.created_at < $1
		ORDER BY a.created_at
		LIMIT $2`,
		cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending allocations: %w", err)
	}
	defer rows.Close()

	var pending []*ports.PendingAllocation
	for rows.Next() {
		var p ports.PendingAllocation
		if err := rows.Scan(&p.AllocationID, &p.TransactionID, &p.RecipientID, &p.Currency, &p.Amount); err != nil {
			return nil, fmt.Errorf("scan pending allocation: %w", err)
		}
		pending = append(pending, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending allocations: %w", err)
	}
	return pending, nil
}

// CountAllocationsByStatus returns allocation counts grouped by status
func (r *TransactionRepository) CountAllocationsByStatus(ctx context.Context, db ports.DBTX) (map[domain.AllocationStatus]int64, error) {
	rows, err := r.executor(db).Query(ctx,
		`SELECT status, COUNT(*) FROM allocation_records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count allocations by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.AllocationStatus]int64)
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[domain.AllocationStatus(status)] = count
	}
	return counts, rows.Err()
}

func (r *TransactionRepository) loadAllocations(ctx context.Context, q ports.DBTX, txn *domain.SplitTransaction) error {
	rows, err := q.Query(ctx,
		`SELECT `+allocationColumns+` FROM allocation_records WHERE transaction_id = $1 ORDER BY position`,
		txn.ID)
	if err != nil {
		return fmt.Errorf("load allocations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		alloc, err := scanAllocation(rows)
		if err != nil {
			return fmt.Errorf("scan allocation: %w", err)
		}
		txn.Allocations = append(txn.Allocations, *alloc)
	}
	return rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.SplitTransaction, error) {
	var (
		txn        domain.SplitTransaction
		status     string
		commission pgtype.Numeric
	)
	err := row.Scan(
		&txn.ID,
		&txn.SaleID,
		&txn.RuleID,
		&txn.OwnerID,
		&txn.Currency,
		&status,
		&commission,
		&txn.TotalValue,
		&txn.CommissionAmount,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	dec, err := decimalFromNumeric(commission)
	if err != nil {
		return nil, fmt.Errorf("convert commission percentage: %w", err)
	}
	txn.Status = domain.TransactionStatus(status)
	txn.CommissionPercentage = dec
	return &txn, nil
}

func scanAllocation(row pgx.Row) (*domain.AllocationRecord, error) {
	var (
		alloc       domain.AllocationRecord
		kind        string
		status      string
		pct         pgtype.Numeric
		errorDetail pgtype.Text
		processedAt pgtype.Timestamptz
	)
	err := row.Scan(
		&alloc.ID,
		&alloc.TransactionID,
		&alloc.RecipientID,
		&kind,
		&status,
		&pct,
		&alloc.Amount,
		&alloc.Underfunded,
		&errorDetail,
		&processedAt,
		&alloc.CreatedAt,
		&alloc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	dec, err := decimalFromNumeric(pct)
	if err != nil {
		return nil, fmt.Errorf("convert percentage applied: %w", err)
	}
	alloc.Kind = domain.AllocationKind(kind)
	alloc.Status = domain.AllocationStatus(status)
	alloc.PercentageApplied = dec
	alloc.ErrorDetail = errorDetail.String
	if processedAt.Valid {
		t := processedAt.Time
		alloc.ProcessedAt = &t
	}
	return &alloc, nil
}

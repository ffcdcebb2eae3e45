package split

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/splitpay/split-engine/internal/domain"
	"github.com/splitpay/split-engine/internal/domain/ports"
	"github.com/splitpay/split-engine/pkg/observability"
	"github.com/splitpay/split-engine/pkg/timeutil"
)

// Config holds distributor settings
type Config struct {
	// SettlementTopic is the queue settlement messages are published to
	SettlementTopic string

	// DefaultCurrency is applied when the caller does not send one
	DefaultCurrency string

	// PublishTimeout bounds each settlement publish; on timeout the
	// allocation stays pending for the reconciliation sweep.
	PublishTimeout time.Duration
}

// Distributor materializes split transactions from rules and hands each
// allocation to the settlement queue
type Distributor struct {
	db        ports.DBPort
	ruleRepo  ports.RuleRepository
	txRepo    ports.TransactionRepository
	publisher ports.QueuePublisher
	logger    ports.Logger
	cfg       Config
}

// NewDistributor creates a new transaction distributor
func NewDistributor(
	db ports.DBPort,
	ruleRepo ports.RuleRepository,
	txRepo ports.TransactionRepository,
	publisher ports.QueuePublisher,
	logger ports.Logger,
	cfg Config,
) *Distributor {
	if cfg.SettlementTopic == "" {
		cfg.SettlementTopic = "settlement.allocations"
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "BRL"
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	return &Distributor{
		db:        db,
		ruleRepo:  ruleRepo,
		txRepo:    txRepo,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
	}
}

// DistributeRequest carries one sale-confirmation trigger
type DistributeRequest struct {
	OwnerID    string
	SaleID     string
	RuleID     string
	TotalValue int64
	Currency   string
}

// Distribute applies the rule to the sale amount and persists the result.
// It is idempotent on SaleID: retries return the already-persisted
// transaction instead of creating a second one. Settlement publishes happen
// after the commit and are non-fatal; a failed publish leaves the allocation
// pending for the reconciliation sweep.
func (d *Distributor) Distribute(ctx context.Context, req DistributeRequest) (*domain.SplitTransaction, error) {
	if req.SaleID == "" {
		return nil, domain.ErrValidationMissingField.WithDetail("field", "sale_id")
	}
	if req.RuleID == "" {
		return nil, domain.ErrValidationMissingField.WithDetail("field", "rule_id")
	}
	if req.TotalValue < 0 {
		return nil, domain.ErrAmountInvalid.WithDetail("total_value", req.TotalValue)
	}

	// Idempotency fast path
	if existing, err := d.txRepo.GetBySaleID(ctx, nil, req.SaleID); err == nil {
		d.logger.Info("returning existing transaction for sale",
			ports.String("sale_id", req.SaleID),
			ports.String("transaction_id", existing.ID))
		observability.RecordDistribution(existing.OwnerID, existing.Currency, "duplicate", 0)
		return existing, nil
	} else if !domain.IsNotFoundError(err) {
		return nil, err
	}

	rule, err := d.ruleRepo.GetByID(ctx, nil, req.RuleID)
	if err != nil {
		return nil, err
	}
	if req.OwnerID != "" && rule.OwnerID != req.OwnerID {
		return nil, domain.ErrRuleNotFound.WithDetail("rule_id", req.RuleID)
	}

	// Freeze the rule now; a concurrent rule update must not tear this
	// computation or retroactively change the persisted record.
	snapshot := rule.Snapshot()
	commission, drafts, err := Compute(snapshot, req.TotalValue)
	if err != nil {
		observability.RecordDistribution(rule.OwnerID, req.Currency, "rejected", 0)
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = d.cfg.DefaultCurrency
	}

	now := timeutil.Now()
	txn := &domain.SplitTransaction{
		ID:                   uuid.New().String(),
		SaleID:               req.SaleID,
		RuleID:               rule.ID,
		OwnerID:              rule.OwnerID,
		Currency:             currency,
		Status:               domain.TransactionStatusPending,
		CommissionPercentage: snapshot.CommissionPercentage,
		TotalValue:           req.TotalValue,
		CommissionAmount:     commission,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	for _, draft := range drafts {
		txn.Allocations = append(txn.Allocations, domain.AllocationRecord{
			ID:                uuid.New().String(),
			TransactionID:     txn.ID,
			RecipientID:       draft.RecipientID,
			Kind:              draft.Kind,
			Status:            domain.AllocationStatusPending,
			PercentageApplied: draft.PercentageApplied,
			Amount:            draft.Amount,
			Underfunded:       draft.Underfunded,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}
	if len(txn.Allocations) == 0 {
		// Nothing to settle; the commission is the whole story.
		txn.Status = domain.TransactionStatusCompleted
	}

	err = d.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return d.txRepo.CreateWithAllocations(ctx, tx, txn)
	})
	if err != nil {
		// Lost an insert race on sale_id: another distribute call for the
		// same sale won. Return its transaction.
		if domain.IsDomainError(err, domain.ErrorCodeConflictDuplicateSale) {
			return d.txRepo.GetBySaleID(ctx, nil, req.SaleID)
		}
		d.logger.Error("failed to persist split transaction",
			ports.String("sale_id", req.SaleID),
			ports.Err(err))
		return nil, err
	}

	d.logger.Info("split transaction created",
		ports.String("transaction_id", txn.ID),
		ports.String("sale_id", txn.SaleID),
		ports.String("rule_id", txn.RuleID),
		ports.Int64("total_value", txn.TotalValue),
		ports.Int64("commission_amount", txn.CommissionAmount),
		ports.Int("allocations", len(txn.Allocations)))

	observability.RecordDistribution(txn.OwnerID, txn.Currency, "created", txn.TotalValue)
	for _, alloc := range txn.Allocations {
		observability.RecordAllocationCreated(txn.OwnerID, string(alloc.Kind), alloc.Underfunded)
	}

	d.publishAllocations(ctx, txn)
	return txn, nil
}

// publishAllocations hands every allocation to the settlement queue. The
// record is already durable, so publish failures are logged and left for the
// sweep rather than failing the distribute call.
func (d *Distributor) publishAllocations(ctx context.Context, txn *domain.SplitTransaction) {
	for _, alloc := range txn.Allocations {
		publishCtx, cancel := context.WithTimeout(ctx, d.cfg.PublishTimeout)
		err := d.publisher.Publish(publishCtx, d.cfg.SettlementTopic, ports.SettlementMessage{
			AllocationID:  alloc.ID,
			TransactionID: txn.ID,
			RecipientID:   alloc.RecipientID,
			Currency:      txn.Currency,
			AmountMinor:   alloc.Amount,
		})
		cancel()

		if err != nil {
			status := "failed"
			if domain.IsDomainError(err, domain.ErrorCodePublishTimeout) {
				status = "timeout"
			}
			observability.RecordSettlementPublish("distribute", status)
			d.logger.Warn("settlement publish failed, allocation left for sweep",
				ports.String("allocation_id", alloc.ID),
				ports.String("transaction_id", txn.ID),
				ports.Err(err))
			continue
		}
		observability.RecordSettlementPublish("distribute", "success")
	}
}

// GetTransaction retrieves a split transaction with its allocations,
// scoped to its owner
func (d *Distributor) GetTransaction(ctx context.Context, ownerID, id string) (*domain.SplitTransaction, error) {
	txn, err := d.txRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if ownerID != "" && txn.OwnerID != ownerID {
		return nil, domain.ErrTransactionNotFound.WithDetail("transaction_id", id)
	}
	return txn, nil
}

// GetBySale retrieves the split transaction produced for a sale reference
func (d *Distributor) GetBySale(ctx context.Context, ownerID, saleID string) (*domain.SplitTransaction, error) {
	txn, err := d.txRepo.GetBySaleID(ctx, nil, saleID)
	if err != nil {
		return nil, err
	}
	if ownerID != "" && txn.OwnerID != ownerID {
		return nil, domain.ErrTransactionNotFound.WithDetail("sale_id", saleID)
	}
	return txn, nil
}

// ReportStatus applies a settlement-worker status update to one allocation
// record and re-derives the transaction status once every allocation has
// terminated. Terminal records never move again.
func (d *Distributor) ReportStatus(ctx context.Context, allocationID string, status domain.AllocationStatus, errorDetail string) error {
	if !status.IsValid() || status == domain.AllocationStatusPending {
		observability.RecordAllocationTransition(string(status), "rejected")
		return domain.ErrInvalidTransition.WithDetail("status", string(status))
	}

	alloc, err := d.txRepo.GetAllocation(ctx, nil, allocationID)
	if err != nil {
		return err
	}

	if alloc.Status.IsTerminal() {
		observability.RecordAllocationTransition(string(status), "rejected")
		return domain.ErrStatusTerminal.
			WithDetail("allocation_id", allocationID).
			WithDetail("current_status", string(alloc.Status))
	}
	if !alloc.Status.CanTransitionTo(status) {
		observability.RecordAllocationTransition(string(status), "rejected")
		return domain.ErrInvalidTransition.
			WithDetail("allocation_id", allocationID).
			WithDetail("current_status", string(alloc.Status)).
			WithDetail("requested_status", string(status))
	}

	var processedAt *time.Time
	if status.IsTerminal() {
		now := timeutil.Now()
		processedAt = &now
	}

	err = d.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := d.txRepo.UpdateAllocationStatus(ctx, tx, allocationID, status, errorDetail, processedAt); err != nil {
			return err
		}
		if !status.IsTerminal() {
			return nil
		}

		remaining, err := d.txRepo.CountUnterminatedAllocations(ctx, tx, alloc.TransactionID)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}

		failed, err := d.txRepo.CountFailedAllocations(ctx, tx, alloc.TransactionID)
		if err != nil {
			return err
		}
		finalStatus := domain.TransactionStatusCompleted
		if failed > 0 {
			finalStatus = domain.TransactionStatusFailed
		}
		return d.txRepo.UpdateTransactionStatus(ctx, tx, alloc.TransactionID, finalStatus)
	})
	if err != nil {
		d.logger.Error("failed to apply allocation status update",
			ports.String("allocation_id", allocationID),
			ports.String("status", string(status)),
			ports.Err(err))
		return err
	}

	observability.RecordAllocationTransition(string(status), "applied")
	d.logger.Info("allocation status updated",
		ports.String("allocation_id", allocationID),
		ports.String("transaction_id", alloc.TransactionID),
		ports.String("status", string(status)))
	return nil
}

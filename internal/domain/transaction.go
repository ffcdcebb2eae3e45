package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus represents the lifecycle state of a split transaction as
// a whole. It is derived from its allocation records: a transaction completes
// once every allocation reached a terminal status.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed" // at least one allocation failed
)

// AllocationStatus represents the settlement state of a single allocation record
type AllocationStatus string

const (
	AllocationStatusPending    AllocationStatus = "pending"
	AllocationStatusProcessing AllocationStatus = "processing"
	AllocationStatusCompleted  AllocationStatus = "completed"
	AllocationStatusFailed     AllocationStatus = "failed"
)

// IsValid returns true if the status is one of the known values
func (s AllocationStatus) IsValid() bool {
	switch s {
	case AllocationStatusPending, AllocationStatusProcessing,
		AllocationStatusCompleted, AllocationStatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true for statuses no transition may leave
func (s AllocationStatus) IsTerminal() bool {
	return s == AllocationStatusCompleted || s == AllocationStatusFailed
}

// CanTransitionTo reports whether the settlement worker may move an
// allocation from s to next. pending -> processing -> completed is the happy
// path; pending or processing may fail. Terminal states accept nothing.
func (s AllocationStatus) CanTransitionTo(next AllocationStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case AllocationStatusProcessing:
		return s == AllocationStatusPending
	case AllocationStatusCompleted, AllocationStatusFailed:
		return s == AllocationStatusPending || s == AllocationStatusProcessing
	}
	return false
}

// SplitTransaction is one concrete application of a rule against a paid
// amount. The rule's commission percentage and lines are frozen into the
// record at creation; only allocation status fields mutate afterwards.
type SplitTransaction struct {
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
	ID                   string             `json:"id"`
	SaleID               string             `json:"sale_id"`
	RuleID               string             `json:"rule_id"`
	OwnerID              string             `json:"owner_id"`
	Currency             string             `json:"currency"`
	Status               TransactionStatus  `json:"status"`
	CommissionPercentage decimal.Decimal    `json:"commission_percentage"`
	TotalValue           int64              `json:"total_value"`
	CommissionAmount     int64              `json:"commission_amount"`
	Allocations          []AllocationRecord `json:"allocations"`
}

// AllocationRecord is the realized, immutable computation for one recipient
// in one split transaction. Amount never changes after creation; only
// status, processed-at and error detail transition.
type AllocationRecord struct {
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	ProcessedAt       *time.Time       `json:"processed_at,omitempty"`
	ID                string           `json:"id"`
	TransactionID     string           `json:"transaction_id"`
	RecipientID       string           `json:"recipient_id"`
	Kind              AllocationKind   `json:"kind"`
	Status            AllocationStatus `json:"status"`
	ErrorDetail       string           `json:"error_detail,omitempty"`
	PercentageApplied decimal.Decimal  `json:"percentage_applied"`
	Amount            int64            `json:"amount"`
	Underfunded       bool             `json:"underfunded"`
}

// AllocationDraft is the calculator's output for one line, before any
// persistence identity is attached.
type AllocationDraft struct {
	RecipientID       string          `json:"recipient_id"`
	Kind              AllocationKind  `json:"kind"`
	PercentageApplied decimal.Decimal `json:"percentage_applied"`
	Amount            int64           `json:"amount"`
	Underfunded       bool            `json:"underfunded"`
}

// AllocationsTotal returns the sum of all allocation record amounts
func (t *SplitTransaction) AllocationsTotal() int64 {
	var sum int64
	for _, a := range t.Allocations {
		sum += a.Amount
	}
	return sum
}

// IsReconciled reports whether commission plus allocations equals the total
// value exactly. This must hold for every persisted transaction.
func (t *SplitTransaction) IsReconciled() bool {
	return t.CommissionAmount+t.AllocationsTotal() == t.TotalValue
}

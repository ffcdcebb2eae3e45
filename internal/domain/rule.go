package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AllocationKind represents how an allocation line is evaluated
type AllocationKind string

const (
	AllocationKindPercentage AllocationKind = "percentage" // value is a percentage of the transaction total
	AllocationKindFixed      AllocationKind = "fixed"      // value is a literal amount in minor units
)

// IsValid returns true if the allocation kind is known
func (k AllocationKind) IsValid() bool {
	return k == AllocationKindPercentage || k == AllocationKindFixed
}

// AllocationLine is one entry in a rule: either "N% to recipient X" or
// "fixed amount to recipient X".
type AllocationLine struct {
	RecipientID string          `json:"recipient_id"`
	Kind        AllocationKind  `json:"kind"`
	Value       decimal.Decimal `json:"value"`
	Note        string          `json:"note,omitempty"`
}

// SplitRule is a reusable split policy: a commission percentage retained by
// the merchant plus an ordered list of allocation lines.
type SplitRule struct {
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
	ID                   string           `json:"id"`
	OwnerID              string           `json:"owner_id"`
	Name                 string           `json:"name"`
	CommissionPercentage decimal.Decimal  `json:"commission_percentage"`
	Lines                []AllocationLine `json:"lines"`
}

// Snapshot freezes the arithmetic-relevant part of the rule. Distribution
// works only against snapshots, so a later rule update never retroactively
// changes an already-created split transaction.
func (r *SplitRule) Snapshot() RuleSnapshot {
	lines := make([]AllocationLine, len(r.Lines))
	copy(lines, r.Lines)
	return RuleSnapshot{
		RuleID:               r.ID,
		CommissionPercentage: r.CommissionPercentage,
		Lines:                lines,
	}
}

// PercentageSum returns the sum of all percentage-kind line values.
// Fixed-kind lines are not part of the percentage budget.
func (r *SplitRule) PercentageSum() decimal.Decimal {
	sum := decimal.Zero
	for _, line := range r.Lines {
		if line.Kind == AllocationKindPercentage {
			sum = sum.Add(line.Value)
		}
	}
	return sum
}

// RuleSnapshot is the frozen view of a rule taken at distribution time.
type RuleSnapshot struct {
	RuleID               string           `json:"rule_id"`
	CommissionPercentage decimal.Decimal  `json:"commission_percentage"`
	Lines                []AllocationLine `json:"lines"`
}

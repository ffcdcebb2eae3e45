package split

import (
	"github.com/shopspring/decimal"

	"github.com/splitpay/split-engine/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Compute applies a frozen rule snapshot to a total value in integer minor
// units. It is a pure function: no I/O, no side effects, deterministic.
//
// Percentage amounts are rounded half-up. Fixed lines are clamped to the
// value still unallocated at their position and flagged underfunded when the
// clamp bites. Whatever remains after all lines, including any rounding
// residual, lands in the commission amount, so the output always reconciles
// to totalValue exactly. Centralizing the residual in the merchant's own
// commission keeps third-party payouts free of rounding noise.
func Compute(snapshot domain.RuleSnapshot, totalValue int64) (int64, []domain.AllocationDraft, error) {
	if totalValue < 0 {
		return 0, nil, domain.ErrAmountInvalid.WithDetail("total_value", totalValue)
	}

	total := decimal.NewFromInt(totalValue)
	commission := percentOf(total, snapshot.CommissionPercentage)

	running := commission
	drafts := make([]domain.AllocationDraft, 0, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		draft := domain.AllocationDraft{
			RecipientID: line.RecipientID,
			Kind:        line.Kind,
		}

		switch line.Kind {
		case domain.AllocationKindPercentage:
			draft.PercentageApplied = line.Value
			draft.Amount = percentOf(total, line.Value)
		case domain.AllocationKindFixed:
			draft.Amount = line.Value.IntPart()
		default:
			return 0, nil, domain.NewDomainError(domain.ErrorCodeValidationFailed, "unknown allocation kind").
				WithDetail("kind", string(line.Kind))
		}

		remaining := totalValue - running
		if remaining < 0 {
			remaining = 0
		}
		if draft.Amount > remaining {
			draft.Amount = remaining
			draft.Underfunded = true
		}

		running += draft.Amount
		drafts = append(drafts, draft)
	}

	// Residual reconciliation: commission absorbs whatever the lines left
	// unallocated, plus or minus rounding.
	commission += totalValue - running

	return commission, drafts, nil
}

// percentOf computes round-half-up(value * pct / 100) in minor units
func percentOf(value, pct decimal.Decimal) int64 {
	return value.Mul(pct).Div(hundred).Round(0).IntPart()
}

// Package fixtures provides shared test data builders.
package fixtures

import (
	"github.com/shopspring/decimal"

	"github.com/splitpay/split-engine/internal/domain"
	"github.com/splitpay/split-engine/pkg/timeutil"
)

// Percent parses a decimal percentage literal, panicking on bad input.
// Test-only convenience.
func Percent(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// Recipient returns an active individual recipient owned by ownerID
func Recipient(id, ownerID string) *domain.Recipient {
	now := timeutil.Now()
	return &domain.Recipient{
		ID:          id,
		OwnerID:     ownerID,
		Name:        "Recipient " + id,
		TaxID:       "12345678901",
		LegalPerson: domain.LegalPersonIndividual,
		PixKeyType:  domain.PixKeyRandom,
		PixKey:      "key-" + id,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Rule returns a rule with a 10% commission, a 20% line to rcpA and a
// fixed-500 line to rcpB. Matches the shape most distribution tests need.
func Rule(id, ownerID, rcpA, rcpB string) *domain.SplitRule {
	now := timeutil.Now()
	return &domain.SplitRule{
		ID:                   id,
		OwnerID:              ownerID,
		Name:                 "rule " + id,
		CommissionPercentage: Percent("10"),
		Lines: []domain.AllocationLine{
			{RecipientID: rcpA, Kind: domain.AllocationKindPercentage, Value: Percent("20")},
			{RecipientID: rcpB, Kind: domain.AllocationKindFixed, Value: Percent("500")},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transaction returns a pending split transaction with two pending
// allocations that reconciles exactly to its total
func Transaction(id, saleID, ruleID, ownerID string) *domain.SplitTransaction {
	now := timeutil.Now()
	txn := &domain.SplitTransaction{
		ID:                   id,
		SaleID:               saleID,
		RuleID:               ruleID,
		OwnerID:              ownerID,
		Currency:             "BRL",
		Status:               domain.TransactionStatusPending,
		CommissionPercentage: Percent("10"),
		TotalValue:           10000,
		CommissionAmount:     7500,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	txn.Allocations = []domain.AllocationRecord{
		{
			ID:                id + "-a1",
			TransactionID:     id,
			RecipientID:       "rcp-a",
			Kind:              domain.AllocationKindPercentage,
			Status:            domain.AllocationStatusPending,
			PercentageApplied: Percent("20"),
			Amount:            2000,
			CreatedAt:         now,
			UpdatedAt:         now,
		},
		{
			ID:            id + "-a2",
			TransactionID: id,
			RecipientID:   "rcp-b",
			Kind:          domain.AllocationKindFixed,
			Status:        domain.AllocationStatusPending,
			Amount:        500,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
	}
	return txn
}

package ports

import (
	"context"

	"github.com/splitpay/split-engine/internal/domain"
)

// RuleRepository defines the interface for split rule persistence.
// Allocation lines have no identity outside their rule: Create and Update
// write the rule and its full line list atomically.
type RuleRepository interface {
	// Create persists a new rule and its allocation lines
	Create(ctx context.Context, tx DBTX, rule *domain.SplitRule) error

	// Update persists rule fields and replaces the allocation-line list
	Update(ctx context.Context, tx DBTX, rule *domain.SplitRule) error

	// GetByID retrieves a rule with its lines
	GetByID(ctx context.Context, db DBTX, id string) (*domain.SplitRule, error)

	// ListByOwner lists rules for an owner with pagination, lines included
	ListByOwner(ctx context.Context, db DBTX, ownerID string, limit, offset int32) ([]*domain.SplitRule, error)

	// Delete removes a rule and its lines
	Delete(ctx context.Context, tx DBTX, id string) error

	// HasLineForRecipient reports whether any rule owned by ownerID carries
	// an allocation line pointing at recipientID. Used to block recipient
	// hard-deletes.
	HasLineForRecipient(ctx context.Context, db DBTX, ownerID, recipientID string) (bool, error)
}

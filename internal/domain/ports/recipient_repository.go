package ports

import (
	"context"

	"github.com/splitpay/split-engine/internal/domain"
)

// RecipientRepository defines the interface for recipient persistence
type RecipientRepository interface {
	// Create persists a new recipient
	Create(ctx context.Context, tx DBTX, recipient *domain.Recipient) error

	// Update persists changed fields of an existing recipient.
	// Returns domain.ErrRecipientNotFound when the id is unknown.
	Update(ctx context.Context, tx DBTX, recipient *domain.Recipient) error

	// GetByID retrieves a recipient by its ID
	GetByID(ctx context.Context, db DBTX, id string) (*domain.Recipient, error)

	// ListByOwner lists recipients for an owner with pagination
	ListByOwner(ctx context.Context, db DBTX, ownerID string, limit, offset int32) ([]*domain.Recipient, error)

	// Delete removes a recipient. Referential checks happen in the service
	// layer before this is called.
	Delete(ctx context.Context, tx DBTX, id string) error
}

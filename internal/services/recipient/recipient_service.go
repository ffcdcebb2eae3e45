package recipient

import (
	"context"

	"github.com/google/uuid"

	"github.com/splitpay/split-engine/internal/domain"
	"github.com/splitpay/split-engine/internal/domain/ports"
)

// Service manages the recipient registry
type Service struct {
	db       ports.DBPort
	repo     ports.RecipientRepository
	ruleRepo ports.RuleRepository
	logger   ports.Logger
}

// NewService creates a new recipient service
func NewService(
	db ports.DBPort,
	repo ports.RecipientRepository,
	ruleRepo ports.RuleRepository,
	logger ports.Logger,
) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		ruleRepo: ruleRepo,
		logger:   logger,
	}
}

// CreateRequest carries the fields for a new recipient
type CreateRequest struct {
	OwnerID     string
	Name        string
	TaxID       string
	LegalPerson domain.LegalPersonType
	PixKeyType  domain.PixKeyType
	PixKey      string
}

// UpdateRequest carries mutable recipient fields. Nil pointers leave the
// stored value untouched.
type UpdateRequest struct {
	Name       *string
	TaxID      *string
	PixKeyType *domain.PixKeyType
	PixKey     *string
	Active     *bool
}

// Create validates and persists a new recipient. New recipients start active.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Recipient, error) {
	if req.OwnerID == "" {
		return nil, domain.ErrValidationMissingField.WithDetail("field", "owner_id")
	}

	recipient := &domain.Recipient{
		ID:          uuid.New().String(),
		OwnerID:     req.OwnerID,
		Name:        req.Name,
		TaxID:       req.TaxID,
		LegalPerson: req.LegalPerson,
		PixKeyType:  req.PixKeyType,
		PixKey:      req.PixKey,
		Active:      true,
	}
	if err := recipient.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, nil, recipient); err != nil {
		s.logger.Error("failed to create recipient",
			ports.String("owner_id", req.OwnerID),
			ports.Err(err))
		return nil, err
	}

	s.logger.Info("recipient created",
		ports.String("recipient_id", recipient.ID),
		ports.String("owner_id", recipient.OwnerID),
		ports.String("pix_key_type", string(recipient.PixKeyType)))
	return recipient, nil
}

// Get retrieves a recipient, scoped to its owner
func (s *Service) Get(ctx context.Context, ownerID, id string) (*domain.Recipient, error) {
	recipient, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if recipient.OwnerID != ownerID {
		return nil, domain.ErrRecipientNotFound.WithDetail("recipient_id", id)
	}
	return recipient, nil
}

// List lists an owner's recipients with pagination
func (s *Service) List(ctx context.Context, ownerID string, limit, offset int32) ([]*domain.Recipient, error) {
	if ownerID == "" {
		return nil, domain.ErrValidationMissingField.WithDetail("field", "owner_id")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByOwner(ctx, nil, ownerID, limit, offset)
}

// Update applies the provided fields and re-validates the result. Owner id,
// id and legal person are immutable once registered.
func (s *Service) Update(ctx context.Context, ownerID, id string, req UpdateRequest) (*domain.Recipient, error) {
	recipient, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		recipient.Name = *req.Name
	}
	if req.TaxID != nil {
		recipient.TaxID = *req.TaxID
	}
	if req.PixKeyType != nil {
		recipient.PixKeyType = *req.PixKeyType
	}
	if req.PixKey != nil {
		recipient.PixKey = *req.PixKey
	}
	if req.Active != nil {
		recipient.Active = *req.Active
	}

	if err := recipient.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, nil, recipient); err != nil {
		s.logger.Error("failed to update recipient",
			ports.String("recipient_id", id),
			ports.Err(err))
		return nil, err
	}

	s.logger.Info("recipient updated",
		ports.String("recipient_id", id),
		ports.Bool("active", recipient.Active))
	return recipient, nil
}

// Deactivate marks a recipient inactive. Existing rules keep their lines;
// new rules referencing the recipient are rejected at validation time.
func (s *Service) Deactivate(ctx context.Context, ownerID, id string) (*domain.Recipient, error) {
	active := false
	return s.Update(ctx, ownerID, id, UpdateRequest{Active: &active})
}

// Delete removes a recipient permanently. The delete is refused while any
// rule of the owner still carries a line for it; the caller should
// deactivate instead.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}

	inUse, err := s.ruleRepo.HasLineForRecipient(ctx, nil, ownerID, id)
	if err != nil {
		return err
	}
	if inUse {
		return domain.ErrRecipientInUse.WithDetail("recipient_id", id)
	}

	if err := s.repo.Delete(ctx, nil, id); err != nil {
		s.logger.Error("failed to delete recipient",
			ports.String("recipient_id", id),
			ports.Err(err))
		return err
	}

	s.logger.Info("recipient deleted", ports.String("recipient_id", id))
	return nil
}

package rule

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/splitpay/split-engine/internal/domain"
	"github.com/splitpay/split-engine/internal/domain/ports"
)

var hundred = decimal.NewFromInt(100)

// Service manages split rules and enforces their budget invariants
type Service struct {
	db            ports.DBPort
	repo          ports.RuleRepository
	recipientRepo ports.RecipientRepository
	txRepo        ports.TransactionRepository
	logger        ports.Logger
}

// NewService creates a new rule service
func NewService(
	db ports.DBPort,
	repo ports.RuleRepository,
	recipientRepo ports.RecipientRepository,
	txRepo ports.TransactionRepository,
	logger ports.Logger,
) *Service {
	return &Service{
		db:            db,
		repo:          repo,
		recipientRepo: recipientRepo,
		txRepo:        txRepo,
		logger:        logger,
	}
}

// LineInput is one allocation line as submitted by the caller
type LineInput struct {
	RecipientID string
	Kind        domain.AllocationKind
	Value       decimal.Decimal
	Note        string
}

// CreateRequest carries the fields for a new rule
type CreateRequest struct {
	OwnerID              string
	Name                 string
	CommissionPercentage decimal.Decimal
	Lines                []LineInput
}

// UpdateRequest carries replacement fields for an existing rule. The line
// list always replaces the stored one wholesale; there is no per-line patch.
type UpdateRequest struct {
	Name                 *string
	CommissionPercentage *decimal.Decimal
	Lines                []LineInput
}

// Create validates and persists a new rule with its allocation lines
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.SplitRule, error) {
	if req.OwnerID == "" {
		return nil, domain.ErrValidationMissingField.WithDetail("field", "owner_id")
	}
	if req.Name == "" {
		return nil, domain.ErrValidationMissingField.WithDetail("field", "name")
	}

	rule := &domain.SplitRule{
		ID:                   uuid.New().String(),
		OwnerID:              req.OwnerID,
		Name:                 req.Name,
		CommissionPercentage: req.CommissionPercentage,
		Lines:                toLines(req.Lines),
	}
	if err := s.validate(ctx, rule); err != nil {
		return nil, err
	}

	// Rule and lines land in two statements; a transaction keeps a
	// half-written rule from ever becoming visible.
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.repo.Create(ctx, tx, rule)
	})
	if err != nil {
		s.logger.Error("failed to create rule",
			ports.String("owner_id", req.OwnerID),
			ports.Err(err))
		return nil, err
	}

	s.logger.Info("rule created",
		ports.String("rule_id", rule.ID),
		ports.String("owner_id", rule.OwnerID),
		ports.Int("lines", len(rule.Lines)))
	return rule, nil
}

// Get retrieves a rule with its lines, scoped to its owner
func (s *Service) Get(ctx context.Context, ownerID, id string) (*domain.SplitRule, error) {
	rule, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if rule.OwnerID != ownerID {
		return nil, domain.ErrRuleNotFound.WithDetail("rule_id", id)
	}
	return rule, nil
}

// List lists an owner's rules with pagination
func (s *Service) List(ctx context.Context, ownerID string, limit, offset int32) ([]*domain.SplitRule, error) {
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

// Update replaces rule fields and the full line list, re-running the same
// validation as Create. Transactions already distributed keep their frozen
// snapshot and are unaffected.
func (s *Service) Update(ctx context.Context, ownerID, id string, req UpdateRequest) (*domain.SplitRule, error) {
	rule, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.CommissionPercentage != nil {
		rule.CommissionPercentage = *req.CommissionPercentage
	}
	if req.Lines != nil {
		rule.Lines = toLines(req.Lines)
	}

	if err := s.validate(ctx, rule); err != nil {
		return nil, err
	}

	// The wholesale line replacement deletes and reinserts; without a
	// transaction a failure between the two would strand a lineless rule.
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.repo.Update(ctx, tx, rule)
	})
	if err != nil {
		s.logger.Error("failed to update rule",
			ports.String("rule_id", id),
			ports.Err(err))
		return nil, err
	}

	s.logger.Info("rule updated",
		ports.String("rule_id", id),
		ports.Int("lines", len(rule.Lines)))
	return rule, nil
}

// Delete removes a rule. The delete is refused while any transaction
// distributed from it still has unsettled allocations.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}

	inFlight, err := s.txRepo.HasUnterminatedForRule(ctx, nil, id)
	if err != nil {
		return err
	}
	if inFlight {
		return domain.ErrRuleInFlight.WithDetail("rule_id", id)
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.repo.Delete(ctx, tx, id)
	})
	if err != nil {
		s.logger.Error("failed to delete rule",
			ports.String("rule_id", id),
			ports.Err(err))
		return err
	}

	s.logger.Info("rule deleted", ports.String("rule_id", id))
	return nil
}

// validate runs the full rule check: commission range, recipient references,
// per-line values, and the percentage budget.
func (s *Service) validate(ctx context.Context, rule *domain.SplitRule) error {
	if rule.CommissionPercentage.IsNegative() || rule.CommissionPercentage.GreaterThan(hundred) {
		return domain.ErrPercentageOutOfRange.
			WithDetail("field", "commission_percentage").
			WithDetail("value", rule.CommissionPercentage.String())
	}

	for i, line := range rule.Lines {
		if line.RecipientID == "" {
			return domain.ErrValidationMissingField.
				WithDetail("field", fmt.Sprintf("lines[%d].recipient_id", i))
		}
		if !line.Kind.IsValid() {
			return domain.NewDomainError(domain.ErrorCodeValidationFailed, "unknown allocation kind").
				WithDetail("line", i).
				WithDetail("kind", string(line.Kind))
		}

		recipient, err := s.recipientRepo.GetByID(ctx, nil, line.RecipientID)
		if err != nil {
			if domain.IsNotFoundError(err) {
				return domain.ErrRecipientReferenceNotFound.
					WithDetail("line", i).
					WithDetail("recipient_id", line.RecipientID)
			}
			return err
		}
		if recipient.OwnerID != rule.OwnerID {
			return domain.ErrRecipientReferenceNotFound.
				WithDetail("line", i).
				WithDetail("recipient_id", line.RecipientID)
		}
		if !recipient.Active {
			return domain.ErrRecipientReferenceInactive.
				WithDetail("line", i).
				WithDetail("recipient_id", line.RecipientID)
		}

		switch line.Kind {
		case domain.AllocationKindPercentage:
			if line.Value.IsNegative() || line.Value.GreaterThan(hundred) {
				return domain.ErrPercentageOutOfRange.
					WithDetail("line", i).
					WithDetail("value", line.Value.String())
			}
		case domain.AllocationKindFixed:
			if !line.Value.IsPositive() || !line.Value.IsInteger() {
				return domain.ErrFixedAmountInvalid.
					WithDetail("line", i).
					WithDetail("value", line.Value.String())
			}
		}
	}

	budget := rule.PercentageSum().Add(rule.CommissionPercentage)
	if budget.GreaterThan(hundred) {
		return domain.NewDomainError(domain.ErrorCodeValidationBudgetExceeded,
			fmt.Sprintf("commission plus percentage lines total %s%%, over the 100%% budget", budget.String())).
			WithDetail("total_percentage", budget.String())
	}

	return nil
}

func toLines(inputs []LineInput) []domain.AllocationLine {
	lines := make([]domain.AllocationLine, len(inputs))
	for i, in := range inputs {
		lines[i] = domain.AllocationLine{
			RecipientID: in.RecipientID,
			Kind:        in.Kind,
			Value:       in.Value,
			Note:        in.Note,
		}
	}
	return lines
}

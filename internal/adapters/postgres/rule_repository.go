package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/splitpay/split-engine/internal/domain"
	"github.com/splitpay/split-engine/internal/domain/ports"
)

// RuleRepository implements ports.RuleRepository over pgx. A rule and its
// allocation lines are written together; lines are replaced wholesale on
// update because they have no identity outside their rule.
type RuleRepository struct {
	db ports.DBPort
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db ports.DBPort) *RuleRepository {
	return &RuleRepository{db: db}
}

func (r *RuleRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

// Create persists a new rule and its allocation lines
func (r *RuleRepository) Create(ctx context.Context, tx ports.DBTX, rule *domain.SplitRule) error {
	q := r.executor(tx)

	commission, err := numericFromDecimal(rule.CommissionPercentage)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO split_rules (id, owner_id, name, commission_percentage, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())`,
		rule.ID, rule.OwnerID, rule.Name, commission)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}

	return r.insertLines(ctx, q, rule)
}

// Update persists rule fields and replaces the allocation-line list
func (r *RuleRepository) Update(ctx context.Context, tx ports.DBTX, rule *domain.SplitRule) error {
	q := r.executor(tx)

	commission, err := numericFromDecimal(rule.CommissionPercentage)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}

	tag, err := q.Exec(ctx, `
		UPDATE split_rules
		SET name = $2, commission_percentage = $3, updated_at = now()
		WHERE id = $1`,
		rule.ID, rule.Name, commission)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRuleNotFound.WithDetail("rule_id", rule.ID)
	}

	if _, err := q.Exec(ctx, `DELETE FROM rule_allocation_lines WHERE rule_id = $1`, rule.ID); err != nil {
		return fmt.Errorf("replace rule lines: %w", err)
	}

	return r.insertLines(ctx, q, rule)
}

func (r *RuleRepository) insertLines(ctx context.Context, q ports.DBTX, rule *domain.SplitRule) error {
	for i, line := range rule.Lines {
		value, err := numericFromDecimal(line.Value)
		if err != nil {
			return fmt.Errorf("insert rule line %d: %w", i, err)
		}
		_, err = q.Exec(ctx, `
			INSERT INTO rule_allocation_lines (rule_id, position, recipient_id, kind, value, note)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			rule.ID, i, line.RecipientID, string(line.Kind), value, nullText(line.Note))
		if err != nil {
			return fmt.Errorf("insert rule line %d: %w", i, err)
		}
	}
	return nil
}

// GetByID retrieves a rule with its lines
func (r *RuleRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.SplitRule, error) {
	q := r.executor(db)

	row := q.QueryRow(ctx, `
		SELECT id::text, owner_id, name, commission_percentage, created_at, updated_at
		FROM split_rules WHERE id = $1`, id)

	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRuleNotFound.WithDetail("rule_id", id)
		}
		return nil, fmt.Errorf("get rule by id: %w", err)
	}

	if err := r.loadLines(ctx, q, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// ListByOwner lists rules for an owner with pagination, lines included
func (r *RuleRepository) ListByOwner(ctx context.Context, db ports.DBTX, ownerID string, limit, offset int32) ([]*domain.SplitRule, error) {
	q := r.executor(db)

	rows, err := q.Query(ctx, `
		SELECT id::text, owner_id, name, commission_percentage, created_at, updated_at
		FROM split_rules
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list rules by owner: %w", err)
	}
	defer rows.Close()

	var rules []*domain.SplitRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rules by owner: %w", err)
	}

	for _, rule := range rules {
		if err := r.loadLines(ctx, q, rule); err != nil {
			return nil, err
		}
	}
	return rules, nil
}

// Delete removes a rule and its lines
func (r *RuleRepository) Delete(ctx context.Context, tx ports.DBTX, id string) error {
	q := r.executor(tx)

	if _, err := q.Exec(ctx, `DELETE FROM rule_allocation_lines WHERE rule_id = $1`, id); err != nil {
		return fmt.Errorf("delete rule lines: %w", err)
	}

	tag, err := q.Exec(ctx, `DELETE FROM split_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRuleNotFound.WithDetail("rule_id", id)
	}
	return nil
}

// HasLineForRecipient reports whether any rule owned by ownerID references recipientID
func (r *RuleRepository) HasLineForRecipient(ctx context.Context, db ports.DBTX, ownerID, recipientID string) (bool, error) {
	var exists bool
	err := r.executor(db).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM rule_allocation_lines l
			JOIN split_rules r ON r.id = l.rule_id
			WHERE r.owner_id = $1 AND l.recipient_id = $2
		)`, ownerID, recipientID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check rule references: %w", err)
	}
	return exists, nil
}

func (r *RuleRepository) loadLines(ctx context.Context, q ports.DBTX, rule *domain.SplitRule) error {
	rows, err := q.Query(ctx, `
		SELECT recipient_id::text, kind, value, note
		FROM rule_allocation_lines
		WHERE rule_id = $1
		ORDER BY position`, rule.ID)
	if err != nil {
		return fmt.Errorf("load rule lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			line  domain.AllocationLine
			kind  string
			value pgtype.Numeric
			note  pgtype.Text
		)
		if err := rows.Scan(&line.RecipientID, &kind, &value, &note); err != nil {
			return fmt.Errorf("scan rule line: %w", err)
		}
		dec, err := decimalFromNumeric(value)
		if err != nil {
			return fmt.Errorf("convert line value: %w", err)
		}
		line.Kind = domain.AllocationKind(kind)
		line.Value = dec
		line.Note = note.String
		rule.Lines = append(rule.Lines, line)
	}
	return rows.Err()
}

func scanRule(row pgx.Row) (*domain.SplitRule, error) {
	var (
		rule       domain.SplitRule
		commission pgtype.Numeric
	)
	err := row.Scan(
		&rule.ID,
		&rule.OwnerID,
		&rule.Name,
		&commission,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	dec, err := decimalFromNumeric(commission)
	if err != nil {
		return nil, fmt.Errorf("convert commission: %w", err)
	}
	rule.CommissionPercentage = dec
	return &rule, nil
}

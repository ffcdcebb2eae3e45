package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/splitpay/split-engine/internal/domain"
	"github.com/splitpay/split-engine/internal/domain/ports"
)

// RecipientRepository implements ports.RecipientRepository over pgx
type RecipientRepository struct {
	db ports.DBPort
}

// NewRecipientRepository creates a new recipient repository
func NewRecipientRepository(db ports.DBPort) *RecipientRepository {
	return &RecipientRepository{db: db}
}

func (r *RecipientRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

const recipientColumns = `id::text, owner_id, name, tax_id, legal_person, pix_key_type, pix_key, active, created_at, updated_at`

// Create persists a new recipient
func (r *RecipientRepository) Create(ctx context.Context, tx ports.DBTX, recipient *domain.Recipient) error {
	_, err := r.executor(tx).Exec(ctx, `
		INSERT INTO recipients (id, owner_id, name, tax_id, legal_person, pix_key_type, pix_key, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())`,
		recipient.ID,
		recipient.OwnerID,
		recipient.Name,
		recipient.TaxID,
		string(recipient.LegalPerson),
		string(recipient.PixKeyType),
		recipient.PixKey,
		recipient.Active,
	)
	if err != nil {
		return fmt.Errorf("create recipient: %w", err)
	}
	return nil
}

// Update persists changed fields of an existing recipient
func (r *RecipientRepository) Update(ctx context.Context, tx ports.DBTX, recipient *domain.Recipient) error {
	tag, err := r.executor(tx).Exec(ctx, `
		UPDATE recipients
		SET name = $2, tax_id = $3, legal_person = $4, pix_key_type = $5, pix_key = $6, active = $7, updated_at = now()
		WHERE id = $1`,
		recipient.ID,
		recipient.Name,
		recipient.TaxID,
		string(recipient.LegalPerson),
		string(recipient.PixKeyType),
		recipient.PixKey,
		recipient.Active,
	)
	if err != nil {
		return fmt.Errorf("update recipient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecipientNotFound.WithDetail("recipient_id", recipient.ID)
	}
	return nil
}

// GetByID retrieves a recipient by its ID
func (r *RecipientRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.Recipient, error) {
	row := r.executor(db).QueryRow(ctx,
		`SELECT `+recipientColumns+` FROM recipients WHERE id = $1`, id)

	recipient, err := scanRecipient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecipientNotFound.WithDetail("recipient_id", id)
		}
		return nil, fmt.Errorf("get recipient by id: %w", err)
	}
	return recipient, nil
}

// ListByOwner lists recipients for an owner with pagination
func (r *RecipientRepository) ListByOwner(ctx context.Context, db ports.DBTX, ownerID string, limit, offset int32) ([]*domain.Recipient, error) {
	rows, err := r.executor(db).Query(ctx,
		`SELECT `+recipientColumns+`
		 FROM recipients
		 WHERE owner_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list recipients by owner: %w", err)
	}
	defer rows.Close()

	var recipients []*domain.Recipient
	for rows.Next() {
		recipient, err := scanRecipient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		recipients = append(recipients, recipient)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recipients by owner: %w", err)
	}
	return recipients, nil
}

// Delete removes a recipient
func (r *RecipientRepository) Delete(ctx context.Context, tx ports.DBTX, id string) error {
	tag, err := r.executor(tx).Exec(ctx, `DELETE FROM recipients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete recipient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecipientNotFound.WithDetail("recipient_id", id)
	}
	return nil
}

func scanRecipient(row pgx.Row) (*domain.Recipient, error) {
	var (
		recipient   domain.Recipient
		legalPerson string
		keyType     string
	)
	err := row.Scan(
		&recipient.ID,
		&recipient.OwnerID,
		&recipient.Name,
		&recipient.TaxID,
		&legalPerson,
		&keyType,
		&recipient.PixKey,
		&recipient.Active,
		&recipient.CreatedAt,
		&recipient.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	recipient.LegalPerson = domain.LegalPersonType(legalPerson)
	recipient.PixKeyType = domain.PixKeyType(keyType)
	return &recipient, nil
}

package domain

import (
	"time"
)

// LegalPersonType distinguishes individual and business payout recipients
type LegalPersonType string

const (
	LegalPersonIndividual LegalPersonType = "individual"
	LegalPersonBusiness   LegalPersonType = "business"
)

// IsValid returns true if the legal person type is one of the known values
func (t LegalPersonType) IsValid() bool {
	return t == LegalPersonIndividual || t == LegalPersonBusiness
}

// PixKeyType represents the kind of instant-payment key a recipient is paid through.
// The set is closed: anything else is rejected at validation time.
type PixKeyType string

const (
	PixKeyCPF    PixKeyType = "cpf"
	PixKeyCNPJ   PixKeyType = "cnpj"
	PixKeyEmail  PixKeyType = "email"
	PixKeyPhone  PixKeyType = "phone"
	PixKeyRandom PixKeyType = "random"
)

// IsValid returns true if the key type is part of the closed set
func (t PixKeyType) IsValid() bool {
	switch t {
	case PixKeyCPF, PixKeyCNPJ, PixKeyEmail, PixKeyPhone, PixKeyRandom:
		return true
	}
	return false
}

// Recipient represents a party eligible to receive a payout from a split.
// A recipient is never hard-deleted while referenced by a rule; owners
// deactivate it instead, which keeps historical transactions intact.
type Recipient struct {
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	Name        string          `json:"name"`
	TaxID       string          `json:"tax_id"`
	LegalPerson LegalPersonType `json:"legal_person"`
	PixKeyType  PixKeyType      `json:"pix_key_type"`
	PixKey      string          `json:"pix_key"`
	Active      bool            `json:"active"`
}

// Validate checks the fields required on create and update
func (r *Recipient) Validate() error {
	if r.Name == "" {
		return ErrValidationMissingField.WithDetail("field", "name")
	}
	if r.TaxID == "" {
		return ErrValidationMissingField.WithDetail("field", "tax_id")
	}
	if !r.LegalPerson.IsValid() {
		return NewDomainError(ErrorCodeValidationKeyType, "unknown legal person type").
			WithDetail("legal_person", string(r.LegalPerson))
	}
	if r.PixKey == "" {
		return ErrValidationMissingField.WithDetail("field", "pix_key")
	}
	if !r.PixKeyType.IsValid() {
		return NewDomainError(ErrorCodeValidationKeyType, "unknown payout key type").
			WithDetail("pix_key_type", string(r.PixKeyType))
	}
	return nil
}

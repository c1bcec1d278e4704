package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/humanize/server/internal/model"
)

// VerificationRepo defines the interface for step-4 bank/ID records
type VerificationRepo interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (model.Verification, error)
	Upsert(ctx context.Context, v model.Verification) (model.Verification, error)
}

type verificationRepo struct {
	db *sql.DB
}

// NewVerificationRepo creates a new VerificationRepo instance
func NewVerificationRepo(db *sql.DB) VerificationRepo {
	return &verificationRepo{db: db}
}

const verificationColumns = `id, user_id, official_registration_id, civil_id, passport_id,
	country_list, bank_name, bank_address, account_holder_name, account_holder_address,
	account_number_iban, swift_number, status`

func scanVerification(row rowScanner) (model.Verification, error) {
	var v model.Verification
	err := row.Scan(
		&v.ID,
		&v.UserID,
		&v.OfficialRegistrationID,
		&v.CivilID,
		&v.PassportID,
		&v.CountryList,
		&v.BankName,
		&v.BankAddress,
		&v.AccountHolderName,
		&v.AccountHolderAddress,
		&v.AccountNumberIBAN,
		&v.SwiftNumber,
		&v.Status,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Verification{}, ErrNotFound
		}
		return model.Verification{}, fmt.Errorf("query verification: %w", err)
	}
	return v, nil
}

// GetByUserID retrieves the step-4 record for an account
func (r *verificationRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (model.Verification, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+verificationColumns+` FROM human_verifications WHERE user_id = $1
	`, userID)
	return scanVerification(row)
}

// Upsert creates or replaces the step-4 record. Every write resets status to
// pending; a resubmission never preserves a previous verified/rejected outcome.
func (r *verificationRepo) Upsert(ctx context.Context, v model.Verification) (model.Verification, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO human_verifications
			(user_id, official_registration_id, civil_id, passport_id, country_list,
			 bank_name, bank_address, account_holder_name, account_holder_address,
			 account_number_iban, swift_number, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'pending')
		ON CONFLICT (user_id) DO UPDATE SET
			civil_id               = EXCLUDED.civil_id,
			passport_id            = EXCLUDED.passport_id,
			country_list           = EXCLUDED.country_list,
			bank_name              = EXCLUDED.bank_name,
			bank_address           = EXCLUDED.bank_address,
			account_holder_name    = EXCLUDED.account_holder_name,
			account_holder_address = EXCLUDED.account_holder_address,
			account_number_iban    = EXCLUDED.account_number_iban,
			swift_number           = EXCLUDED.swift_number,
			status                 = 'pending'
		RETURNING `+verificationColumns+`
	`, v.UserID, v.OfficialRegistrationID, v.CivilID, v.PassportID, v.CountryList,
		v.BankName, v.BankAddress, v.AccountHolderName, v.AccountHolderAddress,
		v.AccountNumberIBAN, v.SwiftNumber)
	out, err := scanVerification(row)
	if err != nil {
		return model.Verification{}, fmt.Errorf("upsert verification: %w", err)
	}
	return out, nil
}

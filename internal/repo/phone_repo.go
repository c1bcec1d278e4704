package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/humanize/server/internal/model"
)

// PhoneVerificationRepo defines the interface for step-5 OTP records
type PhoneVerificationRepo interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (model.PhoneVerification, error)
	// Upsert stores the latest OTP for the account, overwriting any previous
	// pending code. Only the latest code is ever valid.
	Upsert(ctx context.Context, pv model.PhoneVerification) (model.PhoneVerification, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
}

type phoneVerificationRepo struct {
	db *sql.DB
}

// NewPhoneVerificationRepo creates a new PhoneVerificationRepo instance
func NewPhoneVerificationRepo(db *sql.DB) PhoneVerificationRepo {
	return &phoneVerificationRepo{db: db}
}

const phoneVerificationColumns = `id, user_id, official_registration_id, mobile_number, code, status`

func scanPhoneVerification(row rowScanner) (model.PhoneVerification, error) {
	var pv model.PhoneVerification
	err := row.Scan(
		&pv.ID,
		&pv.UserID,
		&pv.OfficialRegistrationID,
		&pv.MobileNumber,
		&pv.Code,
		&pv.Status,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.PhoneVerification{}, ErrNotFound
		}
		return model.PhoneVerification{}, fmt.Errorf("query phone verification: %w", err)
	}
	return pv, nil
}

// GetByUserID retrieves the step-5 record for an account
func (r *phoneVerificationRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (model.PhoneVerification, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+phoneVerificationColumns+` FROM human_phone_verifications WHERE user_id = $1
	`, userID)
	return scanPhoneVerification(row)
}

// Upsert overwrites the account's OTP record with a fresh pending code
func (r *phoneVerificationRepo) Upsert(ctx context.Context, pv model.PhoneVerification) (model.PhoneVerification, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO human_phone_verifications
			(user_id, official_registration_id, mobile_number, code, status)
		VALUES ($1, $2, $3, $4, 'pending')
		ON CONFLICT (user_id) DO UPDATE SET
			mobile_number = EXCLUDED.mobile_number,
			code          = EXCLUDED.code,
			status        = 'pending'
		RETURNING `+phoneVerificationColumns+`
	`, pv.UserID, pv.OfficialRegistrationID, pv.MobileNumber, pv.Code)
	out, err := scanPhoneVerification(row)
	if err != nil {
		return model.PhoneVerification{}, fmt.Errorf("upsert phone verification: %w", err)
	}
	return out, nil
}

// MarkVerified transitions the record to verified. The transition is one-way;
// a later OTP send creates a fresh pending record via Upsert.
func (r *phoneVerificationRepo) MarkVerified(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE human_phone_verifications SET status = 'verified' WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/humanize/server/internal/model"
	"github.com/lib/pq"
)

// RegistrationRepo defines the interface for step-1 basic-info records
type RegistrationRepo interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (model.Registration, error)
	// ProfileNameTaken reports whether another account already uses the
	// profile name. The owner's own record is excluded so resubmission
	// stays idempotent.
	ProfileNameTaken(ctx context.Context, profileName string, excludeUserID uuid.UUID) (bool, error)
	PhoneTaken(ctx context.Context, phone string, excludeUserID uuid.UUID) (bool, error)
	Upsert(ctx context.Context, reg model.Registration) (model.Registration, error)
	SetState(ctx context.Context, userID uuid.UUID, state model.RegistrationState) error
}

type registrationRepo struct {
	db *sql.DB
}

// NewRegistrationRepo creates a new RegistrationRepo instance
func NewRegistrationRepo(db *sql.DB) RegistrationRepo {
	return &registrationRepo{db: db}
}

const registrationColumns = `id, user_id, name, profile_name, phone, gender, dob,
	nationality, place_of_living, address, current_state, created_at, updated_at`

func scanRegistration(row *sql.Row) (model.Registration, error) {
	var reg model.Registration
	err := row.Scan(
		&reg.ID,
		&reg.UserID,
		&reg.Name,
		&reg.ProfileName,
		&reg.Phone,
		&reg.Gender,
		&reg.DOB,
		&reg.Nationality,
		&reg.PlaceOfLiving,
		&reg.Address,
		&reg.CurrentState,
		&reg.CreatedAt,
		&reg.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Registration{}, ErrNotFound
		}
		return model.Registration{}, fmt.Errorf("query registration: %w", err)
	}
	return reg, nil
}

// GetByUserID retrieves the step-1 record for an account
func (r *registrationRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (model.Registration, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+registrationColumns+`
		FROM human_official_registrations
		WHERE user_id = $1
	`, userID)
	return scanRegistration(row)
}

func (r *registrationRepo) ProfileNameTaken(ctx context.Context, profileName string, excludeUserID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM human_official_registrations
			WHERE profile_name = $1 AND user_id <> $2
		)
	`, profileName, excludeUserID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check profile name: %w", err)
	}
	return exists, nil
}

func (r *registrationRepo) PhoneTaken(ctx context.Context, phone string, excludeUserID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM human_official_registrations
			WHERE phone = $1 AND user_id <> $2
		)
	`, phone, excludeUserID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check phone: %w", err)
	}
	return exists, nil
}

// Upsert creates or replaces the mutable fields of the step-1 record. The
// caller decides the state to store (pending on first create, in_progress on
// resubmission); an existing record keeps its own state via the caller.
func (r *registrationRepo) Upsert(ctx context.Context, reg model.Registration) (model.Registration, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO human_official_registrations
			(user_id, name, profile_name, phone, gender, dob, nationality, place_of_living, address, current_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending')
		ON CONFLICT (user_id) DO UPDATE SET
			name            = EXCLUDED.name,
			profile_name    = EXCLUDED.profile_name,
			phone           = EXCLUDED.phone,
			gender          = EXCLUDED.gender,
			dob             = EXCLUDED.dob,
			nationality     = EXCLUDED.nationality,
			place_of_living = EXCLUDED.place_of_living,
			address         = EXCLUDED.address,
			current_state   = 'in_progress',
			updated_at      = now()
		RETURNING `+registrationColumns+`
	`, reg.UserID, reg.Name, reg.ProfileName, reg.Phone, reg.Gender, reg.DOB,
		reg.Nationality, reg.PlaceOfLiving, reg.Address)
	out, err := scanRegistration(row)
	if err != nil {
		if conflict := registrationConflict(err); conflict != nil {
			return model.Registration{}, conflict
		}
		return model.Registration{}, fmt.Errorf("upsert registration: %w", err)
	}
	return out, nil
}

// registrationConflict translates a unique-index violation into the matching
// conflict sentinel. ON CONFLICT only covers user_id, so a concurrent write
// can still trip the profile_name or phone index.
func registrationConflict(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return nil
	}
	switch pqErr.Constraint {
	case "human_official_registrations_profile_name_key":
		return ErrProfileNameConflict
	case "human_official_registrations_phone_key":
		return ErrPhoneConflict
	}
	return nil
}

// SetState updates the overall registration state for an account
func (r *registrationRepo) SetState(ctx context.Context, userID uuid.UUID, state model.RegistrationState) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE human_official_registrations
		SET current_state = $2, updated_at = now()
		WHERE user_id = $1
	`, userID, string(state))
	if err != nil {
		return fmt.Errorf("set registration state: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

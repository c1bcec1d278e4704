package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/humanize/server/internal/model"
)

// UserRepo defines the interface for account repository operations
type UserRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	Create(ctx context.Context, email, name, passwordHash string, accountType model.AccountType) (model.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new UserRepo instance
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

const userColumns = `id, email, name, password, account_type, is_active, date_joined, last_login`

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.PasswordHash,
		&u.AccountType,
		&u.IsActive,
		&u.DateJoined,
		&u.LastLogin,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

// GetByID retrieves an account by ID
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id)
	return scanUser(row)
}

// GetByEmail retrieves an account by email. Callers pass the address already
// lowercased; the stored email is always lowercase.
func (r *userRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE email = $1
	`, email)
	return scanUser(row)
}

// Create inserts a new active account and returns it
func (r *userRepo) Create(ctx context.Context, email, name, passwordHash string, accountType model.AccountType) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, name, password, account_type)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns+`
	`, email, name, passwordHash, string(accountType))
	u, err := scanUser(row)
	if err != nil {
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// UpdateLastLogin records a successful login time
func (r *userRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET last_login = $2 WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePassword replaces the stored password hash
func (r *userRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE id = $1
	`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

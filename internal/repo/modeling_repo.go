package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/humanize/server/internal/model"
)

// ModelingUpdate carries the legacy step-2 fields and the three full
// association sets.
type ModelingUpdate struct {
	UserID                 uuid.UUID
	OfficialRegistrationID uuid.UUID
	ModelBefore            bool
	Price                  float64
	OtherModeling          *string
	OtherProduction        *string
	OtherPreference        *string
	ModelingTypeIDs        []int
	ProductionTypeIDs      []int
	PreferenceIDs          []int
}

// ModelingRepo defines the interface for the legacy step-2 shape
type ModelingRepo interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (model.Modeling, error)
	// Upsert writes the record fields and replaces all three association
	// sets in one transaction.
	Upsert(ctx context.Context, upd ModelingUpdate) (model.Modeling, error)
}

type modelingRepo struct {
	db *sql.DB
}

// NewModelingRepo creates a new ModelingRepo instance
func NewModelingRepo(db *sql.DB) ModelingRepo {
	return &modelingRepo{db: db}
}

const modelingColumns = `id, user_id, official_registration_id, model_before, price,
	other_modeling, other_production, other_preference, current_status`

func scanModeling(row rowScanner) (model.Modeling, error) {
	var m model.Modeling
	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.OfficialRegistrationID,
		&m.ModelBefore,
		&m.Price,
		&m.OtherModeling,
		&m.OtherProduction,
		&m.OtherPreference,
		&m.CurrentStatus,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Modeling{}, ErrNotFound
		}
		return model.Modeling{}, fmt.Errorf("query modeling: %w", err)
	}
	return m, nil
}

// GetByUserID retrieves the legacy modeling record with its association sets
func (r *modelingRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (model.Modeling, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+modelingColumns+` FROM human_modelings WHERE user_id = $1
	`, userID)
	m, err := scanModeling(row)
	if err != nil {
		return model.Modeling{}, err
	}
	if err := r.loadSets(ctx, r.db, &m); err != nil {
		return model.Modeling{}, err
	}
	return m, nil
}

func (r *modelingRepo) loadSets(ctx context.Context, q querier, m *model.Modeling) error {
	var err error
	if m.ModelingTypeIDs, err = loadIntSet(ctx, q,
		`SELECT modeling_type_id FROM human_modeling_types WHERE human_modeling_id = $1 ORDER BY modeling_type_id`, m.ID); err != nil {
		return err
	}
	if m.ProductionTypeIDs, err = loadIntSet(ctx, q,
		`SELECT production_type_id FROM human_production_types WHERE human_modeling_id = $1 ORDER BY production_type_id`, m.ID); err != nil {
		return err
	}
	if m.PreferenceIDs, err = loadIntSet(ctx, q,
		`SELECT preference_id FROM human_preferences WHERE human_modeling_id = $1 ORDER BY preference_id`, m.ID); err != nil {
		return err
	}
	return nil
}

func loadIntSet(ctx context.Context, q querier, query string, id uuid.UUID) ([]int, error) {
	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query association set: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan association id: %w", err)
		}
		ids = append(ids, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate association set: %w", err)
	}
	return ids, nil
}

// Upsert writes the legacy modeling record and atomically replaces the three
// association sets (full-replace, not merge).
func (r *modelingRepo) Upsert(ctx context.Context, upd ModelingUpdate) (model.Modeling, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Modeling{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := lockAccount(ctx, tx, upd.UserID); err != nil {
		return model.Modeling{}, err
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO human_modelings
			(user_id, official_registration_id, model_before, price,
			 other_modeling, other_production, other_preference, current_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')
		ON CONFLICT (user_id) DO UPDATE SET
			model_before     = EXCLUDED.model_before,
			price            = EXCLUDED.price,
			other_modeling   = EXCLUDED.other_modeling,
			other_production = EXCLUDED.other_production,
			other_preference = EXCLUDED.other_preference,
			current_status   = 'in_progress'
		RETURNING `+modelingColumns+`
	`, upd.UserID, upd.OfficialRegistrationID, upd.ModelBefore, upd.Price,
		upd.OtherModeling, upd.OtherProduction, upd.OtherPreference)
	m, err := scanModeling(row)
	if err != nil {
		return model.Modeling{}, fmt.Errorf("upsert modeling: %w", err)
	}

	sets := []struct {
		table, column string
		ids           []int
	}{
		{"human_modeling_types", "modeling_type_id", upd.ModelingTypeIDs},
		{"human_production_types", "production_type_id", upd.ProductionTypeIDs},
		{"human_preferences", "preference_id", upd.PreferenceIDs},
	}
	for _, set := range sets {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE human_modeling_id = $1`, set.table), m.ID); err != nil {
			return model.Modeling{}, fmt.Errorf("clear %s: %w", set.table, err)
		}
		for _, id := range dedupe(set.ids) {
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s (human_modeling_id, %s) VALUES ($1, $2)`, set.table, set.column),
				m.ID, id); err != nil {
				return model.Modeling{}, fmt.Errorf("insert into %s: %w", set.table, err)
			}
		}
	}

	if err := r.loadSets(ctx, tx, &m); err != nil {
		return model.Modeling{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.Modeling{}, fmt.Errorf("commit: %w", err)
	}
	return m, nil
}

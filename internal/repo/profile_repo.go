package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/humanize/server/internal/model"
)

// InterestsUpdate carries the step-2 (interests shape) fields for a profile upsert.
type InterestsUpdate struct {
	UserID                 uuid.UUID
	OfficialRegistrationID uuid.UUID
	ModelBefore            bool
	Price                  float64
	OtherModeling          *string
	InterestIDs            []int
}

// ProfileRepo defines the interface for the profile record shared by
// registration steps 2 and 3.
type ProfileRepo interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (model.Profile, error)
	// UpsertInterests writes the step-2 profile fields and replaces the full
	// interest association set in one transaction.
	UpsertInterests(ctx context.Context, upd InterestsUpdate) (model.Profile, error)
	// UpsertProfile writes the step-3 fields.
	UpsertProfile(ctx context.Context, p model.Profile) (model.Profile, error)
	// UpsertHeight writes only the height reference, creating a minimal
	// profile when none exists. Used by the legacy step-2 cross-write.
	UpsertHeight(ctx context.Context, userID, officialRegistrationID uuid.UUID, heightID int) error
}

type profileRepo struct {
	db *sql.DB
}

// NewProfileRepo creates a new ProfileRepo instance
func NewProfileRepo(db *sql.DB) ProfileRepo {
	return &profileRepo{db: db}
}

const profileColumns = `id, user_id, official_registration_id, brief_intro, profile_visibility,
	model_before, price, other_modeling,
	twitter_link, instagram_link, facebook_link, snapchat_link, tiktok_link, youtube_link,
	job_sector_id, job_title, height_id, current_state`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (model.Profile, error) {
	var p model.Profile
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.OfficialRegistrationID,
		&p.BriefIntro,
		&p.ProfileVisibility,
		&p.ModelBefore,
		&p.Price,
		&p.OtherModeling,
		&p.TwitterLink,
		&p.InstagramLink,
		&p.FacebookLink,
		&p.SnapchatLink,
		&p.TiktokLink,
		&p.YoutubeLink,
		&p.JobSectorID,
		&p.JobTitle,
		&p.HeightID,
		&p.CurrentState,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Profile{}, ErrNotFound
		}
		return model.Profile{}, fmt.Errorf("query profile: %w", err)
	}
	return p, nil
}

// GetByUserID retrieves the profile with its interest association set
func (r *profileRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (model.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+profileColumns+` FROM human_profiles WHERE user_id = $1
	`, userID)
	p, err := scanProfile(row)
	if err != nil {
		return model.Profile{}, err
	}

	p.InterestIDs, err = r.loadInterests(ctx, r.db, p.ID)
	if err != nil {
		return model.Profile{}, err
	}
	return p, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *profileRepo) loadInterests(ctx context.Context, q querier, profileID uuid.UUID) ([]int, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT interest_id FROM human_profile_interests
		WHERE profile_id = $1
		ORDER BY interest_id
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("query interests: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan interest: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interests: %w", err)
	}
	return ids, nil
}

// UpsertInterests writes step-2 fields and rewrites the interest set. The
// delete+insert runs inside one transaction under a per-account advisory
// lock so concurrent rewrites for the same account serialize and no reader
// observes a transient empty set.
func (r *profileRepo) UpsertInterests(ctx context.Context, upd InterestsUpdate) (model.Profile, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Profile{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := lockAccount(ctx, tx, upd.UserID); err != nil {
		return model.Profile{}, err
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO human_profiles
			(user_id, official_registration_id, profile_visibility, model_before, price, other_modeling, current_state)
		VALUES ($1, $2, 'public', $3, $4, $5, 'pending')
		ON CONFLICT (user_id) DO UPDATE SET
			model_before   = EXCLUDED.model_before,
			price          = EXCLUDED.price,
			other_modeling = EXCLUDED.other_modeling,
			current_state  = 'in_progress'
		RETURNING `+profileColumns+`
	`, upd.UserID, upd.OfficialRegistrationID, upd.ModelBefore, upd.Price, upd.OtherModeling)
	p, err := scanProfile(row)
	if err != nil {
		return model.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM human_profile_interests WHERE profile_id = $1
	`, p.ID); err != nil {
		return model.Profile{}, fmt.Errorf("clear interests: %w", err)
	}

	for _, id := range dedupe(upd.InterestIDs) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO human_profile_interests (profile_id, interest_id) VALUES ($1, $2)
		`, p.ID, id); err != nil {
			return model.Profile{}, fmt.Errorf("insert interest %d: %w", id, err)
		}
	}

	p.InterestIDs, err = r.loadInterests(ctx, tx, p.ID)
	if err != nil {
		return model.Profile{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.Profile{}, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

// UpsertProfile writes the step-3 fields
func (r *profileRepo) UpsertProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO human_profiles
			(user_id, official_registration_id, brief_intro, profile_visibility,
			 twitter_link, instagram_link, facebook_link, snapchat_link, tiktok_link, youtube_link,
			 job_sector_id, job_title, height_id, current_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 'pending')
		ON CONFLICT (user_id) DO UPDATE SET
			brief_intro        = EXCLUDED.brief_intro,
			profile_visibility = EXCLUDED.profile_visibility,
			twitter_link       = EXCLUDED.twitter_link,
			instagram_link     = EXCLUDED.instagram_link,
			facebook_link      = EXCLUDED.facebook_link,
			snapchat_link      = EXCLUDED.snapchat_link,
			tiktok_link        = EXCLUDED.tiktok_link,
			youtube_link       = EXCLUDED.youtube_link,
			job_sector_id      = EXCLUDED.job_sector_id,
			job_title          = EXCLUDED.job_title,
			height_id          = EXCLUDED.height_id,
			current_state      = 'in_progress'
		RETURNING `+profileColumns+`
	`, p.UserID, p.OfficialRegistrationID, p.BriefIntro, p.ProfileVisibility,
		p.TwitterLink, p.InstagramLink, p.FacebookLink, p.SnapchatLink, p.TiktokLink, p.YoutubeLink,
		p.JobSectorID, p.JobTitle, p.HeightID)
	out, err := scanProfile(row)
	if err != nil {
		return model.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}
	out.InterestIDs, err = r.loadInterests(ctx, r.db, out.ID)
	if err != nil {
		return model.Profile{}, err
	}
	return out, nil
}

// UpsertHeight writes only the height reference (legacy step-2 cross-write)
func (r *profileRepo) UpsertHeight(ctx context.Context, userID, officialRegistrationID uuid.UUID, heightID int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO human_profiles
			(user_id, official_registration_id, profile_visibility, height_id, current_state)
		VALUES ($1, $2, 'public', $3, 'pending')
		ON CONFLICT (user_id) DO UPDATE SET height_id = EXCLUDED.height_id
	`, userID, officialRegistrationID, heightID)
	if err != nil {
		return fmt.Errorf("upsert height: %w", err)
	}
	return nil
}

// lockAccount serializes association rewrites per account. Held until
// COMMIT/ROLLBACK, same idiom as per-phone OTP session replacement.
func lockAccount(ctx context.Context, tx *sql.Tx, userID uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(2, hashtext($1))`, userID.String()); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}

// dedupe removes duplicate ids preserving first-seen order.
func dedupe(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

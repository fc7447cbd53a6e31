package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/lucas6028/silver-server/types"
)

// ProfileRepository handles persistence for user profiles.
type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Get(ctx context.Context, uid string) (types.UserProfile, error) {
	const query = `
		SELECT id, provider, display_name, email, avatar_url, password_hash, team_ids, created_at, updated_at
		FROM profiles
		WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, uid))
}

func (r *ProfileRepository) GetByProviderEmail(ctx context.Context, provider, email string) (types.UserProfile, error) {
	const query = `
		SELECT id, provider, display_name, email, avatar_url, password_hash, team_ids, created_at, updated_at
		FROM profiles
		WHERE provider = $1 AND email = $2`
	return r.scanOne(r.db.QueryRowContext(ctx, query, provider, email))
}

func (r *ProfileRepository) Create(ctx context.Context, profile types.UserProfile) (types.UserProfile, error) {
	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	if profile.TeamIDs == nil {
		profile.TeamIDs = []string{}
	}

	teamIDsJSON, err := json.Marshal(profile.TeamIDs)
	if err != nil {
		return types.UserProfile{}, err
	}

	const query = `
		INSERT INTO profiles (id, provider, display_name, email, avatar_url, password_hash, team_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		profile.UID,
		profile.Provider,
		profile.DisplayName,
		profile.Email,
		profile.AvatarURL,
		profile.PasswordHash,
		teamIDsJSON,
		profile.CreatedAt,
		profile.UpdatedAt,
	); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return types.UserProfile{}, fmt.Errorf("profile exists: %w", ErrConflict)
		}
		return types.UserProfile{}, err
	}
	return profile, nil
}

func (r *ProfileRepository) Update(ctx context.Context, profile types.UserProfile) (types.UserProfile, error) {
	profile.UpdatedAt = time.Now()

	teamIDsJSON, err := json.Marshal(profile.TeamIDs)
	if err != nil {
		return types.UserProfile{}, err
	}

	const query = `
		UPDATE profiles
		SET display_name = $1,
			email = $2,
			avatar_url = $3,
			password_hash = $4,
			team_ids = $5,
			updated_at = $6
		WHERE id = $7`
	result, err := r.db.ExecContext(
		ctx,
		query,
		profile.DisplayName,
		profile.Email,
		profile.AvatarURL,
		profile.PasswordHash,
		teamIDsJSON,
		profile.UpdatedAt,
		profile.UID,
	)
	if err != nil {
		return types.UserProfile{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.UserProfile{}, err
	}
	if affected == 0 {
		return types.UserProfile{}, ErrNotFound
	}
	return profile, nil
}

// AddTeamID appends teamID to the profile's team list if not already
// present. This is the array-union primitive.
func (r *ProfileRepository) AddTeamID(ctx context.Context, uid, teamID string) error {
	const query = `
		UPDATE profiles
		SET team_ids = team_ids || to_jsonb($2::text),
			updated_at = $3
		WHERE id = $1 AND NOT team_ids @> to_jsonb($2::text)`
	result, err := r.db.ExecContext(ctx, query, uid, teamID, time.Now())
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected > 0 {
		return nil
	}
	// Either the profile is missing or the id was already present.
	if _, err := r.Get(ctx, uid); err != nil {
		return err
	}
	return nil
}

// RemoveTeamID deletes teamID from the profile's team list. This is the
// array-remove primitive.
func (r *ProfileRepository) RemoveTeamID(ctx context.Context, uid, teamID string) error {
	const query = `
		UPDATE profiles
		SET team_ids = team_ids - $2,
			updated_at = $3
		WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, uid, teamID, time.Now())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProfileRepository) scanOne(row *sql.Row) (types.UserProfile, error) {
	var profile types.UserProfile
	var teamIDsJSON []byte
	err := row.Scan(
		&profile.UID,
		&profile.Provider,
		&profile.DisplayName,
		&profile.Email,
		&profile.AvatarURL,
		&profile.PasswordHash,
		&teamIDsJSON,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.UserProfile{}, ErrNotFound
		}
		return types.UserProfile{}, err
	}
	_ = json.Unmarshal(teamIDsJSON, &profile.TeamIDs)
	return profile, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/lucas6028/silver-server/types"
)

// TeamRepository handles persistence for teams.
type TeamRepository struct {
	db *sql.DB
}

func NewTeamRepository(db *sql.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

func (r *TeamRepository) Get(ctx context.Context, id string) (types.Team, error) {
	const query = `
		SELECT id, name, code, members, created_by, created_at, updated_at
		FROM teams
		WHERE id = $1`
	return scanTeam(r.db.QueryRowContext(ctx, query, id))
}

// GetByCode looks up a team by exact join-code match. Codes are stored
// uppercase; callers normalize before lookup.
func (r *TeamRepository) GetByCode(ctx context.Context, code string) (types.Team, error) {
	const query = `
		SELECT id, name, code, members, created_by, created_at, updated_at
		FROM teams
		WHERE code = $1
		ORDER BY created_at
		LIMIT 1`
	return scanTeam(r.db.QueryRowContext(ctx, query, code))
}

// ListByIDs fetches the given teams ordered oldest first. Team lists keep
// a stable ascending order, unlike the newest-first problem board. Missing
// ids are skipped, not errors: a team the user still references may have
// been deleted by its last member.
func (r *TeamRepository) ListByIDs(ctx context.Context, ids []string) ([]types.Team, error) {
	if len(ids) == 0 {
		return []types.Team{}, nil
	}

	const query = `
		SELECT id, name, code, members, created_by, created_at, updated_at
		FROM teams
		WHERE id = ANY($1)
		ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := make([]types.Team, 0, len(ids))
	for rows.Next() {
		var team types.Team
		var membersJSON []byte
		if err := rows.Scan(
			&team.ID,
			&team.Name,
			&team.Code,
			&membersJSON,
			&team.CreatedBy,
			&team.CreatedAt,
			&team.UpdatedAt,
		); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(membersJSON, &team.Members)
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return teams, nil
}

func (r *TeamRepository) Create(ctx context.Context, team types.Team) (types.Team, error) {
	now := time.Now()
	team.CreatedAt = now
	team.UpdatedAt = now

	membersJSON, err := json.Marshal(team.Members)
	if err != nil {
		return types.Team{}, err
	}

	const query = `
		INSERT INTO teams (id, name, code, members, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		team.ID,
		team.Name,
		team.Code,
		membersJSON,
		team.CreatedBy,
		team.CreatedAt,
		team.UpdatedAt,
	); err != nil {
		return types.Team{}, err
	}
	return team, nil
}

// UpdateMembers replaces the roster.
func (r *TeamRepository) UpdateMembers(ctx context.Context, id string, members []types.TeamMember) error {
	membersJSON, err := json.Marshal(members)
	if err != nil {
		return err
	}

	const query = `
		UPDATE teams
		SET members = $2,
			updated_at = $3
		WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, membersJSON, time.Now())
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

func (r *TeamRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM teams WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
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

func scanTeam(row *sql.Row) (types.Team, error) {
	var team types.Team
	var membersJSON []byte
	err := row.Scan(
		&team.ID,
		&team.Name,
		&team.Code,
		&membersJSON,
		&team.CreatedBy,
		&team.CreatedAt,
		&team.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Team{}, ErrNotFound
		}
		return types.Team{}, err
	}
	_ = json.Unmarshal(membersJSON, &team.Members)
	return team, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lucas6028/silver-server/types"
)

// ProblemRepository handles persistence for problems.
type ProblemRepository struct {
	db *sql.DB
}

func NewProblemRepository(db *sql.DB) *ProblemRepository {
	return &ProblemRepository{db: db}
}

// ListByAssignee returns every problem whose assignee set contains uid,
// newest first. An empty result is a valid state, not an error.
func (r *ProblemRepository) ListByAssignee(ctx context.Context, uid string) ([]types.Problem, error) {
	const query = `
		SELECT id, title, platform, difficulty, status, tags, assignees, url, balloon_color, created_by, created_at, updated_at
		FROM problems
		WHERE assignees @> to_jsonb($1::text)
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	problems := make([]types.Problem, 0)
	for rows.Next() {
		problem, err := scanProblemRow(rows)
		if err != nil {
			return nil, err
		}
		problems = append(problems, problem)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return problems, nil
}

func (r *ProblemRepository) Get(ctx context.Context, id string) (types.Problem, error) {
	const query = `
		SELECT id, title, platform, difficulty, status, tags, assignees, url, balloon_color, created_by, created_at, updated_at
		FROM problems
		WHERE id = $1`

	var problem types.Problem
	var tagsJSON, assigneesJSON []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&problem.ID,
		&problem.Title,
		&problem.Platform,
		&problem.Difficulty,
		&problem.Status,
		&tagsJSON,
		&assigneesJSON,
		&problem.URL,
		&problem.BalloonColor,
		&problem.CreatedBy,
		&problem.CreatedAt,
		&problem.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Problem{}, ErrNotFound
		}
		return types.Problem{}, err
	}
	_ = json.Unmarshal(tagsJSON, &problem.Tags)
	_ = json.Unmarshal(assigneesJSON, &problem.Assignees)
	return problem, nil
}

func (r *ProblemRepository) Create(ctx context.Context, problem types.Problem) (types.Problem, error) {
	now := time.Now()
	problem.CreatedAt = now
	problem.UpdatedAt = now
	if problem.Tags == nil {
		problem.Tags = []string{}
	}

	tagsJSON, err := json.Marshal(problem.Tags)
	if err != nil {
		return types.Problem{}, err
	}
	assigneesJSON, err := json.Marshal(problem.Assignees)
	if err != nil {
		return types.Problem{}, err
	}

	const query = `
		INSERT INTO problems (id, title, platform, difficulty, status, tags, assignees, url, balloon_color, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		problem.ID,
		problem.Title,
		problem.Platform,
		problem.Difficulty,
		problem.Status,
		tagsJSON,
		assigneesJSON,
		problem.URL,
		problem.BalloonColor,
		problem.CreatedBy,
		problem.CreatedAt,
		problem.UpdatedAt,
	); err != nil {
		return types.Problem{}, err
	}
	return problem, nil
}

// UpdateStatus writes the status and, when non-empty, the balloon color.
// The color column is only ever written once; the guard lives in the
// service layer, the store just refuses to blank an existing color.
func (r *ProblemRepository) UpdateStatus(ctx context.Context, id string, status types.Status, balloonColor string) error {
	const query = `
		UPDATE problems
		SET status = $2,
			balloon_color = CASE WHEN balloon_color = '' THEN $3 ELSE balloon_color END,
			updated_at = $4
		WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, balloonColor, time.Now())
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

// AddAssignee appends uid to the assignee set if absent. This is the
// array-union primitive.
func (r *ProblemRepository) AddAssignee(ctx context.Context, id, uid string) error {
	const query = `
		UPDATE problems
		SET assignees = assignees || to_jsonb($2::text),
			updated_at = $3
		WHERE id = $1 AND NOT assignees @> to_jsonb($2::text)`
	result, err := r.db.ExecContext(ctx, query, id, uid, time.Now())
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected > 0 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return nil
}

// RemoveAssignee deletes uid from the assignee set. This is the
// array-remove primitive.
func (r *ProblemRepository) RemoveAssignee(ctx context.Context, id, uid string) error {
	const query = `
		UPDATE problems
		SET assignees = assignees - $2,
			updated_at = $3
		WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, uid, time.Now())
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

func (r *ProblemRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM problems WHERE id = $1`
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

func scanProblemRow(rows *sql.Rows) (types.Problem, error) {
	var problem types.Problem
	var tagsJSON, assigneesJSON []byte
	if err := rows.Scan(
		&problem.ID,
		&problem.Title,
		&problem.Platform,
		&problem.Difficulty,
		&problem.Status,
		&tagsJSON,
		&assigneesJSON,
		&problem.URL,
		&problem.BalloonColor,
		&problem.CreatedBy,
		&problem.CreatedAt,
		&problem.UpdatedAt,
	); err != nil {
		return types.Problem{}, err
	}
	_ = json.Unmarshal(tagsJSON, &problem.Tags)
	_ = json.Unmarshal(assigneesJSON, &problem.Assignees)
	return problem, nil
}

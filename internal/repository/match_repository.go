package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devmatch/request-service/internal/domain"
	"github.com/devmatch/request-service/internal/workflow"
)

// MatchRepository manages developer applications. It satisfies
// workflow.MatchReader for the transition engine's eligibility guard.
type MatchRepository interface {
	Create(ctx context.Context, match *domain.Match) error
	GetByID(ctx context.Context, id string) (*domain.Match, error)
	GetByRequestAndDeveloper(ctx context.Context, requestID, developerID string) (*domain.Match, error)
	ListByRequest(ctx context.Context, requestID string) ([]domain.Match, error)
	UpdateStatus(ctx context.Context, id string, status domain.MatchStatus) error
	Delete(ctx context.Context, id string) error
}

type matchRepository struct {
	pool *pgxpool.Pool
}

// NewMatchRepository instantiates the repository.
func NewMatchRepository(pool *pgxpool.Pool) MatchRepository {
	return &matchRepository{pool: pool}
}

func (r *matchRepository) Create(ctx context.Context, match *domain.Match) error {
	const query = `
        INSERT INTO request_matches (request_id, developer_id, status, pitch)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		match.RequestID,
		match.DeveloperID,
		match.Status,
		match.Pitch,
	).Scan(&match.ID, &match.CreatedAt, &match.UpdatedAt)
}

func (r *matchRepository) GetByID(ctx context.Context, id string) (*domain.Match, error) {
	const query = `
        SELECT id, request_id, developer_id, status, pitch, created_at, updated_at
        FROM request_matches WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *matchRepository) GetByRequestAndDeveloper(ctx context.Context, requestID, developerID string) (*domain.Match, error) {
	const query = `
        SELECT id, request_id, developer_id, status, pitch, created_at, updated_at
        FROM request_matches WHERE request_id=$1 AND developer_id=$2
        ORDER BY created_at DESC LIMIT 1`
	match, err := r.fetchSingle(ctx, query, requestID, developerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, workflow.ErrNoMatch
		}
		return nil, err
	}
	return match, nil
}

func (r *matchRepository) ListByRequest(ctx context.Context, requestID string) ([]domain.Match, error) {
	const query = `
        SELECT id, request_id, developer_id, status, pitch, created_at, updated_at
        FROM request_matches WHERE request_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Match
	for rows.Next() {
		var match domain.Match
		if err := rows.Scan(
			&match.ID,
			&match.RequestID,
			&match.DeveloperID,
			&match.Status,
			&match.Pitch,
			&match.CreatedAt,
			&match.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, match)
	}
	return result, rows.Err()
}

func (r *matchRepository) UpdateStatus(ctx context.Context, id string, status domain.MatchStatus) error {
	const query = `UPDATE request_matches SET status=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *matchRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM request_matches WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *matchRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Match, error) {
	var match domain.Match
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&match.ID,
		&match.RequestID,
		&match.DeveloperID,
		&match.Status,
		&match.Pitch,
		&match.CreatedAt,
		&match.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &match, nil
}

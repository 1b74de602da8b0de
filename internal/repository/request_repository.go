package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devmatch/request-service/internal/domain"
	"github.com/devmatch/request-service/internal/workflow"
)

// RequestFilter captures listing parameters.
type RequestFilter struct {
	ClientID    *string
	DeveloperID *string
	Statuses    []domain.RequestStatus
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// RequestRepository encapsulates request persistence. It satisfies
// workflow.RequestStore, which is all the transition engine depends on.
type RequestRepository interface {
	Create(ctx context.Context, request *domain.Request) error
	GetByID(ctx context.Context, id string) (*domain.Request, error)
	CompareAndUpdate(ctx context.Context, id string, expectedStatus domain.RequestStatus, patch domain.RequestPatch) (*domain.Request, error)
	ListWithFilter(ctx context.Context, filter RequestFilter) ([]domain.Request, error)
}

type requestRepository struct {
	pool *pgxpool.Pool
}

// NewRequestRepository instantiates a Postgres-backed repository.
func NewRequestRepository(pool *pgxpool.Pool) RequestRepository {
	return &requestRepository{pool: pool}
}

const requestColumns = `id, external_key, client_id, developer_id, title, description, status, tags,
               created_at, updated_at, qa_started_at, review_started_at, completed_at`

func (r *requestRepository) Create(ctx context.Context, request *domain.Request) error {
	const query = `
        INSERT INTO requests (external_key, client_id, developer_id, title, description, status, tags)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		request.ExternalKey,
		request.ClientID,
		request.DeveloperID,
		request.Title,
		request.Description,
		request.Status,
		request.Tags,
	).Scan(&request.ID, &request.CreatedAt, &request.UpdatedAt)
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id=$1`
	request, err := scanRequest(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, workflow.ErrRequestMissing
		}
		return nil, err
	}
	return request, nil
}

// CompareAndUpdate writes the patch only when the stored status still equals
// expectedStatus. The status predicate in the WHERE clause is what serializes
// concurrent writers; there is no separate read-then-blind-write path.
func (r *requestRepository) CompareAndUpdate(ctx context.Context, id string, expectedStatus domain.RequestStatus, patch domain.RequestPatch) (*domain.Request, error) {
	const query = `
        UPDATE requests SET status=$1,
            developer_id=COALESCE($2, developer_id),
            qa_started_at=COALESCE($3, qa_started_at),
            review_started_at=COALESCE($4, review_started_at),
            completed_at=COALESCE($5, completed_at),
            updated_at=NOW()
        WHERE id=$6 AND status=$7
        RETURNING ` + requestColumns
	request, err := scanRequest(r.pool.QueryRow(ctx, query,
		patch.Status,
		patch.DeveloperID,
		patch.QAStartedAt,
		patch.ReviewStartedAt,
		patch.CompletedAt,
		id,
		expectedStatus,
	))
	if err == nil {
		return request, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// Zero rows means either the request is gone or another writer moved the
	// status first. Distinguish so the engine can report Conflict vs NotFound.
	var exists bool
	if checkErr := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM requests WHERE id=$1)`, id).Scan(&exists); checkErr != nil {
		return nil, checkErr
	}
	if !exists {
		return nil, workflow.ErrRequestMissing
	}
	return nil, workflow.ErrStaleStatus
}

func (r *requestRepository) ListWithFilter(ctx context.Context, filter RequestFilter) ([]domain.Request, error) {
	base := `SELECT ` + requestColumns + ` FROM requests`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		clauses = append(clauses, fmt.Sprintf("client_id=$%d", len(args)))
	}
	if filter.DeveloperID != nil {
		args = append(args, *filter.DeveloperID)
		clauses = append(clauses, fmt.Sprintf("developer_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Request
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *request)
	}
	return result, rows.Err()
}

func scanRequest(row pgx.Row) (*domain.Request, error) {
	var request domain.Request
	if err := row.Scan(
		&request.ID,
		&request.ExternalKey,
		&request.ClientID,
		&request.DeveloperID,
		&request.Title,
		&request.Description,
		&request.Status,
		&request.Tags,
		&request.CreatedAt,
		&request.UpdatedAt,
		&request.QAStartedAt,
		&request.ReviewStartedAt,
		&request.CompletedAt,
	); err != nil {
		return nil, err
	}
	return &request, nil
}

package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devmatch/request-service/internal/domain"
)

// RequestHistoryRepository stores audit entries. The table is append-only;
// there is deliberately no update or delete.
type RequestHistoryRepository interface {
	Append(ctx context.Context, entry *domain.RequestHistory) error
	ListByRequest(ctx context.Context, requestID string, limit, offset int) ([]domain.RequestHistory, error)
}

type requestHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewRequestHistoryRepository builds the repository.
func NewRequestHistoryRepository(pool *pgxpool.Pool) RequestHistoryRepository {
	return &requestHistoryRepository{pool: pool}
}

func (r *requestHistoryRepository) Append(ctx context.Context, entry *domain.RequestHistory) error {
	const query = `
        INSERT INTO request_history (id, request_id, change_type, previous_status, new_status, changed_by, changed_by_role, changed_at, details)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.RequestID,
		entry.ChangeType,
		entry.PreviousStatus,
		entry.NewStatus,
		entry.ChangedBy,
		entry.ChangedByRole,
		entry.ChangedAt,
		entry.Details,
	)
	return err
}

func (r *requestHistoryRepository) ListByRequest(ctx context.Context, requestID string, limit, offset int) ([]domain.RequestHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, request_id, change_type, previous_status, new_status, changed_by, changed_by_role, changed_at, details
        FROM request_history WHERE request_id=$1 ORDER BY changed_at ASC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, requestID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.RequestHistory
	for rows.Next() {
		var entry domain.RequestHistory
		if err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.ChangeType,
			&entry.PreviousStatus,
			&entry.NewStatus,
			&entry.ChangedBy,
			&entry.ChangedByRole,
			&entry.ChangedAt,
			&entry.Details,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

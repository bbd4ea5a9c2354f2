package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists audit entries.
type Repository interface {
	Insert(ctx context.Context, entry Entry) error
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a Postgres-backed implementation.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

// Insert is idempotent per event id.
func (r *pgRepository) Insert(ctx context.Context, entry Entry) error {
	const query = `
        INSERT INTO audit_log (id, event_id, event_type, subject_id, actor_id, actor_role, payload, occurred_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (event_id) DO NOTHING`

	var payload any
	if len(entry.Payload) > 0 {
		payload = []byte(entry.Payload)
	}

	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.EventID,
		entry.EventType,
		entry.SubjectID,
		entry.ActorID,
		entry.ActorRole,
		payload,
		entry.OccurredAt,
	)
	return err
}

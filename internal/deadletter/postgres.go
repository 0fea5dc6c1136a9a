package deadletter

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS rejected_records (
	id           UUID PRIMARY KEY,
	domain       TEXT NOT NULL,
	record_key   TEXT NOT NULL,
	reason       TEXT NOT NULL,
	detail       TEXT NOT NULL DEFAULT '',
	payload      JSONB,
	rejected_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS rejected_records_domain_time_idx
	ON rejected_records (domain, rejected_at);
`

// PostgresSink writes rejections to the rejected_records table in the meta
// database.
type PostgresSink struct {
	db *pgxpool.Pool
}

// NewPostgresSink creates a sink backed by the meta database.
func NewPostgresSink(db *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{db: db}
}

// EnsureSchema creates the dead-letter table if it does not exist.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create rejected_records schema: %w", err)
	}
	return nil
}

// Record inserts rejections in one batch.
func (s *PostgresSink) Record(ctx context.Context, rejections []Rejection) error {
	if len(rejections) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range rejections {
		batch.Queue(`
			INSERT INTO rejected_records (id, domain, record_key, reason, detail, payload, rejected_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, string(r.Domain), r.Key, r.Reason, r.Detail, r.Payload, r.RejectedAt)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rejections {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert rejection: %w", err)
		}
	}
	return nil
}

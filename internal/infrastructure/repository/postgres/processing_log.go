package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

// ProcessingLogStore is the append-only record of per-stage outcomes.
type ProcessingLogStore struct {
	db *sql.DB
}

func NewProcessingLogStore(db *sql.DB) *ProcessingLogStore {
	return &ProcessingLogStore{db: db}
}

func (s *ProcessingLogStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082103)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS processing_log (
	id BIGSERIAL PRIMARY KEY,
	document_id TEXT NOT NULL,
	stage TEXT NOT NULL,
	status TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_processing_log_document ON processing_log(document_id, created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *ProcessingLogStore) Append(ctx context.Context, entry domain.ProcessingLogEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO processing_log (document_id, stage, status, confidence, duration_ms, error, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		entry.DocumentID, string(entry.Stage), string(entry.Status),
		entry.Confidence, entry.Duration.Milliseconds(), entry.Error, createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert processing log entry: %w", err)
	}
	return nil
}

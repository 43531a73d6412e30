package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

// RunStateStore keeps one tracking row per document so run status
// survives restarts and is visible to every instance.
type RunStateStore struct {
	db *sql.DB
}

func NewRunStateStore(db *sql.DB) *RunStateStore {
	return &RunStateStore{db: db}
}

func (s *RunStateStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082104)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS processing_runs (
	document_id TEXT PRIMARY KEY,
	phase TEXT NOT NULL,
	stage TEXT NOT NULL DEFAULT '',
	progress INT NOT NULL DEFAULT 0,
	message TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *RunStateStore) Put(ctx context.Context, state domain.RunState) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO processing_runs (document_id, phase, stage, progress, message, started_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (document_id) DO UPDATE
SET phase = EXCLUDED.phase,
	stage = EXCLUDED.stage,
	progress = EXCLUDED.progress,
	message = EXCLUDED.message,
	started_at = EXCLUDED.started_at,
	updated_at = EXCLUDED.updated_at
`,
		state.DocumentID, string(state.Phase), string(state.Stage),
		state.Progress, state.Message, state.StartedAt, state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert run state: %w", err)
	}
	return nil
}

func (s *RunStateStore) Get(ctx context.Context, documentID string) (*domain.RunState, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT document_id, phase, stage, progress, message, started_at, updated_at
FROM processing_runs
WHERE document_id = $1
`, documentID)

	var state domain.RunState
	var phase, stage string

	err := row.Scan(&state.DocumentID, &phase, &stage, &state.Progress, &state.Message, &state.StartedAt, &state.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan run state: %w", err)
	}
	state.Phase = domain.RunPhase(phase)
	state.Stage = domain.Stage(stage)
	return &state, nil
}

// MarkCancelled flips queued or running runs to cancelled. Finished
// runs are left alone and reported as not cancellable.
func (s *RunStateStore) MarkCancelled(ctx context.Context, documentID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
UPDATE processing_runs
SET phase = $2, updated_at = $3
WHERE document_id = $1 AND phase IN ($4, $5)
`,
		documentID, string(domain.RunCancelled), time.Now().UTC(),
		string(domain.RunQueued), string(domain.RunRunning),
	)
	if err != nil {
		return false, fmt.Errorf("mark run cancelled: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark run cancelled rows: %w", err)
	}
	return rows > 0, nil
}

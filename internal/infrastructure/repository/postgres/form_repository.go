package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

const pgUniqueViolation = "23505"

type FormRepository struct {
	db *sql.DB
}

func NewFormRepository(db *sql.DB) *FormRepository {
	return &FormRepository{db: db}
}

func (r *FormRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082102)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS tax_forms (
	id TEXT PRIMARY KEY,
	client_id TEXT NOT NULL,
	form_type TEXT NOT NULL,
	tax_year INT NOT NULL,
	status TEXT NOT NULL,
	fields JSONB NOT NULL DEFAULT '{}'::jsonb,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	requires_review BOOLEAN NOT NULL DEFAULT FALSE,
	source_documents JSONB NOT NULL DEFAULT '[]'::jsonb,
	version BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (client_id, form_type, tax_year)
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

func (r *FormRepository) GetForm(ctx context.Context, clientID string, formType domain.FormType, taxYear int) (*domain.TaxForm, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, client_id, form_type, tax_year, status, fields, confidence, requires_review, source_documents, version, created_at, updated_at
FROM tax_forms
WHERE client_id = $1 AND form_type = $2 AND tax_year = $3
`, clientID, string(formType), taxYear)

	var form domain.TaxForm
	var formTypeRaw, status string
	var fieldsRaw, sourcesRaw []byte

	err := row.Scan(
		&form.ID, &form.ClientID, &formTypeRaw, &form.TaxYear, &status,
		&fieldsRaw, &form.Confidence, &form.RequiresReview, &sourcesRaw, &form.Version,
		&form.CreatedAt, &form.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrFormNotFound, "get form",
				fmt.Errorf("client %s type %s year %d", clientID, formType, taxYear))
		}
		return nil, fmt.Errorf("scan form: %w", err)
	}
	form.Type = domain.FormType(formTypeRaw)
	form.Status = domain.FormStatus(status)

	if err := json.Unmarshal(fieldsRaw, &form.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal form fields: %w", err)
	}
	if err := json.Unmarshal(sourcesRaw, &form.SourceDocuments); err != nil {
		return nil, fmt.Errorf("unmarshal source documents: %w", err)
	}
	if form.Fields == nil {
		form.Fields = make(map[string]domain.FormField)
	}
	return &form, nil
}

// CreateForm inserts the first record for a (client, form type, tax
// year). Losing the insert race to a concurrent writer surfaces as
// ErrFormVersionConflict so the caller re-reads and merges into the
// winner's row instead of dropping its contribution.
func (r *FormRepository) CreateForm(ctx context.Context, form *domain.TaxForm) error {
	fieldsRaw, sourcesRaw, err := marshalFormPayload(form)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO tax_forms (
	id, client_id, form_type, tax_year, status, fields, confidence, requires_review, source_documents, version, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		form.ID, form.ClientID, string(form.Type), form.TaxYear, string(form.Status),
		fieldsRaw, form.Confidence, form.RequiresReview, sourcesRaw, form.Version,
		form.CreatedAt, form.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.WrapError(domain.ErrFormVersionConflict, "create form", err)
		}
		return fmt.Errorf("insert form: %w", err)
	}
	return nil
}

// UpdateForm writes the merged record only when the stored version
// still matches expectedVersion, bumping it by one. A lost race
// surfaces as ErrFormVersionConflict so the caller can re-read and
// retry the merge.
func (r *FormRepository) UpdateForm(ctx context.Context, form *domain.TaxForm, expectedVersion int64) error {
	fieldsRaw, sourcesRaw, err := marshalFormPayload(form)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
UPDATE tax_forms
SET status = $2, fields = $3, confidence = $4, requires_review = $5, source_documents = $6, version = version + 1, updated_at = $7
WHERE id = $1 AND version = $8
`,
		form.ID, string(form.Status), fieldsRaw, form.Confidence, form.RequiresReview,
		sourcesRaw, time.Now().UTC(), expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update form: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update form rows: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrFormVersionConflict, "update form",
			fmt.Errorf("form %s expected version %d", form.ID, expectedVersion))
	}
	form.Version = expectedVersion + 1
	return nil
}

func marshalFormPayload(form *domain.TaxForm) ([]byte, []byte, error) {
	fields := form.Fields
	if fields == nil {
		fields = make(map[string]domain.FormField)
	}
	fieldsRaw, err := json.Marshal(fields)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal form fields: %w", err)
	}

	sources := form.SourceDocuments
	if sources == nil {
		sources = []string{}
	}
	sourcesRaw, err := json.Marshal(sources)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal source documents: %w", err)
	}
	return fieldsRaw, sourcesRaw, nil
}

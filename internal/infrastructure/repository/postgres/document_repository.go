package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	client_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	status TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	ocr_result JSONB,
	analysis_result JSONB,
	autofill_result JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_client ON documents(client_id);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, client_id, filename, mime_type, storage_path, status, message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		doc.ID, doc.ClientID, doc.Filename, doc.MimeType, doc.StoragePath,
		string(doc.Status), doc.Message, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, client_id, filename, mime_type, storage_path, status, message, ocr_result, analysis_result, autofill_result, created_at, updated_at
FROM documents
WHERE id = $1
`, id)

	var doc domain.Document
	var status string
	var ocrRaw, analysisRaw, autofillRaw []byte

	err := row.Scan(
		&doc.ID, &doc.ClientID, &doc.Filename, &doc.MimeType, &doc.StoragePath,
		&status, &doc.Message, &ocrRaw, &analysisRaw, &autofillRaw, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)

	if len(ocrRaw) > 0 {
		if err := json.Unmarshal(ocrRaw, &doc.OCR); err != nil {
			return nil, fmt.Errorf("unmarshal ocr result: %w", err)
		}
	}
	if len(analysisRaw) > 0 {
		if err := json.Unmarshal(analysisRaw, &doc.Analysis); err != nil {
			return nil, fmt.Errorf("unmarshal analysis result: %w", err)
		}
	}
	if len(autofillRaw) > 0 {
		if err := json.Unmarshal(autofillRaw, &doc.AutoFill); err != nil {
			return nil, fmt.Errorf("unmarshal autofill result: %w", err)
		}
	}
	return &doc, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, message string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireDocument(result, "update document status", id)
}

func (r *DocumentRepository) SaveOCRResult(ctx context.Context, id string, ocr *domain.OCRResult) error {
	return r.saveResultColumn(ctx, "ocr_result", "save ocr result", id, ocr)
}

func (r *DocumentRepository) SaveAnalysisResult(ctx context.Context, id string, analysis *domain.AnalysisResult) error {
	return r.saveResultColumn(ctx, "analysis_result", "save analysis result", id, analysis)
}

func (r *DocumentRepository) SaveAutoFillResult(ctx context.Context, id string, autofill *domain.AutoFillResult) error {
	return r.saveResultColumn(ctx, "autofill_result", "save autofill result", id, autofill)
}

func (r *DocumentRepository) saveResultColumn(ctx context.Context, column, operation, id string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", column, err)
	}

	// column is one of three fixed names, never caller input.
	query := fmt.Sprintf(`UPDATE documents SET %s = $2, updated_at = $3 WHERE id = $1`, column)
	result, err := r.db.ExecContext(ctx, query, id, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return requireDocument(result, operation, id)
}

// BeginProcessing admits a run only when the document is not already
// held by one. The guarded update is the single authority; no separate
// read-then-write.
func (r *DocumentRepository) BeginProcessing(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, message = '', updated_at = $3
WHERE id = $1 AND status <> $2
`, id, string(domain.StatusProcessing), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("begin processing: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("begin processing rows: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var status string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WrapError(domain.ErrDocumentNotFound, "begin processing", fmt.Errorf("id %s", id))
	}
	if err != nil {
		return fmt.Errorf("begin processing status check: %w", err)
	}
	return domain.WrapError(domain.ErrAlreadyProcessing, "begin processing", fmt.Errorf("document %s is %s", id, status))
}

func requireDocument(result sql.Result, operation, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", operation, err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("id %s", id))
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/knowbase/sales-copilot/internal/core/domain"
)

// IngestRepository persists corpus rebuild runs. One row per run plus one
// row per document processed in that run.
type IngestRepository struct {
	db *sql.DB
}

func NewIngestRepository(db *sql.DB) *IngestRepository {
	return &IngestRepository{db: db}
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

func (r *IngestRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS ingest_runs (
	run_id TEXT PRIMARY KEY,
	generation TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	documents_processed INTEGER NOT NULL,
	total_passages INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS ingest_documents (
	run_id TEXT NOT NULL REFERENCES ingest_runs(run_id) ON DELETE CASCADE,
	filename TEXT NOT NULL,
	doc_type TEXT NOT NULL,
	year TEXT,
	passages INTEGER NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT,
	PRIMARY KEY (run_id, filename)
);

CREATE INDEX IF NOT EXISTS idx_ingest_runs_finished_at ON ingest_runs(finished_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// RecordRun writes the run header and all document rows in one transaction,
// so a pipeline status read never observes a half-written run.
func (r *IngestRepository) RecordRun(ctx context.Context, report *domain.IngestReport) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO ingest_runs (run_id, generation, started_at, finished_at, documents_processed, total_passages)
VALUES ($1,$2,$3,$4,$5,$6)
`,
		report.RunID, report.Generation, report.StartedAt, report.FinishedAt,
		report.DocumentsProcessed, report.TotalPassages,
	)
	if err != nil {
		return fmt.Errorf("insert ingest run: %w", err)
	}

	for _, detail := range report.Details {
		_, err = tx.ExecContext(ctx, `
INSERT INTO ingest_documents (run_id, filename, doc_type, year, passages, status, error_message)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
			report.RunID, detail.Filename, string(detail.DocumentType), detail.Year,
			detail.Passages, string(detail.Status), detail.Error,
		)
		if err != nil {
			return fmt.Errorf("insert ingest document %s: %w", detail.Filename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run tx: %w", err)
	}
	return nil
}

// LastRun returns the most recently finished rebuild with its document rows.
func (r *IngestRepository) LastRun(ctx context.Context) (*domain.IngestReport, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT run_id, generation, started_at, finished_at, documents_processed, total_passages
FROM ingest_runs
ORDER BY finished_at DESC
LIMIT 1
`)

	var report domain.IngestReport
	err := row.Scan(
		&report.RunID, &report.Generation, &report.StartedAt, &report.FinishedAt,
		&report.DocumentsProcessed, &report.TotalPassages,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "last ingest run", err)
		}
		return nil, fmt.Errorf("scan ingest run: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT filename, doc_type, year, passages, status, error_message
FROM ingest_documents
WHERE run_id = $1
ORDER BY filename
`, report.RunID)
	if err != nil {
		return nil, fmt.Errorf("query ingest documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var detail domain.IngestDetail
		var docType, status string
		var year, errMessage sql.NullString
		if err := rows.Scan(&detail.Filename, &docType, &year, &detail.Passages, &status, &errMessage); err != nil {
			return nil, fmt.Errorf("scan ingest document: %w", err)
		}
		detail.DocumentType = domain.DocumentType(docType)
		detail.Status = domain.IngestStatus(status)
		detail.Year = year.String
		detail.Error = errMessage.String
		report.Details = append(report.Details, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingest documents: %w", err)
	}
	return &report, nil
}

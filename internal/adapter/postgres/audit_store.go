package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/CodeAssist/internal/port/audit"
)

const auditColumns = `id, tool, input, output, task_id, request_id, created_at`

// AuditStore persists tool invocation records in the audit_records table.
type AuditStore struct {
	pool *pgxpool.Pool
}

var _ audit.Sink = (*AuditStore)(nil)

// NewAuditStore creates an AuditStore backed by the given pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Write inserts rec. A missing ID or timestamp is filled in.
func (s *AuditStore) Write(ctx context.Context, rec audit.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_records (`+auditColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.Tool, rec.Input, rec.Output,
		nullIfEmpty(rec.TaskID), nullIfEmpty(rec.RequestID), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit record %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns a single record by id.
func (s *AuditStore) Get(ctx context.Context, id string) (audit.Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+auditColumns+` FROM audit_records WHERE id = $1`, id)
	rec, err := scanAuditRecord(row)
	if err != nil {
		return audit.Record{}, notFoundWrap(err, "get audit record %s", id)
	}
	return rec, nil
}

// ListByTask returns the records written while executing a task, oldest first.
func (s *AuditStore) ListByTask(ctx context.Context, taskID string) ([]audit.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+auditColumns+` FROM audit_records
		 WHERE task_id = $1 ORDER BY created_at ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list audit records for task %s: %w", taskID, err)
	}
	return collectAuditRecords(rows)
}

// ListRecent returns the newest records, optionally filtered by tool.
func (s *AuditStore) ListRecent(ctx context.Context, tool string, limit int) ([]audit.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+auditColumns+` FROM audit_records
		 WHERE ($1::text = '' OR tool = $1)
		 ORDER BY created_at DESC LIMIT $2`, tool, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent audit records: %w", err)
	}
	return collectAuditRecords(rows)
}

func collectAuditRecords(rows pgx.Rows) ([]audit.Record, error) {
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		rec, err := scanAuditRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return orEmpty(out), nil
}

func scanAuditRecord(row scannable) (audit.Record, error) {
	var (
		rec       audit.Record
		taskID    *string
		requestID *string
	)
	if err := row.Scan(&rec.ID, &rec.Tool, &rec.Input, &rec.Output, &taskID, &requestID, &rec.CreatedAt); err != nil {
		return audit.Record{}, err
	}
	rec.TaskID = derefString(taskID)
	rec.RequestID = derefString(requestID)
	return rec, nil
}

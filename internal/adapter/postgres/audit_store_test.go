package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/CodeAssist/internal/adapter/postgres"
	"github.com/Strob0t/CodeAssist/internal/config"
	"github.com/Strob0t/CodeAssist/internal/domain"
	"github.com/Strob0t/CodeAssist/internal/port/audit"
)

// setupAuditStore connects to DATABASE_URL, runs all migrations, and returns a
// ready-to-use AuditStore. The pool is closed via t.Cleanup.
func setupAuditStore(t *testing.T) *postgres.AuditStore {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	cfg := config.Defaults().Postgres
	cfg.DSN = dsn
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return postgres.NewAuditStore(pool)
}

func TestAuditStore_WriteAndGet(t *testing.T) {
	store := setupAuditStore(t)
	ctx := context.Background()

	rec := audit.Record{
		ID:        uuid.NewString(),
		Tool:      "code_reviewer",
		Input:     "def f(): pass",
		Output:    "## === CODE REVIEW REPORT ===",
		TaskID:    uuid.NewString(),
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := store.Write(ctx, rec); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Tool != rec.Tool || got.Input != rec.Input || got.Output != rec.Output {
		t.Errorf("record mismatch: got %+v, want %+v", got, rec)
	}
	if got.TaskID != rec.TaskID {
		t.Errorf("task id: got %q, want %q", got.TaskID, rec.TaskID)
	}
	if got.RequestID != "" {
		t.Errorf("request id should be empty, got %q", got.RequestID)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("created_at: got %v, want %v", got.CreatedAt, rec.CreatedAt)
	}
}

func TestAuditStore_GetNotFound(t *testing.T) {
	store := setupAuditStore(t)

	_, err := store.Get(context.Background(), uuid.NewString())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuditStore_ListByTask(t *testing.T) {
	store := setupAuditStore(t)
	ctx := context.Background()
	taskID := uuid.NewString()
	base := time.Now().UTC()

	for i, tool := range []string{"none", "code_reviewer"} {
		rec := audit.Record{
			Tool:      tool,
			Input:     "x",
			Output:    "y",
			TaskID:    taskID,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.Write(ctx, rec); err != nil {
			t.Fatalf("Write %s: %v", tool, err)
		}
	}

	recs, err := store.ListByTask(ctx, taskID)
	if err != nil {
		t.Fatalf("ListByTask: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Tool != "none" || recs[1].Tool != "code_reviewer" {
		t.Errorf("expected oldest first, got %s then %s", recs[0].Tool, recs[1].Tool)
	}
	if recs[0].ID == "" {
		t.Error("expected generated id")
	}
}

func TestAuditStore_ListRecentFiltersByTool(t *testing.T) {
	store := setupAuditStore(t)
	ctx := context.Background()
	tool := "tool_" + uuid.NewString()[:8]

	for range 3 {
		if err := store.Write(ctx, audit.Record{Tool: tool, Input: "i", Output: "o"}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	recs, err := store.ListRecent(ctx, tool, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(recs))
	}
	for _, r := range recs {
		if r.Tool != tool {
			t.Errorf("unexpected tool %q", r.Tool)
		}
	}
}

func TestMigrationVersion(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}
	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	v, err := postgres.MigrationVersion(ctx, dsn)
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if v < 1 {
		t.Errorf("expected version >= 1, got %d", v)
	}
}

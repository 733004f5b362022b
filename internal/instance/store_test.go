package instance

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tessera-io/tessera/model"
)

// testSaveKeepsCallerCurrent asserts the Store contract shared by every
// implementation: after a successful Save the caller's copy carries the
// persisted Version, so a serialized caller can keep saving the same copy
// without ever hitting a conflict.
func testSaveKeepsCallerCurrent(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	inst := &model.WorkflowInstance{
		ID:          uuid.NewString(),
		EntityType:  "Request",
		CurrentStep: "Draft",
		Properties:  model.Properties{},
		CreatedAt:   time.Now().UTC(),
	}
	t.Cleanup(func() { _ = store.Delete(ctx, inst.ID) })

	for i := 0; i < 3; i++ {
		inst.Properties["round"] = model.Number(float64(i))
		if err := store.Save(ctx, inst); err != nil {
			t.Fatalf("Save round %d: %v", i, err)
		}
		stored, err := store.GetByID(ctx, inst.ID)
		if err != nil {
			t.Fatalf("GetByID round %d: %v", i, err)
		}
		if stored.Version != inst.Version {
			t.Fatalf("round %d: caller Version = %d, stored Version = %d", i, inst.Version, stored.Version)
		}
	}
	if inst.Version != 2 {
		t.Errorf("Version = %d after insert and two updates, want 2", inst.Version)
	}

	stale, err := store.GetByID(ctx, inst.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	stale.Version = 0
	err = store.Save(ctx, stale)
	if !model.IsCode(err, model.ErrConflict) {
		t.Fatalf("stale Save code = %q, want %q", model.CodeOf(err), model.ErrConflict)
	}
}

func TestMemoryStoreSaveKeepsCallerCurrent(t *testing.T) {
	testSaveKeepsCallerCurrent(t, NewMemoryStore())
}

// TestPgStoreSaveKeepsCallerCurrent runs the store contract against a real
// database. Set TESSERA_TEST_PG_DSN to enable it.
func TestPgStoreSaveKeepsCallerCurrent(t *testing.T) {
	dsn := os.Getenv("TESSERA_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TESSERA_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS workflow_instances (
			id           TEXT PRIMARY KEY,
			entity_type  TEXT NOT NULL,
			variant      TEXT NOT NULL DEFAULT '',
			current_step TEXT NOT NULL DEFAULT '',
			properties   JSONB,
			events       JSONB,
			parent_id    TEXT,
			version      BIGINT NOT NULL DEFAULT 0,
			created_at   TIMESTAMPTZ NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}

	testSaveKeepsCallerCurrent(t, NewPgStore(pool))
}

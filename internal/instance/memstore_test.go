package instance

import (
	"context"
	"testing"
	"time"

	"github.com/tessera-io/tessera/model"
)

func storedInstance(id, entityType string, created time.Time) *model.WorkflowInstance {
	return &model.WorkflowInstance{
		ID:         id,
		EntityType: entityType,
		Properties: model.Properties{},
		CreatedAt:  created,
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	inst := storedInstance("wi-1", "Request", time.Now())
	if err := store.Save(ctx, inst); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.GetByID(ctx, "wi-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ID != "wi-1" || got.EntityType != "Request" {
		t.Errorf("got = %+v", got)
	}

	// The store hands out copies; mutating one must not leak back.
	got.Properties["x"] = model.Number(1)
	again, err := store.GetByID(ctx, "wi-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if _, ok := again.Properties["x"]; ok {
		t.Error("mutation of a returned copy reached the store")
	}
}

func TestMemoryStoreGetByIDMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.GetByID(context.Background(), "nope")
	if !model.IsCode(err, model.ErrNotFound) {
		t.Fatalf("code = %q, want %q", model.CodeOf(err), model.ErrNotFound)
	}
}

func TestMemoryStoreVersionConflict(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	inst := storedInstance("wi-1", "Request", time.Now())
	if err := store.Save(ctx, inst); err != nil {
		t.Fatalf("initial Save: %v", err)
	}

	first, err := store.GetByID(ctx, "wi-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	second, err := store.GetByID(ctx, "wi-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save first copy: %v", err)
	}
	err = store.Save(ctx, second)
	if !model.IsCode(err, model.ErrConflict) {
		t.Fatalf("code = %q, want %q", model.CodeOf(err), model.ErrConflict)
	}
}

func TestMemoryStoreGetByEntityTypeNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		if err := store.Save(ctx, storedInstance(id, "Request", base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}
	if err := store.Save(ctx, storedInstance("other", "Task", base)); err != nil {
		t.Fatalf("Save other: %v", err)
	}

	got, err := store.GetByEntityType(ctx, "Request")
	if err != nil {
		t.Fatalf("GetByEntityType: %v", err)
	}
	want := []string{"new", "mid", "old"}
	if len(got) != len(want) {
		t.Fatalf("got %d instances, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("got[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Save(ctx, storedInstance("wi-1", "Request", time.Now())); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Delete(ctx, "wi-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	err := store.Delete(ctx, "wi-1")
	if !model.IsCode(err, model.ErrNotFound) {
		t.Fatalf("code = %q, want %q", model.CodeOf(err), model.ErrNotFound)
	}
}

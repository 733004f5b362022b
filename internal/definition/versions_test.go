package definition

import (
	"sync"
	"testing"

	"github.com/tessera-io/tessera/model"
)

func TestVersionsAddAndResolve(t *testing.T) {
	v := NewVersions()
	snap := buildSnap(t, "entity_types:\n  - name: Request\n")

	v.AddOrUpdate(DefaultVersion, snap)

	got, err := v.Snapshot(DefaultVersion)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got != snap {
		t.Error("resolved snapshot is not the published one")
	}

	def, err := v.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if def != snap {
		t.Error("Default did not resolve the default key")
	}
}

func TestVersionsUnknownKeyIsNotFound(t *testing.T) {
	v := NewVersions()
	if _, err := v.Snapshot("nope"); !model.IsCode(err, model.ErrNotFound) {
		t.Fatalf("code = %q, want %q", model.CodeOf(err), model.ErrNotFound)
	}
}

func TestVersionsListInPublishOrder(t *testing.T) {
	v := NewVersions()
	snap := buildSnap(t, "entity_types:\n  - name: Request\n")

	v.AddOrUpdate("default", snap)
	v.AddOrUpdate("2024-09", snap)
	v.AddOrUpdate("2024-10", snap)
	v.AddOrUpdate("2024-09", snap) // replace keeps its slot

	got := v.ListVersions()
	want := []string{"default", "2024-09", "2024-10"}
	if len(got) != len(want) {
		t.Fatalf("ListVersions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ListVersions = %v, want %v", got, want)
		}
	}
}

func TestVersionsReaderKeepsOldSnapshot(t *testing.T) {
	v := NewVersions()
	oldSnap := buildSnap(t, "entity_types:\n  - name: Request\n    title: { en: Old }\n")
	newSnap := buildSnap(t, "entity_types:\n  - name: Request\n    title: { en: New }\n")

	v.AddOrUpdate(DefaultVersion, oldSnap)
	held, err := v.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}

	v.AddOrUpdate(DefaultVersion, newSnap)

	// The reference obtained before the swap still serves the old content.
	et, err := held.EntityType("Request")
	if err != nil {
		t.Fatalf("EntityType: %v", err)
	}
	if et.Title.En != "Old" {
		t.Errorf("held snapshot title = %q, want Old", et.Title.En)
	}

	fresh, err := v.Default()
	if err != nil {
		t.Fatalf("Default after swap: %v", err)
	}
	et, err = fresh.EntityType("Request")
	if err != nil {
		t.Fatalf("EntityType: %v", err)
	}
	if et.Title.En != "New" {
		t.Errorf("fresh snapshot title = %q, want New", et.Title.En)
	}
}

func TestVersionsConcurrentPublishAndRead(t *testing.T) {
	v := NewVersions()
	snap := buildSnap(t, "entity_types:\n  - name: Request\n")
	v.AddOrUpdate(DefaultVersion, snap)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				v.AddOrUpdate(DefaultVersion, snap)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, err := v.Default(); err != nil {
					t.Errorf("Default: %v", err)
					return
				}
				v.ListVersions()
			}
		}()
	}
	wg.Wait()

	if got := len(v.ListVersions()); got != 1 {
		t.Errorf("versions = %d, want 1", got)
	}
}

package definition

import (
	"strings"
	"testing"

	"github.com/tessera-io/tessera/model"
)

func loadDocs(t *testing.T, sources map[string]string) []model.ModelDocument {
	t.Helper()
	docs, err := NewLoader().Load(MapSource(sources))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return docs
}

func buildSnap(t *testing.T, yaml string) *Snapshot {
	t.Helper()
	snap, err := BuildSnapshot(loadDocs(t, map[string]string{"model.yaml": yaml}))
	if err != nil {
		t.Fatalf("BuildSnapshot: %v", err)
	}
	return snap
}

const inheritanceModel = `
entity_types:
  - name: Document
    title: { en: Document }
    title_plural: { en: Documents }
    index: 5
    is_always_visible: true
    screens:
      - name: Overview
        title: { en: Overview }
  - name: Contract
    inherits_from: Document
    title: { en: Contract }
  - name: Invoice
    inherits_from: Document
  - name: Reminder
    inherits_from: Invoice
    title: { en: Reminder }
`

func TestInheritanceTitleFallback(t *testing.T) {
	snap := buildSnap(t, inheritanceModel)

	contract, err := snap.EntityType("Contract")
	if err != nil {
		t.Fatalf("EntityType(Contract): %v", err)
	}
	if contract.Title.En != "Contract" {
		t.Errorf("child title overridden = %q, want Contract", contract.Title.En)
	}
	if contract.TitlePlural.En != "Documents" {
		t.Errorf("unset plural = %q, want parent's Documents", contract.TitlePlural.En)
	}

	invoice, err := snap.EntityType("Invoice")
	if err != nil {
		t.Fatalf("EntityType(Invoice): %v", err)
	}
	if invoice.Title.En != "Document" {
		t.Errorf("unset title = %q, want parent's Document", invoice.Title.En)
	}
	if !invoice.IsAlwaysVisible {
		t.Error("visibility not inherited")
	}
	if len(invoice.Screens) != 1 || invoice.Screens[0].Name != "Overview" {
		t.Errorf("screens not inherited: %+v", invoice.Screens)
	}

	// Two-hop chain resolves through the already-flattened parent.
	reminder, err := snap.EntityType("Reminder")
	if err != nil {
		t.Fatalf("EntityType(Reminder): %v", err)
	}
	if reminder.Title.En != "Reminder" {
		t.Errorf("grandchild title = %q, want Reminder", reminder.Title.En)
	}
	if reminder.TitlePlural.En != "Documents" {
		t.Errorf("grandchild plural = %q, want Documents", reminder.TitlePlural.En)
	}
}

func TestBuildSnapshotRejectsUnknownParent(t *testing.T) {
	_, err := BuildSnapshot(loadDocs(t, map[string]string{"m.yaml": `
entity_types:
  - name: Orphan
    inherits_from: Nowhere
`}))
	if !model.IsCode(err, model.ErrModelParse) {
		t.Fatalf("code = %q, want %q", model.CodeOf(err), model.ErrModelParse)
	}
	if !strings.Contains(err.Error(), "Nowhere") {
		t.Errorf("error %q does not name the missing parent", err)
	}
}

func TestBuildSnapshotRejectsCycle(t *testing.T) {
	_, err := BuildSnapshot(loadDocs(t, map[string]string{"m.yaml": `
entity_types:
  - name: A
    inherits_from: B
  - name: B
    inherits_from: A
`}))
	if !model.IsCode(err, model.ErrModelParse) {
		t.Fatalf("code = %q, want %q", model.CodeOf(err), model.ErrModelParse)
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Errorf("error %q does not mention the cycle", err)
	}
}

func TestBuildSnapshotRejectsDuplicates(t *testing.T) {
	_, err := BuildSnapshot(loadDocs(t, map[string]string{
		"a.yaml": "entity_types:\n  - name: Request\n",
		"b.yaml": "entity_types:\n  - name: Request\n",
	}))
	if !model.IsCode(err, model.ErrModelParse) {
		t.Fatalf("code = %q, want %q", model.CodeOf(err), model.ErrModelParse)
	}
	if !strings.Contains(err.Error(), "Request") {
		t.Errorf("error %q does not name the duplicate", err)
	}
}

func TestEntityTypesDisplayOrder(t *testing.T) {
	snap := buildSnap(t, `
entity_types:
  - name: Zeta
  - name: First
    index: 1
  - name: Alpha
  - name: Second
    index: 2
`)
	var names []string
	for _, et := range snap.EntityTypes() {
		names = append(names, et.Name)
	}
	want := []string{"First", "Second", "Alpha", "Zeta"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order = %v, want %v", names, want)
		}
	}
}

func TestSnapshotLookupsReturnNotFound(t *testing.T) {
	snap := buildSnap(t, "entity_types:\n  - name: Request\n")

	if _, err := snap.EntityType("Missing"); !model.IsCode(err, model.ErrNotFound) {
		t.Errorf("EntityType code = %q, want %q", model.CodeOf(err), model.ErrNotFound)
	}
	if _, err := snap.Role("Missing"); !model.IsCode(err, model.ErrNotFound) {
		t.Errorf("Role code = %q, want %q", model.CodeOf(err), model.ErrNotFound)
	}
	if _, err := snap.Form("Missing"); !model.IsCode(err, model.ErrNotFound) {
		t.Errorf("Form code = %q, want %q", model.CodeOf(err), model.ErrNotFound)
	}
	if _, err := snap.ValueSet("Missing"); !model.IsCode(err, model.ErrNotFound) {
		t.Errorf("ValueSet code = %q, want %q", model.CodeOf(err), model.ErrNotFound)
	}
}

package definition

import (
	"strings"
	"testing"
)

func findingsByPath(verrs []VError) map[string]VError {
	out := make(map[string]VError, len(verrs))
	for _, ve := range verrs {
		out[ve.Path] = ve
	}
	return out
}

func TestValidatorCleanModel(t *testing.T) {
	snap := buildSnap(t, `
roles:
  - name: requester
    grants:
      - action: submit
forms:
  - name: RequestForm
    fields:
      - name: summary
        type: string
        required: true
value_sets:
  - name: priorities
    values:
      - key: low
      - key: high
entity_types:
  - name: Request
    steps:
      - name: Draft
        form: RequestForm
        actions:
          - name: Submit
            role_action: submit
            role: requester
            triggers:
              - type: set_property
                property: approved
                value: "false"
      - name: Review
        conditions: ["event.submitted"]
`)
	if verrs := NewValidator().Validate(snap); len(verrs) != 0 {
		t.Fatalf("clean model produced findings: %v", verrs)
	}
}

func TestValidatorFindings(t *testing.T) {
	snap := buildSnap(t, `
roles:
  - name: broken
    grants:
      - action: submit
        condition: "property.x =="
forms:
  - name: BadForm
    fields:
      - name: choice_field
        type: choice
        value_set: missing_set
entity_types:
  - name: Request
    steps:
      - name: Draft
        form: nonexistent_form
        conditions: ["property.x &&"]
        actions:
          - name: Submit
            role_action: submit
            role: ghost_role
            triggers:
              - type: set_property
              - type: create_child
                entity_type: NoSuchType
              - type: teleport
`)
	verrs := NewValidator().Validate(snap)
	byPath := findingsByPath(verrs)

	wantPaths := []string{
		"roles.broken.grants[0].condition",
		"forms.BadForm.fields.choice_field.valueSet",
		"entityTypes.Request.steps.Draft.form",
		"entityTypes.Request.steps.Draft.conditions[0]",
		"entityTypes.Request.steps.Draft.actions.Submit.role",
		"entityTypes.Request.steps.Draft.actions.Submit.triggers[0].property",
		"entityTypes.Request.steps.Draft.actions.Submit.triggers[0].value",
		"entityTypes.Request.steps.Draft.actions.Submit.triggers[1].entityType",
		"entityTypes.Request.steps.Draft.actions.Submit.triggers[2].type",
	}
	for _, path := range wantPaths {
		if _, ok := byPath[path]; !ok {
			t.Errorf("missing finding at %q; got %v", path, verrs)
		}
	}
}

func TestValidatorStableFindingOrder(t *testing.T) {
	snap := buildSnap(t, `
roles:
  - name: zeta
    grants:
      - action: submit
        condition: "property.x =="
  - name: alpha
    grants:
      - action: submit
        condition: "property.y &&"
forms:
  - name: second
    fields:
      - name: f
        type: string
        value_set: missing
  - name: first
    fields:
      - name: f
        type: string
        value_set: missing
value_sets:
  - name: vs_b
    values:
      - key: ""
  - name: vs_a
    values:
      - key: ""
`)
	want := []string{
		"roles.alpha.grants[0].condition",
		"roles.zeta.grants[0].condition",
		"forms.first.fields.f.valueSet",
		"forms.second.fields.f.valueSet",
		"valueSets.vs_a.entries[0]",
		"valueSets.vs_b.entries[0]",
	}
	for run := 0; run < 5; run++ {
		verrs := NewValidator().Validate(snap)
		if len(verrs) != len(want) {
			t.Fatalf("run %d: got %d findings, want %d: %v", run, len(verrs), len(want), verrs)
		}
		for i, path := range want {
			if verrs[i].Path != path {
				t.Fatalf("run %d: finding[%d] at %q, want %q", run, i, verrs[i].Path, path)
			}
		}
	}
}

func TestValidatorDuplicateSteps(t *testing.T) {
	snap := buildSnap(t, `
entity_types:
  - name: Request
    steps:
      - name: Draft
      - name: Draft
`)
	verrs := NewValidator().Validate(snap)
	found := false
	for _, ve := range verrs {
		if ve.Code == vDuplicate && strings.Contains(ve.Message, "Draft") {
			found = true
		}
	}
	if !found {
		t.Errorf("duplicate step not reported: %v", verrs)
	}
}

package schema

import (
	"errors"
	"testing"

	"github.com/tessera-io/tessera/internal/definition"
	"github.com/tessera-io/tessera/model"
)

const formModel = `
value_sets:
  - name: categories
    values:
      - key: hardware
        label: { en: Hardware }
      - key: software
        label: { en: Software }
forms:
  - name: intake
    fields:
      - name: summary
        type: string
        required: true
        min_length: 3
        max_length: 80
      - name: amount
        type: number
        min: 0
        max: 10000
      - name: quantity
        type: integer
      - name: urgent
        type: boolean
      - name: category
        type: choice
        value_set: categories
`

func formSnapshot(t *testing.T) (*definition.Snapshot, *model.Form) {
	t.Helper()
	docs, err := definition.NewLoader().Load(definition.MapSource{"model.yaml": formModel})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	snap, err := definition.BuildSnapshot(docs)
	if err != nil {
		t.Fatalf("BuildSnapshot: %v", err)
	}
	form, err := snap.Form("intake")
	if err != nil {
		t.Fatalf("Form: %v", err)
	}
	return snap, form
}

func TestValidateFormDataAccepts(t *testing.T) {
	snap, form := formSnapshot(t)

	data := model.Properties{
		"summary":  model.String("printer is on fire"),
		"amount":   model.Number(99.5),
		"quantity": model.Number(2),
		"urgent":   model.Bool(true),
		"category": model.String("hardware"),
	}
	if err := ValidateFormData(snap, form, data); err != nil {
		t.Fatalf("ValidateFormData: %v", err)
	}
}

func TestValidateFormDataOptionalFieldsOmitted(t *testing.T) {
	snap, form := formSnapshot(t)

	data := model.Properties{"summary": model.String("all good")}
	if err := ValidateFormData(snap, form, data); err != nil {
		t.Fatalf("ValidateFormData: %v", err)
	}
}

func TestValidateFormDataFindings(t *testing.T) {
	snap, form := formSnapshot(t)

	cases := []struct {
		name      string
		data      model.Properties
		wantField string
	}{
		{"required missing", model.Properties{"urgent": model.Bool(false)}, "summary"},
		{"required null", model.Properties{"summary": model.Null()}, "summary"},
		{"too short", model.Properties{"summary": model.String("ab")}, "summary"},
		{"below minimum", model.Properties{"summary": model.String("ok then"), "amount": model.Number(-1)}, "amount"},
		{"wrong type", model.Properties{"summary": model.String("ok then"), "urgent": model.String("yes")}, "urgent"},
		{"fractional integer", model.Properties{"summary": model.String("ok then"), "quantity": model.Number(1.5)}, "quantity"},
		{"outside value set", model.Properties{"summary": model.String("ok then"), "category": model.String("wetware")}, "category"},
		{"unknown field", model.Properties{"summary": model.String("ok then"), "stray": model.Bool(true)}, "stray"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFormData(snap, form, tc.data)
			if !model.IsCode(err, model.ErrValidation) {
				t.Fatalf("code = %q, want %q", model.CodeOf(err), model.ErrValidation)
			}
			if !hasFinding(t, err, tc.wantField) {
				t.Errorf("findings do not name field %q", tc.wantField)
			}
		})
	}
}

func hasFinding(t *testing.T, err error, field string) bool {
	t.Helper()
	var e *model.Error
	if !errors.As(err, &e) {
		t.Fatalf("error %v is not a coded error", err)
	}
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func TestValidateFormDataCollectsAllFindings(t *testing.T) {
	snap, form := formSnapshot(t)

	data := model.Properties{
		"amount":   model.Number(-5),
		"category": model.String("wetware"),
	}
	err := ValidateFormData(snap, form, data)
	if !model.IsCode(err, model.ErrValidation) {
		t.Fatalf("code = %q, want %q", model.CodeOf(err), model.ErrValidation)
	}
	for _, field := range []string{"summary", "amount", "category"} {
		if !hasFinding(t, err, field) {
			t.Errorf("findings do not name field %q", field)
		}
	}
}

func TestBuildFormSchema(t *testing.T) {
	snap, form := formSnapshot(t)

	obj, err := BuildFormSchema(snap, form)
	if err != nil {
		t.Fatalf("BuildFormSchema: %v", err)
	}
	if len(obj.Properties) != len(form.Fields) {
		t.Errorf("schema has %d properties, want %d", len(obj.Properties), len(form.Fields))
	}
	if len(obj.Required) != 1 || obj.Required[0] != "summary" {
		t.Errorf("required = %v, want [summary]", obj.Required)
	}
	category := obj.Properties["category"].Value
	if len(category.Enum) != 2 {
		t.Errorf("category enum = %v, want the two value set keys", category.Enum)
	}
}

func TestFieldSchemaUnknownType(t *testing.T) {
	snap, _ := formSnapshot(t)

	form := &model.Form{
		Name:   "broken",
		Fields: []model.FormField{{Name: "blob", Type: "binary"}},
	}
	_, err := BuildFormSchema(snap, form)
	if !model.IsCode(err, model.ErrModelParse) {
		t.Fatalf("code = %q, want %q", model.CodeOf(err), model.ErrModelParse)
	}
}

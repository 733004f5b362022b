// Package schema validates step submission data against the form bound to
// the step, using OpenAPI schemas built from the form definition.
package schema

import (
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/tessera-io/tessera/internal/definition"
	"github.com/tessera-io/tessera/model"
)

// BuildFormSchema converts a form definition into an OpenAPI object schema.
// Value-set fields become string enums over the set's keys.
func BuildFormSchema(snap *definition.Snapshot, form *model.Form) (*openapi3.Schema, error) {
	obj := openapi3.NewObjectSchema()
	for _, field := range form.Fields {
		fs, err := fieldSchema(snap, field)
		if err != nil {
			return nil, err
		}
		obj.Properties[field.Name] = openapi3.NewSchemaRef("", fs)
		if field.Required {
			obj.Required = append(obj.Required, field.Name)
		}
	}
	return obj, nil
}

func fieldSchema(snap *definition.Snapshot, field model.FormField) (*openapi3.Schema, error) {
	var fs *openapi3.Schema
	switch field.Type {
	case "number", "integer":
		if field.Type == "integer" {
			fs = openapi3.NewIntegerSchema()
		} else {
			fs = openapi3.NewFloat64Schema()
		}
		if field.Min != nil {
			fs = fs.WithMin(*field.Min)
		}
		if field.Max != nil {
			fs = fs.WithMax(*field.Max)
		}
	case "boolean":
		fs = openapi3.NewBoolSchema()
	case "date":
		fs = openapi3.NewStringSchema().WithFormat("date")
	case "choice":
		return valueSetSchema(snap, field.ValueSet)
	case "string", "text", "":
		if field.ValueSet != "" {
			return valueSetSchema(snap, field.ValueSet)
		}
		fs = openapi3.NewStringSchema()
		if field.MinLength != nil {
			fs = fs.WithMinLength(int64(*field.MinLength))
		}
		if field.MaxLength != nil {
			fs = fs.WithMaxLength(int64(*field.MaxLength))
		}
		if field.Pattern != "" {
			fs = fs.WithPattern(field.Pattern)
		}
	default:
		return nil, model.NewModelParseError(
			fmt.Sprintf("field %q has unknown type %q", field.Name, field.Type), field.Name)
	}
	return fs, nil
}

// valueSetSchema builds a string enum over the named value set's keys.
func valueSetSchema(snap *definition.Snapshot, name string) (*openapi3.Schema, error) {
	vs, err := snap.ValueSet(name)
	if err != nil {
		return nil, err
	}
	keys := vs.Keys()
	enum := make([]interface{}, len(keys))
	for i, key := range keys {
		enum[i] = key
	}
	return openapi3.NewStringSchema().WithEnum(enum...), nil
}

// ValidateFormData checks submitted data against the form and returns a
// VALIDATION_ERROR carrying one finding per failing field. Unknown fields are
// rejected.
func ValidateFormData(snap *definition.Snapshot, form *model.Form, data model.Properties) error {
	fields := make(map[string]model.FormField, len(form.Fields))
	for _, f := range form.Fields {
		fields[f.Name] = f
	}

	var findings []model.FieldError
	for name := range data {
		if _, known := fields[name]; !known {
			findings = append(findings, model.FieldError{
				Field:   name,
				Message: fmt.Sprintf("field is not part of form %q", form.Name),
			})
		}
	}

	for _, field := range form.Fields {
		val, present := data[field.Name]
		if !present || val.IsNull() {
			if field.Required {
				findings = append(findings, model.FieldError{Field: field.Name, Message: "field is required"})
			}
			continue
		}
		fs, err := fieldSchema(snap, field)
		if err != nil {
			return err
		}
		if err := fs.VisitJSON(val.Interface()); err != nil {
			findings = append(findings, model.FieldError{Field: field.Name, Message: err.Error()})
		}
	}

	if len(findings) > 0 {
		return model.NewValidationError(findings)
	}
	return nil
}

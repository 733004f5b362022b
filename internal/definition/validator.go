package definition

import (
	"fmt"
	"sort"

	"github.com/tessera-io/tessera/internal/expr"
	"github.com/tessera-io/tessera/model"
)

// VError is a single validation finding, addressed by a dotted path into the
// model.
type VError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e VError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Path, e.Message, e.Code)
}

const (
	vRequired      = "required"
	vUnknownRef    = "unknown_reference"
	vDuplicate     = "duplicate"
	vBadExpression = "bad_expression"
	vBadValue      = "bad_value"
)

// Validator checks a built snapshot for structural and referential problems
// that parsing alone does not catch.
type Validator struct{}

// NewValidator creates a model validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate returns all findings for the snapshot. An empty slice means the
// model is usable. Findings come out in a stable order: entity types in
// display order, then roles, forms, and value sets by name.
func (v *Validator) Validate(snap *Snapshot) []VError {
	var errs []VError

	for _, et := range snap.EntityTypes() {
		errs = append(errs, v.validateEntityType(snap, et)...)
	}
	for _, name := range sortedNames(snap.roles) {
		errs = append(errs, v.validateRole(name, snap.roles[name])...)
	}
	for _, name := range sortedNames(snap.forms) {
		errs = append(errs, v.validateForm(snap, name, snap.forms[name])...)
	}
	for _, name := range sortedNames(snap.valueSets) {
		errs = append(errs, v.validateValueSet(name, snap.valueSets[name])...)
	}
	return errs
}

// sortedNames returns the map's keys in ascending order, keeping validation
// output stable across runs.
func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (v *Validator) validateEntityType(snap *Snapshot, et *model.EntityType) []VError {
	var errs []VError
	base := "entityTypes." + et.Name

	if et.Name == "" {
		errs = append(errs, VError{Path: "entityTypes", Code: vRequired, Message: "entity type name is required"})
	}

	for _, screen := range et.Screens {
		p := base + ".screens." + screen.Name
		if screen.Name == "" {
			errs = append(errs, VError{Path: base + ".screens", Code: vRequired, Message: "screen name is required"})
		}
		if screen.Form != "" {
			if _, err := snap.Form(screen.Form); err != nil {
				errs = append(errs, VError{Path: p + ".form", Code: vUnknownRef,
					Message: fmt.Sprintf("form %q is not defined", screen.Form)})
			}
		}
	}

	seenSteps := make(map[string]bool)
	for _, step := range et.Steps {
		p := base + ".steps." + step.Name
		if step.Name == "" {
			errs = append(errs, VError{Path: base + ".steps", Code: vRequired, Message: "step name is required"})
			continue
		}
		if seenSteps[step.Name] {
			errs = append(errs, VError{Path: p, Code: vDuplicate,
				Message: fmt.Sprintf("step %q is defined more than once", step.Name)})
		}
		seenSteps[step.Name] = true

		for i, cond := range step.Conditions {
			if _, err := expr.Parse(cond); err != nil {
				errs = append(errs, VError{Path: fmt.Sprintf("%s.conditions[%d]", p, i), Code: vBadExpression,
					Message: err.Error()})
			}
		}
		if step.Form != "" {
			if _, err := snap.Form(step.Form); err != nil {
				errs = append(errs, VError{Path: p + ".form", Code: vUnknownRef,
					Message: fmt.Sprintf("form %q is not defined", step.Form)})
			}
		}

		seenActions := make(map[string]bool)
		for _, action := range step.Actions {
			errs = append(errs, v.validateAction(snap, p, seenActions, action)...)
		}
	}
	return errs
}

func (v *Validator) validateAction(snap *Snapshot, stepPath string, seen map[string]bool, action model.Action) []VError {
	var errs []VError
	p := stepPath + ".actions." + action.Name

	if action.Name == "" {
		errs = append(errs, VError{Path: stepPath + ".actions", Code: vRequired, Message: "action name is required"})
		return errs
	}
	if seen[action.Name] {
		errs = append(errs, VError{Path: p, Code: vDuplicate,
			Message: fmt.Sprintf("action %q is defined more than once", action.Name)})
	}
	seen[action.Name] = true

	if action.Role != "" {
		if _, err := snap.Role(action.Role); err != nil {
			errs = append(errs, VError{Path: p + ".role", Code: vUnknownRef,
				Message: fmt.Sprintf("role %q is not defined", action.Role)})
		}
	}

	for i, trig := range action.Triggers {
		tp := fmt.Sprintf("%s.triggers[%d]", p, i)
		switch trig.Type {
		case model.TriggerSetProperty:
			if trig.Property == "" {
				errs = append(errs, VError{Path: tp + ".property", Code: vRequired, Message: "set_property requires a property"})
			}
			if trig.Value == "" {
				errs = append(errs, VError{Path: tp + ".value", Code: vRequired, Message: "set_property requires a value"})
			} else if _, err := expr.Parse(trig.Value); err != nil {
				errs = append(errs, VError{Path: tp + ".value", Code: vBadExpression, Message: err.Error()})
			}
		case model.TriggerEmitEvent:
			if trig.Event == "" {
				errs = append(errs, VError{Path: tp + ".event", Code: vRequired, Message: "emit_event requires an event"})
			}
		case model.TriggerSendMessage:
			if trig.Template == "" && action.Message == nil {
				errs = append(errs, VError{Path: tp + ".template", Code: vRequired, Message: "send_message requires a template"})
			}
		case model.TriggerCreateChild:
			if trig.EntityType == "" {
				errs = append(errs, VError{Path: tp + ".entityType", Code: vRequired, Message: "create_child requires an entity type"})
			} else if _, err := snap.EntityType(trig.EntityType); err != nil {
				errs = append(errs, VError{Path: tp + ".entityType", Code: vUnknownRef,
					Message: fmt.Sprintf("entity type %q is not defined", trig.EntityType)})
			}
			for prop, value := range trig.Properties {
				if _, err := expr.Parse(value); err != nil {
					errs = append(errs, VError{Path: tp + ".properties." + prop, Code: vBadExpression, Message: err.Error()})
				}
			}
		default:
			errs = append(errs, VError{Path: tp + ".type", Code: vBadValue,
				Message: fmt.Sprintf("unknown trigger type %q", trig.Type)})
		}
	}
	return errs
}

func (v *Validator) validateRole(name string, role *model.Role) []VError {
	var errs []VError
	base := "roles." + name
	for i, grant := range role.Grants {
		if grant.Condition == "" {
			continue
		}
		if _, err := expr.Parse(grant.Condition); err != nil {
			errs = append(errs, VError{Path: fmt.Sprintf("%s.grants[%d].condition", base, i),
				Code: vBadExpression, Message: err.Error()})
		}
	}
	return errs
}

func (v *Validator) validateForm(snap *Snapshot, name string, form *model.Form) []VError {
	var errs []VError
	base := "forms." + name
	seen := make(map[string]bool)
	for _, field := range form.Fields {
		p := base + ".fields." + field.Name
		if field.Name == "" {
			errs = append(errs, VError{Path: base + ".fields", Code: vRequired, Message: "field name is required"})
			continue
		}
		if seen[field.Name] {
			errs = append(errs, VError{Path: p, Code: vDuplicate,
				Message: fmt.Sprintf("field %q is defined more than once", field.Name)})
		}
		seen[field.Name] = true
		if field.ValueSet != "" {
			if _, err := snap.ValueSet(field.ValueSet); err != nil {
				errs = append(errs, VError{Path: p + ".valueSet", Code: vUnknownRef,
					Message: fmt.Sprintf("value set %q is not defined", field.ValueSet)})
			}
		}
	}
	return errs
}

func (v *Validator) validateValueSet(name string, vs *model.ValueSet) []VError {
	var errs []VError
	base := "valueSets." + name
	seen := make(map[string]bool)
	for i, entry := range vs.Values {
		if entry.Key == "" {
			errs = append(errs, VError{Path: fmt.Sprintf("%s.entries[%d]", base, i),
				Code: vRequired, Message: "entry key is required"})
			continue
		}
		if seen[entry.Key] {
			errs = append(errs, VError{Path: fmt.Sprintf("%s.entries[%d]", base, i), Code: vDuplicate,
				Message: fmt.Sprintf("entry key %q is defined more than once", entry.Key)})
		}
		seen[entry.Key] = true
	}
	return errs
}

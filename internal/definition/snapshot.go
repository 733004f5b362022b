package definition

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/tessera-io/tessera/model"
)

// Snapshot is an immutable, inheritance-resolved view of a set of model
// documents. Once built it is never mutated, so readers may hold a snapshot
// across a newer publish without synchronization.
type Snapshot struct {
	entityTypes map[string]*model.EntityType
	roles       map[string]*model.Role
	valueSets   map[string]*model.ValueSet
	forms       map[string]*model.Form

	ordered  []*model.EntityType
	checksum string
}

// BuildSnapshot flattens the given documents into a snapshot. Duplicate names,
// unresolved inheritance targets and inheritance cycles are reported as
// MODEL_PARSE_ERROR naming the offending definition.
func BuildSnapshot(docs []model.ModelDocument) (*Snapshot, error) {
	snap := &Snapshot{
		entityTypes: make(map[string]*model.EntityType),
		roles:       make(map[string]*model.Role),
		valueSets:   make(map[string]*model.ValueSet),
		forms:       make(map[string]*model.Form),
	}

	raw := make(map[string]model.EntityType)
	sums := make([]string, 0, len(docs))
	for _, doc := range docs {
		sums = append(sums, doc.Checksum)
		for _, et := range doc.EntityTypes {
			if _, dup := raw[et.Name]; dup {
				return nil, model.NewModelParseError(
					fmt.Sprintf("duplicate entity type %q", et.Name), et.Name)
			}
			raw[et.Name] = et
		}
		for _, role := range doc.Roles {
			if _, dup := snap.roles[role.Name]; dup {
				return nil, model.NewModelParseError(
					fmt.Sprintf("duplicate role %q", role.Name), role.Name)
			}
			r := role
			snap.roles[role.Name] = &r
		}
		for _, vs := range doc.ValueSets {
			if _, dup := snap.valueSets[vs.Name]; dup {
				return nil, model.NewModelParseError(
					fmt.Sprintf("duplicate value set %q", vs.Name), vs.Name)
			}
			v := vs
			snap.valueSets[vs.Name] = &v
		}
		for _, form := range doc.Forms {
			if _, dup := snap.forms[form.Name]; dup {
				return nil, model.NewModelParseError(
					fmt.Sprintf("duplicate form %q", form.Name), form.Name)
			}
			f := form
			snap.forms[form.Name] = &f
		}
	}

	resolved := make(map[string]*model.EntityType, len(raw))
	for name := range raw {
		if _, err := resolveEntityType(name, raw, resolved, nil); err != nil {
			return nil, err
		}
	}
	snap.entityTypes = resolved

	snap.ordered = make([]*model.EntityType, 0, len(resolved))
	for _, et := range resolved {
		snap.ordered = append(snap.ordered, et)
	}
	sort.SliceStable(snap.ordered, func(i, j int) bool {
		a, b := snap.ordered[i], snap.ordered[j]
		switch {
		case a.Index != nil && b.Index != nil && *a.Index != *b.Index:
			return *a.Index < *b.Index
		case a.Index != nil && b.Index == nil:
			return true
		case a.Index == nil && b.Index != nil:
			return false
		}
		return a.Name < b.Name
	})

	sort.Strings(sums)
	snap.checksum = fmt.Sprintf("%x", sha256.Sum256([]byte(strings.Join(sums, ""))))
	return snap, nil
}

// resolveEntityType flattens one entity type, resolving its parent chain
// first. The chain argument tracks the walk for cycle detection.
func resolveEntityType(name string, raw map[string]model.EntityType, resolved map[string]*model.EntityType, chain []string) (*model.EntityType, error) {
	if et, ok := resolved[name]; ok {
		return et, nil
	}
	for _, seen := range chain {
		if seen == name {
			return nil, model.NewModelParseError(
				fmt.Sprintf("inheritance cycle through entity type %q", name), name)
		}
	}

	src, ok := raw[name]
	if !ok {
		offender := name
		if len(chain) > 0 {
			offender = chain[len(chain)-1]
		}
		return nil, model.NewModelParseError(
			fmt.Sprintf("entity type %q inherits from unknown entity type %q", offender, name), offender)
	}

	flat := src
	if src.InheritsFrom != "" {
		parent, err := resolveEntityType(src.InheritsFrom, raw, resolved, append(chain, name))
		if err != nil {
			return nil, err
		}
		flat = mergeEntityType(src, parent)
	}

	resolved[name] = &flat
	return &flat, nil
}

// mergeEntityType fills unset fields of child from the already-flattened
// parent. Child settings always win.
func mergeEntityType(child model.EntityType, parent *model.EntityType) model.EntityType {
	out := child
	if out.Title.IsZero() {
		out.Title = parent.Title
	}
	if out.TitlePlural.IsZero() {
		out.TitlePlural = parent.TitlePlural
	}
	if out.Index == nil {
		out.Index = parent.Index
	}
	if !out.IsAlwaysVisible {
		out.IsAlwaysVisible = parent.IsAlwaysVisible
	}
	if len(out.Variants) == 0 {
		out.Variants = parent.Variants
	}
	if len(out.Screens) == 0 {
		out.Screens = parent.Screens
	}
	if len(out.Steps) == 0 {
		out.Steps = parent.Steps
	}
	return out
}

// EntityType resolves a flattened entity type by name.
func (s *Snapshot) EntityType(name string) (*model.EntityType, error) {
	et, ok := s.entityTypes[name]
	if !ok {
		return nil, model.NewNotFoundError(fmt.Sprintf("entity type %q not found", name))
	}
	return et, nil
}

// Role resolves a role by name.
func (s *Snapshot) Role(name string) (*model.Role, error) {
	role, ok := s.roles[name]
	if !ok {
		return nil, model.NewNotFoundError(fmt.Sprintf("role %q not found", name))
	}
	return role, nil
}

// Form resolves a form by name.
func (s *Snapshot) Form(name string) (*model.Form, error) {
	form, ok := s.forms[name]
	if !ok {
		return nil, model.NewNotFoundError(fmt.Sprintf("form %q not found", name))
	}
	return form, nil
}

// ValueSet resolves a value set by name.
func (s *Snapshot) ValueSet(name string) (*model.ValueSet, error) {
	vs, ok := s.valueSets[name]
	if !ok {
		return nil, model.NewNotFoundError(fmt.Sprintf("value set %q not found", name))
	}
	return vs, nil
}

// EntityTypes lists all flattened entity types in display order: ascending
// Index, entries without an Index last, ties broken by name.
func (s *Snapshot) EntityTypes() []*model.EntityType {
	out := make([]*model.EntityType, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Checksum is a stable digest over the source documents of this snapshot.
func (s *Snapshot) Checksum() string {
	return s.checksum
}

package model

// RoleAction is the category of permission being checked against an action.
type RoleAction string

// Role action constants.
const (
	RoleActionCreate  RoleAction = "create"
	RoleActionView    RoleAction = "view"
	RoleActionEdit    RoleAction = "edit"
	RoleActionSubmit  RoleAction = "submit"
	RoleActionExecute RoleAction = "execute"
	RoleActionDelete  RoleAction = "delete"
)

// Trigger type constants. The variant set is closed.
const (
	TriggerSetProperty = "set_property"
	TriggerEmitEvent   = "emit_event"
	TriggerSendMessage = "send_message"
	TriggerCreateChild = "create_child"
)

// LocalizedText is a bilingual display string.
type LocalizedText struct {
	En string `yaml:"en" json:"en"`
	Nl string `yaml:"nl" json:"nl,omitempty"`
}

// IsZero reports whether no translation is set.
func (t LocalizedText) IsZero() bool { return t.En == "" && t.Nl == "" }

// ModelDocument is the root structure of one model source document. Each
// document declares entity types, roles, value sets, and forms.
type ModelDocument struct {
	EntityTypes []EntityType `yaml:"entity_types" json:"entity_types,omitempty"`
	Roles       []Role       `yaml:"roles"        json:"roles,omitempty"`
	ValueSets   []ValueSet   `yaml:"value_sets"   json:"value_sets,omitempty"`
	Forms       []Form       `yaml:"forms"        json:"forms,omitempty"`

	// Checksum and SourceName are set at load time, not part of the YAML.
	Checksum   string `yaml:"-" json:"-"`
	SourceName string `yaml:"-" json:"-"`
}

// EntityType describes a class of workflow instances. A workflow definition
// is an entity type with steps; the two are the same schema node.
//
// InheritsFrom names a parent entity type in the same model source. Fields
// not set on a child (titles, index, visibility, screens, steps) fall back to
// the parent; the fallback is flattened once at snapshot build, never walked
// per access.
type EntityType struct {
	Name            string        `yaml:"name"              json:"name"`
	Title           LocalizedText `yaml:"title"             json:"title"`
	TitlePlural     LocalizedText `yaml:"title_plural"      json:"title_plural"`
	Index           *int          `yaml:"index"             json:"index,omitempty"`
	IsAlwaysVisible bool          `yaml:"is_always_visible" json:"is_always_visible,omitempty"`
	InheritsFrom    string        `yaml:"inherits_from"     json:"inherits_from,omitempty"`
	IsEmbedded      bool          `yaml:"is_embedded"       json:"is_embedded,omitempty"`
	Variants        []string      `yaml:"variants"          json:"variants,omitempty"`
	Screens         []Screen      `yaml:"screens"           json:"screens,omitempty"`
	Steps           []Step        `yaml:"steps"             json:"steps,omitempty"`
}

// Screen describes a display surface of an entity type.
type Screen struct {
	Name  string        `yaml:"name"  json:"name"`
	Title LocalizedText `yaml:"title" json:"title"`
	Form  string        `yaml:"form"  json:"form,omitempty"`
	Index *int          `yaml:"index" json:"index,omitempty"`
}

// Step is a named stage of a workflow definition. An instance occupies the
// first step, in declaration order, whose guard conditions all evaluate true.
type Step struct {
	Name       string        `yaml:"name"       json:"name"`
	Title      LocalizedText `yaml:"title"      json:"title"`
	Conditions []string      `yaml:"conditions" json:"conditions,omitempty"`
	Form       string        `yaml:"form"       json:"form,omitempty"`
	Actions    []Action      `yaml:"actions"    json:"actions,omitempty"`
}

// Action is a role-restricted operation available on a step, carrying an
// ordered list of triggers.
type Action struct {
	Name       string           `yaml:"name"        json:"name"`
	Title      LocalizedText    `yaml:"title"       json:"title"`
	RoleAction RoleAction       `yaml:"role_action" json:"role_action"`
	Role       string           `yaml:"role"        json:"role"`
	Triggers   []Trigger        `yaml:"triggers"    json:"triggers,omitempty"`
	Message    *MessageTemplate `yaml:"message"     json:"message,omitempty"`
}

// Trigger is a single effect applied during action execution. Exactly the
// fields of its type are meaningful:
//
//	set_property: Property, Value (expression)
//	emit_event:   Event
//	send_message: Template (falls back to the action's Message)
//	create_child: EntityType, Properties (name → expression)
type Trigger struct {
	Type       string            `yaml:"type"        json:"type"`
	Property   string            `yaml:"property"    json:"property,omitempty"`
	Value      string            `yaml:"value"       json:"value,omitempty"`
	Event      string            `yaml:"event"       json:"event,omitempty"`
	Template   string            `yaml:"template"    json:"template,omitempty"`
	EntityType string            `yaml:"entity_type" json:"entity_type,omitempty"`
	Properties map[string]string `yaml:"properties"  json:"properties,omitempty"`
}

// MessageTemplate describes an outbound message sent by a send_message trigger.
type MessageTemplate struct {
	Name    string `yaml:"name"    json:"name"`
	Subject string `yaml:"subject" json:"subject,omitempty"`
	Body    string `yaml:"body"    json:"body,omitempty"`
	To      string `yaml:"to"      json:"to,omitempty"`
}

// Role is a named permission set. Each grant pairs a role action with a
// condition predicate over instance state and user identity.
type Role struct {
	Name   string        `yaml:"name"   json:"name"`
	Title  LocalizedText `yaml:"title"  json:"title"`
	Grants []RoleGrant   `yaml:"grants" json:"grants,omitempty"`
}

// RoleGrant permits a role action when Condition evaluates true. An empty
// condition is an unconditional grant.
type RoleGrant struct {
	Action    RoleAction `yaml:"action"    json:"action"`
	Condition string     `yaml:"condition" json:"condition,omitempty"`
}

// Grant returns the grant for the given role action, if declared.
func (r Role) Grant(action RoleAction) (RoleGrant, bool) {
	for _, g := range r.Grants {
		if g.Action == action {
			return g, true
		}
	}
	return RoleGrant{}, false
}

// ValueSet is a named list of selectable values.
type ValueSet struct {
	Name   string          `yaml:"name"   json:"name"`
	Values []ValueSetEntry `yaml:"values" json:"values,omitempty"`
}

// ValueSetEntry is one selectable value with its display label.
type ValueSetEntry struct {
	Key   string        `yaml:"key"   json:"key"`
	Label LocalizedText `yaml:"label" json:"label"`
}

// Keys returns the entry keys in declaration order.
func (vs ValueSet) Keys() []string {
	keys := make([]string, len(vs.Values))
	for i, v := range vs.Values {
		keys[i] = v.Key
	}
	return keys
}

// Form describes the input fields submitted with a step.
type Form struct {
	Name   string        `yaml:"name"   json:"name"`
	Title  LocalizedText `yaml:"title"  json:"title"`
	Fields []FormField   `yaml:"fields" json:"fields,omitempty"`
}

// FormField is a single typed field. Type is one of string, number, integer,
// boolean. ValueSet restricts a string field to a value set's keys.
type FormField struct {
	Name      string        `yaml:"name"       json:"name"`
	Title     LocalizedText `yaml:"title"      json:"title"`
	Type      string        `yaml:"type"       json:"type"`
	Required  bool          `yaml:"required"   json:"required,omitempty"`
	MinLength *int          `yaml:"min_length" json:"min_length,omitempty"`
	MaxLength *int          `yaml:"max_length" json:"max_length,omitempty"`
	Min       *float64      `yaml:"min"        json:"min,omitempty"`
	Max       *float64      `yaml:"max"        json:"max,omitempty"`
	Pattern   string        `yaml:"pattern"    json:"pattern,omitempty"`
	ValueSet  string        `yaml:"value_set"  json:"value_set,omitempty"`
}

// FindStep returns the step with the given name, or nil.
func (et *EntityType) FindStep(name string) *Step {
	for i := range et.Steps {
		if et.Steps[i].Name == name {
			return &et.Steps[i]
		}
	}
	return nil
}

// InitialStep returns the first declared step, the designated entry point
// when an instance has no resolvable current step yet. Nil when the entity
// type declares no steps.
func (et *EntityType) InitialStep() *Step {
	if len(et.Steps) == 0 {
		return nil
	}
	return &et.Steps[0]
}

// FindAction returns the action with the given name on the step, or nil.
func (s *Step) FindAction(name string) *Action {
	for i := range s.Actions {
		if s.Actions[i].Name == name {
			return &s.Actions[i]
		}
	}
	return nil
}

// Package expr implements the closed condition and value expression language
// used by step guards, role conditions, and set_property triggers.
//
// Expressions are parsed once into a small AST and interpreted against
// instance state. The grammar is deliberately closed: references resolve the
// property, user, and event sources only, and the single builtin is
// has_role. There is no reflection and no user-extensible function table.
//
//	property.approved == true && !event.reminder_sent
//	property.assignee == user.subject_id
//	property.total + 1
//	has_role('reviewer') || property.owner == user.subject_id
package expr

import (
	"strings"

	"github.com/tessera-io/tessera/model"
)

// Node is one node of the expression tree.
type Node interface {
	// String renders the node back to source form, for error reporting.
	String() string
}

// Literal is a constant value: 'string', number, true, false, null.
type Literal struct {
	Value model.Value
}

func (n *Literal) String() string {
	if s, ok := n.Value.AsString(); ok {
		return "'" + s + "'"
	}
	return n.Value.String()
}

// Ref reads from one of the closed sources:
//
//	property.<path> — instance property, nested via dots; missing is null
//	user.subject_id, user.email — caller identity
//	event.<name> — true iff the named event marker is present
type Ref struct {
	Source string
	Path   []string
}

func (n *Ref) String() string {
	return n.Source + "." + strings.Join(n.Path, ".")
}

// HasRole is the has_role('name') builtin.
type HasRole struct {
	Role string
}

func (n *HasRole) String() string { return "has_role('" + n.Role + "')" }

// Unary is !x or -x.
type Unary struct {
	Op string
	X  Node
}

func (n *Unary) String() string { return n.Op + n.X.String() }

// Binary is a two-operand operation: comparison (== != < <= > >=), logic
// (&& ||), or additive (+ -).
type Binary struct {
	Op   string
	L, R Node
}

func (n *Binary) String() string {
	return n.L.String() + " " + n.Op + " " + n.R.String()
}

// Ref source names.
const (
	SourceProperty = "property"
	SourceUser     = "user"
	SourceEvent    = "event"
)

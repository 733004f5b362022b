package expr

import (
	"fmt"

	"github.com/tessera-io/tessera/model"
)

// Env is the read-only evaluation environment. Evaluation never mutates it.
type Env struct {
	Properties model.Properties
	User       *model.User
	Events     map[string]model.InstanceEvent
}

// EnvFor builds the environment for an instance and user.
func EnvFor(inst *model.WorkflowInstance, user *model.User) Env {
	return Env{Properties: inst.Properties, User: user, Events: inst.Events}
}

// Eval interprets the node against the environment and returns its value.
func Eval(n Node, env Env) (model.Value, error) {
	switch t := n.(type) {
	case *Literal:
		return t.Value, nil
	case *Ref:
		return evalRef(t, env)
	case *HasRole:
		if env.User == nil {
			return model.Bool(false), nil
		}
		return model.Bool(env.User.HasRole(t.Role)), nil
	case *Unary:
		return evalUnary(t, env)
	case *Binary:
		return evalBinary(t, env)
	default:
		return model.Null(), fmt.Errorf("unknown node type %T", n)
	}
}

// EvalBool interprets a condition. A non-boolean result is an error, never
// coerced: condition authoring mistakes must surface.
func EvalBool(n Node, env Env) (bool, error) {
	v, err := Eval(n, env)
	if err != nil {
		return false, err
	}
	b, ok := v.AsBool()
	if !ok {
		return false, fmt.Errorf("condition %q evaluated to %s, want bool", n.String(), v.Kind())
	}
	return b, nil
}

// EvalBoolSource parses and evaluates a condition source string in one step,
// wrapping any failure as a CONDITION_EVALUATION_ERROR naming the expression.
func EvalBoolSource(src string, env Env) (bool, error) {
	node, err := Parse(src)
	if err != nil {
		return false, model.NewConditionEvaluationError(err.Error(), src)
	}
	b, err := EvalBool(node, env)
	if err != nil {
		return false, model.NewConditionEvaluationError(err.Error(), src)
	}
	return b, nil
}

func evalRef(r *Ref, env Env) (model.Value, error) {
	switch r.Source {
	case SourceProperty:
		// Missing properties read as null rather than erroring: guards
		// routinely test properties that earlier steps have not set yet.
		v, ok := env.Properties[r.Path[0]]
		if !ok {
			return model.Null(), nil
		}
		for _, seg := range r.Path[1:] {
			v = v.Get(seg)
		}
		return v, nil
	case SourceUser:
		if env.User == nil {
			return model.Null(), nil
		}
		if len(r.Path) != 1 {
			return model.Null(), fmt.Errorf("unknown user field %q", r.String())
		}
		switch r.Path[0] {
		case "subject_id":
			return model.String(env.User.SubjectID), nil
		case "email":
			return model.String(env.User.Email), nil
		default:
			return model.Null(), fmt.Errorf("unknown user field %q", r.Path[0])
		}
	case SourceEvent:
		if len(r.Path) != 1 {
			return model.Null(), fmt.Errorf("event reference %q must name a single event", r.String())
		}
		_, ok := env.Events[r.Path[0]]
		return model.Bool(ok), nil
	default:
		return model.Null(), fmt.Errorf("unknown reference source %q", r.Source)
	}
}

func evalUnary(u *Unary, env Env) (model.Value, error) {
	x, err := Eval(u.X, env)
	if err != nil {
		return model.Null(), err
	}
	switch u.Op {
	case "!":
		b, ok := x.AsBool()
		if !ok {
			return model.Null(), fmt.Errorf("operand of ! is %s, want bool", x.Kind())
		}
		return model.Bool(!b), nil
	case "-":
		n, ok := x.AsNumber()
		if !ok {
			return model.Null(), fmt.Errorf("operand of unary - is %s, want number", x.Kind())
		}
		return model.Number(-n), nil
	default:
		return model.Null(), fmt.Errorf("unknown unary operator %q", u.Op)
	}
}

func evalBinary(b *Binary, env Env) (model.Value, error) {
	// Logic operators short-circuit.
	if b.Op == "&&" || b.Op == "||" {
		lb, err := evalBoolOperand(b.L, env, b.Op)
		if err != nil {
			return model.Null(), err
		}
		if b.Op == "&&" && !lb {
			return model.Bool(false), nil
		}
		if b.Op == "||" && lb {
			return model.Bool(true), nil
		}
		rb, err := evalBoolOperand(b.R, env, b.Op)
		if err != nil {
			return model.Null(), err
		}
		return model.Bool(rb), nil
	}

	l, err := Eval(b.L, env)
	if err != nil {
		return model.Null(), err
	}
	r, err := Eval(b.R, env)
	if err != nil {
		return model.Null(), err
	}

	switch b.Op {
	case "==":
		return model.Bool(l.Equal(r)), nil
	case "!=":
		return model.Bool(!l.Equal(r)), nil
	case "<", "<=", ">", ">=":
		return compare(b.Op, l, r)
	case "+":
		if ln, ok := l.AsNumber(); ok {
			rn, ok := r.AsNumber()
			if !ok {
				return model.Null(), fmt.Errorf("cannot add %s to number", r.Kind())
			}
			return model.Number(ln + rn), nil
		}
		if ls, ok := l.AsString(); ok {
			rs, ok := r.AsString()
			if !ok {
				return model.Null(), fmt.Errorf("cannot concatenate %s to string", r.Kind())
			}
			return model.String(ls + rs), nil
		}
		return model.Null(), fmt.Errorf("operands of + are %s and %s, want numbers or strings", l.Kind(), r.Kind())
	case "-":
		ln, lok := l.AsNumber()
		rn, rok := r.AsNumber()
		if !lok || !rok {
			return model.Null(), fmt.Errorf("operands of - are %s and %s, want numbers", l.Kind(), r.Kind())
		}
		return model.Number(ln - rn), nil
	default:
		return model.Null(), fmt.Errorf("unknown operator %q", b.Op)
	}
}

func evalBoolOperand(n Node, env Env, op string) (bool, error) {
	v, err := Eval(n, env)
	if err != nil {
		return false, err
	}
	b, ok := v.AsBool()
	if !ok {
		return false, fmt.Errorf("operand of %s is %s, want bool", op, v.Kind())
	}
	return b, nil
}

func compare(op string, l, r model.Value) (model.Value, error) {
	if ln, ok := l.AsNumber(); ok {
		rn, ok := r.AsNumber()
		if !ok {
			return model.Null(), fmt.Errorf("cannot compare number with %s", r.Kind())
		}
		return model.Bool(applyOrder(op, compareFloat(ln, rn))), nil
	}
	if ls, ok := l.AsString(); ok {
		rs, ok := r.AsString()
		if !ok {
			return model.Null(), fmt.Errorf("cannot compare string with %s", r.Kind())
		}
		switch {
		case ls < rs:
			return model.Bool(applyOrder(op, -1)), nil
		case ls > rs:
			return model.Bool(applyOrder(op, 1)), nil
		default:
			return model.Bool(applyOrder(op, 0)), nil
		}
	}
	return model.Null(), fmt.Errorf("operands of %s are %s and %s, want numbers or strings", op, l.Kind(), r.Kind())
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func applyOrder(op string, cmp int) bool {
	switch op {
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return false
}

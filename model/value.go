package model

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ValueKind enumerates the closed set of property value kinds.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

// String returns the kind name used in error messages.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "invalid"
	}
}

// MapEntry is a key/value pair in a map value. Entries keep insertion order.
type MapEntry struct {
	Key   string
	Value Value
}

// Value is the tagged-union property value used throughout instance state.
// Numbers are normalized to float64, matching JSON semantics at the store
// boundary. The zero Value is null.
type Value struct {
	kind ValueKind
	b    bool
	n    float64
	s    string
	l    []Value
	m    []MapEntry
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// List returns a list value holding the given items in order.
func List(items ...Value) Value { return Value{kind: KindList, l: items} }

// Map returns a map value holding the given entries in order.
func Map(entries ...MapEntry) Value { return Value{kind: KindMap, m: entries} }

// Kind returns the value's kind.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload. ok is false for non-bool values.
func (v Value) AsBool() (b, ok bool) {
	return v.b, v.kind == KindBool
}

// AsNumber returns the numeric payload. ok is false for non-number values.
func (v Value) AsNumber() (float64, bool) {
	return v.n, v.kind == KindNumber
}

// AsString returns the string payload. ok is false for non-string values.
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

// Items returns the list payload, or nil for non-list values.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	return v.l
}

// Entries returns the map payload, or nil for non-map values.
func (v Value) Entries() []MapEntry {
	if v.kind != KindMap {
		return nil
	}
	return v.m
}

// Get returns the value bound to key in a map value, or null.
func (v Value) Get(key string) Value {
	for _, e := range v.m {
		if e.Key == key {
			return e.Value
		}
	}
	return Null()
}

// Equal reports deep equality. Numbers compare by float64 equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.l) != len(o.l) {
			return false
		}
		for i := range v.l {
			if !v.l[i].Equal(o.l[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for i := range v.m {
			if v.m[i].Key != o.m[i].Key || !v.m[i].Value.Equal(o.m[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders a debug representation. Strings are quoted.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		if v.n == math.Trunc(v.n) && math.Abs(v.n) < 1e15 {
			return strconv.FormatInt(int64(v.n), 10)
		}
		return strconv.FormatFloat(v.n, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindList:
		parts := make([]string, len(v.l))
		for i, it := range v.l {
			parts[i] = it.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		parts := make([]string, len(v.m))
		for i, e := range v.m {
			parts[i] = e.Key + ": " + e.Value.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return "invalid"
}

// FromAny converts a JSON-shaped Go value (the store boundary representation)
// into a Value. Go maps have no stable order, so their keys are sorted to keep
// the conversion deterministic. Unsupported types are an error, never a panic.
func FromAny(in any) (Value, error) {
	switch t := in.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Null(), fmt.Errorf("numeric value %q: %w", t.String(), err)
		}
		return Number(f), nil
	case string:
		return String(t), nil
	case []any:
		items := make([]Value, len(t))
		for i, raw := range t {
			v, err := FromAny(raw)
			if err != nil {
				return Null(), err
			}
			items[i] = v
		}
		return List(items...), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]MapEntry, len(keys))
		for i, k := range keys {
			v, err := FromAny(t[k])
			if err != nil {
				return Null(), err
			}
			entries[i] = MapEntry{Key: k, Value: v}
		}
		return Map(entries...), nil
	default:
		return Null(), fmt.Errorf("unsupported value type %T", in)
	}
}

// MustFromAny is FromAny for literals known valid at compile time. For tests
// and fixtures.
func MustFromAny(in any) Value {
	v, err := FromAny(in)
	if err != nil {
		panic(err)
	}
	return v
}

// Interface converts the value back to its JSON-shaped Go representation.
func (v Value) Interface() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.l))
		for i, it := range v.l {
			out[i] = it.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for _, e := range v.m {
			out[e.Key] = e.Value.Interface()
		}
		return out
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Properties is the property bag of a workflow instance.
type Properties map[string]Value

// Clone returns a shallow-enough copy: the map itself is copied; values are
// immutable once constructed, so sharing their payloads is safe.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ToAnyMap converts the bag to a JSON-shaped map for the store boundary.
func (p Properties) ToAnyMap() map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v.Interface()
	}
	return out
}

// PropertiesFromAnyMap converts a JSON-shaped map into a property bag.
func PropertiesFromAnyMap(in map[string]any) (Properties, error) {
	out := make(Properties, len(in))
	for k, raw := range in {
		v, err := FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

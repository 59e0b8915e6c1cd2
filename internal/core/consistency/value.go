package consistency

import (
	"encoding/json"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ValueKind tags the shape held by a Value.
type ValueKind int

const (
	KindAbsent ValueKind = iota
	KindInt
	KindBool
	KindText
)

// Value is the comparable per-node summary of a check: a count, a flag, a
// status text, or the absent sentinel for a node that could not answer.
type Value struct {
	kind ValueKind
	i    int64
	b    bool
	s    string
}

// AbsentValue is the summary of a node whose result could not be obtained.
func AbsentValue() Value { return Value{kind: KindAbsent} }

// IntValue wraps a count.
func IntValue(n int64) Value { return Value{kind: KindInt, i: n} }

// BoolValue wraps a flag.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// TextValue wraps a status string.
func TextValue(s string) Value { return Value{kind: KindText, s: s} }

// Kind reports which shape the value holds.
func (v Value) Kind() ValueKind { return v.kind }

// IsAbsent reports whether v is the absent sentinel.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Int returns the count and whether v holds one.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Bool returns the flag and whether v holds one.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Text returns the status string and whether v holds one.
func (v Value) Text() (string, bool) { return v.s, v.kind == KindText }

// Equal reports whether two values have the same kind and content.
// Two absent values are equal to each other; the evaluator rejects them separately.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == o.i
	case KindBool:
		return v.b == o.b
	case KindText:
		return v.s == o.s
	}
	return true
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindText:
		return v.s
	}
	return "n/a"
}

func (v Value) native() interface{} {
	switch v.kind {
	case KindInt:
		return v.i
	case KindBool:
		return v.b
	case KindText:
		return v.s
	}
	return nil
}

// MarshalJSON emits the raw value, or null when absent.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.native())
}

// UnmarshalJSON accepts numbers, booleans, strings and null.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case nil:
		*v = AbsentValue()
	case float64:
		*v = IntValue(int64(x))
	case bool:
		*v = BoolValue(x)
	case string:
		*v = TextValue(x)
	default:
		*v = AbsentValue()
	}
	return nil
}

// MarshalYAML emits the raw value, or null when absent.
func (v Value) MarshalYAML() (interface{}, error) {
	if v.kind == KindAbsent {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	}
	return v.native(), nil
}

package tag

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindFormula
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindFormula:
		return "formula"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// FormulaPrefix marks a string tag value as a formula.
const FormulaPrefix = "="

// Value is a dynamically typed tag value: a primitive, an array of values, or a
// reference to a formula that only the calculation context can resolve.
// The zero Value is Null. Values are immutable.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string // string payload or formula source (without the prefix)
	arr  []Value
}

func Null() Value                 { return Value{} }
func Bool(b bool) Value           { return Value{kind: KindBool, b: b} }
func Number(n float64) Value      { return Value{kind: KindNumber, n: n} }
func String(s string) Value       { return Value{kind: KindString, s: s} }
func Formula(source string) Value { return Value{kind: KindFormula, s: source} }

// Array copies vs into a new array value.
func Array(vs ...Value) Value {
	arr := make([]Value, len(vs))
	copy(arr, vs)
	return Value{kind: KindArray, arr: arr}
}

// FromAny converts decoded JSON, YAML or script data into a Value.
// Unsupported types become their fmt representation.
func FromAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case bool:
		return Bool(x)
	case int:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case uint:
		return Number(float64(x))
	case uint32:
		return Number(float64(x))
	case uint64:
		return Number(float64(x))
	case float32:
		return Number(float64(x))
	case float64:
		return Number(x)
	case json.Number:
		if n, err := x.Float64(); err == nil {
			return Number(n)
		}
		return String(x.String())
	case string:
		if strings.HasPrefix(x, FormulaPrefix) {
			return Formula(x[len(FormulaPrefix):])
		}
		return String(x)
	case []any:
		arr := make([]Value, len(x))
		for i, el := range x {
			arr[i] = FromAny(el)
		}
		return Value{kind: KindArray, arr: arr}
	case []string:
		arr := make([]Value, len(x))
		for i, el := range x {
			arr[i] = FromAny(el)
		}
		return Value{kind: KindArray, arr: arr}
	}
	return String(fmt.Sprint(v))
}

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }
func (v Value) IsFormula() bool { return v.kind == KindFormula }

// Source returns the formula source for formula values.
func (v Value) Source() (string, bool) {
	if v.kind != KindFormula {
		return "", false
	}
	return v.s, true
}

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsNumber returns the numeric value. Numeric strings are accepted.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.n, true
	case KindString:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsArray returns a copy of the array elements.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	out := make([]Value, len(v.arr))
	copy(out, v.arr)
	return out, true
}

// Len is the number of array elements, or 0 for other kinds.
func (v Value) Len() int { return len(v.arr) }

// Truthy reports whether the value counts as "set" for membership checks.
// Formulas are never truthy before evaluation.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0
	case KindString:
		return v.s != "" && v.s != "false" && v.s != "0"
	case KindArray:
		return len(v.arr) > 0
	}
	return false
}

// Text renders the value as display text. Formulas render with their prefix.
func (v Value) Text() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindString:
		return v.s
	case KindFormula:
		return FormulaPrefix + v.s
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, el := range v.arr {
			parts[i] = el.Text()
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	return ""
}

func (v Value) String() string { return v.Text() }

// Equal is deep equality.
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
	case KindString, KindFormula:
		return v.s == o.s
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Any converts the value back into plain Go data. Formulas become "=source".
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindFormula:
		return FormulaPrefix + v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, el := range v.arr {
			out[i] = el.Any()
		}
		return out
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("tag value: %w", err)
	}
	*v = FromAny(raw)
	return nil
}

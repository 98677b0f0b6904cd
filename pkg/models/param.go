package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidParameterType is matched by every InvalidParameterTypeError.
var ErrInvalidParameterType = errors.New("invalid parameter type")

// ErrDuplicateParameter is returned when a parameter name is given twice.
var ErrDuplicateParameter = errors.New("duplicate parameter")

// InvalidParameterTypeError reports a parameter whose value is not a string,
// integer, float, or boolean.
type InvalidParameterTypeError struct {
	Name  string
	Value any
}

func (e *InvalidParameterTypeError) Error() string {
	return fmt.Sprintf(
		"model parameters must be strings, integers, floats, or booleans, but got parameter %s=%#v",
		e.Name, e.Value)
}

// Is reports whether target is ErrInvalidParameterType.
func (e *InvalidParameterTypeError) Is(target error) bool {
	return target == ErrInvalidParameterType
}

// Kind identifies the type held by a Value.
type Kind int

const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Value is a typed model parameter value. The zero Value is invalid.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
}

// String returns a string parameter value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int returns an integer parameter value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a float parameter value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool returns a boolean parameter value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.i = 1
	}
	return v
}

// Kind returns the kind of v.
func (v Value) Kind() Kind { return v.kind }

// Str returns the string held by a KindString value.
func (v Value) Str() string { return v.s }

// Int64 returns the integer held by a KindInt or KindBool value (0/1 for bools).
func (v Value) Int64() int64 { return v.i }

// Float64 returns the float held by a KindFloat value.
func (v Value) Float64() float64 { return v.f }

// Bool returns the boolean held by a KindBool value.
func (v Value) Bool() bool { return v.i != 0 }

// Any returns the underlying Go value, or nil for the zero Value.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.i != 0
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.s)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return formatFloat(v.f)
	case KindBool:
		return strconv.FormatBool(v.i != 0)
	default:
		return "<invalid>"
	}
}

// MarshalJSON encodes floats with a fractional part so that 1.0 decodes back
// as a float and not as an integer.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.s)
	case KindInt:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil, fmt.Errorf("unsupported float value %v", v.f)
		}
		return []byte(formatFloat(v.f)), nil
	case KindBool:
		return []byte(strconv.FormatBool(v.i != 0)), nil
	default:
		return nil, &InvalidParameterTypeError{Value: nil}
	}
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// ValueOf converts a Go value to a Value. Integers of any width, float32/64,
// bools, strings and json.Number are accepted.
func ValueOf(name string, v any) (Value, error) {
	switch x := v.(type) {
	case Value:
		if x.kind == KindInvalid {
			return Value{}, &InvalidParameterTypeError{Name: name, Value: nil}
		}
		return x, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return Value{}, &InvalidParameterTypeError{Name: name, Value: v}
		}
		return Int(int64(x)), nil
	case uint64:
		if x > math.MaxInt64 {
			return Value{}, &InvalidParameterTypeError{Name: name, Value: v}
		}
		return Int(int64(x)), nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case json.Number:
		return numberValue(name, x)
	default:
		return Value{}, &InvalidParameterTypeError{Name: name, Value: v}
	}
}

func numberValue(name string, n json.Number) (Value, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return Value{}, &InvalidParameterTypeError{Name: name, Value: s}
	}
	return Float(f), nil
}

// Params maps parameter names to values.
type Params map[string]Value

// ParamsFromMap converts an untyped map to Params.
func ParamsFromMap(m map[string]any) (Params, error) {
	p := make(Params, len(m))
	for name, raw := range m {
		v, err := ValueOf(name, raw)
		if err != nil {
			return nil, err
		}
		p[name] = v
	}
	return p, nil
}

// Names returns the parameter names in sorted order.
func (p Params) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnmarshalJSON decodes a JSON object keeping integer and float literals
// apart: 1 decodes to an Int, 1.0 to a Float.
func (p *Params) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out, err := ParamsFromMap(raw)
	if err != nil {
		return err
	}
	*p = out
	return nil
}

// ParseParam parses "name=value". Quoted values are strings, true/false are
// booleans, integer and float literals are numbers, anything else is a string.
func ParseParam(s string) (string, Value, error) {
	name, raw, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", Value{}, fmt.Errorf("invalid parameter %q: expected name=value", s)
	}
	if len(raw) >= 2 && (raw[0] == '"' || raw[0] == '\'') && raw[len(raw)-1] == raw[0] {
		return name, String(raw[1 : len(raw)-1]), nil
	}
	switch raw {
	case "true":
		return name, Bool(true), nil
	case "false":
		return name, Bool(false), nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return name, Int(i), nil
	}
	if strings.ContainsAny(raw, "0123456789") {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return name, Float(f), nil
		}
	}
	return name, String(raw), nil
}

// ParseParams parses a list of "name=value" arguments.
func ParseParams(args []string) (Params, error) {
	p := make(Params, len(args))
	for _, arg := range args {
		name, v, err := ParseParam(arg)
		if err != nil {
			return nil, err
		}
		if _, dup := p[name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateParameter, name)
		}
		p[name] = v
	}
	return p, nil
}

package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueOf(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{name: "string", in: "alice", want: String("alice")},
		{name: "int", in: 3, want: Int(3)},
		{name: "int32", in: int32(-7), want: Int(-7)},
		{name: "uint16", in: uint16(9), want: Int(9)},
		{name: "float32", in: float32(0.5), want: Float(0.5)},
		{name: "float64", in: 1.0, want: Float(1.0)},
		{name: "bool", in: true, want: Bool(true)},
		{name: "json int", in: json.Number("42"), want: Int(42)},
		{name: "json float", in: json.Number("1.0"), want: Float(1.0)},
		{name: "json exponent", in: json.Number("1e3"), want: Float(1000)},
		{name: "value passthrough", in: String("x"), want: String("x")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValueOf("p", tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValueOfRejectsOtherTypes(t *testing.T) {
	for _, in := range []any{nil, []int{1}, map[string]string{}, struct{}{}, uint64(1 << 63), Value{}} {
		_, err := ValueOf("bad", in)
		require.Error(t, err, "%#v", in)
		assert.True(t, errors.Is(err, ErrInvalidParameterType))

		var typeErr *InvalidParameterTypeError
		require.ErrorAs(t, err, &typeErr)
		assert.Equal(t, "bad", typeErr.Name)
	}
}

func TestInvalidParameterTypeMessage(t *testing.T) {
	err := &InvalidParameterTypeError{Name: "stop", Value: []string{"a"}}
	assert.Equal(t,
		`model parameters must be strings, integers, floats, or booleans, but got parameter stop=[]string{"a"}`,
		err.Error())
}

func TestBoolValue(t *testing.T) {
	assert.Equal(t, int64(1), Bool(true).Int64())
	assert.Equal(t, int64(0), Bool(false).Int64())
	assert.True(t, Bool(true).Bool())
	assert.Equal(t, KindBool, Bool(false).Kind())
	assert.NotEqual(t, Bool(true), Int(1))
}

func TestValueString(t *testing.T) {
	assert.Equal(t, `"a b"`, String("a b").String())
	assert.Equal(t, "7", Int(7).String())
	assert.Equal(t, "1.0", Float(1).String())
	assert.Equal(t, "0.25", Float(0.25).String())
	assert.Equal(t, "false", Bool(false).String())
	assert.Equal(t, "<invalid>", Value{}.String())
}

func TestParamsJSON(t *testing.T) {
	in := Params{
		"temperature": Float(1.0),
		"max_tokens":  Int(100),
		"user":        String("alice"),
		"stream":      Bool(false),
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"temperature":1.0,"max_tokens":100,"user":"alice","stream":false}`, string(data))
	assert.Contains(t, string(data), `"temperature":1.0`)

	var out Params
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestParamsUnmarshalRejectsNested(t *testing.T) {
	var p Params
	err := json.Unmarshal([]byte(`{"ok":1,"stop":["a","b"]}`), &p)
	assert.ErrorIs(t, err, ErrInvalidParameterType)
	assert.Contains(t, err.Error(), "stop=")
}

func TestParseParam(t *testing.T) {
	tests := []struct {
		in       string
		wantName string
		want     Value
	}{
		{in: "temperature=0.5", wantName: "temperature", want: Float(0.5)},
		{in: "n=3", wantName: "n", want: Int(3)},
		{in: "stream=true", wantName: "stream", want: Bool(true)},
		{in: "user=alice", wantName: "user", want: String("alice")},
		{in: `id="42"`, wantName: "id", want: String("42")},
		{in: "flag='true'", wantName: "flag", want: String("true")},
		{in: "empty=", wantName: "empty", want: String("")},
		{in: "word=inf", wantName: "word", want: String("inf")},
		{in: "expr=a=b", wantName: "expr", want: String("a=b")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, v, err := ParseParam(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.want, v)
		})
	}

	_, _, err := ParseParam("novalue")
	assert.Error(t, err)
	_, _, err = ParseParam("=1")
	assert.Error(t, err)
}

func TestParseParamsDuplicate(t *testing.T) {
	p, err := ParseParams([]string{"a=1", "b=x"})
	require.NoError(t, err)
	assert.Equal(t, Params{"a": Int(1), "b": String("x")}, p)

	_, err = ParseParams([]string{"a=1", "a=2"})
	assert.ErrorIs(t, err, ErrDuplicateParameter)
}

func TestParamsNames(t *testing.T) {
	p := Params{"b": Int(1), "a": Int(2), "c": Int(3)}
	assert.Equal(t, []string{"a", "b", "c"}, p.Names())
}

func TestClearFilterIsEmpty(t *testing.T) {
	assert.True(t, ClearFilter{}.IsEmpty())
	assert.False(t, ClearFilter{ModelID: "m"}.IsEmpty())
}

func TestClearFilterJSONOmitsUnsetCutoffs(t *testing.T) {
	data, err := json.Marshal(ClearFilter{ModelID: "m"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"model_id":"m"}`, string(data))
}

package cache

import (
	"database/sql"
	"math"

	"github.com/pario-ai/respcache/pkg/models"
)

// slot is the storage column a parameter value lands in.
type slot int

const (
	slotString slot = iota + 1
	slotInt
	slotFloat
)

// encodedParam is a parameter value mapped to its storage slot. For string
// values str holds the raw string until it is interned.
type encodedParam struct {
	name string
	slot slot
	str  string
	i    int64
	f    float64
}

// encode maps a parameter value to its storage slot. Booleans share the
// integer slot as 0/1.
func encode(name string, v models.Value) (encodedParam, error) {
	switch v.Kind() {
	case models.KindString:
		return encodedParam{name: name, slot: slotString, str: v.Str()}, nil
	case models.KindInt, models.KindBool:
		return encodedParam{name: name, slot: slotInt, i: v.Int64()}, nil
	case models.KindFloat:
		// NaN binds as NULL and would leave the row without a value.
		if math.IsNaN(v.Float64()) {
			return encodedParam{}, &models.InvalidParameterTypeError{Name: name, Value: v.Float64()}
		}
		return encodedParam{name: name, slot: slotFloat, f: v.Float64()}, nil
	default:
		return encodedParam{}, &models.InvalidParameterTypeError{Name: name, Value: v.Any()}
	}
}

// encodeAll encodes every parameter, in name order, failing on the first
// invalid value.
func encodeAll(params models.Params) ([]encodedParam, error) {
	out := make([]encodedParam, 0, len(params))
	for _, name := range params.Names() {
		p, err := encode(name, params[name])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// columns returns the bind values for (string_id, int_value, float_value)
// given the interned id for string parameters.
func (p encodedParam) columns(stringID int64) (sql.NullInt64, sql.NullInt64, sql.NullFloat64) {
	var (
		s sql.NullInt64
		i sql.NullInt64
		f sql.NullFloat64
	)
	switch p.slot {
	case slotString:
		s = sql.NullInt64{Int64: stringID, Valid: true}
	case slotInt:
		i = sql.NullInt64{Int64: p.i, Valid: true}
	case slotFloat:
		f = sql.NullFloat64{Float64: p.f, Valid: true}
	}
	return s, i, f
}

package schema

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// boolLiterals is the closed set of string forms accepted for bool options
var boolLiterals = map[string]bool{
	"true":  true,
	"True":  true,
	"TRUE":  true,
	"false": false,
	"False": false,
	"FALSE": false,
}

// Coerce converts a raw document value to the normalized representation of t.
// It returns false when raw is outside the accepted forms for t.
// Already-normalized values are accepted unchanged.
func Coerce(t ValueType, raw any) (any, bool) {
	switch t {
	case TypeBool:
		return coerceBool(raw)
	case TypeInt:
		return coerceInt(raw)
	case TypeFloat:
		return coerceFloat(raw)
	case TypeString, TypeEnum, TypePath:
		s, ok := raw.(string)
		return s, ok
	case TypeStringList:
		return coerceStringList(raw)
	case TypeFloatList:
		return coerceFloatList(raw)
	case TypeFloatMap:
		return coerceFloatMap(raw)
	}
	return nil, false
}

// IsFalseSentinel reports whether raw is the literal false used to disable an option
func IsFalseSentinel(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return !v
	case string:
		return v == "false" || v == "False"
	}
	return false
}

// IsTrueLiteral reports whether raw is a boolean true in any accepted form
func IsTrueLiteral(raw any) bool {
	b, ok := coerceBool(raw)
	return ok && b.(bool)
}

func coerceBool(raw any) (any, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		b, ok := boolLiterals[v]
		return b, ok
	}
	return nil, false
}

func coerceInt(raw any) (any, bool) {
	switch v := raw.(type) {
	case bool:
		return nil, false
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, false
		}
		return int(n), true
	}
	f, ok := toFloat(raw)
	if !ok || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return nil, false
	}
	return int(f), true
}

func coerceFloat(raw any) (any, bool) {
	f, ok := toFloat(raw)
	if !ok {
		return nil, false
	}
	return f, true
}

// toFloat accepts any numeric kind and numeric strings, rejecting NaN and infinities
func toFloat(raw any) (float64, bool) {
	var f float64
	switch v := raw.(type) {
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case float32:
		f = float64(v)
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func coerceStringList(raw any) (any, bool) {
	switch v := raw.(type) {
	case []string:
		return append([]string{}, v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func coerceFloatList(raw any) (any, bool) {
	switch v := raw.(type) {
	case []float64:
		return append([]float64{}, v...), true
	case []any:
		out := make([]float64, 0, len(v))
		for _, item := range v {
			f, ok := toFloat(item)
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
		return out, true
	}
	return nil, false
}

func coerceFloatMap(raw any) (any, bool) {
	switch v := raw.(type) {
	case map[string]float64:
		out := make(map[string]float64, len(v))
		for k, f := range v {
			out[k] = f
		}
		return out, true
	case map[string]any:
		out := make(map[string]float64, len(v))
		for k, item := range v {
			f, ok := toFloat(item)
			if !ok {
				return nil, false
			}
			out[k] = f
		}
		return out, true
	}
	return nil, false
}

// Numbers returns the numeric components of a normalized value for bound checks.
// Map entries are returned in key order.
func Numbers(v any) []float64 {
	switch n := v.(type) {
	case int:
		return []float64{float64(n)}
	case float64:
		return []float64{n}
	case []float64:
		return n
	case map[string]float64:
		keys := make([]string, 0, len(n))
		for k := range n {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]float64, 0, len(n))
		for _, k := range keys {
			out = append(out, n[k])
		}
		return out
	}
	return nil
}

// Elements returns the members of a normalized value for enumeration checks.
// Scalars yield a single element.
func Elements(v any) []any {
	switch e := v.(type) {
	case []string:
		out := make([]any, len(e))
		for i, s := range e {
			out[i] = s
		}
		return out
	case []float64:
		out := make([]any, len(e))
		for i, f := range e {
			out[i] = f
		}
		return out
	}
	return []any{v}
}

// elementType is the type each member of t is normalized to
func elementType(t ValueType) ValueType {
	switch t {
	case TypeStringList:
		return TypeString
	case TypeFloatList, TypeFloatMap:
		return TypeFloat
	}
	return t
}

// SameValue compares two normalized scalar values
func SameValue(a, b any) bool {
	fa, aNum := a.(float64)
	fb, bNum := b.(float64)
	if aNum && bNum {
		return fa == fb
	}
	ia, aInt := a.(int)
	ib, bInt := b.(int)
	if aInt && bInt {
		return ia == ib
	}
	return a == b
}

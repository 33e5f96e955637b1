package item

import (
	"math"
	"strconv"
)

// Kind is the basic type carried by a Value
type Kind uint8

const (
	// KindNone is the kind of the zero Value
	KindNone Kind = iota
	KindInt
	KindUint
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	}
	return "none"
}

// Value is a typed item value. An invalid Value keeps its kind so that an
// item can be published as "float, no reading".
type Value struct {
	kind  Kind
	valid bool
	i     int64
	u     uint64
	f     float64
	s     string
}

// Int returns a valid signed integer value
func Int(v int64) Value { return Value{kind: KindInt, valid: true, i: v} }

// Uint returns a valid unsigned integer value
func Uint(v uint64) Value { return Value{kind: KindUint, valid: true, u: v} }

// Float returns a valid floating point value
func Float(v float64) Value { return Value{kind: KindFloat, valid: true, f: v} }

// String returns a valid string value
func String(s string) Value { return Value{kind: KindString, valid: true, s: s} }

// Invalid returns a value of the given kind without a reading
func Invalid(k Kind) Value { return Value{kind: k} }

// Kind returns the kind of the value
func (v Value) Kind() Kind { return v.kind }

// Valid reports whether the value holds a reading
func (v Value) Valid() bool { return v.valid }

// Float converts a valid numeric value to float64
func (v Value) Float() (float64, bool) {
	if !v.valid {
		return 0, false
	}
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindUint:
		return float64(v.u), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

// Int converts a valid numeric value to int64, truncating floats
func (v Value) Int() (int64, bool) {
	if !v.valid {
		return 0, false
	}
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindUint:
		return int64(v.u), true
	case KindFloat:
		if math.IsNaN(v.f) {
			return 0, false
		}
		return int64(v.f), true
	}
	return 0, false
}

// Str returns the content of a valid string value
func (v Value) Str() (string, bool) {
	if !v.valid || v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// Equal reports whether two values have the same validity, kind and content
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || v.valid != o.valid {
		return false
	}
	if !v.valid {
		return true
	}
	switch v.kind {
	case KindInt:
		return v.i == o.i
	case KindUint:
		return v.u == o.u
	case KindFloat:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case KindString:
		return v.s == o.s
	}
	return true
}

// Interface returns the content as a plain Go value, nil when invalid
func (v Value) Interface() interface{} {
	if !v.valid {
		return nil
	}
	switch v.kind {
	case KindInt:
		return v.i
	case KindUint:
		return v.u
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	}
	return nil
}

func (v Value) String() string {
	if !v.valid {
		return "invalid"
	}
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindUint:
		return strconv.FormatUint(v.u, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	}
	return ""
}

package dbusconn

import (
	"math"

	"github.com/godbus/dbus/v5"

	"gitlab.ubiant.me/go-shared/ble-sensors/item"
)

// invalidValue is how an item without reading is sent on the bus
var invalidValue = []int32{}

// ToVariant converts an item value to its bus form. Integers are sent as
// 32 bits when they fit.
func ToVariant(v item.Value) dbus.Variant {
	if !v.Valid() {
		return dbus.MakeVariant(invalidValue)
	}
	switch v.Kind() {
	case item.KindInt:
		i, _ := v.Int()
		if i >= math.MinInt32 && i <= math.MaxInt32 {
			return dbus.MakeVariant(int32(i))
		}
		return dbus.MakeVariant(i)
	case item.KindUint:
		u, _ := v.Interface().(uint64)
		if u <= math.MaxInt32 {
			return dbus.MakeVariant(int32(u))
		}
		return dbus.MakeVariant(u)
	case item.KindFloat:
		f, _ := v.Float()
		return dbus.MakeVariant(f)
	case item.KindString:
		s, _ := v.Str()
		return dbus.MakeVariant(s)
	}
	return dbus.MakeVariant(invalidValue)
}

// FromVariant converts a bus value. An empty array, or any type without
// item counterpart, gives the zero Value.
func FromVariant(v dbus.Variant) item.Value {
	switch x := v.Value().(type) {
	case byte:
		return item.Uint(uint64(x))
	case int16:
		return item.Int(int64(x))
	case uint16:
		return item.Uint(uint64(x))
	case int32:
		return item.Int(int64(x))
	case uint32:
		return item.Uint(uint64(x))
	case int64:
		return item.Int(x)
	case uint64:
		return item.Uint(x)
	case float64:
		return item.Float(x)
	case bool:
		if x {
			return item.Int(1)
		}
		return item.Int(0)
	case string:
		return item.String(x)
	}
	return item.Value{}
}

// coerce converts v to kind k when the conversion is lossless enough for
// a remote write: numbers between them, strings only to strings. The zero
// Value becomes an invalid value of kind k.
func coerce(v item.Value, k item.Kind) (item.Value, bool) {
	if v.Kind() == item.KindNone {
		return item.Invalid(k), true
	}
	if v.Kind() == k || k == item.KindNone {
		return v, true
	}
	switch k {
	case item.KindFloat:
		f, ok := v.Float()
		return item.Float(f), ok
	case item.KindInt:
		if f, ok := v.Float(); ok && f == math.Trunc(f) {
			return item.Int(int64(f)), true
		}
	case item.KindUint:
		if f, ok := v.Float(); ok && f == math.Trunc(f) && f >= 0 {
			return item.Uint(uint64(f)), true
		}
	}
	return item.Value{}, false
}

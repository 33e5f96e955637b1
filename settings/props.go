// Package settings binds persisted configuration values to items of the
// state tree.
package settings

import (
	"math"

	"github.com/op/go-logging"
	"github.com/pkg/errors"

	"gitlab.ubiant.me/go-shared/ble-sensors/item"
)

var log = logging.MustGetLogger("ble-sensors")

var (
	// ErrOutOfRange is returned for a write outside [Min, Max]
	ErrOutOfRange = errors.New("settings: value out of range")
	// ErrType is returned for a write of the wrong type
	ErrType = errors.New("settings: wrong value type")
	// ErrNotFound is returned for a write to a setting never added
	ErrNotFound = errors.New("settings: no such setting")
)

// Type is the declared type of a setting
type Type uint8

const (
	TypeInt Type = iota + 1
	TypeFloat
	TypeString
)

// Props declares the type, default and bounds of a setting. Bounds are
// ignored for strings.
type Props struct {
	Type    Type
	Default item.Value
	Min     item.Value
	Max     item.Value
}

// IntProps declares an integer setting
func IntProps(def, min, max int64) Props {
	return Props{Type: TypeInt, Default: item.Int(def), Min: item.Int(min), Max: item.Int(max)}
}

// FloatProps declares a float setting
func FloatProps(def, min, max float64) Props {
	return Props{Type: TypeFloat, Default: item.Float(def), Min: item.Float(min), Max: item.Float(max)}
}

// StringProps declares a string setting
func StringProps(def string) Props {
	return Props{Type: TypeString, Default: item.String(def)}
}

// Check coerces v to the declared type and validates the bounds
func (p Props) Check(v item.Value) (item.Value, error) {
	if !v.Valid() {
		return v, ErrType
	}

	switch p.Type {
	case TypeString:
		s, ok := v.Str()
		if !ok {
			return v, ErrType
		}
		return item.String(s), nil

	case TypeInt:
		f, ok := v.Float()
		if !ok || f != math.Trunc(f) {
			return v, ErrType
		}
		if err := p.checkRange(f); err != nil {
			return v, err
		}
		return item.Int(int64(f)), nil

	case TypeFloat:
		f, ok := v.Float()
		if !ok {
			return v, ErrType
		}
		if err := p.checkRange(f); err != nil {
			return v, err
		}
		return item.Float(f), nil
	}

	return v, ErrType
}

func (p Props) checkRange(f float64) error {
	if min, ok := p.Min.Float(); ok && f < min {
		return errors.Wrapf(ErrOutOfRange, "%v < %v", f, min)
	}
	if max, ok := p.Max.Float(); ok && f > max {
		return errors.Wrapf(ErrOutOfRange, "%v > %v", f, max)
	}
	return nil
}

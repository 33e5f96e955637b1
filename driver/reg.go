package driver

import (
	"gitlab.ubiant.me/go-shared/ble-sensors/item"
)

// BasicType is the integer container a register is read from
type BasicType uint8

const (
	Un8 BasicType = iota + 1
	Sn8
	Un16
	Sn16
	Un32
	Sn32
)

// Size returns the width of the type in bytes
func (t BasicType) Size() int {
	switch t {
	case Un8, Sn8:
		return 1
	case Un16, Sn16:
		return 2
	case Un32, Sn32:
		return 4
	}
	return 0
}

// Signed reports whether the type is sign extended
func (t BasicType) Signed() bool {
	return t == Sn8 || t == Sn16 || t == Sn32
}

// XlateFunc converts a raw register value. root gives access to the items
// already decoded from the same frame. Returning false means no reading.
type XlateFunc func(root *item.Item, raw uint64) (item.Value, bool)

// Reg describes how to extract one value from a frame
type Reg struct {
	Type      BasicType
	Offset    int
	Shift     int
	Bits      int // 0 means the full width of Type
	BigEndian bool
	Scale     float64 // 0 keeps the raw integer
	Bias      float64
	Inval     uint64
	HasInval  bool
	Xlate     XlateFunc
	Name      string
	Format    item.Format
}

func (r *Reg) bits() int {
	if r.Bits > 0 {
		return r.Bits
	}
	return 8 * r.Type.Size()
}

// Size returns the number of bytes the register spans from Offset
func (r *Reg) Size() int {
	return (r.bits() + r.Shift + 7) >> 3
}

func sext(v uint64, bits int) int64 {
	s := 64 - uint(bits)
	return int64(v<<s) >> s
}

func zext(v uint64, bits int) uint64 {
	s := 64 - uint(bits)
	return v << s >> s
}

// Raw extracts the register bits from buf
func (r *Reg) Raw(buf []byte) (uint64, bool) {
	bits := r.bits()
	size := r.Size()
	if r.Type.Size() == 0 || bits > 32 || r.Offset < 0 || r.Shift < 0 || r.Shift+bits > 64 {
		return 0, false
	}
	if r.Offset+size > len(buf) {
		return 0, false
	}

	var v uint64
	b := buf[r.Offset : r.Offset+size]
	if r.BigEndian {
		for _, c := range b {
			v = v<<8 | uint64(c)
		}
	} else {
		for i, c := range b {
			v |= uint64(c) << (8 * uint(i))
		}
	}

	return zext(v>>uint(r.Shift), bits), true
}

// Decode reads one register from buf. It returns false for a short buffer,
// an invalid pattern or a translation without result.
func Decode(r *Reg, buf []byte, root *item.Item) (item.Value, bool) {
	v, ok := r.Raw(buf)
	if !ok {
		return item.Value{}, false
	}

	if r.HasInval && v == r.Inval {
		return item.Value{}, false
	}

	if r.Xlate != nil {
		return r.Xlate(root, v)
	}

	bits := r.bits()
	if r.Scale != 0 {
		var f float64
		if r.Type.Signed() {
			f = float64(sext(v, bits))
		} else {
			f = float64(v)
		}
		return item.Float(f/r.Scale + r.Bias), true
	}

	if r.Type.Signed() {
		return item.Int(sext(v, bits)), true
	}
	return item.Uint(v), true
}

// SetRegs decodes every register of the table into root, in table order so
// that translations can read fields decoded before them. A register without
// reading invalidates its item; it never stops the other registers.
func SetRegs(root *item.Item, regs []Reg, buf []byte) {
	for i := range regs {
		r := &regs[i]
		v, ok := Decode(r, buf, root)
		if !ok {
			if it := root.Get(r.Name); it != nil {
				it.Invalidate()
			}
			continue
		}
		root.Set(r.Name, v, r.Format)
	}
}

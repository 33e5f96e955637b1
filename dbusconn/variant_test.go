package dbusconn

import (
	"testing"

	"github.com/godbus/dbus/v5"

	"gitlab.ubiant.me/go-shared/ble-sensors/item"
)

func TestToVariant(t *testing.T) {
	cases := []struct {
		in   item.Value
		want interface{}
	}{
		{item.Int(-3), int32(-3)},
		{item.Int(1 << 40), int64(1 << 40)},
		{item.Uint(7), int32(7)},
		{item.Uint(1 << 33), uint64(1 << 33)},
		{item.Float(2.5), 2.5},
		{item.String("x"), "x"},
	}
	for _, c := range cases {
		if got := ToVariant(c.in).Value(); got != c.want {
			t.Fatalf("ToVariant(%v) = %#v, want %#v", c.in, got, c.want)
		}
	}

	v := ToVariant(item.Invalid(item.KindFloat))
	if a, ok := v.Value().([]int32); !ok || len(a) != 0 {
		t.Fatalf("invalid value sent as %#v", v.Value())
	}
}

func TestFromVariant(t *testing.T) {
	if v := FromVariant(dbus.MakeVariant(int32(4))); !v.Equal(item.Int(4)) {
		t.Fatalf("int32 = %v", v)
	}
	if v := FromVariant(dbus.MakeVariant("on")); !v.Equal(item.String("on")) {
		t.Fatalf("string = %v", v)
	}
	if v := FromVariant(dbus.MakeVariant([]int32{})); v.Kind() != item.KindNone {
		t.Fatalf("empty array = %v", v)
	}
}

func TestCoerce(t *testing.T) {
	cases := []struct {
		in   item.Value
		kind item.Kind
		want item.Value
		ok   bool
	}{
		{item.Int(3), item.KindFloat, item.Float(3), true},
		{item.Float(3), item.KindInt, item.Int(3), true},
		{item.Float(3.5), item.KindInt, item.Value{}, false},
		{item.Int(-1), item.KindUint, item.Value{}, false},
		{item.String("a"), item.KindFloat, item.Value{}, false},
		{item.Value{}, item.KindFloat, item.Invalid(item.KindFloat), true},
		{item.String("a"), item.KindString, item.String("a"), true},
	}
	for i, c := range cases {
		got, ok := coerce(c.in, c.kind)
		if ok != c.ok || (ok && !got.Equal(c.want)) {
			t.Fatalf("case %d: coerce = %v, %v", i, got, ok)
		}
	}
}

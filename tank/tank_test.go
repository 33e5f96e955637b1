package tank

import (
	"math"
	"testing"

	"gitlab.ubiant.me/go-shared/ble-sensors/item"
	"gitlab.ubiant.me/go-shared/ble-sensors/registry"
	"gitlab.ubiant.me/go-shared/ble-sensors/settings"
)

func TestCurveMapsControlPoint(t *testing.T) {
	c, ok := NewCurve([]Point{{0, 0}, {0.5, 0.3}, {1, 1}})
	if !ok {
		t.Fatal("valid curve rejected")
	}
	if got := c.Apply(0.5); got != 0.3 {
		t.Fatalf("Apply(0.5) = %v, want 0.3", got)
	}
	if got := c.Apply(0.75); math.Abs(got-0.65) > 1e-9 {
		t.Fatalf("Apply(0.75) = %v, want 0.65", got)
	}
	if got := c.Apply(1); math.Abs(got-1) > 1e-9 {
		t.Fatalf("Apply(1) = %v, want 1", got)
	}
}

func TestInvalidCurveIsIdentity(t *testing.T) {
	cases := [][]Point{
		{{0.5, 0.3}, {0.4, 0.6}},
		{{0.3, 0.5}, {0.6, 0.4}},
		{{0.5, 1.2}},
		{{0.1, 0.1}, {0.2, 0.2}, {0.3, 0.3}, {0.4, 0.4}, {0.5, 0.5}, {0.6, 0.6},
			{0.65, 0.65}, {0.7, 0.7}, {0.8, 0.8}, {0.85, 0.85}, {0.9, 0.9}},
	}
	for i, pts := range cases {
		c, ok := NewCurve(pts)
		if ok || !c.Identity() {
			t.Fatalf("case %d accepted", i)
		}
		if got := c.Apply(0.5); got != 0.5 {
			t.Fatalf("case %d: Apply(0.5) = %v, want 0.5", i, got)
		}
	}
}

func TestParseShape(t *testing.T) {
	c, ok := ParseShape("0:0, 50:30, 100:100")
	if !ok || len(c.Points()) != 1 || c.Points()[0] != (Point{0.5, 0.3}) {
		t.Fatalf("ParseShape = %v, %v", c.Points(), ok)
	}
	if _, ok := ParseShape("50-30"); ok {
		t.Fatal("malformed shape accepted")
	}
	if c, ok := ParseShape(""); !ok || !c.Identity() {
		t.Fatal("empty shape should be the identity")
	}
}

func newTank(t *testing.T, topDown bool) (*registry.Registry, *settings.MemStore, *registry.Device) {
	t.Helper()
	store := settings.NewMemStore()
	r, err := registry.New(store, item.New(""), nil, registry.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	info := &registry.Info{Class: Class, Prefix: "t_"}
	d, err := r.CreateOrTouch("c0ffee000001", info, Info{TopDown: topDown})
	if err != nil {
		t.Fatal(err)
	}
	return r, store, d
}

func set(t *testing.T, store settings.Store, name string, v item.Value) {
	t.Helper()
	if err := store.Set("Settings/Devices/t_c0ffee000001/"+name, v); err != nil {
		t.Fatal(err)
	}
}

func TestTopDownLevel(t *testing.T) {
	r, store, d := newTank(t, true)
	if v := d.Root.ValueFloat("RawValueEmpty"); v != 20 {
		t.Fatalf("top-down empty default = %v, want 20", v)
	}
	set(t, store, "RawValueEmpty", item.Float(300))
	set(t, store, "RawValueFull", item.Float(50))
	set(t, store, "Capacity", item.Float(2))

	cases := []struct {
		raw   float64
		level int64
	}{
		{175, 50},
		{310, 0},
		{40, 100},
	}
	for _, c := range cases {
		d.SetItem("RawValue", item.Float(c.raw), item.UnitCm)
		r.Update(d)
		if got := d.Root.ValueInt("Level"); got != c.level {
			t.Fatalf("raw %v: level %d, want %d", c.raw, got, c.level)
		}
	}
	if v := d.Root.ValueFloat("Remaining"); v != 2 {
		t.Fatalf("Remaining = %v, want 2", v)
	}
	if v := d.Root.ValueInt("Status"); v != StatusOK {
		t.Fatalf("Status = %d", v)
	}
}

func TestReversedReferencesRaiseFault(t *testing.T) {
	r, store, d := newTank(t, true)
	set(t, store, "RawValueEmpty", item.Float(50))
	set(t, store, "RawValueFull", item.Float(300))

	d.SetItem("RawValue", item.Float(175), item.UnitCm)
	r.Update(d)
	if d.Root.Get("Level").Valid() || d.Root.Get("Remaining").Valid() {
		t.Fatal("level published with reversed references")
	}
	if v := d.Root.ValueInt("Status"); v != StatusError {
		t.Fatalf("Status = %d, want %d", v, StatusError)
	}

	set(t, store, "RawValueEmpty", item.Float(300))
	set(t, store, "RawValueFull", item.Float(50))
	if v := d.Root.ValueInt("Level"); v != 50 || d.Root.ValueInt("Status") != StatusOK {
		t.Fatalf("fixing the settings did not recover: level %d", v)
	}
}

func TestBottomUpWithShape(t *testing.T) {
	r, store, d := newTank(t, false)
	set(t, store, "RawValueEmpty", item.Float(0))
	set(t, store, "RawValueFull", item.Float(100))
	set(t, store, "Shape", item.String("50:30"))

	d.SetItem("RawValue", item.Float(50), item.UnitCm)
	r.Update(d)
	if v := d.Root.ValueInt("Level"); v != 30 {
		t.Fatalf("level = %d, want 30", v)
	}

	set(t, store, "Shape", item.String("50:30,40:60"))
	if v := d.Root.ValueInt("Level"); v != 50 {
		t.Fatalf("level = %d with a non-monotonic shape, want 50", v)
	}
}

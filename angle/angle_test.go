package angle

import (
	"testing"

	"gitlab.ubiant.me/go-shared/ble-sensors/item"
	"gitlab.ubiant.me/go-shared/ble-sensors/registry"
	"gitlab.ubiant.me/go-shared/ble-sensors/settings"
)

func newDevice(t *testing.T) (*settings.MemStore, *registry.Device) {
	t.Helper()
	store := settings.NewMemStore()
	r, err := registry.New(store, item.New(""), nil, registry.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	info := &registry.Info{Prefix: "a_", Settings: Settings, Init: Init}
	d, err := r.CreateOrTouch("c0ffee000001", info, nil)
	if err != nil {
		t.Fatal(err)
	}
	return store, d
}

func setAccel(d *registry.Device, x, y, z float64) {
	d.SetItem("AccelX", item.Float(x), item.UnitG2Dec)
	d.SetItem("AccelY", item.Float(y), item.UnitG2Dec)
	d.SetItem("AccelZ", item.Float(z), item.UnitG2Dec)
}

func enable(t *testing.T, store settings.Store) {
	t.Helper()
	if err := store.Set("Settings/Devices/a_c0ffee000001/CalculateAngles", item.Int(1)); err != nil {
		t.Fatal(err)
	}
}

func TestLevelSensor(t *testing.T) {
	store, d := newDevice(t)
	setAccel(d, 0, 0, 1)
	enable(t, store)

	want := map[string]float64{"AngleX": 0, "AngleY": 0, "AngleZ": -90}
	for name, w := range want {
		if got, ok := d.Root.GetValue(name).Float(); !ok || got != w {
			t.Fatalf("%s = %v, want %v", name, d.Root.GetValue(name), w)
		}
	}
}

func TestTiltedSensor(t *testing.T) {
	store, d := newDevice(t)
	enable(t, store)
	setAccel(d, 0.5, 0, 0.866)
	Calculate(d.Root)
	if got := d.Root.ValueFloat("AngleX"); got != -30 {
		t.Fatalf("AngleX = %v, want -30", got)
	}
}

func TestZeroMagnitudeInvalidates(t *testing.T) {
	store, d := newDevice(t)
	enable(t, store)
	setAccel(d, 0, 0, 0)
	Calculate(d.Root)
	for _, name := range outputs {
		it := d.Root.Get(name)
		if it == nil || it.Valid() {
			t.Fatalf("%s should exist without a reading", name)
		}
	}
}

func TestDisabledOrMissingClears(t *testing.T) {
	store, d := newDevice(t)
	setAccel(d, 0, 0, 1)
	enable(t, store)
	if d.Root.Get("AngleX") == nil {
		t.Fatal("angles not calculated")
	}

	d.Root.Get("AccelY").Invalidate()
	Calculate(d.Root)
	if d.Root.Get("AngleX") != nil {
		t.Fatal("stale angles kept without acceleration")
	}

	setAccel(d, 0, 0, 1)
	Calculate(d.Root)
	if err := store.Set("Settings/Devices/a_c0ffee000001/CalculateAngles", item.Int(0)); err != nil {
		t.Fatal(err)
	}
	if d.Root.Get("AngleZ") != nil {
		t.Fatal("angles kept after disabling")
	}
}

func TestCalibration(t *testing.T) {
	store, d := newDevice(t)
	enable(t, store)
	setAccel(d, 0.25, -0.5, 0.75)
	d.Root.Get("CalibrateAngles").SetOwner(item.Uint(1))
	Calculate(d.Root)

	if d.Root.Get("AngleX") != nil {
		t.Fatal("angles published in the calibration cycle")
	}
	if v := d.Root.ValueInt("CalibrateAngles"); v != 0 {
		t.Fatalf("trigger = %d, want 0", v)
	}
	base := "Settings/Devices/a_c0ffee000001/"
	for name, want := range map[string]float64{"CalibX": -0.25, "CalibY": 0.5, "CalibZ": 0.25} {
		v, _ := store.Get(base + name)
		if f, _ := v.Float(); f != want {
			t.Fatalf("%s = %v, want %v", name, v, want)
		}
	}

	Calculate(d.Root)
	for _, name := range []string{"AngleX", "AngleY"} {
		if got := d.Root.ValueFloat(name); got != 0 {
			t.Fatalf("%s = %v after calibration, want 0", name, got)
		}
	}
}

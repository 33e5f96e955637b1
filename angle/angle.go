// Package angle derives tilt angles from three-axis accelerometer items.
package angle

import (
	"math"

	"gitlab.ubiant.me/go-shared/ble-sensors/item"
	"gitlab.ubiant.me/go-shared/ble-sensors/registry"
	"gitlab.ubiant.me/go-shared/ble-sensors/settings"
)

var outputs = []string{"AngleX", "AngleY", "AngleZ"}

var calibProps = settings.FloatProps(0, -10, 10)

// Settings are the angle settings of accelerometer models
var Settings = []registry.Setting{
	{Name: "CalculateAngles", Props: settings.IntProps(0, 0, 1), OnChange: recalculate},
	{Name: "CalibX", Props: calibProps},
	{Name: "CalibY", Props: calibProps},
	{Name: "CalibZ", Props: calibProps},
}

// Init creates the calibration trigger. The angle items only exist while
// angles are calculated.
func Init(d *registry.Device) {
	d.SetInt("CalibrateAngles", 0)
}

func recalculate(d *registry.Device, _ *item.Item) {
	Calculate(d.Root)
	d.Flush()
}

func clearAngles(root *item.Item) {
	for _, name := range outputs {
		if it := root.Get(name); it != nil {
			it.Delete()
		}
	}
}

func axes(root *item.Item) (x, y, z float64, ok bool) {
	var v [3]float64
	for i, name := range []string{"AccelX", "AccelY", "AccelZ"} {
		f, valid := root.GetValue(name).Float()
		if !valid {
			return 0, 0, 0, false
		}
		v[i] = f
	}
	return v[0], v[1], v[2], true
}

// calibrate stores the offsets bringing the current reading to (0, 0, 1g)
// when the trigger is set
func calibrate(root *item.Item, x, y, z float64) bool {
	if root.ValueInt("CalibrateAngles") != 1 {
		return false
	}
	for name, off := range map[string]float64{"CalibX": -x, "CalibY": -y, "CalibZ": 1 - z} {
		if it := root.Get(name); it != nil {
			it.SetOwner(item.Float(off))
		}
	}
	root.Set("CalibrateAngles", item.Uint(0), item.UnitNone)
	return true
}

func fromHorizontal(c, total float64) float64 {
	return math.Round(math.Acos(c/total)*180/math.Pi - 90)
}

// Calculate updates AngleX, AngleY and AngleZ in degrees from horizontal
func Calculate(root *item.Item) {
	enabled := root.ValueInt("CalculateAngles") == 1

	x, y, z, ok := axes(root)
	if !ok {
		if enabled {
			clearAngles(root)
		}
		return
	}

	if calibrate(root, x, y, z) {
		clearAngles(root)
		return
	}

	if !enabled {
		clearAngles(root)
		return
	}

	for _, name := range outputs {
		if root.Get(name) == nil {
			root.Set(name, item.Invalid(item.KindFloat), item.UnitDegree)
		}
	}

	x += root.ValueFloat("CalibX")
	y += root.ValueFloat("CalibY")
	z += root.ValueFloat("CalibZ")

	total := math.Sqrt(x*x + y*y + z*z)
	if total == 0 {
		for _, name := range outputs {
			root.Get(name).Invalidate()
		}
		return
	}

	for i, c := range []float64{x, y, z} {
		root.Set(outputs[i], item.Float(fromHorizontal(c, total)), item.UnitDegree)
	}
}

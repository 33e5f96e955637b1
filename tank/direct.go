package tank

import (
	"gitlab.ubiant.me/go-shared/ble-sensors/item"
	"gitlab.ubiant.me/go-shared/ble-sensors/registry"
	"gitlab.ubiant.me/go-shared/ble-sensors/settings"
)

type reportedKey struct{}

// DirectClass is the class of gauges reporting the level percentage
// themselves. Remaining is derived from Capacity unless the gauge reports
// it too.
var DirectClass = &registry.Class{
	Role: "tank",
	Settings: []registry.Setting{
		{Name: "Capacity", Props: settings.FloatProps(0.2, 0, 1000), OnChange: recomputeDirect},
		{Name: "FluidType", Props: settings.IntProps(0, 0, 1<<31-4)},
	},
	Init: func(d *registry.Device) {
		d.SetItem("Remaining", item.Invalid(item.KindFloat), item.UnitM3)
		d.SetItem("Level", item.Invalid(item.KindUint), item.UnitPercentage)
	},
	Update: UpdateDirect,
}

// SetReportedRemaining records the volume in m3 reported by the gauge,
// ok false means the gauge did not report one
func SetReportedRemaining(d *registry.Device, m3 float64, ok bool) {
	if !ok {
		d.SetContext(reportedKey{}, nil)
		return
	}
	d.SetContext(reportedKey{}, m3)
}

func recomputeDirect(d *registry.Device, _ *item.Item) {
	UpdateDirect(d)
	d.Flush()
}

// UpdateDirect computes Remaining from the reported Level
func UpdateDirect(d *registry.Device) {
	if m3, ok := d.Context(reportedKey{}).(float64); ok {
		d.SetItem("Remaining", item.Float(m3), item.UnitM3)
		return
	}
	level, ok := d.Root.GetValue("Level").Float()
	if !ok {
		invalidate(d.Root)
		return
	}
	d.SetItem("Remaining", item.Float(level/100*d.Root.ValueFloat("Capacity")), item.UnitM3)
}

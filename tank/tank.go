// Package tank derives the fill level of liquid tanks from a raw distance.
package tank

import (
	"github.com/op/go-logging"

	"gitlab.ubiant.me/go-shared/ble-sensors/item"
	"gitlab.ubiant.me/go-shared/ble-sensors/pkg/mathx"
	"gitlab.ubiant.me/go-shared/ble-sensors/registry"
	"gitlab.ubiant.me/go-shared/ble-sensors/settings"
)

var log = logging.MustGetLogger("ble-sensors")

// Fluid types of the FluidType setting
const (
	FluidFuel = iota
	FluidFreshWater
	FluidWasteWater
	FluidLiveWell
	FluidOil
	FluidBlackWater
	FluidGasoline
	FluidDiesel
	FluidLPG
	FluidLNG
	FluidHydraulicOil
	FluidRawWater
)

// StatusOK and StatusError are the values of the Status item
const (
	StatusOK    = 0
	StatusError = 4
)

// Info is the tank data of a vendor model
type Info struct {
	// TopDown sensors measure the distance from the top, so the raw value
	// decreases as the tank fills
	TopDown bool
}

// TankInfo implements Infoer
func (i Info) TankInfo() Info { return i }

// Infoer is implemented by the model data of tank devices
type Infoer interface {
	TankInfo() Info
}

type curveKey struct{}

var (
	emptyProps = settings.FloatProps(0, 0, 500)
	fullProps  = settings.FloatProps(20, 0, 500)
)

// Class is the tank device class
var Class = &registry.Class{
	Role: "tank",
	Settings: []registry.Setting{
		{Name: "Capacity", Props: settings.FloatProps(0.2, 0, 1000), OnChange: recompute},
		{Name: "FluidType", Props: settings.IntProps(0, 0, 1<<31-4)},
		{Name: "Shape", Props: settings.StringProps(""), OnChange: shapeChanged},
	},
	Init:   initTank,
	Update: Update,
}

func tankInfo(d *registry.Device) Info {
	if ti, ok := d.Data.(Infoer); ok {
		return ti.TankInfo()
	}
	return Info{}
}

func initTank(d *registry.Device) {
	d.SetStr("RawUnit", "cm")
	d.SetItem("Remaining", item.Invalid(item.KindFloat), item.UnitM3)
	d.SetItem("Level", item.Invalid(item.KindUint), item.UnitPercentage)

	empty, full := emptyProps, fullProps
	if tankInfo(d).TopDown {
		empty, full = fullProps, emptyProps
	}
	err := d.AddSettings(
		registry.Setting{Name: "RawValueEmpty", Props: empty, OnChange: recompute},
		registry.Setting{Name: "RawValueFull", Props: full, OnChange: recompute},
	)
	if err != nil {
		log.Warning("Tank settings of", d.DevID(), err)
	}

	loadShape(d)
}

func loadShape(d *registry.Device) Curve {
	c, ok := ParseShape(d.Root.ValueString("Shape"))
	if !ok {
		log.Warning("Invalid tank shape of", d.DevID(), "using a linear tank")
	}
	d.SetContext(curveKey{}, c)
	return c
}

func curveOf(d *registry.Device) Curve {
	if c, ok := d.Context(curveKey{}).(Curve); ok {
		return c
	}
	return loadShape(d)
}

func shapeChanged(d *registry.Device, _ *item.Item) {
	loadShape(d)
	recompute(d, nil)
}

func recompute(d *registry.Device, _ *item.Item) {
	Update(d)
	d.Flush()
}

func invalidate(root *item.Item) {
	for _, name := range []string{"Level", "Remaining"} {
		if it := root.Get(name); it != nil {
			it.Invalidate()
		}
	}
}

// Update computes Level and Remaining from RawValue and the references
func Update(d *registry.Device) {
	root := d.Root
	empty, okEmpty := root.GetValue("RawValueEmpty").Float()
	full, okFull := root.GetValue("RawValueFull").Float()

	bad := !okEmpty || !okFull
	if tankInfo(d).TopDown {
		bad = bad || empty <= full
	} else {
		bad = bad || empty >= full
	}
	if bad {
		invalidate(root)
		d.SetInt("Status", StatusError)
		return
	}

	raw, ok := root.GetValue("RawValue").Float()
	if !ok {
		invalidate(root)
		return
	}

	f := mathx.Clamp((raw-empty)/(full-empty), 0, 1)
	f = curveOf(d).Apply(f)

	d.SetItem("Level", item.Uint(uint64(mathx.Round(100*f))), item.UnitPercentage)
	d.SetItem("Remaining", item.Float(f*root.ValueFloat("Capacity")), item.UnitM3)
	d.SetInt("Status", StatusOK)
}

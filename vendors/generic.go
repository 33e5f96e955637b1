package vendors

import (
	"fmt"

	"gitlab.ubiant.me/go-shared/ble-sensors/driver"
	"gitlab.ubiant.me/go-shared/ble-sensors/registry"
	"gitlab.ubiant.me/go-shared/ble-sensors/scan"
	"gitlab.ubiant.me/go-shared/ble-sensors/tank"
)

// builtinRegs are published in the drivers manager so the tables of the
// compiled-in sensors can be listed next to the JSON ones
var builtinRegs = map[string][]driver.Reg{
	"ruuvi":      ruuviRegs,
	"mopeka":     mopekaRegs,
	"gobius":     gobiusRegs,
	"safiery":    safieryRegs,
	"solarsense": solarSenseRegs,
}

var classes = map[string]*registry.Class{
	"tank":        tank.Class,
	"temperature": TemperatureClass,
}

// genericHandler decodes the frames of a sensor described by a JSON
// hardware descriptor. A Length of 0 accepts any frame size. A descriptor
// without class nor role has no service name and gets no handler.
func genericHandler(d *driver.DriverItem) Handler {
	hd := d.HDesc
	info := &registry.Info{
		Class:       classes[hd.Class],
		ProductID:   hd.ProductID,
		ProductName: hd.Name,
		DevInstance: hd.DevInstance,
		Prefix:      hd.Prefix,
		Role:        hd.Role,
		Regs:        d.Regs,
	}
	if hd.Class != "" && info.Class == nil {
		log.Warning("Driver", hd.Name, "has an unknown class:", hd.Class)
	}
	if info.DeviceRole() == "" {
		log.Warning("Driver", hd.Name, "has neither class nor role, ignored")
		return nil
	}
	if info.DevInstance == 0 {
		info.DevInstance = 20
	}
	var data interface{}
	if info.Class == tank.Class {
		data = tank.Info{TopDown: hd.TopDown}
	}
	label := hd.Label
	if label == "" {
		label = hd.Name
	}

	return func(r *registry.Registry, addr scan.Addr, buf []byte) error {
		if hd.Length > 0 && len(buf) != hd.Length {
			return malformed("%s: %d bytes", hd.Name, len(buf))
		}
		name := fmt.Sprintf("%s %02X%02X", label, addr[4], addr[5])
		return process(r, addr.ID(), info, data, name, func(dev *registry.Device) {
			dev.SetRegs(buf)
		})
	}
}

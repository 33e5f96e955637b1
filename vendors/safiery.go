package vendors

import (
	"fmt"

	"gitlab.ubiant.me/go-shared/ble-sensors/driver"
	"gitlab.ubiant.me/go-shared/ble-sensors/item"
	"gitlab.ubiant.me/go-shared/ble-sensors/registry"
	"gitlab.ubiant.me/go-shared/ble-sensors/scan"
	"gitlab.ubiant.me/go-shared/ble-sensors/tank"
)

const (
	safieryMinLen  = 10
	safieryMaxLen  = 11
	safieryUIDOffs = 5
)

// AccelZ is only sent by 11 bytes frames
var safieryRegs = []driver.Reg{
	{Type: driver.Un8, Offset: 0, Bits: 7, Name: "HardwareID", Format: item.UnitNone},
	{Type: driver.Un8, Offset: 1, Bits: 7, Scale: 32, Name: "BatteryVoltage", Format: item.UnitVolt2Dec},
	{Type: driver.Un8, Offset: 2, Bits: 7, Scale: 1, Bias: -40, Name: "Temperature", Format: item.UnitCelsius1Dec},
	{Type: driver.Un8, Offset: 2, Shift: 7, Bits: 1, Name: "SyncButton", Format: item.UnitNone},
	{Type: driver.Un16, Offset: 3, Bits: 14, Scale: 10, Name: "RawValue", Format: item.UnitCm},
	{Type: driver.Sn8, Offset: 8, Scale: 1024, Name: "AccelX", Format: item.UnitG2Dec},
	{Type: driver.Sn8, Offset: 9, Scale: 1024, Name: "AccelY", Format: item.UnitG2Dec},
	{Type: driver.Sn8, Offset: 10, Scale: 1024, Name: "AccelZ", Format: item.UnitG2Dec},
}

var safierySensor = &registry.Info{
	Class:       tank.Class,
	ProductID:   0xa1c2,
	ProductName: "Safiery Star Tank",
	DevInstance: 20,
	Prefix:      "safiery_",
	Regs:        safieryRegs,
}

func handleSafiery(r *registry.Registry, addr scan.Addr, buf []byte) error {
	if len(buf) < safieryMinLen || len(buf) > safieryMaxLen {
		return malformed("safiery: %d bytes", len(buf))
	}
	uid := buf[safieryUIDOffs : safieryUIDOffs+3]
	if !uidMatches(uid, addr) {
		return malformed("safiery: uid %x does not match %s", uid, addr)
	}

	label := fmt.Sprintf("StarTank %02X:%02X:%02X", uid[0], uid[1], uid[2])
	return process(r, addr.ID(), safierySensor, tank.Info{TopDown: true}, label, func(d *registry.Device) {
		d.SetRegs(buf)
	})
}

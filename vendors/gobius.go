package vendors

import (
	"fmt"

	"gitlab.ubiant.me/go-shared/ble-sensors/driver"
	"gitlab.ubiant.me/go-shared/ble-sensors/item"
	"gitlab.ubiant.me/go-shared/ble-sensors/registry"
	"gitlab.ubiant.me/go-shared/ble-sensors/scan"
	"gitlab.ubiant.me/go-shared/ble-sensors/tank"
)

// Gobius C payload, 14 bytes:
//
//	0      hardware id, 7 bits
//	1      temperature + 40, 7 bits
//	2-3    distance in mm, little endian
//	4-6    low half of the advertiser address
//	7-9    firmware version
//	10-13  status and spare, ignored
const (
	gobiusLen     = 14
	gobiusUIDOffs = 4
	gobiusFWOffs  = 7

	gobiusError   = 0xffff
	gobiusStartup = 0xfffe
)

func gobiusLevel(_ *item.Item, raw uint64) (item.Value, bool) {
	if raw == gobiusError || raw == gobiusStartup {
		return item.Value{}, false
	}
	return item.Float(float64(raw) / 10), true
}

var gobiusRegs = []driver.Reg{
	{Type: driver.Un8, Offset: 0, Bits: 7, Name: "HardwareID", Format: item.UnitNone},
	{Type: driver.Un8, Offset: 1, Bits: 7, Scale: 1, Bias: -40, Name: "Temperature", Format: item.UnitCelsius1Dec},
	{Type: driver.Un16, Offset: 2, Xlate: gobiusLevel, Name: "RawValue", Format: item.UnitCm},
}

var gobiusSensor = &registry.Info{
	Class:       tank.Class,
	ProductID:   0xa1c3,
	ProductName: "Gobius C tank sensor",
	DevInstance: 20,
	Prefix:      "gobius_",
	Regs:        gobiusRegs,
}

func handleGobius(r *registry.Registry, addr scan.Addr, buf []byte) error {
	if len(buf) != gobiusLen {
		return malformed("gobius: %d bytes", len(buf))
	}
	uid := buf[gobiusUIDOffs : gobiusUIDOffs+3]
	if !uidMatches(uid, addr) {
		return malformed("gobius: uid %x does not match %s", uid, addr)
	}

	label := fmt.Sprintf("Gobius C %02X:%02X:%02X", uid[0], uid[1], uid[2])
	return process(r, addr.ID(), gobiusSensor, tank.Info{TopDown: true}, label, func(d *registry.Device) {
		fw := buf[gobiusFWOffs:]
		d.SetStr("FirmwareVersion", fmt.Sprintf("%d.%d.%d", fw[0], fw[1], fw[2]))
		d.SetRegs(buf)
	})
}

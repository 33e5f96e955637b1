package vendors

import (
	"fmt"

	"gitlab.ubiant.me/go-shared/ble-sensors/alarm"
	"gitlab.ubiant.me/go-shared/ble-sensors/driver"
	"gitlab.ubiant.me/go-shared/ble-sensors/item"
	"gitlab.ubiant.me/go-shared/ble-sensors/registry"
	"gitlab.ubiant.me/go-shared/ble-sensors/scan"
)

const solarSenseMinLen = 22

func solarSenseTxPower(_ *item.Item, raw uint64) (item.Value, bool) {
	if raw == 0 {
		return item.Uint(0), true
	}
	return item.Uint(6), true
}

// solarSenseSunTime expands the 7 bits log-like encoding to minutes
func solarSenseSunTime(_ *item.Item, raw uint64) (item.Value, bool) {
	switch {
	case raw <= 29:
		raw *= 2
	case raw <= 95:
		raw = 60 + (raw-30)*10
	case raw <= 126:
		raw = 720 + (raw-96)*30
	}
	return item.Uint(raw), true
}

var solarSenseRegs = []driver.Reg{
	{Type: driver.Un32, Offset: 8, Name: "ErrorCode", Format: item.UnitNone},
	{Type: driver.Un8, Offset: 12, Inval: 0xff, HasInval: true, Name: "ChrErrorCode", Format: item.UnitNone},
	{Type: driver.Un8, Offset: 13, Scale: 100, Bias: 1.7, Inval: 0xff, HasInval: true,
		Name: "BatteryVoltage", Format: item.UnitVolt2Dec},
	{Type: driver.Un32, Offset: 14, Bits: 20, Scale: 1, Inval: 0xfffff, HasInval: true,
		Name: "InstallationPower", Format: item.UnitWatt},
	{Type: driver.Un32, Offset: 16, Shift: 4, Bits: 20, Scale: 100, Inval: 0xfffff, HasInval: true,
		Name: "TodaysYield", Format: item.UnitKiloWattHour},
	{Type: driver.Un16, Offset: 19, Bits: 14, Scale: 10, Inval: 0x3fff, HasInval: true,
		Name: "Irradiance", Format: item.UnitIrradiance1Dec},
	{Type: driver.Un16, Offset: 20, Shift: 6, Bits: 11, Scale: 10, Bias: -60, Inval: 0x7ff, HasInval: true,
		Name: "CellTemperature", Format: item.UnitCelsius1Dec},
	{Type: driver.Un8, Offset: 22, Shift: 1, Bits: 1, Xlate: solarSenseTxPower,
		Name: "TxPowerLevel", Format: item.UnitDBm},
	{Type: driver.Un16, Offset: 22, Shift: 2, Bits: 7, Inval: 0x7f, HasInval: true, Xlate: solarSenseSunTime,
		Name: "TimeSinceLastSun", Format: item.UnitMinutes},
}

var solarSenseSensor = &registry.Info{
	ProductID:   0xa3b0,
	ProductName: "SolarSense 750",
	DevInstance: 20,
	Prefix:      "solarsense_",
	Role:        "meteo",
	Regs:        solarSenseRegs,
	Alarms: []*alarm.Alarm{
		{Name: "LowBattery", Item: "BatteryVoltage", Level: 3.2, Hyst: 0.4},
	},
}

func handleSolarSense(r *registry.Registry, addr scan.Addr, buf []byte) error {
	if len(buf) < solarSenseMinLen {
		return malformed("solarsense: %d bytes", len(buf))
	}
	if buf[0] != 0x10 || buf[4] != 0xff || buf[7] != 0x01 {
		return malformed("solarsense: bad header % x", buf[:8])
	}

	label := fmt.Sprintf("SolarSense %02X%02X", addr[4], addr[5])
	return process(r, addr.ID(), solarSenseSensor, nil, label, func(d *registry.Device) {
		d.SetRegs(buf)
	})
}

package vendors

import (
	"fmt"

	"gitlab.ubiant.me/go-shared/ble-sensors/alarm"
	"gitlab.ubiant.me/go-shared/ble-sensors/angle"
	"gitlab.ubiant.me/go-shared/ble-sensors/driver"
	"gitlab.ubiant.me/go-shared/ble-sensors/item"
	"gitlab.ubiant.me/go-shared/ble-sensors/registry"
	"gitlab.ubiant.me/go-shared/ble-sensors/scan"
)

const (
	ruuviLen     = 24
	ruuviRAWv2   = 5
	ruuviMacOffs = 18
)

var ruuviRegs = []driver.Reg{
	{Type: driver.Sn16, Offset: 1, Scale: 200, Inval: 0x8000, HasInval: true, BigEndian: true,
		Name: "Temperature", Format: item.UnitCelsius1Dec},
	{Type: driver.Un16, Offset: 3, Scale: 400, Inval: 0xffff, HasInval: true, BigEndian: true,
		Name: "Humidity", Format: item.UnitPercentage},
	{Type: driver.Un16, Offset: 5, Scale: 100, Bias: 500, Inval: 0xffff, HasInval: true, BigEndian: true,
		Name: "Pressure", Format: item.UnitHectoPascal},
	{Type: driver.Sn16, Offset: 7, Scale: 1000, Inval: 0x8000, HasInval: true, BigEndian: true,
		Name: "AccelX", Format: item.UnitG2Dec},
	{Type: driver.Sn16, Offset: 9, Scale: 1000, Inval: 0x8000, HasInval: true, BigEndian: true,
		Name: "AccelY", Format: item.UnitG2Dec},
	{Type: driver.Sn16, Offset: 11, Scale: 1000, Inval: 0x8000, HasInval: true, BigEndian: true,
		Name: "AccelZ", Format: item.UnitG2Dec},
	{Type: driver.Un16, Offset: 13, Shift: 5, Bits: 11, Scale: 1000, Bias: 1.6, Inval: 0x3ff, HasInval: true,
		BigEndian: true, Name: "BatteryVoltage", Format: item.UnitVolt2Dec},
	{Type: driver.Un8, Offset: 14, Bits: 5, Scale: 0.5, Bias: -40, Inval: 0x1f, HasInval: true, BigEndian: true,
		Name: "TxPower", Format: item.UnitDBm},
	{Type: driver.Un16, Offset: 16, Inval: 0xffff, HasInval: true, BigEndian: true,
		Name: "SeqNo", Format: item.UnitNone},
}

// ruuviLowBattery lowers the threshold in the cold, where the cell
// voltage sags
func ruuviLowBattery(root *item.Item, a *alarm.Alarm) float64 {
	t, ok := root.GetValue("Temperature").Float()
	switch {
	case !ok:
		return a.Level
	case t < -20:
		return 2.0
	case t < 0:
		return 2.3
	}
	return a.Level
}

var ruuviTag = &registry.Info{
	Class:       TemperatureClass,
	ProductID:   0xc029,
	ProductName: "Ruuvi tag",
	DevInstance: 20,
	Prefix:      "ruuvi_",
	Settings:    angle.Settings,
	Init:        angle.Init,
	Regs:        ruuviRegs,
	Alarms: []*alarm.Alarm{
		{Name: "LowBattery", Item: "BatteryVoltage", Level: 2.5, Hyst: 0.4, LevelFunc: ruuviLowBattery},
	},
}

func handleRuuvi(r *registry.Registry, _ scan.Addr, buf []byte) error {
	if len(buf) != ruuviLen || buf[0] != ruuviRAWv2 {
		return malformed("ruuvi: format %d, %d bytes", buf0(buf), len(buf))
	}

	var mac scan.Addr
	copy(mac[:], buf[ruuviMacOffs:])
	label := fmt.Sprintf("Ruuvi %02X%02X", mac[4], mac[5])

	return process(r, mac.ID(), ruuviTag, nil, label, func(d *registry.Device) {
		d.SetRegs(buf)
		angle.Calculate(d.Root)
	})
}

func buf0(buf []byte) int {
	if len(buf) == 0 {
		return -1
	}
	return int(buf[0])
}

package vendors

import (
	"fmt"
	"strconv"
	"strings"

	"gitlab.ubiant.me/go-shared/ble-sensors/item"
	"gitlab.ubiant.me/go-shared/ble-sensors/registry"
	"gitlab.ubiant.me/go-shared/ble-sensors/scan"
	"gitlab.ubiant.me/go-shared/ble-sensors/tank"
)

// SeeLevel 709-BT payload, 14 ASCII bytes after the coach id:
//
//	0-2    coach id
//	3      sensor number
//	4-6    reading, or a status such as "OPN" or "ERR"
//	7-9    volume in gallons
//	10-12  capacity in gallons
//	13     alarm digit
//
// One broadcaster cycles through all its sensors, each becomes a device.
const (
	seeLevelLen = 14

	seeLevelTemp    = 7
	seeLevelTemp4   = 10
	seeLevelBattery = 13

	gallonM3 = 0.00378541
)

type seeLevelSensor struct {
	name  string
	fluid int
}

var seeLevelSensors = map[byte]seeLevelSensor{
	0:               {"Fresh Water", tank.FluidFreshWater},
	1:               {"Black Water", tank.FluidBlackWater},
	2:               {"Gray Water", tank.FluidWasteWater},
	3:               {"LPG", tank.FluidLPG},
	4:               {"LPG 2", tank.FluidLPG},
	5:               {"Galley Water", tank.FluidWasteWater},
	6:               {"Galley Water 2", tank.FluidWasteWater},
	seeLevelTemp:    {"Temp", 0},
	8:               {"Temp 2", 0},
	9:               {"Temp 3", 0},
	seeLevelTemp4:   {"Temp 4", 0},
	11:              {"Chemical", tank.FluidFuel},
	12:              {"Chemical 2", tank.FluidFuel},
	seeLevelBattery: {"Battery", 0},
}

var (
	seeLevelTank = &registry.Info{
		Class:       tank.DirectClass,
		ProductID:   0xa160,
		ProductName: "SeeLevel tank sensor",
		DevInstance: 20,
		Prefix:      "seelevel_",
	}
	seeLevelTempSensor = &registry.Info{
		Class:       TemperatureClass,
		ProductID:   0xa161,
		ProductName: "SeeLevel temperature sensor",
		DevInstance: 20,
		Prefix:      "seelevel_",
	}
	seeLevelBatterySensor = &registry.Info{
		ProductID:   0xa381,
		ProductName: "SeeLevel battery monitor",
		DevInstance: 20,
		Prefix:      "seelevel_",
		Role:        "battery",
	}
)

func seeLevelNumber(b []byte) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(string(b)))
	return n, err == nil
}

func handleSeeLevel(r *registry.Registry, addr scan.Addr, buf []byte) error {
	if len(buf) < seeLevelLen {
		return malformed("seelevel: %d bytes", len(buf))
	}
	num := buf[3]
	sensor, ok := seeLevelSensors[num]
	if !ok {
		return malformed("seelevel: unknown sensor %d", num)
	}

	status := string(buf[4:7])
	reading, valid := seeLevelNumber(buf[4:7])
	if !valid && status == "OPN" {
		return nil
	}

	info := seeLevelTank
	switch {
	case num == seeLevelBattery:
		info = seeLevelBatterySensor
	case num >= seeLevelTemp && num <= seeLevelTemp4:
		info = seeLevelTempSensor
	}

	id := fmt.Sprintf("%s_%02x", addr.ID(), num)
	label := fmt.Sprintf("SeeLevel %s %02X:%02X:%02X", sensor.name, addr[3], addr[4], addr[5])

	return process(r, id, info, sensor, label, func(d *registry.Device) {
		if !valid {
			d.SetInt("Status", tank.StatusError)
			if status == "ERR" {
				status = "Sensor error"
			}
			d.SetStr("StatusMessage", status)
			return
		}

		switch info {
		case seeLevelBatterySensor:
			d.SetItem("BatteryVoltage", item.Float(float64(reading)/10), item.UnitVolt2Dec)
		case seeLevelTempSensor:
			d.SetItem("Temperature", item.Float(float64(reading-32)*5/9), item.UnitCelsius1Dec)
		default:
			d.SetItem("Level", item.Uint(uint64(reading)), item.UnitPercentage)
			d.SetItem("FluidType", item.Int(int64(sensor.fluid)), item.UnitNone)
			vol, ok := seeLevelNumber(buf[7:10])
			tank.SetReportedRemaining(d, float64(vol)*gallonM3, ok && vol > 0)
			if total, ok := seeLevelNumber(buf[10:13]); ok && total > 0 {
				d.SetItem("Capacity", item.Float(float64(total)*gallonM3), item.UnitM3)
			}
		}

		if alarm := buf[13]; alarm >= '0' && alarm <= '9' {
			d.SetInt("Alarm", uint64(alarm-'0'))
		}
		d.SetInt("Status", tank.StatusOK)
		d.SetStr("StatusMessage", "")
	})
}

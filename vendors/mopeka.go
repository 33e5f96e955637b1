package vendors

import (
	"fmt"

	"gitlab.ubiant.me/go-shared/ble-sensors/driver"
	"gitlab.ubiant.me/go-shared/ble-sensors/item"
	"gitlab.ubiant.me/go-shared/ble-sensors/registry"
	"gitlab.ubiant.me/go-shared/ble-sensors/scan"
	"gitlab.ubiant.me/go-shared/ble-sensors/settings"
	"gitlab.ubiant.me/go-shared/ble-sensors/tank"
)

const (
	mopekaLen     = 10
	mopekaUIDOffs = 5
)

// Mopeka hardware ids
const (
	mopekaPro         = 3
	mopekaPro200      = 4
	mopekaProH2O      = 5
	mopekaProPlusBLE  = 8
	mopekaProPlusCell = 9
	mopekaTopDownBLE  = 10
	mopekaTopDownCell = 11
	mopekaUniversal   = 12
)

// speed of sound polynomials in the medium, by temperature
var (
	mopekaH2O      = []float64{0.600592, 0.003124, -0.00001368}
	mopekaLPG      = []float64{0.573045, -0.002822, -0.00000535}
	mopekaGasoline = []float64{0.7373417462, -0.001978229885, 0.00000202162}
	mopekaAir      = []float64{0.153096, 0.000327, -0.000000294}
	mopekaButane   = []float64{0.03615, 0.000815}
)

type mopekaModel struct {
	tank.Info
	hwid   uint64
	typ    string
	coefs  []float64
	butane bool
}

var mopekaModels = []*mopekaModel{
	{hwid: mopekaPro, typ: "LPG", coefs: mopekaLPG, butane: true},
	{hwid: mopekaProH2O, typ: "H20", coefs: mopekaH2O},
	{hwid: mopekaPro200, typ: "Pro200", coefs: mopekaAir, Info: tank.Info{TopDown: true}},
	{hwid: mopekaProPlusBLE, typ: "PPB", butane: true},
	{hwid: mopekaProPlusCell, typ: "PPC", butane: true},
	{hwid: mopekaTopDownBLE, typ: "TDB", coefs: mopekaAir, Info: tank.Info{TopDown: true}},
	{hwid: mopekaTopDownCell, typ: "TDC", coefs: mopekaAir, Info: tank.Info{TopDown: true}},
	{hwid: mopekaUniversal, typ: "Univ", butane: true},
}

func mopekaModelByID(hwid uint64) *mopekaModel {
	for _, m := range mopekaModels {
		if m.hwid == hwid {
			return m
		}
	}
	return nil
}

// mopekaCoefs picks the polynomial of the model, or of the configured
// fluid for the universal models. lpg reports the LPG polynomial, which
// takes the butane correction.
func mopekaCoefs(m *mopekaModel, fluid int64) (coefs []float64, lpg bool) {
	if m.coefs != nil {
		return m.coefs, m.hwid == mopekaPro
	}
	switch fluid {
	case tank.FluidFreshWater, tank.FluidWasteWater, tank.FluidLiveWell, tank.FluidBlackWater, tank.FluidRawWater:
		return mopekaH2O, false
	case tank.FluidLPG:
		return mopekaLPG, true
	case tank.FluidGasoline, tank.FluidDiesel:
		return mopekaGasoline, false
	}
	return nil, false
}

// mopekaLevel converts the echo time to a distance in cm. The extension
// bit, set by recent firmware only, moves the raw value to a 4us
// resolution above 16384us.
func mopekaLevel(root *item.Item, raw uint64) (item.Value, bool) {
	m := mopekaModelByID(uint64(root.ValueInt("HardwareID")))
	if m == nil {
		return item.Value{}, false
	}
	coefs, lpg := mopekaCoefs(m, root.ValueInt("FluidType"))
	if coefs == nil {
		return item.Value{}, false
	}

	if root.ValueInt("TankLevelExtension") != 0 {
		raw = 16384 + 4*raw
	}

	temp := float64(root.ValueInt("Temperature") + 40)
	scale := 0.0
	if lpg {
		r := float64(root.ValueInt("ButaneRatio")) / 100
		scale = mopekaButane[0]*r + mopekaButane[1]*r*temp
	}
	scale += coefs[0] + coefs[1]*temp + coefs[2]*temp*temp

	return item.Float(float64(raw) * scale / 10), true
}

var mopekaRegs = []driver.Reg{
	{Type: driver.Un8, Offset: 0, Bits: 7, Name: "HardwareID", Format: item.UnitNone},
	{Type: driver.Un8, Offset: 0, Shift: 7, Bits: 1, Name: "TankLevelExtension", Format: item.UnitNone},
	{Type: driver.Un8, Offset: 1, Bits: 7, Scale: 32, Name: "BatteryVoltage", Format: item.UnitVolt2Dec},
	{Type: driver.Un8, Offset: 2, Bits: 7, Scale: 1, Bias: -40, Name: "Temperature", Format: item.UnitCelsius1Dec},
	{Type: driver.Un8, Offset: 2, Shift: 7, Bits: 1, Name: "SyncButton", Format: item.UnitNone},
	{Type: driver.Un16, Offset: 3, Bits: 14, Xlate: mopekaLevel, Name: "RawValue", Format: item.UnitCm},
	{Type: driver.Un8, Offset: 4, Shift: 6, Bits: 2, Name: "Quality", Format: item.UnitNone},
	{Type: driver.Sn8, Offset: 8, Scale: 1024, Name: "AccelX", Format: item.UnitG2Dec},
	{Type: driver.Sn8, Offset: 9, Scale: 1024, Name: "AccelY", Format: item.UnitG2Dec},
}

var mopekaSensor = &registry.Info{
	Class:       tank.Class,
	ProductID:   0xa112,
	ProductName: "Mopeka sensor",
	DevInstance: 20,
	Prefix:      "mopeka_",
	Regs:        mopekaRegs,
	Init: func(d *registry.Device) {
		if m, ok := d.Data.(*mopekaModel); ok && m.butane {
			if err := d.AddSettings(registry.Setting{Name: "ButaneRatio", Props: settings.IntProps(0, 0, 100)}); err != nil {
				log.Warning("ButaneRatio of", d.DevID(), err)
			}
		}
	},
}

func handleMopeka(r *registry.Registry, addr scan.Addr, buf []byte) error {
	if len(buf) != mopekaLen {
		return malformed("mopeka: %d bytes", len(buf))
	}
	uid := buf[mopekaUIDOffs : mopekaUIDOffs+3]
	if !uidMatches(uid, addr) {
		return malformed("mopeka: uid %x does not match %s", uid, addr)
	}
	m := mopekaModelByID(uint64(buf[0] & 0x7f))
	if m == nil {
		return malformed("mopeka: unknown hardware id %d", buf[0]&0x7f)
	}

	label := fmt.Sprintf("Mopeka %s %02X:%02X:%02X", m.typ, uid[0], uid[1], uid[2])
	return process(r, addr.ID(), mopekaSensor, m, label, func(d *registry.Device) {
		d.SetRegs(buf)
	})
}

package vendors

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	"gitlab.ubiant.me/go-shared/ble-sensors/driver"
	"gitlab.ubiant.me/go-shared/ble-sensors/item"
	"gitlab.ubiant.me/go-shared/ble-sensors/registry"
	"gitlab.ubiant.me/go-shared/ble-sensors/scan"
	"gitlab.ubiant.me/go-shared/ble-sensors/settings"
	"gitlab.ubiant.me/go-shared/ble-sensors/tank"
)

const testAddr = "c0:ff:ee:00:00:01"

type fixture struct {
	t     *testing.T
	r     *registry.Registry
	store *settings.MemStore
	table *Table
	addr  scan.Addr
}

func newFixture(t *testing.T, dm *driver.DriversManager) *fixture {
	t.Helper()
	store := settings.NewMemStore()
	r, err := registry.New(store, item.New(""), nil, registry.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	addr, err := scan.ParseAddr(testAddr)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{t: t, r: r, store: store, table: NewTable(dm), addr: addr}
}

// feed sends buf twice, enabling the device in between so the second
// frame is decoded
func (f *fixture) feed(mfg uint16, devid string, buf []byte) *registry.Device {
	f.t.Helper()
	if err := f.table.Handle(f.r, f.addr, mfg, buf); err != nil {
		f.t.Fatal(err)
	}
	if err := f.store.Set("Settings/Devices/"+devid+"/Enabled", item.Int(1)); err != nil {
		f.t.Fatal(err)
	}
	if err := f.table.Handle(f.r, f.addr, mfg, buf); err != nil {
		f.t.Fatal(err)
	}
	for _, d := range f.r.Devices() {
		if d.DevID() == devid {
			return d
		}
	}
	f.t.Fatalf("device %s not created", devid)
	return nil
}

func near(a, b, tol float64) bool { return math.Abs(a-b) < tol }

func ruuviFrame() []byte {
	return []byte{
		0x05,
		0x12, 0xfc, // 24.3 C
		0x53, 0x94, // 53.49 %
		0xc3, 0x7c, // 1000.44 hPa
		0x00, 0x04,
		0xff, 0xfc,
		0x04, 0x0c,
		0xac, 0x36, // 2.977 V, 4 dBm
		0x42,
		0x00, 0xcd,
		0xc0, 0xff, 0xee, 0x00, 0x00, 0x01,
	}
}

func TestRuuvi(t *testing.T) {
	f := newFixture(t, nil)
	d := f.feed(MfgRuuvi, "ruuvi_c0ffee000001", ruuviFrame())

	root := d.Root
	if v := root.ValueFloat("Temperature"); !near(v, 24.3, 1e-9) {
		t.Fatalf("Temperature = %v", v)
	}
	if v := root.ValueFloat("Pressure"); !near(v, 1000.44, 1e-9) {
		t.Fatalf("Pressure = %v", v)
	}
	if v := root.ValueFloat("BatteryVoltage"); !near(v, 2.977, 1e-9) {
		t.Fatalf("BatteryVoltage = %v", v)
	}
	if v := root.ValueInt("Alarms/LowBattery"); v != 0 {
		t.Fatalf("LowBattery = %d", v)
	}
	if s := root.ValueString("DeviceName"); s != "Ruuvi 0001" {
		t.Fatalf("DeviceName = %q", s)
	}
	if v := root.ValueInt("TemperatureType"); v != 2 {
		t.Fatalf("TemperatureType = %d", v)
	}
}

func TestDisabledDeviceIsNotDecoded(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.table.Handle(f.r, f.addr, MfgRuuvi, ruuviFrame()); err != nil {
		t.Fatal(err)
	}
	d := f.r.Lookup("c0ffee000001")
	if d == nil {
		t.Fatal("device not created")
	}
	if d.Root.Get("Temperature") != nil {
		t.Fatal("disabled device decoded")
	}
}

func TestMalformedFrames(t *testing.T) {
	f := newFixture(t, nil)

	bad := ruuviFrame()
	bad[0] = 3
	cases := []struct {
		mfg  uint16
		buf  []byte
		want error
	}{
		{MfgRuuvi, bad, ErrMalformed},
		{MfgRuuvi, ruuviFrame()[:20], ErrMalformed},
		// uid does not match the address
		{MfgNordic, []byte{0x05, 0x60, 0x28, 0xe8, 0x03, 0x11, 0x22, 0x33, 0, 0}, ErrMalformed},
		{MfgSolarSense, make([]byte, 24), ErrMalformed},
		{0x1234, []byte{1, 2, 3}, ErrUnknownManufacturer},
	}
	for i, c := range cases {
		err := f.table.Handle(f.r, f.addr, c.mfg, c.buf)
		if errors.Cause(err) != c.want {
			t.Fatalf("case %d: err = %v, want %v", i, err, c.want)
		}
	}
	if n := f.r.Len(); n != 0 {
		t.Fatalf("malformed frames created %d devices", n)
	}
}

func TestMopekaWaterLevel(t *testing.T) {
	f := newFixture(t, nil)
	buf := []byte{
		mopekaProH2O,
		96,         // 3 V
		40,         // 0 C
		0xe8, 0x03, // 1000 us
		0x00, 0x00, 0x01,
		0, 0,
	}
	d := f.feed(MfgNordic, "mopeka_c0ffee000001", buf)

	scale := 0.600592 + 0.003124*40 - 0.00001368*40*40
	if v := d.Root.ValueFloat("RawValue"); !near(v, 1000*scale/10, 1e-6) {
		t.Fatalf("RawValue = %v", v)
	}
	if v := d.Root.ValueFloat("BatteryVoltage"); !near(v, 3, 1e-9) {
		t.Fatalf("BatteryVoltage = %v", v)
	}
	if s := d.Root.ValueString("DeviceName"); s != "Mopeka H20 00:00:01" {
		t.Fatalf("DeviceName = %q", s)
	}
	if d.Root.Get("ButaneRatio") != nil {
		t.Fatal("water sensor got a butane ratio")
	}
}

func TestGobiusSharesNordicID(t *testing.T) {
	f := newFixture(t, nil)
	buf := []byte{
		0x01,
		60,         // 20 C
		0xdc, 0x05, // 150.0 cm
		0x00, 0x00, 0x01,
		1, 2, 3,
		0, 0, 0, 0,
	}
	d := f.feed(MfgNordic, "gobius_c0ffee000001", buf)
	if v := d.Root.ValueFloat("RawValue"); !near(v, 150, 1e-9) {
		t.Fatalf("RawValue = %v", v)
	}
	if s := d.Root.ValueString("FirmwareVersion"); s == "" {
		t.Fatal("FirmwareVersion not set")
	}
}

func TestSolarSense(t *testing.T) {
	f := newFixture(t, nil)
	buf := make([]byte, 24)
	buf[0], buf[4], buf[7] = 0x10, 0xff, 0x01
	buf[13] = 130                                 // 3.0 V
	buf[14], buf[15] = 0xf4, 0x01                 // 500 W
	buf[16], buf[17] = 0xb0, 0x07                 // 1.23 kWh
	buf[19], buf[20], buf[21] = 0xe8, 0x83, 0xd4 // 100.0 W/m2, 25.0 C
	buf[22] = 40<<2 | 1<<1                        // 160 min, tx power on

	d := f.feed(MfgSolarSense, "solarsense_c0ffee000001", buf)
	root := d.Root

	floats := []struct {
		path string
		want float64
	}{
		{"BatteryVoltage", 3.0},
		{"InstallationPower", 500},
		{"TodaysYield", 1.23},
		{"Irradiance", 100},
		{"CellTemperature", 25},
	}
	for _, c := range floats {
		if v := root.ValueFloat(c.path); !near(v, c.want, 1e-9) {
			t.Fatalf("%s = %v, want %v", c.path, v, c.want)
		}
	}
	if v := root.ValueInt("TimeSinceLastSun"); v != 160 {
		t.Fatalf("TimeSinceLastSun = %d", v)
	}
	if v := root.ValueInt("TxPowerLevel"); v != 6 {
		t.Fatalf("TxPowerLevel = %d", v)
	}
	if v := root.ValueInt("Alarms/LowBattery"); v != 1 {
		t.Fatalf("LowBattery = %d, want 1", v)
	}
}

func TestSolarSenseSunTime(t *testing.T) {
	cases := []struct{ raw, want uint64 }{
		{0, 0},
		{29, 58},
		{30, 60},
		{95, 710},
		{96, 720},
		{126, 1620},
	}
	for _, c := range cases {
		v, _ := solarSenseSunTime(nil, c.raw)
		if n, _ := v.Int(); uint64(n) != c.want {
			t.Fatalf("raw %d: %d minutes, want %d", c.raw, n, c.want)
		}
	}
}

func seeLevelFrame(sensor byte, data, volume, total string, alarm byte) []byte {
	buf := []byte{0x01, 0x02, 0x03, sensor}
	buf = append(buf, data...)
	buf = append(buf, volume...)
	buf = append(buf, total...)
	return append(buf, alarm)
}

func TestSeeLevelOpenSensorIsIgnored(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.table.Handle(f.r, f.addr, MfgCypress, seeLevelFrame(0, "OPN", "000", "000", '0')); err != nil {
		t.Fatal(err)
	}
	if f.r.Len() != 0 {
		t.Fatal("open sensor created a device")
	}
}

func TestSeeLevelTank(t *testing.T) {
	f := newFixture(t, nil)
	d := f.feed(MfgCypress, "seelevel_c0ffee000001_00", seeLevelFrame(0, " 50", " 10", " 40", '2'))
	root := d.Root

	if v := root.ValueInt("Level"); v != 50 {
		t.Fatalf("Level = %d", v)
	}
	if v := root.ValueFloat("Remaining"); !near(v, 10*gallonM3, 1e-9) {
		t.Fatalf("Remaining = %v", v)
	}
	if v := root.ValueFloat("Capacity"); !near(v, 40*gallonM3, 1e-9) {
		t.Fatalf("Capacity = %v", v)
	}
	if v := root.ValueInt("FluidType"); v != tank.FluidFreshWater {
		t.Fatalf("FluidType = %d", v)
	}
	if v := root.ValueInt("Alarm"); v != 2 {
		t.Fatalf("Alarm = %d", v)
	}
	if v := root.ValueInt("Status"); v != tank.StatusOK {
		t.Fatalf("Status = %d", v)
	}
}

func TestSeeLevelSensorError(t *testing.T) {
	f := newFixture(t, nil)
	d := f.feed(MfgCypress, "seelevel_c0ffee000001_01", seeLevelFrame(1, "ERR", "000", "000", '0'))
	if v := d.Root.ValueInt("Status"); v != tank.StatusError {
		t.Fatalf("Status = %d", v)
	}
	if s := d.Root.ValueString("StatusMessage"); s != "Sensor error" {
		t.Fatalf("StatusMessage = %q", s)
	}
}

func TestSeeLevelTemperature(t *testing.T) {
	f := newFixture(t, nil)
	d := f.feed(MfgCypress, "seelevel_c0ffee000001_07", seeLevelFrame(7, "077", "000", "000", '0'))
	if v := d.Root.ValueFloat("Temperature"); !near(v, 25, 1e-9) {
		t.Fatalf("Temperature = %v", v)
	}
	if d.Info.DeviceRole() != "temperature" {
		t.Fatalf("role = %s", d.Info.DeviceRole())
	}
}

func TestGenericDescriptor(t *testing.T) {
	dir := t.TempDir()
	desc := `{
		"name": "acme-tag",
		"manufacturerId": 1234,
		"length": 4,
		"class": "temperature",
		"prefix": "acme_",
		"label": "Acme",
		"productId": 41200,
		"registers": [
			{"name": "Temperature", "type": "sn16", "offset": 0, "scale": 100, "invalid": 32768, "unit": "C", "decimals": 1}
		]
	}`
	if err := os.WriteFile(filepath.Join(dir, "acme-tag.json"), []byte(desc), 0644); err != nil {
		t.Fatal(err)
	}
	var dm driver.DriversManager
	dm.InitDriversManager(dir)

	f := newFixture(t, &dm)
	if _, ok := dm.GetDriverItem("ruuvi"); !ok {
		t.Fatal("built-in table not registered")
	}

	if err := f.table.Handle(f.r, f.addr, 1234, []byte{1, 2, 3}); errors.Cause(err) != ErrMalformed {
		t.Fatalf("short frame: %v", err)
	}
	d := f.feed(1234, "acme_c0ffee000001", []byte{0x10, 0x09, 0, 0})
	if v := d.Root.ValueFloat("Temperature"); !near(v, 23.2, 1e-9) {
		t.Fatalf("Temperature = %v", v)
	}
	if s := d.Root.ValueString("DeviceName"); s != "Acme 0001" {
		t.Fatalf("DeviceName = %q", s)
	}
	if d.Info.DeviceRole() != "temperature" {
		t.Fatalf("role = %s", d.Info.DeviceRole())
	}
}

type batchPublisher struct {
	batches []item.Changes
}

func (b *batchPublisher) Connect(name string, root *item.Item) error {
	root.SetObserver(item.ObserverFunc(func(_ *item.Item, ch item.Changes) {
		b.batches = append(b.batches, ch)
	}))
	return nil
}

func (b *batchPublisher) Disconnect(root *item.Item) { root.SetObserver(nil) }

func TestSeeLevelFrameIsOneBatch(t *testing.T) {
	store := settings.NewMemStore()
	pub := &batchPublisher{}
	r, err := registry.New(store, item.New(""), pub, registry.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	addr, err := scan.ParseAddr(testAddr)
	if err != nil {
		t.Fatal(err)
	}
	table := NewTable(nil)

	handle := func(buf []byte) {
		t.Helper()
		if err := table.Handle(r, addr, MfgCypress, buf); err != nil {
			t.Fatal(err)
		}
	}
	handle(seeLevelFrame(0, " 50", " 10", " 40", '2'))
	if err := store.Set("Settings/Devices/seelevel_c0ffee000001_00/Enabled", item.Int(1)); err != nil {
		t.Fatal(err)
	}
	handle(seeLevelFrame(0, " 50", " 10", " 40", '2'))
	if len(pub.batches) != 1 {
		t.Fatalf("first published frame sent %d batches, want 1", len(pub.batches))
	}

	pub.batches = nil
	handle(seeLevelFrame(0, " 60", " 20", " 45", '3'))
	if len(pub.batches) != 1 {
		t.Fatalf("frame sent %d batches, want 1", len(pub.batches))
	}
	got := make(map[string]bool)
	for _, it := range pub.batches[0].Updated {
		got[it.Path()] = true
	}
	for _, p := range []string{"Capacity", "Remaining", "Level", "Alarm"} {
		if !got[p] {
			t.Fatalf("%s missing from the batch %v", p, got)
		}
	}
}

func TestGenericDescriptorWithoutRoleIsIgnored(t *testing.T) {
	dir := t.TempDir()
	desc := `{"name": "bare", "manufacturerId": 4321, "prefix": "bare_",
		"registers": [{"name": "Temperature", "type": "sn16", "offset": 0, "scale": 100}]}`
	if err := os.WriteFile(filepath.Join(dir, "bare.json"), []byte(desc), 0644); err != nil {
		t.Fatal(err)
	}
	var dm driver.DriversManager
	dm.InitDriversManager(dir)

	f := newFixture(t, &dm)
	if err := f.table.Handle(f.r, f.addr, 4321, []byte{0x10, 0x09}); errors.Cause(err) != ErrUnknownManufacturer {
		t.Fatalf("err = %v, want unknown manufacturer", err)
	}
	if f.r.Len() != 0 {
		t.Fatal("device created without a service role")
	}
}

package registry

import (
	"gitlab.ubiant.me/go-shared/ble-sensors/alarm"
	"gitlab.ubiant.me/go-shared/ble-sensors/driver"
	"gitlab.ubiant.me/go-shared/ble-sensors/item"
	"gitlab.ubiant.me/go-shared/ble-sensors/settings"
)

// Setting declares a per-device setting mirrored below the device root
type Setting struct {
	Name     string
	Props    settings.Props
	OnChange func(d *Device, it *item.Item)
}

// Class is a family of devices sharing derived values, such as tanks
type Class struct {
	Role     string
	Settings []Setting
	Alarms   []*alarm.Alarm
	Init     func(d *Device)
	Update   func(d *Device)
}

var nullClass Class

// Info describes one vendor model
type Info struct {
	Class       *Class
	ProductID   uint16
	ProductName string
	DevInstance int
	Prefix      string
	// Role overrides the class role
	Role     string
	Settings []Setting
	Regs     []driver.Reg
	Alarms   []*alarm.Alarm
	Init     func(d *Device)
}

// DeviceClass returns the class, never nil
func (i *Info) DeviceClass() *Class {
	if i.Class == nil {
		return &nullClass
	}
	return i.Class
}

// DeviceRole returns the service role of the model
func (i *Info) DeviceRole() string {
	if i.Role != "" {
		return i.Role
	}
	return i.DeviceClass().Role
}

// Device is one sensor seen on air
type Device struct {
	ID   string
	Info *Info
	// Data is immutable vendor model data
	Data interface{}
	Root *item.Item

	reg         *Registry
	enabled     *settings.Proxy
	proxies     []*settings.Proxy
	ctx         map[interface{}]interface{}
	label       string
	lastSeen    uint32
	connected   bool
	instance    int
	hasInstance bool
	inCycle     bool
}

// DevID returns the id prefixed with the model prefix
func (d *Device) DevID() string {
	return d.Info.Prefix + d.ID
}

// SettingsPath returns the store path of the device settings
func (d *Device) SettingsPath() string {
	return "Settings/Devices/" + d.DevID()
}

// Context returns the per-device value stored under key
func (d *Device) Context(key interface{}) interface{} {
	return d.ctx[key]
}

// SetContext stores a per-device value under key
func (d *Device) SetContext(key, v interface{}) {
	if d.ctx == nil {
		d.ctx = make(map[interface{}]interface{})
	}
	d.ctx[key] = v
}

// Label returns the vendor name given to SetName
func (d *Device) Label() string { return d.label }

// LastSeen returns the tick of the last frame
func (d *Device) LastSeen() uint32 { return d.lastSeen }

// Connected reports whether the device tree is published
func (d *Device) Connected() bool { return d.connected }

// SetItem writes v at path with format f
func (d *Device) SetItem(path string, v item.Value, f item.Format) {
	d.Root.Set(path, v, f)
}

// SetStr writes a string item
func (d *Device) SetStr(path, s string) {
	d.Root.Set(path, item.String(s), item.UnitNone)
}

// SetInt writes an unsigned integer item
func (d *Device) SetInt(path string, n uint64) {
	d.Root.Set(path, item.Uint(n), item.UnitNone)
}

// SetRegs decodes buf with the register table of the model
func (d *Device) SetRegs(buf []byte) {
	driver.SetRegs(d.Root, d.Info.Regs, buf)
}

// Flush sends the pending changes of the device tree. Inside a cycle run
// by Registry.Process it does nothing: the cycle is sent once, at its end.
func (d *Device) Flush() {
	if d.inCycle {
		return
	}
	d.Root.SendPendingChanges()
}

// AddSettings binds more settings below the device root. Classes whose
// settings depend on the model call it from Init.
func (d *Device) AddSettings(list ...Setting) error {
	return d.reg.addSettings(d, list)
}

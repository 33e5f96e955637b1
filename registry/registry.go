// Package registry owns the sensors seen on air: their item trees, their
// settings, their publication and their expiry.
package registry

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/op/go-logging"
	"github.com/pkg/errors"

	"gitlab.ubiant.me/go-shared/ble-sensors/alarm"
	"gitlab.ubiant.me/go-shared/ble-sensors/item"
	"gitlab.ubiant.me/go-shared/ble-sensors/settings"
)

var log = logging.MustGetLogger("ble-sensors")

// ErrTooManyDevices is returned when MaxDevices devices are registered
var ErrTooManyDevices = errors.New("registry: too many devices")

var boolProps = settings.IntProps(0, 0, 1)

// Publisher mirrors device trees on a bus
type Publisher interface {
	Connect(name string, root *item.Item) error
	Disconnect(root *item.Item)
}

// Config holds the registry tunables
type Config struct {
	// ExpiryTicks is the silence after which a device is removed
	ExpiryTicks uint32
	// SweepTicks is the period of the expiry sweep
	SweepTicks     uint32
	MaxDevices     int
	ServicePrefix  string
	ProcessName    string
	ProcessVersion string
}

// TicksPerSecond is the nominal tick rate
const TicksPerSecond = 20

// DefaultConfig returns a 30 minutes expiry swept every 10 seconds
func DefaultConfig() Config {
	return Config{
		ExpiryTicks:    1800 * TicksPerSecond,
		SweepTicks:     10 * TicksPerSecond,
		ServicePrefix:  "com.victronenergy",
		ProcessName:    "ble-sensors",
		ProcessVersion: "dev",
	}
}

// Registry is the set of known devices. It is not safe for concurrent use.
type Registry struct {
	cfg     Config
	store   settings.Store
	control *item.Item
	pub     Publisher

	devices   map[string]*Device
	instances map[string]map[int]string
	tick      uint32
	sweep     uint32

	contScan *settings.Proxy
	scanHook func(bool)
}

// New creates a registry publishing the control tree items in control. A
// nil pub keeps the devices unpublished.
func New(store settings.Store, control *item.Item, pub Publisher, cfg Config) (*Registry, error) {
	r := &Registry{
		cfg:       cfg,
		store:     store,
		control:   control,
		pub:       pub,
		devices:   make(map[string]*Device),
		instances: make(map[string]map[int]string),
	}

	p, err := settings.Bind(store, "Settings/BleSensors/ContinuousScan", control, "ContinuousScan",
		boolProps, r.onContinuousScan)
	if err != nil {
		return nil, errors.Wrap(err, "continuous scan setting")
	}
	r.contScan = p
	control.SendPendingChanges()

	return r, nil
}

// Control returns the root of the control tree
func (r *Registry) Control() *item.Item { return r.control }

// Now returns the current tick
func (r *Registry) Now() uint32 { return r.tick }

// SetScanHook registers the receiver of ContinuousScan changes
func (r *Registry) SetScanHook(fn func(bool)) { r.scanHook = fn }

// ContinuousScan returns the current ContinuousScan setting
func (r *Registry) ContinuousScan() bool {
	n, _ := r.contScan.Value().Int()
	return n == 1
}

func (r *Registry) onContinuousScan(p *settings.Proxy) {
	n, ok := p.Value().Int()
	if !ok || r.scanHook == nil {
		return
	}
	r.scanHook(n == 1)
}

// AddInterface publishes the address of a radio interface
func (r *Registry) AddInterface(name, addr string) {
	r.control.Set("Interfaces/"+name+"/Address", item.String(addr), item.UnitNone)
	r.control.SendPendingChanges()
}

// Lookup returns the device with the given id
func (r *Registry) Lookup(id string) *Device {
	return r.devices[id]
}

// Len returns the number of devices
func (r *Registry) Len() int { return len(r.devices) }

// Devices returns the devices sorted by id
func (r *Registry) Devices() []*Device {
	out := make([]*Device, 0, len(r.devices))
	for _, id := range r.ids() {
		out = append(out, r.devices[id])
	}
	return out
}

func (r *Registry) ids() []string {
	ids := make([]string, 0, len(r.devices))
	for id := range r.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CreateOrTouch returns the device with the given id, creating it with its
// settings on first sight, and marks it seen.
func (r *Registry) CreateOrTouch(id string, info *Info, data interface{}) (*Device, error) {
	if d := r.devices[id]; d != nil {
		r.Touch(d)
		return d, nil
	}

	if r.cfg.MaxDevices > 0 && len(r.devices) >= r.cfg.MaxDevices {
		return nil, ErrTooManyDevices
	}

	d := &Device{
		ID:   id,
		Info: info,
		Data: data,
		Root: item.New(id),
		reg:  r,
	}
	if err := r.setup(d); err != nil {
		r.release(d)
		return nil, errors.Wrapf(err, "create %s", d.DevID())
	}
	r.control.SendPendingChanges()

	r.devices[id] = d
	r.Touch(d)
	log.Info("New device", d.DevID())

	return d, nil
}

func (r *Registry) setup(d *Device) error {
	path := d.SettingsPath()

	ena, err := settings.Bind(r.store, path+"/Enabled", r.control, "Devices/"+d.DevID()+"/Enabled",
		boolProps, func(p *settings.Proxy) {
			if n, ok := p.Value().Int(); !ok || n != 1 {
				r.disconnect(d)
			}
		})
	if err != nil {
		return err
	}
	d.enabled = ena

	cn, err := settings.Bind(r.store, path+"/CustomName", d.Root, "CustomName",
		settings.StringProps(""), func(*settings.Proxy) {
			if d.label != "" {
				r.applyName(d)
			}
		})
	if err != nil {
		return err
	}
	d.proxies = append(d.proxies, cn)

	class := d.Info.DeviceClass()
	if err := r.addSettings(d, class.Settings); err != nil {
		return err
	}
	if class.Init != nil {
		class.Init(d)
	}

	if err := r.addSettings(d, d.Info.Settings); err != nil {
		return err
	}
	if d.Info.Init != nil {
		d.Info.Init(d)
	}

	return nil
}

func (r *Registry) addSettings(d *Device, list []Setting) error {
	for i := range list {
		s := &list[i]
		var onChange func(*settings.Proxy)
		if s.OnChange != nil {
			onChange = func(p *settings.Proxy) { s.OnChange(d, p.Item()) }
		}
		p, err := settings.Bind(r.store, d.SettingsPath()+"/"+s.Name, d.Root, s.Name, s.Props, onChange)
		if err != nil {
			return err
		}
		d.proxies = append(d.proxies, p)
	}
	return nil
}

// Touch marks the device seen at the current tick
func (r *Registry) Touch(d *Device) {
	d.lastSeen = r.tick
	d.Root.SetLocal(item.Uint(uint64(r.tick)))
}

// IsEnabled reports whether the user enabled the device
func (r *Registry) IsEnabled(d *Device) bool {
	return r.control.ValueInt("Devices/"+d.DevID()+"/Enabled") == 1
}

// SetName sets the vendor label of the device. The control tree shows the
// custom name when one is set.
func (r *Registry) SetName(d *Device, label string) {
	d.label = label
	r.applyName(d)
}

func (r *Registry) applyName(d *Device) {
	name := d.Root.ValueString("CustomName")
	if name == "" {
		name = d.label
	}
	d.SetStr("DeviceName", d.label)
	r.control.Set("Devices/"+d.DevID()+"/Name", item.String(name), item.UnitNone)
	r.control.SendPendingChanges()
}

// Process runs decode then Update as one cycle. Setting hooks fired by
// decode recompute the device without publishing it; Update flushes the
// whole cycle in one batch.
func (r *Registry) Process(d *Device, decode func(d *Device)) {
	d.inCycle = true
	if decode != nil {
		decode(d)
	}
	r.Update(d)
}

// Update runs the derived values and the alarms of the device, publishes
// it when needed and flushes its pending changes
func (r *Registry) Update(d *Device) {
	class := d.Info.DeviceClass()
	if class.Update != nil {
		class.Update(d)
	}

	alarms := make([]*alarm.Alarm, 0, len(class.Alarms)+len(d.Info.Alarms))
	alarms = append(alarms, class.Alarms...)
	alarms = append(alarms, d.Info.Alarms...)
	alarm.Update(d.Root, alarms...)

	if err := r.connect(d); err != nil {
		log.Warning("Cannot publish", d.DevID(), err)
	}
	d.inCycle = false
	d.Flush()
}

func (r *Registry) connect(d *Device) error {
	if d.connected || r.pub == nil {
		return nil
	}

	role := d.Info.DeviceRole()
	inst := r.deviceInstance(d, role)

	d.SetStr("Mgmt/ProcessName", r.cfg.ProcessName)
	d.SetStr("Mgmt/ProcessVersion", r.cfg.ProcessVersion)
	d.SetStr("Mgmt/Connection", "Bluetooth LE")
	d.SetInt("Connected", 1)
	d.SetInt("Devices/0/ProductId", uint64(d.Info.ProductID))
	d.SetInt("Devices/0/DeviceInstance", uint64(inst))
	d.SetInt("DeviceInstance", uint64(inst))
	d.SetInt("ProductId", uint64(d.Info.ProductID))
	d.SetStr("ProductName", d.Info.ProductName)
	if d.Root.Get("Status") == nil {
		d.SetInt("Status", 0)
	}

	name := fmt.Sprintf("%s.%s.%s", r.cfg.ServicePrefix, role, d.DevID())
	if err := r.pub.Connect(name, d.Root); err != nil {
		return errors.Wrapf(err, "connect %s", name)
	}
	d.connected = true
	log.Info("Published", name)

	return nil
}

func (r *Registry) disconnect(d *Device) {
	if !d.connected {
		return
	}
	r.pub.Disconnect(d.Root)
	d.connected = false
	log.Info("Unpublished", d.DevID())
}

// deviceInstance reads the persisted "role:N" instance of the device,
// moving to the next free number when another device holds it
func (r *Registry) deviceInstance(d *Device, role string) int {
	if d.hasInstance {
		return d.instance
	}

	path := d.SettingsPath() + "/ClassAndVrmInstance"
	def := fmt.Sprintf("%s:%d", role, d.Info.DevInstance)
	inst := d.Info.DevInstance

	v, err := r.store.Add(path, settings.StringProps(def))
	if err != nil {
		log.Warning("Cannot read", path, err)
	} else if s, ok := v.Str(); ok {
		if rl, n, ok := strings.Cut(s, ":"); ok && rl == role {
			if i, err := strconv.Atoi(n); err == nil {
				inst = i
			}
		}
	}

	used := r.instances[role]
	if used == nil {
		used = make(map[int]string)
		r.instances[role] = used
	}
	for {
		owner, taken := used[inst]
		if !taken || owner == d.ID {
			break
		}
		inst++
	}
	used[inst] = d.ID

	if s := fmt.Sprintf("%s:%d", role, inst); err == nil && !v.Equal(item.String(s)) {
		if err := r.store.Set(path, item.String(s)); err != nil {
			log.Warning("Cannot store", path, err)
		}
	}

	d.instance = inst
	d.hasInstance = true
	return inst
}

// Tick increments the tick counter and runs the expiry sweep every
// SweepTicks. It returns the ids of the expired devices.
func (r *Registry) Tick() []string {
	r.tick++
	r.sweep++
	if r.cfg.SweepTicks == 0 || r.sweep < r.cfg.SweepTicks {
		return nil
	}
	r.sweep = 0
	return r.ExpireOnce()
}

// ExpireOnce removes the devices silent for more than ExpiryTicks and
// returns their ids
func (r *Registry) ExpireOnce() []string {
	var expired []string
	for _, id := range r.ids() {
		d := r.devices[id]
		if r.tick-d.lastSeen <= r.cfg.ExpiryTicks {
			continue
		}
		r.release(d)
		delete(r.devices, id)
		expired = append(expired, id)
		log.Info("Expired", d.DevID())
	}
	r.control.SendPendingChanges()
	return expired
}

func (r *Registry) release(d *Device) {
	r.disconnect(d)

	if d.enabled != nil {
		d.enabled.Close()
	}
	for _, p := range d.proxies {
		p.Close()
	}
	d.proxies = nil

	if d.hasInstance {
		delete(r.instances[d.Info.DeviceRole()], d.instance)
	}

	d.Root.Delete()
	if ctl := r.control.Get("Devices/" + d.DevID()); ctl != nil {
		ctl.Delete()
	}
}

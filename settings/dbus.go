package settings

import (
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"

	"gitlab.ubiant.me/go-shared/ble-sensors/dbusconn"
	"gitlab.ubiant.me/go-shared/ble-sensors/item"
)

const (
	settingsService   = "com.victronenergy.settings"
	settingsInterface = "com.victronenergy.Settings"
	busItemInterface  = "com.victronenergy.BusItem"
)

// DbusStore is a client of the remote settings service. Remote change
// signals are handed to dispatch so that subscribers run on the goroutine
// owning the item trees.
type DbusStore struct {
	conn     *dbus.Conn
	dispatch func(func())

	mu    sync.Mutex
	props map[string]Props
	subs  subscribers
	sigs  chan *dbus.Signal
}

// NewDbusStore starts listening for remote setting changes on conn. A nil
// dispatch runs the subscribers on the signal goroutine.
func NewDbusStore(conn *dbus.Conn, dispatch func(func())) *DbusStore {
	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}
	d := &DbusStore{
		conn:     conn,
		dispatch: dispatch,
		props:    make(map[string]Props),
		sigs:     make(chan *dbus.Signal, 64),
	}
	conn.Signal(d.sigs)
	go d.listen()
	return d
}

func objectPath(path string) dbus.ObjectPath {
	return dbus.ObjectPath("/" + strings.Trim(path, "/"))
}

func typeCode(t Type) string {
	switch t {
	case TypeFloat:
		return "f"
	case TypeString:
		return "s"
	}
	return "i"
}

func (d *DbusStore) getValue(path string) (item.Value, error) {
	var v dbus.Variant
	err := d.conn.Object(settingsService, objectPath(path)).
		Call(busItemInterface+".GetValue", 0).Store(&v)
	if err != nil {
		return item.Value{}, err
	}
	return dbusconn.FromVariant(v), nil
}

// Add implements Store. path is "Settings/<group>/<name>".
func (d *DbusStore) Add(path string, props Props) (item.Value, error) {
	rel := strings.TrimPrefix(strings.Trim(path, "/"), "Settings/")
	group, name := "", rel
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		group, name = rel[:i], rel[i+1:]
	}

	min, max := props.Min, props.Max
	if props.Type == TypeString {
		min, max = item.Int(0), item.Int(0)
	}

	var res int32
	err := d.conn.Object(settingsService, "/Settings").Call(settingsInterface+".AddSetting", 0,
		group, name, dbusconn.ToVariant(props.Default), typeCode(props.Type), dbusconn.ToVariant(min), dbusconn.ToVariant(max)).Store(&res)
	if err != nil {
		return item.Value{}, errors.Wrapf(err, "add setting %s", path)
	}
	if res != 0 {
		return item.Value{}, errors.Errorf("add setting %s: error %d", path, res)
	}

	if err := d.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(objectPath(path)),
		dbus.WithMatchInterface(busItemInterface),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		log.Warning("Cannot watch setting", path, err)
	}

	d.mu.Lock()
	d.props[path] = props
	d.mu.Unlock()

	v, err := d.getValue(path)
	if err != nil {
		return item.Value{}, errors.Wrapf(err, "get setting %s", path)
	}
	if cv, err := props.Check(v); err == nil {
		return cv, nil
	}
	return props.Check(props.Default)
}

// Get implements Store
func (d *DbusStore) Get(path string) (item.Value, bool) {
	d.mu.Lock()
	props, ok := d.props[path]
	d.mu.Unlock()
	if !ok {
		return item.Value{}, false
	}
	v, err := d.getValue(path)
	if err != nil {
		log.Warning("Cannot read setting", path, err)
		return item.Value{}, false
	}
	cv, err := props.Check(v)
	return cv, err == nil
}

// Set implements Store. Subscribers are notified by the change signal.
func (d *DbusStore) Set(path string, v item.Value) error {
	d.mu.Lock()
	props, ok := d.props[path]
	d.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	cv, err := props.Check(v)
	if err != nil {
		return err
	}

	var res int32
	err = d.conn.Object(settingsService, objectPath(path)).
		Call(busItemInterface+".SetValue", 0, dbusconn.ToVariant(cv)).Store(&res)
	if err != nil {
		return errors.Wrapf(err, "set setting %s", path)
	}
	if res != 0 {
		return errors.Wrapf(ErrOutOfRange, "set setting %s: error %d", path, res)
	}
	return nil
}

// Subscribe implements Store
func (d *DbusStore) Subscribe(path string, fn func(item.Value)) func() {
	return d.subs.add(path, fn)
}

func (d *DbusStore) listen() {
	for sig := range d.sigs {
		if sig.Name != busItemInterface+".PropertiesChanged" || len(sig.Body) == 0 {
			continue
		}
		changes, ok := sig.Body[0].(map[string]dbus.Variant)
		if !ok {
			continue
		}
		raw, ok := changes["Value"]
		if !ok {
			continue
		}

		path := strings.TrimPrefix(string(sig.Path), "/")
		d.mu.Lock()
		props, known := d.props[path]
		d.mu.Unlock()
		if !known {
			continue
		}
		v, err := props.Check(dbusconn.FromVariant(raw))
		if err != nil {
			log.Warning("Ignoring remote value of", path, err)
			continue
		}
		d.dispatch(func() { d.subs.notify(path, v) })
	}
}

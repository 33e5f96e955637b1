package dbusconn

import (
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"

	"gitlab.ubiant.me/go-shared/ble-sensors/item"
)

// busItem is the bus object of one item. It keeps a copy of the value so
// that bus goroutines never read the tree.
type busItem struct {
	svc  *service
	it   *item.Item
	key  string
	path dbus.ObjectPath

	mu         sync.Mutex
	value      dbus.Variant
	text       string
	properties *prop.Properties
}

// GetValue is the BusItem method returning the value
func (b *busItem) GetValue() (dbus.Variant, *dbus.Error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value, nil
}

// GetText is the BusItem method returning the formatted value
func (b *busItem) GetText() (string, *dbus.Error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text, nil
}

// SetValue is the BusItem method for remote writes. The write is applied
// asynchronously; a rejected value is reverted and signalled.
func (b *busItem) SetValue(v dbus.Variant) (int32, *dbus.Error) {
	log.Debug("SetValue called -", b.path, v)
	b.svc.write(b.it, FromVariant(v))
	return 0, nil
}

func (b *busItem) setValueProp(c *prop.Change) *dbus.Error {
	b.svc.write(b.it, FromVariant(dbus.MakeVariant(c.Value)))
	return nil
}

func (b *busItem) snapshot() (dbus.Variant, string) {
	return ToVariant(b.it.Value()), b.it.Text()
}

func (s *service) exportItem(it *item.Item) *busItem {
	key := it.Path()
	b := &busItem{svc: s, it: it, key: key, path: dbus.ObjectPath("/" + key)}
	b.value, b.text = b.snapshot()

	methods := map[string]interface{}{
		"GetValue": b.GetValue,
		"GetText":  b.GetText,
		"SetValue": b.SetValue,
	}
	if err := s.conn.ExportMethodTable(methods, b.path, busItemInterface); err != nil {
		log.Warning("Fail to export item", s.name, b.path, err)
		return nil
	}

	propsSpec := map[string]map[string]*prop.Prop{
		busItemInterface: {
			propertyValue: {
				Value:    b.value.Value(),
				Writable: true,
				Emit:     prop.EmitTrue,
				Callback: b.setValueProp,
			},
			propertyText: {
				Value:    b.text,
				Writable: false,
				Emit:     prop.EmitTrue,
				Callback: nil,
			},
		},
	}
	properties, err := prop.Export(s.conn, b.path, propsSpec)
	if err != nil {
		log.Error("Fail to export the properties of the item", s.name, b.path, err)
	} else {
		b.properties = properties
	}

	return b
}

func (b *busItem) unexport() {
	conn := b.svc.conn
	conn.Export(nil, b.path, busItemInterface)
	conn.Export(nil, b.path, propsInterface)
}

// refresh publishes the current value of the item when it changed
func (b *busItem) refresh() {
	value, text := b.snapshot()

	b.mu.Lock()
	changed := value.Signature() != b.value.Signature() || value.String() != b.value.String() || text != b.text
	b.value, b.text = value, text
	b.mu.Unlock()

	if !changed {
		return
	}

	if b.properties != nil {
		b.properties.SetMust(busItemInterface, propertyValue, value.Value())
		b.properties.SetMust(busItemInterface, propertyText, text)
	}
	changes := map[string]dbus.Variant{
		propertyValue: value,
		propertyText:  dbus.MakeVariant(text),
	}
	if err := b.svc.conn.Emit(b.path, busItemInterface+"."+signalPropertiesChanged, changes); err != nil {
		log.Debug("Fail to emit the change of", b.path, err)
	}
}

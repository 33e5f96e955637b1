package dbusconn

import (
	"sort"
	"sync"

	"github.com/godbus/dbus/v5"

	"gitlab.ubiant.me/go-shared/ble-sensors/item"
)

// service is one published tree on its own connection
type service struct {
	dc   *Dbus
	name string
	conn *dbus.Conn
	root *item.Item

	mu    sync.Mutex
	items map[string]*busItem
}

func (dc *Dbus) newService(name string, root *item.Item) (*service, error) {
	conn, err := dc.connect(name)
	if err != nil {
		return nil, err
	}

	s := &service{
		dc:    dc,
		name:  name,
		conn:  conn,
		root:  root,
		items: make(map[string]*busItem),
	}

	methods := map[string]interface{}{
		"GetItems": s.GetItems,
		"GetValue": s.GetValue,
		"GetText":  s.GetText,
	}
	if err := conn.ExportMethodTable(methods, "/", busItemInterface); err != nil {
		conn.Close()
		return nil, err
	}

	root.Walk(func(it *item.Item) {
		if it != root && it.Ownership() != item.Unset {
			s.add(it)
		}
	})

	log.Info("Service exported:", name, "items:", len(s.items))
	return s, nil
}

func (s *service) add(it *item.Item) {
	b := s.exportItem(it)
	if b == nil {
		return
	}
	s.mu.Lock()
	s.items[b.key] = b
	s.mu.Unlock()
}

func (s *service) remove(path string) {
	s.mu.Lock()
	b, ok := s.items[path]
	delete(s.items, path)
	s.mu.Unlock()
	if ok {
		b.unexport()
	}
}

// update publishes a batch of changes of the tree
func (s *service) update(ch item.Changes) {
	for _, path := range ch.Removed {
		s.remove(path)
	}
	for _, it := range ch.Updated {
		if it == s.root {
			continue
		}
		s.mu.Lock()
		b, ok := s.items[it.Path()]
		s.mu.Unlock()
		if !ok {
			s.add(it)
			continue
		}
		b.refresh()
	}
}

// write applies a remote value on the tree owner goroutine
func (s *service) write(it *item.Item, v item.Value) {
	s.dc.dispatch(func() {
		if it.Deleted() {
			return
		}
		cv, ok := coerce(v, it.Value().Kind())
		if !ok {
			log.Warning("Invalid value for", s.name, it.Path(), v)
			return
		}
		it.SetOwner(cv)
		it.Root().SendPendingChanges()
	})
}

func (s *service) sorted() []*busItem {
	s.mu.Lock()
	paths := make([]string, 0, len(s.items))
	for p := range s.items {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	list := make([]*busItem, len(paths))
	for i, p := range paths {
		list[i] = s.items[p]
	}
	s.mu.Unlock()
	return list
}

// GetItems returns the value and text of every item, keyed by object path
func (s *service) GetItems() (map[string]map[string]dbus.Variant, *dbus.Error) {
	out := make(map[string]map[string]dbus.Variant)
	for _, b := range s.sorted() {
		v, _ := b.GetValue()
		t, _ := b.GetText()
		out[string(b.path)] = map[string]dbus.Variant{
			propertyValue: v,
			propertyText:  dbus.MakeVariant(t),
		}
	}
	return out, nil
}

// GetValue on the root returns the values keyed by item path
func (s *service) GetValue() (map[string]dbus.Variant, *dbus.Error) {
	out := make(map[string]dbus.Variant)
	for _, b := range s.sorted() {
		v, _ := b.GetValue()
		out[b.key] = v
	}
	return out, nil
}

// GetText on the root returns the texts keyed by item path
func (s *service) GetText() (map[string]string, *dbus.Error) {
	out := make(map[string]string)
	for _, b := range s.sorted() {
		t, _ := b.GetText()
		out[b.key] = t
	}
	return out, nil
}

func (s *service) close() {
	for _, b := range s.sorted() {
		b.unexport()
	}
	if _, err := s.conn.ReleaseName(s.name); err != nil {
		log.Debug("Fail to release", s.name, err)
	}
	if err := s.conn.Close(); err != nil {
		log.Debug("Fail to close the connection of", s.name, err)
	}
	log.Info("Service removed:", s.name)
}

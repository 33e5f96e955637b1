package settings

import (
	"github.com/pkg/errors"

	"gitlab.ubiant.me/go-shared/ble-sensors/item"
)

// Proxy mirrors one store path into one item
type Proxy struct {
	store    Store
	path     string
	item     *item.Item
	props    Props
	onChange func(*Proxy)
	cancel   func()
}

// Bind creates the item name below root, initializes it from the store (or
// the default), mirrors external writes into it and forwards local owner
// writes to the store. onChange runs after every accepted change.
func Bind(store Store, path string, root *item.Item, name string, props Props, onChange func(*Proxy)) (*Proxy, error) {
	v, err := store.Add(path, props)
	if err != nil {
		return nil, errors.Wrapf(err, "bind %s", path)
	}

	p := &Proxy{
		store:    store,
		path:     path,
		item:     root.GetOrCreate(name),
		props:    props,
		onChange: onChange,
	}
	p.item.SetOwner(v)
	p.item.SetOnChange(p.changed)
	p.cancel = store.Subscribe(path, p.external)
	return p, nil
}

// Item returns the mirrored item
func (p *Proxy) Item() *item.Item { return p.item }

// Path returns the store path
func (p *Proxy) Path() string { return p.path }

// Value returns the current value
func (p *Proxy) Value() item.Value { return p.item.Value() }

// Set writes v through the item, as a local owner write would
func (p *Proxy) Set(v item.Value) { p.item.SetOwner(v) }

// Close stops the mirroring. The item is left in place.
func (p *Proxy) Close() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if !p.item.Deleted() {
		p.item.SetOnChange(nil)
	}
}

func (p *Proxy) external(v item.Value) {
	if p.cancel == nil {
		return
	}
	p.item.SetOwner(v)
}

func (p *Proxy) changed(it *item.Item) {
	v := it.Value()
	cur, known := p.store.Get(p.path)
	if !known || !cur.Equal(v) {
		if err := p.store.Set(p.path, v); err != nil {
			log.Warning("Setting", p.path, "rejected", v, err)
			if known {
				it.SetOwner(cur)
			}
			return
		}
	}

	if p.onChange != nil {
		p.onChange(p)
	}
}

// Package item implements the live state tree of the sensors.
//
// Every device is a root Item. Children are addressed with "/" separated
// paths and are created on first write. Writes made with SetOwner are
// authoritative: they mark the item pending and fire its change callback,
// but only when the value actually changed. Pending items are handed to the
// root's Observer in one batch by SendPendingChanges, so an observer never
// sees half of a processing cycle.
//
// The tree is not safe for concurrent use; it is owned by one goroutine.
package item

import "strings"

// Ownership tags the origin of the last write
type Ownership uint8

const (
	// Unset items were created but never written
	Unset Ownership = iota
	// OwnerSet values are authoritative (decoded data, settings)
	OwnerSet
	// LocalSet values are internal bookkeeping
	LocalSet
)

// Changes is one batch of pending updates of a tree
type Changes struct {
	Updated []*Item
	Removed []string
}

// Empty reports whether the batch holds nothing
func (c Changes) Empty() bool {
	return len(c.Updated) == 0 && len(c.Removed) == 0
}

// Observer receives the pending changes of a root
type Observer interface {
	ItemsChanged(root *Item, ch Changes)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(root *Item, ch Changes)

// ItemsChanged calls f
func (f ObserverFunc) ItemsChanged(root *Item, ch Changes) { f(root, ch) }

// Item is a node of the state tree
type Item struct {
	id       string
	parent   *Item
	children []*Item
	index    map[string]*Item

	value     Value
	format    Format
	ownership Ownership

	onChange  func(*Item)
	notifying bool
	pending   bool
	deleted   bool

	// root only
	observer Observer
	removed  []string
}

// New allocates a detached root item
func New(id string) *Item {
	return &Item{id: id}
}

// ID returns the last path segment of the item
func (it *Item) ID() string { return it.id }

// Parent returns the parent item, nil for a root
func (it *Item) Parent() *Item { return it.parent }

// Root returns the top of the tree the item belongs to
func (it *Item) Root() *Item {
	r := it
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// Path returns the "/" separated path of the item below its root
func (it *Item) Path() string {
	if it.parent == nil {
		return ""
	}
	var segs []string
	for n := it; n.parent != nil; n = n.parent {
		segs = append(segs, n.id)
	}
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return strings.Join(segs, "/")
}

func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segs := parts[:0]
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

// Get returns the item at path, nil when it does not exist
func (it *Item) Get(path string) *Item {
	n := it
	for _, seg := range splitPath(path) {
		child, ok := n.index[seg]
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

// GetOrCreate returns the item at path, creating missing nodes
func (it *Item) GetOrCreate(path string) *Item {
	n := it
	for _, seg := range splitPath(path) {
		child, ok := n.index[seg]
		if !ok {
			child = &Item{id: seg, parent: n}
			if n.index == nil {
				n.index = make(map[string]*Item)
			}
			n.index[seg] = child
			n.children = append(n.children, child)
		}
		n = child
	}
	return n
}

// Value returns the current value
func (it *Item) Value() Value { return it.value }

// Valid reports whether the item holds a reading
func (it *Item) Valid() bool { return it.value.Valid() }

// Ownership returns the tag of the last write
func (it *Item) Ownership() Ownership { return it.ownership }

// Format returns the display format
func (it *Item) Format() Format { return it.format }

// SetFormat sets the display format
func (it *Item) SetFormat(f Format) { it.format = f }

// Text renders the value with the item format
func (it *Item) Text() string { return it.format.Text(it.value) }

// Pending reports whether the item has an unsent change
func (it *Item) Pending() bool { return it.pending }

// Deleted reports whether the item was removed from its tree
func (it *Item) Deleted() bool { return it.deleted }

// SetOnChange registers the change callback, nil removes it
func (it *Item) SetOnChange(fn func(*Item)) { it.onChange = fn }

// SetOwner performs an authoritative write. The change callback runs
// synchronously, once, and only if validity or content changed. A callback
// writing its own item does not re-enter itself.
func (it *Item) SetOwner(v Value) {
	changed := !it.value.Equal(v)
	it.value = v
	it.ownership = OwnerSet
	if !changed {
		return
	}
	it.pending = true
	it.notify()
}

// SetLocal stores a bookkeeping value: no callback, nothing published
func (it *Item) SetLocal(v Value) {
	it.value = v
	it.ownership = LocalSet
}

// Invalidate drops the reading but keeps the kind
func (it *Item) Invalidate() {
	it.SetOwner(Invalid(it.value.Kind()))
}

func (it *Item) notify() {
	if it.onChange == nil || it.notifying {
		return
	}
	it.notifying = true
	defer func() { it.notifying = false }()
	it.onChange(it)
}

// FirstChild returns the first child in creation order
func (it *Item) FirstChild() *Item {
	if len(it.children) == 0 {
		return nil
	}
	return it.children[0]
}

// NextChild returns the next sibling in creation order
func (it *Item) NextChild() *Item {
	if it.parent == nil {
		return nil
	}
	sib := it.parent.children
	for i, c := range sib {
		if c == it && i+1 < len(sib) {
			return sib[i+1]
		}
	}
	return nil
}

// Children returns a snapshot of the direct children
func (it *Item) Children() []*Item {
	out := make([]*Item, len(it.children))
	copy(out, it.children)
	return out
}

// Walk visits the item and all its descendants depth first
func (it *Item) Walk(fn func(*Item)) {
	fn(it)
	for _, c := range it.Children() {
		c.Walk(fn)
	}
}

// Delete removes the item and its descendants from the tree. The removed
// paths are reported with the next SendPendingChanges of the root.
func (it *Item) Delete() {
	root := it.Root()
	it.Walk(func(n *Item) {
		if n != root {
			root.removed = append(root.removed, n.Path())
		}
		n.deleted = true
		n.pending = false
		n.onChange = nil
	})

	if it.parent == nil {
		it.children = nil
		it.index = nil
		return
	}

	p := it.parent
	delete(p.index, it.id)
	for i, c := range p.children {
		if c == it {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	it.parent = nil
}

// SetObserver attaches the receiver of the pending changes of this root
func (it *Item) SetObserver(o Observer) { it.observer = o }

// Observer returns the attached observer
func (it *Item) Observer() Observer { return it.observer }

// SendPendingChanges hands the pending updates below it, and the removals
// recorded on its root, to the root observer in one batch.
func (it *Item) SendPendingChanges() {
	root := it.Root()
	var ch Changes
	it.Walk(func(n *Item) {
		if n.pending {
			n.pending = false
			ch.Updated = append(ch.Updated, n)
		}
	})
	ch.Removed = root.removed
	root.removed = nil

	if ch.Empty() || root.observer == nil {
		return
	}
	root.observer.ItemsChanged(root, ch)
}

// GetValue returns the value at path, invalid when the item does not exist
func (it *Item) GetValue(path string) Value {
	n := it.Get(path)
	if n == nil {
		return Value{}
	}
	return n.value
}

// ValueFloat returns the value at path as float64, 0 when absent
func (it *Item) ValueFloat(path string) float64 {
	f, _ := it.GetValue(path).Float()
	return f
}

// ValueInt returns the value at path as int64, 0 when absent
func (it *Item) ValueInt(path string) int64 {
	i, _ := it.GetValue(path).Int()
	return i
}

// ValueString returns the value at path as string, "" when absent
func (it *Item) ValueString(path string) string {
	s, _ := it.GetValue(path).Str()
	return s
}

// Set creates the item at path, sets its format and writes v as owner
func (it *Item) Set(path string, v Value, f Format) *Item {
	n := it.GetOrCreate(path)
	n.SetFormat(f)
	n.SetOwner(v)
	return n
}

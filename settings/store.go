package settings

import (
	"sync"

	"gitlab.ubiant.me/go-shared/ble-sensors/item"
)

// Store is a typed key-value store keyed by hierarchical path. It validates
// writes against the Props given to Add.
type Store interface {
	// Add declares a setting, writing the default when the path has no value,
	// and returns the current value
	Add(path string, props Props) (item.Value, error)
	// Get returns the current value
	Get(path string) (item.Value, bool)
	// Set validates and writes a value, then notifies the subscribers
	Set(path string, v item.Value) error
	// Subscribe registers fn for writes to path
	Subscribe(path string, fn func(item.Value)) (cancel func())
}

type subscribers struct {
	sync.Mutex
	next int
	subs map[string]map[int]func(item.Value)
}

func (s *subscribers) add(path string, fn func(item.Value)) func() {
	s.Lock()
	defer s.Unlock()

	if s.subs == nil {
		s.subs = make(map[string]map[int]func(item.Value))
	}
	if s.subs[path] == nil {
		s.subs[path] = make(map[int]func(item.Value))
	}
	id := s.next
	s.next++
	s.subs[path][id] = fn

	return func() {
		s.Lock()
		delete(s.subs[path], id)
		if len(s.subs[path]) == 0 {
			delete(s.subs, path)
		}
		s.Unlock()
	}
}

func (s *subscribers) notify(path string, v item.Value) {
	s.Lock()
	var fns []func(item.Value)
	for _, fn := range s.subs[path] {
		fns = append(fns, fn)
	}
	s.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// MemStore keeps the settings in memory
type MemStore struct {
	mu     sync.Mutex
	values map[string]item.Value
	props  map[string]Props
	subs   subscribers
}

// NewMemStore returns an empty store
func NewMemStore() *MemStore {
	return &MemStore{
		values: make(map[string]item.Value),
		props:  make(map[string]Props),
	}
}

// Add implements Store
func (m *MemStore) Add(path string, props Props) (item.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.props[path] = props
	if v, ok := m.values[path]; ok {
		if cv, err := props.Check(v); err == nil {
			m.values[path] = cv
			return cv, nil
		}
		log.Warning("Stored value of", path, "no longer valid, reset to default")
	}

	def, err := props.Check(props.Default)
	if err != nil {
		return item.Value{}, err
	}
	m.values[path] = def
	return def, nil
}

// Get implements Store
func (m *MemStore) Get(path string) (item.Value, bool) {
	m.mu.Lock()
	v, ok := m.values[path]
	m.mu.Unlock()
	return v, ok
}

// Set implements Store
func (m *MemStore) Set(path string, v item.Value) error {
	m.mu.Lock()
	props, ok := m.props[path]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	cv, err := props.Check(v)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.values[path] = cv
	m.mu.Unlock()

	m.subs.notify(path, cv)
	return nil
}

// Subscribe implements Store
func (m *MemStore) Subscribe(path string, fn func(item.Value)) func() {
	return m.subs.add(path, fn)
}

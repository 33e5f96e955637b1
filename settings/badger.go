package settings

import (
	"encoding/json"
	"sync"

	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"

	"gitlab.ubiant.me/go-shared/ble-sensors/item"
)

// BadgerStore persists the settings in a local badger database. The props
// are not persisted; they are declared again by Add on every start.
type BadgerStore struct {
	db    *badger.DB
	mu    sync.Mutex
	props map[string]Props
	subs  subscribers
}

type storedValue struct {
	Kind  string      `json:"k"`
	Value interface{} `json:"v"`
}

// OpenBadgerStore opens or creates the database in dir
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Truncate = true
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open settings database %s", dir)
	}
	return &BadgerStore{db: db, props: make(map[string]Props)}, nil
}

// Close closes the database
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func encodeValue(v item.Value) ([]byte, error) {
	return json.Marshal(storedValue{Kind: v.Kind().String(), Value: v.Interface()})
}

func decodeValue(raw []byte) (item.Value, error) {
	var sv storedValue
	if err := json.Unmarshal(raw, &sv); err != nil {
		return item.Value{}, err
	}
	switch x := sv.Value.(type) {
	case float64:
		switch sv.Kind {
		case "int":
			return item.Int(int64(x)), nil
		case "uint":
			return item.Uint(uint64(x)), nil
		}
		return item.Float(x), nil
	case string:
		return item.String(x), nil
	}
	return item.Value{}, errors.Errorf("unexpected stored value %v", sv.Value)
}

func (b *BadgerStore) read(path string) (item.Value, bool, error) {
	var raw []byte
	err := b.db.View(func(txn *badger.Txn) error {
		it, err := txn.Get([]byte(path))
		if err != nil {
			return err
		}
		raw, err = it.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return item.Value{}, false, nil
	}
	if err != nil {
		return item.Value{}, false, err
	}
	v, err := decodeValue(raw)
	if err != nil {
		return item.Value{}, false, errors.Wrapf(err, "decode %s", path)
	}
	return v, true, nil
}

func (b *BadgerStore) write(path string, v item.Value) error {
	raw, err := encodeValue(v)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(path), raw)
	})
}

// Add implements Store
func (b *BadgerStore) Add(path string, props Props) (item.Value, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.props[path] = props

	v, found, err := b.read(path)
	if err != nil {
		log.Warning("Cannot read setting", path, err)
	}
	if found {
		if cv, err := props.Check(v); err == nil {
			return cv, nil
		}
		log.Warning("Stored value of", path, "no longer valid, reset to default")
	}

	def, err := props.Check(props.Default)
	if err != nil {
		return item.Value{}, errors.Wrapf(err, "default of %s", path)
	}
	if err := b.write(path, def); err != nil {
		return item.Value{}, errors.Wrapf(err, "write %s", path)
	}
	return def, nil
}

// Get implements Store
func (b *BadgerStore) Get(path string) (item.Value, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.props[path]; !ok {
		return item.Value{}, false
	}
	v, found, err := b.read(path)
	if err != nil {
		log.Warning("Cannot read setting", path, err)
	}
	return v, found
}

// Set implements Store
func (b *BadgerStore) Set(path string, v item.Value) error {
	b.mu.Lock()
	props, ok := b.props[path]
	if !ok {
		b.mu.Unlock()
		return ErrNotFound
	}
	cv, err := props.Check(v)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	err = b.write(path, cv)
	b.mu.Unlock()
	if err != nil {
		return errors.Wrapf(err, "write %s", path)
	}

	b.subs.notify(path, cv)
	return nil
}

// Subscribe implements Store
func (b *BadgerStore) Subscribe(path string, fn func(item.Value)) func() {
	return b.subs.add(path, fn)
}

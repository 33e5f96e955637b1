// Package driver decodes sensor frames from declarative register tables.
package driver

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/op/go-logging"
)

// DriversManager contains all the register tables known by the daemon
type DriversManager struct {
	items map[string]DriverItem
	dir   string
	sync.Mutex
}

var log = logging.MustGetLogger("ble-sensors")

// InitDriversManager init the struct. dir holds JSON hardware descriptors,
// it may be empty.
func (dm *DriversManager) InitDriversManager(dir string) {
	dm.items = make(map[string]DriverItem)
	dm.dir = dir
}

// Register adds a built-in table
func (dm *DriversManager) Register(name string, regs []Reg) {
	dm.Lock()
	dm.items[name] = DriverItem{Name: name, Regs: regs}
	dm.Unlock()
}

func (dm *DriversManager) getItem(name string) (*DriverItem, bool) {
	dm.Lock()
	driver, driverFound := dm.items[name]
	dm.Unlock()

	return &driver, driverFound
}

// GetDriverItem to get a driver item
// If the item is not in the struct, the function will try to find it on the disk
func (dm *DriversManager) GetDriverItem(name string) (*DriverItem, bool) {
	driver, driverFound := dm.getItem(name)

	if driverFound {
		return driver, driverFound
	}

	if dm.dir == "" {
		return nil, false
	}

	log.Info("Try to find the driver from the disk:", name)
	path := filepath.Join(dm.dir, name+".json")
	if _, err := os.Stat(path); err != nil || strings.ContainsRune(name, filepath.Separator) {
		path = itemPath(dm.dir, name)
	}
	return dm.loadFile(path)
}

func (dm *DriversManager) loadFile(path string) (*DriverItem, bool) {
	byteValue, err := os.ReadFile(path)
	if err != nil {
		log.Warning("unable to read the item driver from", path)
		return nil, false
	}

	hd := HardwareDescriptor{}
	err = json.Unmarshal(byteValue, &hd)
	if err != nil {
		log.Warning("Fail to deserialize the hardware descriptor:", path, err)
		return nil, false
	}
	if hd.Name == "" {
		hd.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	driver, ok := initDriverItem(hd)
	if !ok {
		log.Warning("Fail to generate a driver item from the hardware descriptor:", path)
		return nil, false
	}

	log.Info("Driver from disk:", driver.Name, "registers:", len(driver.Regs))

	dm.Lock()
	dm.items[driver.Name] = *driver
	dm.Unlock()

	return driver, true
}

// LoadAll reads every descriptor of the drivers directory
func (dm *DriversManager) LoadAll() []*DriverItem {
	if dm.dir == "" {
		return nil
	}

	paths, err := filepath.Glob(filepath.Join(dm.dir, "*.json"))
	if err != nil {
		log.Warning("unable to list the drivers directory", dm.dir, err)
		return nil
	}
	sort.Strings(paths)

	var drivers []*DriverItem
	for _, p := range paths {
		if d, ok := dm.loadFile(p); ok {
			drivers = append(drivers, d)
		}
	}
	return drivers
}

// Names returns the names of the known tables, sorted
func (dm *DriversManager) Names() []string {
	dm.Lock()
	names := make([]string, 0, len(dm.items))
	for name := range dm.items {
		names = append(names, name)
	}
	dm.Unlock()

	sort.Strings(names)
	return names
}

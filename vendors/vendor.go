// Package vendors holds the frame layouts of the supported sensors and
// dispatches manufacturer payloads to them.
package vendors

import (
	"fmt"

	"github.com/op/go-logging"
	"github.com/pkg/errors"

	"gitlab.ubiant.me/go-shared/ble-sensors/driver"
	"gitlab.ubiant.me/go-shared/ble-sensors/registry"
	"gitlab.ubiant.me/go-shared/ble-sensors/scan"
)

var log = logging.MustGetLogger("ble-sensors")

var (
	// ErrMalformed is returned for a payload no handler accepts
	ErrMalformed = errors.New("vendor: malformed frame")
	// ErrUnknownManufacturer is returned for a company id without handler
	ErrUnknownManufacturer = errors.New("vendor: unknown manufacturer")
)

// Manufacturer ids
const (
	MfgNordic     = 0x0059
	MfgSafiery    = 0x0067
	MfgCypress    = 0x0131
	MfgRuuvi      = 0x0499
	MfgSolarSense = 0x02e1
)

// Handler decodes one manufacturer payload. It returns ErrMalformed,
// possibly wrapped, when the payload is not its own.
type Handler func(r *registry.Registry, addr scan.Addr, buf []byte) error

type entry struct {
	name string
	fn   Handler
}

// Table dispatches payloads by manufacturer id. Several handlers may share
// an id; they are tried in registration order.
type Table struct {
	handlers map[uint16][]entry
	drivers  *driver.DriversManager
}

// NewTable returns a table with the built-in sensors. Their register
// tables are registered in dm, then the JSON descriptors of dm are added
// as generic sensors.
func NewTable(dm *driver.DriversManager) *Table {
	t := &Table{handlers: make(map[uint16][]entry), drivers: dm}

	t.Register(MfgRuuvi, "ruuvi", handleRuuvi)
	t.Register(MfgNordic, "mopeka", handleMopeka)
	t.Register(MfgNordic, "gobius", handleGobius)
	t.Register(MfgSafiery, "safiery", handleSafiery)
	t.Register(MfgSolarSense, "solarsense", handleSolarSense)
	t.Register(MfgCypress, "seelevel", handleSeeLevel)

	if dm == nil {
		return t
	}

	for name, regs := range builtinRegs {
		dm.Register(name, regs)
	}
	for _, d := range dm.LoadAll() {
		if d.HDesc == nil {
			continue
		}
		if h := genericHandler(d); h != nil {
			t.Register(d.HDesc.ManufacturerID, d.Name, h)
		}
	}

	return t
}

// Register adds a handler for a manufacturer id
func (t *Table) Register(mfg uint16, name string, fn Handler) {
	t.handlers[mfg] = append(t.handlers[mfg], entry{name: name, fn: fn})
	log.Debug("Vendor", name, "registered for", fmt.Sprintf("0x%04x", mfg))
}

// Handle dispatches a manufacturer payload
func (t *Table) Handle(r *registry.Registry, addr scan.Addr, mfg uint16, buf []byte) error {
	entries, ok := t.handlers[mfg]
	if !ok {
		return ErrUnknownManufacturer
	}

	for _, e := range entries {
		err := e.fn(r, addr, buf)
		if errors.Cause(err) == ErrMalformed {
			continue
		}
		return errors.Wrap(err, e.name)
	}
	return errors.Wrapf(ErrMalformed, "%s 0x%04x, %d bytes", addr, mfg, len(buf))
}

// HandleName uses an advertised name as label of a known device without one
func (t *Table) HandleName(r *registry.Registry, addr scan.Addr, name string) {
	d := r.Lookup(addr.ID())
	if d == nil || d.Label() != "" {
		return
	}
	r.SetName(d, name)
}

// process runs the common path of a valid frame: create or touch the
// device, name it and, when enabled, decode and update it
func process(r *registry.Registry, id string, info *registry.Info, data interface{}, label string,
	decode func(d *registry.Device)) error {
	d, err := r.CreateOrTouch(id, info, data)
	if err != nil {
		return err
	}
	r.SetName(d, label)

	if !r.IsEnabled(d) {
		return nil
	}

	r.Process(d, decode)
	return nil
}

// uidMatches checks the 3 address bytes some sensors repeat in their
// payload against the low half of the advertiser address
func uidMatches(uid []byte, addr scan.Addr) bool {
	return uid[0] == addr[3] && uid[1] == addr[4] && uid[2] == addr[5]
}

func malformed(format string, args ...interface{}) error {
	return errors.Wrapf(ErrMalformed, format, args...)
}

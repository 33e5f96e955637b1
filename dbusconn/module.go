package dbusconn

import (
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
	"github.com/op/go-logging"
	"github.com/pkg/errors"

	"gitlab.ubiant.me/go-shared/ble-sensors/item"
)

const (
	moduleInterface  = "com.victronenergy.BleSensors.Module"
	propertyLogLevel = "LogLevel"
)

// Module is a dbus object which represents the states of the daemon. It
// lives on the root object of the control service.
type Module struct {
	ready      bool
	logModule  string
	properties *prop.Properties
	sync.Mutex
}

// ExportModule exports the Module object on the service of root, which
// must be connected. logModule is the go-logging module LogLevel controls.
func (p *Publisher) ExportModule(root *item.Item, logModule string) (*Module, error) {
	s, ok := p.services[root]
	if !ok {
		return nil, errors.New("dbusconn: module on an unpublished tree")
	}

	m := &Module{logModule: logModule}
	err := s.conn.ExportMethodTable(map[string]interface{}{"IsReady": m.IsReady}, "/", moduleInterface)
	if err != nil {
		return nil, errors.Wrap(err, "export module")
	}

	propsSpec := map[string]map[string]*prop.Prop{
		moduleInterface: {
			propertyLogLevel: {
				Value:    logging.GetLevel(logModule).String(),
				Writable: true,
				Emit:     prop.EmitTrue,
				Callback: m.setLogLevel,
			},
		},
	}
	properties, err := prop.Export(s.conn, "/", propsSpec)
	if err != nil {
		return nil, errors.Wrap(err, "export module properties")
	}
	m.properties = properties

	return m, nil
}

func (m *Module) setLogLevel(c *prop.Change) *dbus.Error {
	name, ok := c.Value.(string)
	if !ok {
		return &dbus.ErrMsgInvalidArg
	}
	level, err := logging.LogLevel(name)
	if err != nil {
		log.Error(err)
		return &dbus.ErrMsgInvalidArg
	}
	logging.SetLevel(level, m.logModule)
	log.Info("Log level has been set to", level)
	return nil
}

// SetReady sets the ready state
func (m *Module) SetReady() {
	m.Lock()
	m.ready = true
	m.Unlock()
}

// IsReady dbus method to know if the daemon is ready or not
func (m *Module) IsReady() (bool, *dbus.Error) {
	m.Lock()
	var ready = m.ready
	m.Unlock()

	return ready, nil
}

// Package dbusconn mirrors item trees on D-Bus. Every published tree gets
// its own bus connection and well-known name; each item with a value is an
// object exposing the com.victronenergy.BusItem interface.
package dbusconn

import (
	"github.com/godbus/dbus/v5"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

const (
	busItemInterface = "com.victronenergy.BusItem"
	propsInterface   = "org.freedesktop.DBus.Properties"

	signalPropertiesChanged = "PropertiesChanged"

	propertyValue = "Value"
	propertyText  = "Text"
)

var log = logging.MustGetLogger("ble-sensors")

// ErrNameTaken is returned when another process owns the service name
var ErrNameTaken = errors.New("dbusconn: name already taken")

// Dbus holds the bus parameters shared by the published services
type Dbus struct {
	// Address is "system", "session" or a bus address. Empty means system.
	Address string
	// Dispatch runs remote writes on the goroutine owning the item trees.
	// Nil runs them on the bus goroutine.
	Dispatch func(func())
}

func (dc *Dbus) dial() (*dbus.Conn, error) {
	switch dc.Address {
	case "", "system":
		return dbus.ConnectSystemBus()
	case "session":
		return dbus.ConnectSessionBus()
	}
	return dbus.Connect(dc.Address)
}

// Dial opens a private connection to the configured bus
func (dc *Dbus) Dial() (*dbus.Conn, error) {
	conn, err := dc.dial()
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s bus", dc.address())
	}
	return conn, nil
}

func (dc *Dbus) address() string {
	if dc.Address == "" {
		return "system"
	}
	return dc.Address
}

func (dc *Dbus) dispatch(fn func()) {
	if dc.Dispatch == nil {
		fn()
		return
	}
	dc.Dispatch(fn)
}

// connect opens a connection owning name
func (dc *Dbus) connect(name string) (*dbus.Conn, error) {
	conn, err := dc.Dial()
	if err != nil {
		return nil, err
	}

	reply, err := conn.RequestName(name, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "request name %s", name)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, errors.Wrap(ErrNameTaken, name)
	}

	log.Debug("Connected on DBus as", name)
	return conn, nil
}

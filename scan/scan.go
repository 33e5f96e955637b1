// Package scan turns raw advertising reports into manufacturer payloads.
package scan

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var log = logging.MustGetLogger("ble-sensors")

// AD types handled by the daemon
const (
	ADCompleteName  = 0x09
	ADManufacturer  = 0xff
	addrLen         = 6
	manufacturerLen = 2
)

// ErrBadAddress is returned for an unparsable hardware address
var ErrBadAddress = errors.New("scan: bad hardware address")

// Addr is a hardware address in printed order, most significant byte first
type Addr [addrLen]byte

// ParseAddr parses "aa:bb:cc:dd:ee:ff"
func ParseAddr(s string) (Addr, error) {
	var a Addr
	parts := strings.Split(s, ":")
	if len(parts) != addrLen {
		return a, errors.Wrap(ErrBadAddress, s)
	}
	for i, p := range parts {
		b, err := hex.DecodeString(p)
		if err != nil || len(b) != 1 {
			return a, errors.Wrap(ErrBadAddress, s)
		}
		a[i] = b[0]
	}
	return a, nil
}

func (a Addr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

// ID returns the device id form of the address: 12 lowercase hex digits
func (a Addr) ID() string {
	return hex.EncodeToString(a[:])
}

// Frame is one advertising report
type Frame struct {
	Addr Addr
	// Data holds the AD structures of the report
	Data []byte
}

// AD is one advertising data structure
type AD struct {
	Type byte
	Data []byte
}

// ParseAdvertisement splits buf into AD structures. A truncated structure
// ends the parsing; the structures before it are returned.
func ParseAdvertisement(buf []byte) []AD {
	var ads []AD
	for len(buf) >= 2 {
		adlen := int(buf[0]) - 1
		typ := buf[1]
		buf = buf[2:]
		if adlen < 0 || len(buf) < adlen {
			break
		}
		ads = append(ads, AD{Type: typ, Data: buf[:adlen]})
		buf = buf[adlen:]
	}
	return ads
}

// Manufacturer returns the company id and the payload of a manufacturer
// specific structure
func (ad AD) Manufacturer() (uint16, []byte, bool) {
	if ad.Type != ADManufacturer || len(ad.Data) < manufacturerLen {
		return 0, nil, false
	}
	return uint16(ad.Data[0]) | uint16(ad.Data[1])<<8, ad.Data[manufacturerLen:], true
}

// Source delivers advertising reports
type Source interface {
	Frames() <-chan Frame
}

// Refresher is implemented by sources that need a periodic restart of the
// scan
type Refresher interface {
	Refresh() error
}

// ContinuousScanner is implemented by sources supporting a continuous scan
// mode
type ContinuousScanner interface {
	SetContinuous(on bool)
}

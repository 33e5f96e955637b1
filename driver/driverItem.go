package driver

import (
	"path/filepath"
	"regexp"
	"strings"

	"gitlab.ubiant.me/go-shared/ble-sensors/item"
)

// DriverItem is a register table ready to be applied to frames
type DriverItem struct {
	Name  string
	Regs  []Reg
	HDesc *HardwareDescriptor
}

var itemPathRegex = regexp.MustCompile("[^a-zA-Z0-9_]")

var basicTypes = map[string]BasicType{
	"un8":  Un8,
	"sn8":  Sn8,
	"un16": Un16,
	"sn16": Sn16,
	"un32": Un32,
	"sn32": Sn32,
}

// ParseBasicType parses "un8", "sn16", ...
func ParseBasicType(s string) (BasicType, bool) {
	t, ok := basicTypes[strings.ToLower(s)]
	return t, ok
}

func initDriverItem(hd HardwareDescriptor) (*DriverItem, bool) {
	driver := &DriverItem{Name: hd.Name, HDesc: &hd}

	for _, rd := range hd.Registers {
		typ, ok := ParseBasicType(rd.Type)
		if !ok {
			log.Warning("Register", rd.Name, "of", hd.Name, "has an unknown type:", rd.Type)
			return nil, false
		}
		if rd.Name == "" {
			log.Warning("Register without name in", hd.Name)
			return nil, false
		}

		reg := Reg{
			Type:      typ,
			Offset:    rd.Offset,
			Shift:     rd.Shift,
			Bits:      rd.Bits,
			BigEndian: rd.BigEndian,
			Scale:     rd.Scale,
			Bias:      rd.Bias,
			Name:      rd.Name,
			Format:    item.Format{Decimals: rd.Decimals, Unit: rd.Unit},
		}
		if rd.Invalid != nil {
			reg.Inval = *rd.Invalid
			reg.HasInval = true
		}
		if rd.Formula != nil {
			reg.Xlate = NewTranslation(rd.Formula).Xlate
		}

		driver.Regs = append(driver.Regs, reg)
	}

	return driver, true
}

func itemPath(dir string, name string) string {
	name = itemPathRegex.ReplaceAllString(name, "_")
	return filepath.Join(dir, name+".json")
}

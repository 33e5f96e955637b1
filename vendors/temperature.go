package vendors

import (
	"gitlab.ubiant.me/go-shared/ble-sensors/registry"
	"gitlab.ubiant.me/go-shared/ble-sensors/settings"
)

// TemperatureClass is the class of environmental sensors
var TemperatureClass = &registry.Class{
	Role: "temperature",
	Settings: []registry.Setting{
		{Name: "TemperatureType", Props: settings.IntProps(2, 0, 6)},
	},
}

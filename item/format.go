package item

import "strconv"

// Format describes how a value is rendered for display
type Format struct {
	Decimals int
	Unit     string
}

// Display formats shared by the sensor tables
var (
	UnitNone           = Format{}
	UnitCelsius1Dec    = Format{Decimals: 1, Unit: "C"}
	UnitPercentage     = Format{Decimals: 0, Unit: "%"}
	UnitHectoPascal    = Format{Decimals: 0, Unit: "hPa"}
	UnitG2Dec          = Format{Decimals: 2, Unit: "g"}
	UnitVolt2Dec       = Format{Decimals: 2, Unit: "V"}
	UnitDBm            = Format{Decimals: 0, Unit: "dBm"}
	UnitCm             = Format{Decimals: 1, Unit: "cm"}
	UnitM3             = Format{Decimals: 3, Unit: "m3"}
	UnitDegree         = Format{Decimals: 0, Unit: "Deg"}
	UnitWatt           = Format{Decimals: 0, Unit: "W"}
	UnitKiloWattHour   = Format{Decimals: 2, Unit: "kWh"}
	UnitIrradiance1Dec = Format{Decimals: 1, Unit: "W/m2"}
	UnitMinutes        = Format{Decimals: 0, Unit: "min"}
)

// Text renders v with the format, "" for an invalid value
func (f Format) Text(v Value) string {
	if !v.Valid() {
		return ""
	}

	var s string
	switch v.Kind() {
	case KindFloat:
		fv, _ := v.Float()
		s = strconv.FormatFloat(fv, 'f', f.Decimals, 64)
	default:
		s = v.String()
	}

	if f.Unit == "" {
		return s
	}
	return s + f.Unit
}

package driver

// HardwareDescriptor describes a sensor whose frame layout is pure data. It is
// read from a JSON file in the drivers directory.
type HardwareDescriptor struct {
	Name           string               `json:"name"`
	ManufacturerID uint16               `json:"manufacturerId"`
	Length         int                  `json:"length"`
	Class          string               `json:"class,omitempty"`
	TopDown        bool                 `json:"topDown,omitempty"`
	Role           string               `json:"role,omitempty"`
	Prefix         string               `json:"prefix"`
	Label          string               `json:"label,omitempty"`
	ProductID      uint16               `json:"productId"`
	DevInstance    int                  `json:"devInstance,omitempty"`
	Registers      []RegisterDescriptor `json:"registers"`
}

// RegisterDescriptor is the JSON form of a Reg
type RegisterDescriptor struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Offset    int      `json:"offset"`
	Shift     int      `json:"shift,omitempty"`
	Bits      int      `json:"bits,omitempty"`
	BigEndian bool     `json:"bigEndian,omitempty"`
	Scale     float64  `json:"scale,omitempty"`
	Bias      float64  `json:"bias,omitempty"`
	Invalid   *uint64  `json:"invalid,omitempty"`
	Unit      string   `json:"unit,omitempty"`
	Decimals  int      `json:"decimals,omitempty"`
	Formula   *Formula `json:"formula,omitempty"`
}

// Formula struct for a formula
type Formula struct {
	Map string   `json:"map"`
	A   *float64 `json:"a,omitempty"`
}

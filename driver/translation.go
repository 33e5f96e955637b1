package driver

import (
	"strconv"
	"strings"

	"gitlab.ubiant.me/go-shared/ble-sensors/item"
)

// Translation maps raw register values through a value table and a
// coefficient. It is the data-driven form of an XlateFunc.
type Translation struct {
	Map map[uint64]item.Value
	A   float64
}

// NewTranslation builds a translation from a formula, nil formula means identity
func NewTranslation(formula *Formula) *Translation {
	t := &Translation{}
	if formula == nil {
		t.init("", nil)
	} else {
		t.init(formula.Map, formula.A)
	}
	return t
}

func (t *Translation) init(mapping string, a *float64) {
	if a != nil {
		t.A = *a
		log.Debug("Translation formula A:", t.A)
	} else {
		t.A = 1
	}

	t.Map = nil
	if mapping == "" {
		return
	}

	t.Map = make(map[uint64]item.Value)
	for _, tupleRaw := range strings.Split(mapping, ";") {
		tuple := strings.ReplaceAll(tupleRaw, "(", "")
		tuple = strings.ReplaceAll(tuple, ")", "")
		keyValue := strings.Split(tuple, ",")
		if len(keyValue) != 2 {
			log.Info("translation formula tuple not valid:", tupleRaw)
			continue
		}

		key, err := strconv.ParseUint(strings.TrimSpace(keyValue[0]), 0, 32)
		if err != nil {
			log.Info("translation formula key not valid:", tupleRaw)
			continue
		}

		t.Map[key] = convert(strings.TrimSpace(keyValue[1]))
	}
}

func convert(data string) item.Value {
	i, err := strconv.ParseInt(data, 10, 64)
	if err == nil {
		return item.Int(i)
	}

	f, err := strconv.ParseFloat(data, 64)
	if err == nil {
		return item.Float(f)
	}

	b, err := strconv.ParseBool(data)
	if err == nil {
		if b {
			return item.Int(1)
		}
		return item.Int(0)
	}

	return item.String(data)
}

// Translate converts a raw value. A raw value missing from a non-empty map
// has no reading.
func (t *Translation) Translate(raw uint64) (item.Value, bool) {
	value := item.Uint(raw)

	if len(t.Map) > 0 {
		v, ok := t.Map[raw]
		if !ok {
			log.Warning("No translation found for data:", raw, "with the map:", t.Map)
			return item.Value{}, false
		}
		value = v
	}

	if t.A != 1 {
		value = t.translateCoeff(value)
	}

	return value, true
}

func (t *Translation) translateCoeff(value item.Value) item.Value {
	f, ok := value.Float()
	if !ok {
		log.Warning("Value", value, "not able to use coeff A", t.A)
		return value
	}
	return item.Float(f * t.A)
}

// Xlate adapts the translation to a register XlateFunc
func (t *Translation) Xlate(root *item.Item, raw uint64) (item.Value, bool) {
	return t.Translate(raw)
}

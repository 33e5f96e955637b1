// Package alarm evaluates threshold alarms with hysteresis on item trees.
package alarm

import (
	"gitlab.ubiant.me/go-shared/ble-sensors/item"
)

// Alarm watches one item of a device tree
type Alarm struct {
	Name string
	// Item is the path of the monitored item below the device root
	Item string
	// High raises the alarm above the level, otherwise below it
	High  bool
	Level float64
	// Hyst is the distance the value must travel back past the level
	// before an active alarm clears
	Hyst float64
	// LevelFunc replaces Level when set
	LevelFunc func(root *item.Item, a *Alarm) float64
	// Config publishes the state as Alarms/<Name>/State
	Config bool
}

// Path returns the path of the state item
func (a *Alarm) Path() string {
	if a.Config {
		return "Alarms/" + a.Name + "/State"
	}
	return "Alarms/" + a.Name
}

func (a *Alarm) level(root *item.Item, active bool) float64 {
	level := a.Level
	if a.LevelFunc != nil {
		level = a.LevelFunc(root, a)
	}
	if !active {
		return level
	}
	if a.High {
		return level - a.Hyst
	}
	return level + a.Hyst
}

// Evaluate computes the next state from the previous one. ok is false when
// the monitored item is absent or has no reading.
func Evaluate(a *Alarm, root *item.Item, active bool) (next bool, ok bool) {
	mon := root.Get(a.Item)
	if mon == nil {
		return active, false
	}
	v, valid := mon.Value().Float()
	if !valid {
		return active, false
	}

	level := a.level(root, active)
	switch {
	case a.High && active:
		return v >= level, true
	case a.High:
		return v > level, true
	case active:
		return v <= level, true
	}
	return v < level, true
}

// Update evaluates the alarms in order and writes their state items. An
// alarm whose monitored item has no reading is left untouched.
func Update(root *item.Item, alarms ...*Alarm) {
	for _, a := range alarms {
		st := root.Get(a.Path())
		active := false
		if st != nil {
			n, _ := st.Value().Int()
			active = n != 0
		}

		next, ok := Evaluate(a, root, active)
		if !ok {
			continue
		}
		if st == nil {
			st = root.GetOrCreate(a.Path())
		}
		var n uint64
		if next {
			n = 1
		}
		st.SetOwner(item.Uint(n))
	}
}

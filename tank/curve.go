package tank

import (
	"strconv"
	"strings"

	"gitlab.ubiant.me/go-shared/ble-sensors/pkg/mathx"
)

// MaxPoints is the number of control points a curve may hold besides its
// anchors
const MaxPoints = 10

// Point maps a raw fill fraction to a corrected one
type Point struct {
	Raw   float64
	Level float64
}

// Curve is a piecewise linear map of [0,1] onto itself through (0,0), the
// control points and (1,1). The zero Curve is the identity.
type Curve struct {
	points []Point
}

// NewCurve validates the control points. The anchors may be given and are
// dropped. Any other point must lie strictly inside the unit square and
// the points must increase strictly in both coordinates. On failure the
// identity curve is returned with false.
func NewCurve(pts []Point) (Curve, bool) {
	var inner []Point
	for i, p := range pts {
		if (i == 0 && p == Point{0, 0}) || (i == len(pts)-1 && p == Point{1, 1}) {
			continue
		}
		if p.Raw <= 0 || p.Raw >= 1 || p.Level <= 0 || p.Level >= 1 {
			return Curve{}, false
		}
		if n := len(inner); n > 0 && (p.Raw <= inner[n-1].Raw || p.Level <= inner[n-1].Level) {
			return Curve{}, false
		}
		inner = append(inner, p)
	}
	if len(inner) > MaxPoints {
		return Curve{}, false
	}
	return Curve{points: inner}, true
}

// ParseShape reads the "raw%:level%,raw%:level%" setting form. An empty
// string is the identity.
func ParseShape(s string) (Curve, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Curve{}, true
	}

	var pts []Point
	for _, pair := range strings.Split(s, ",") {
		r, l, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return Curve{}, false
		}
		raw, err := strconv.ParseFloat(strings.TrimSpace(r), 64)
		if err != nil {
			return Curve{}, false
		}
		level, err := strconv.ParseFloat(strings.TrimSpace(l), 64)
		if err != nil {
			return Curve{}, false
		}
		pts = append(pts, Point{raw / 100, level / 100})
	}
	return NewCurve(pts)
}

// Identity reports whether the curve passes fractions through unchanged
func (c Curve) Identity() bool { return len(c.points) == 0 }

// Points returns the control points without the anchors
func (c Curve) Points() []Point {
	out := make([]Point, len(c.points))
	copy(out, c.points)
	return out
}

// Apply maps a fraction in [0,1]
func (c Curve) Apply(f float64) float64 {
	f = mathx.Clamp(f, 0, 1)
	prev := Point{0, 0}
	for _, p := range c.points {
		if f <= p.Raw {
			return mathx.Lerp(f, prev.Raw, p.Raw, prev.Level, p.Level)
		}
		prev = p
	}
	return mathx.Lerp(f, prev.Raw, 1, prev.Level, 1)
}

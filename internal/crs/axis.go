package crs

import (
	"fmt"
	"strings"

	"github.com/pspoerri/crstransform/internal/coord"
)

// Orientation is the direction a coordinate axis points to.
type Orientation int

const (
	Other Orientation = iota
	North
	South
	East
	West
	Up
	Down
)

var orientationNames = [...]string{"OTHER", "NORTH", "SOUTH", "EAST", "WEST", "UP", "DOWN"}

func (o Orientation) String() string {
	if int(o) < len(orientationNames) {
		return orientationNames[o]
	}
	return fmt.Sprintf("Orientation(%d)", int(o))
}

// ParseOrientation accepts the WKT orientation keywords, case-insensitively.
func ParseOrientation(s string) (Orientation, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range orientationNames {
		if n == u {
			return Orientation(i), nil
		}
	}
	return Other, fmt.Errorf("unknown axis orientation %q", s)
}

// family groups opposite directions: 1 north/south, 2 east/west, 3 up/down.
func (o Orientation) family() int {
	switch o {
	case North, South:
		return 1
	case East, West:
		return 2
	case Up, Down:
		return 3
	}
	return 0
}

// Sign is -1 for SOUTH, WEST and DOWN and +1 otherwise.
func (o Orientation) Sign() float64 {
	switch o {
	case South, West, Down:
		return -1
	}
	return 1
}

// IsNorthing reports whether the axis measures along the meridian.
func (o Orientation) IsNorthing() bool { return o.family() == 1 }

// IsEasting reports whether the axis measures along the parallel.
func (o Orientation) IsEasting() bool { return o.family() == 2 }

// IsVertical reports whether the axis measures height or depth.
func (o Orientation) IsVertical() bool { return o.family() == 3 }

// Perpendicular reports whether two orientations form a horizontal
// north/east pair and may therefore be swapped.
func Perpendicular(a, b Orientation) bool {
	fa, fb := a.family(), b.family()
	return (fa == 1 && fb == 2) || (fa == 2 && fb == 1)
}

// UnitKind separates angular from linear units.
type UnitKind int

const (
	Linear UnitKind = iota
	Angular
)

// Unit converts axis values to the base unit of its kind: radians for
// angular units, metres for linear ones.
type Unit struct {
	Name   string
	Kind   UnitKind
	Factor float64
}

var (
	Metre        = Unit{Name: "metre", Kind: Linear, Factor: 1}
	Foot         = Unit{Name: "foot", Kind: Linear, Factor: 0.3048}
	USSurveyFoot = Unit{Name: "US survey foot", Kind: Linear, Factor: 0.3048006096012192}
	Degree       = Unit{Name: "degree", Kind: Angular, Factor: coord.DegToRad}
	Radian       = Unit{Name: "radian", Kind: Angular, Factor: 1}
	Grad         = Unit{Name: "grad", Kind: Angular, Factor: 0.015707963267948967}
	ArcSecond    = Unit{Name: "arc-second", Kind: Angular, Factor: coord.ArcSecToRad}
)

func (u Unit) equal(o Unit) bool {
	return u.Kind == o.Kind && floatEqual(u.Factor, o.Factor)
}

func (u Unit) String() string { return u.Name }

// Axis is one immutable coordinate axis.
type Axis struct {
	Name        string
	Orientation Orientation
	Unit        Unit
}

func (a Axis) String() string {
	return fmt.Sprintf("%s %s [%s]", a.Name, a.Orientation, a.Unit)
}

// sameDirection compares orientation and unit, ignoring the name.
func (a Axis) sameDirection(b Axis) bool {
	return a.Orientation == b.Orientation && a.Unit.equal(b.Unit)
}

// checkOrthogonal rejects axis sets that repeat a direction family.
func checkOrthogonal(axes []Axis) error {
	seen := map[int]string{}
	for _, a := range axes {
		f := a.Orientation.family()
		if f == 0 {
			continue
		}
		if prev, ok := seen[f]; ok {
			return fmt.Errorf("axes %q and %q are not orthogonal", prev, a.Name)
		}
		seen[f] = a.Name
	}
	return nil
}

// AxisPermutation returns perm such that to[i] measures the same quantity
// as from[perm[i]]. It fails when the axis sets differ in anything but
// their order.
func AxisPermutation(from, to []Axis) ([]int, bool) {
	if len(from) != len(to) {
		return nil, false
	}
	perm := make([]int, len(to))
	used := make([]bool, len(from))
	for i, t := range to {
		found := false
		for j, f := range from {
			if !used[j] && f.sameDirection(t) {
				perm[i] = j
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return perm, true
}

// Package crs models coordinate reference systems: axes, datums and the
// closed set of CRS kinds the transformer understands. Values are
// immutable once constructed and are shared by pointer.
package crs

import (
	"fmt"
	"strings"

	"github.com/pspoerri/crstransform/internal/coord"
)

// Kind is the variant of a CRS.
type Kind int

const (
	KindUnknown Kind = iota
	Geographic
	Projected
	Geocentric
	Vertical
	Compound
)

func (k Kind) String() string {
	switch k {
	case Geographic:
		return "Geographic"
	case Projected:
		return "Projected"
	case Geocentric:
		return "Geocentric"
	case Vertical:
		return "Vertical"
	case Compound:
		return "Compound"
	}
	return "Unknown"
}

// CRS is a coordinate reference system. Which fields are populated depends
// on Kind:
//
//	Geographic  datum, 2 or 3 axes (lon/lat and optional ellipsoidal height)
//	Projected   base (2D geographic), projection, 2 axes
//	Geocentric  datum, 3 axes
//	Vertical    1 axis
//	Compound    horizontal (geographic or projected), vertical, default height
type CRS struct {
	name string
	code string
	kind Kind
	axes []Axis

	datum      *Datum
	base       *CRS
	projection coord.Projection

	horizontal    *CRS
	vertical      *CRS
	defaultHeight float64
}

// DefaultGeographicAxes are the WKT defaults for GEOGCS.
func DefaultGeographicAxes() []Axis {
	return []Axis{
		{Name: "Lon", Orientation: East, Unit: Degree},
		{Name: "Lat", Orientation: North, Unit: Degree},
	}
}

// DefaultProjectedAxes are the WKT defaults for PROJCS.
func DefaultProjectedAxes() []Axis {
	return []Axis{
		{Name: "X", Orientation: East, Unit: Metre},
		{Name: "Y", Orientation: North, Unit: Metre},
	}
}

// DefaultGeocentricAxes are the WKT defaults for GEOCCS.
func DefaultGeocentricAxes() []Axis {
	return []Axis{
		{Name: "X", Orientation: Other, Unit: Metre},
		{Name: "Y", Orientation: East, Unit: Metre},
		{Name: "Z", Orientation: North, Unit: Metre},
	}
}

// NewGeographic builds a geographic CRS. Two angular axes are required; a
// third linear UP or DOWN axis makes it a 3D (ellipsoidal height) CRS.
func NewGeographic(name, code string, datum *Datum, axes ...Axis) (*CRS, error) {
	if datum == nil {
		return nil, fmt.Errorf("geographic CRS %q: missing datum", name)
	}
	if err := datum.Ellipsoid.Validate(); err != nil {
		return nil, fmt.Errorf("geographic CRS %q: %w", name, err)
	}
	if len(axes) == 0 {
		axes = DefaultGeographicAxes()
	}
	if len(axes) != 2 && len(axes) != 3 {
		return nil, fmt.Errorf("geographic CRS %q: need 2 or 3 axes, got %d", name, len(axes))
	}
	for i, a := range axes[:2] {
		if a.Unit.Kind != Angular {
			return nil, fmt.Errorf("geographic CRS %q: axis %d (%s) needs an angular unit", name, i, a.Name)
		}
		if a.Orientation.family() != 1 && a.Orientation.family() != 2 {
			return nil, fmt.Errorf("geographic CRS %q: axis %d (%s) must be horizontal, got %s", name, i, a.Name, a.Orientation)
		}
	}
	if len(axes) == 3 && (!axes[2].Orientation.IsVertical() || axes[2].Unit.Kind != Linear) {
		return nil, fmt.Errorf("geographic CRS %q: third axis must be a linear height", name)
	}
	if err := checkOrthogonal(axes); err != nil {
		return nil, fmt.Errorf("geographic CRS %q: %w", name, err)
	}
	return &CRS{name: name, code: code, kind: Geographic, axes: cloneAxes(axes), datum: datum}, nil
}

// NewProjected builds a projected CRS on a 2D geographic base.
func NewProjected(name, code string, base *CRS, projection coord.Projection, axes ...Axis) (*CRS, error) {
	if base == nil || base.kind != Geographic || base.Dimension() != 2 {
		return nil, fmt.Errorf("projected CRS %q: base must be a 2D geographic CRS", name)
	}
	if projection == nil {
		return nil, fmt.Errorf("projected CRS %q: missing projection", name)
	}
	if len(axes) == 0 {
		axes = DefaultProjectedAxes()
	}
	if len(axes) != 2 {
		return nil, fmt.Errorf("projected CRS %q: need 2 axes, got %d", name, len(axes))
	}
	for i, a := range axes {
		if a.Unit.Kind != Linear {
			return nil, fmt.Errorf("projected CRS %q: axis %d (%s) needs a linear unit", name, i, a.Name)
		}
		if a.Orientation.IsVertical() {
			return nil, fmt.Errorf("projected CRS %q: axis %d (%s) must be horizontal", name, i, a.Name)
		}
	}
	if err := checkOrthogonal(axes); err != nil {
		return nil, fmt.Errorf("projected CRS %q: %w", name, err)
	}
	return &CRS{
		name: name, code: code, kind: Projected, axes: cloneAxes(axes),
		datum: base.datum, base: base, projection: projection,
	}, nil
}

// NewGeocentric builds an earth-centred cartesian CRS.
func NewGeocentric(name, code string, datum *Datum, axes ...Axis) (*CRS, error) {
	if datum == nil {
		return nil, fmt.Errorf("geocentric CRS %q: missing datum", name)
	}
	if len(axes) == 0 {
		axes = DefaultGeocentricAxes()
	}
	if len(axes) != 3 {
		return nil, fmt.Errorf("geocentric CRS %q: need 3 axes, got %d", name, len(axes))
	}
	for i, a := range axes {
		if a.Unit.Kind != Linear {
			return nil, fmt.Errorf("geocentric CRS %q: axis %d (%s) needs a linear unit", name, i, a.Name)
		}
	}
	if err := checkOrthogonal(axes); err != nil {
		return nil, fmt.Errorf("geocentric CRS %q: %w", name, err)
	}
	return &CRS{name: name, code: code, kind: Geocentric, axes: cloneAxes(axes), datum: datum}, nil
}

// NewVertical builds a one-dimensional height or depth CRS.
func NewVertical(name, code string, axis Axis) (*CRS, error) {
	if !axis.Orientation.IsVertical() || axis.Unit.Kind != Linear {
		return nil, fmt.Errorf("vertical CRS %q: axis must be a linear UP or DOWN axis", name)
	}
	return &CRS{name: name, code: code, kind: Vertical, axes: []Axis{axis}}, nil
}

// NewCompound combines a 2D horizontal CRS with a vertical CRS. Heights are
// treated as ellipsoidal heights on the horizontal datum; defaultHeight is
// used when a coordinate carries no height.
func NewCompound(name, code string, horizontal, vertical *CRS, defaultHeight float64) (*CRS, error) {
	if horizontal == nil || (horizontal.kind != Geographic && horizontal.kind != Projected) || horizontal.Dimension() != 2 {
		return nil, fmt.Errorf("compound CRS %q: horizontal component must be a 2D geographic or projected CRS", name)
	}
	if vertical == nil || vertical.kind != Vertical {
		return nil, fmt.Errorf("compound CRS %q: second component must be a vertical CRS", name)
	}
	axes := append(cloneAxes(horizontal.axes), vertical.axes[0])
	return &CRS{
		name: name, code: code, kind: Compound, axes: axes,
		datum: horizontal.datum, horizontal: horizontal, vertical: vertical,
		defaultHeight: defaultHeight,
	}, nil
}

func cloneAxes(axes []Axis) []Axis {
	out := make([]Axis, len(axes))
	copy(out, axes)
	return out
}

func (c *CRS) Name() string { return c.name }
func (c *CRS) Code() string { return c.code }
func (c *CRS) Kind() Kind   { return c.kind }

// Axes returns a copy of the axes in declaration order.
func (c *CRS) Axes() []Axis { return cloneAxes(c.axes) }

// Axis returns the i-th axis.
func (c *CRS) Axis(i int) Axis { return c.axes[i] }

// Dimension is the number of axes.
func (c *CRS) Dimension() int { return len(c.axes) }

// Datum is the geodetic datum; nil for vertical CRSs.
func (c *CRS) Datum() *Datum { return c.datum }

// Base is the geographic base of a projected CRS.
func (c *CRS) Base() *CRS { return c.base }

// Projection is set for projected CRSs.
func (c *CRS) Projection() coord.Projection { return c.projection }

// Horizontal is the horizontal component of a compound CRS.
func (c *CRS) Horizontal() *CRS { return c.horizontal }

// VerticalCRS is the vertical component of a compound CRS.
func (c *CRS) VerticalCRS() *CRS { return c.vertical }

// DefaultHeight is the height assumed for compound coordinates without one.
func (c *CRS) DefaultHeight() float64 { return c.defaultHeight }

// Identifier is the code when set, otherwise the name.
func (c *CRS) Identifier() string {
	if c.code != "" {
		return c.code
	}
	return c.name
}

func (c *CRS) String() string {
	var axes []string
	for _, a := range c.axes {
		axes = append(axes, a.Orientation.String())
	}
	return fmt.Sprintf("%s %s (%s) [%s]", c.kind, c.Identifier(), c.name, strings.Join(axes, ", "))
}

// WGS84 returns the geographic WGS84 CRS in authority axis order
// (latitude, longitude).
func WGS84() *CRS {
	c, _ := NewGeographic("WGS 84", "EPSG:4326", WGS84Datum,
		Axis{Name: "Lat", Orientation: North, Unit: Degree},
		Axis{Name: "Lon", Orientation: East, Unit: Degree})
	return c
}

package crs

import (
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/pspoerri/crstransform/internal/coord"
)

func floatEqual(a, b float64) bool {
	return scalar.EqualWithinAbsOrRel(a, b, 1e-12, 1e-12)
}

// PrimeMeridian anchors longitude zero. Longitude is stored in radians
// east of Greenwich; Unit records the unit it was declared in.
type PrimeMeridian struct {
	Name      string
	Code      string
	Longitude float64
	Unit      Unit
}

var (
	Greenwich = PrimeMeridian{Name: "Greenwich", Code: "EPSG:8901", Unit: Degree}
	Paris     = PrimeMeridian{Name: "Paris", Code: "EPSG:8903", Longitude: 2.33722917 * coord.DegToRad, Unit: Degree}
)

// Equal compares the longitude.
func (p PrimeMeridian) Equal(o PrimeMeridian) bool {
	return floatEqual(p.Longitude, o.Longitude)
}

// Datum is a geodetic datum: an ellipsoid, a prime meridian and the
// Helmert shift that relates it to WGS84.
type Datum struct {
	Name          string
	Code          string
	Ellipsoid     coord.Ellipsoid
	PrimeMeridian PrimeMeridian
	ToWGS84       coord.Helmert
}

// WGS84Datum is the World Geodetic System 1984.
var WGS84Datum = &Datum{
	Name:          "WGS_1984",
	Code:          "EPSG:6326",
	Ellipsoid:     coord.WGS84,
	PrimeMeridian: Greenwich,
}

// Equal reports whether two datums can be used interchangeably. Datums
// with the same non-empty code are equal; otherwise the ellipsoid, prime
// meridian and shift to WGS84 must agree.
func (d *Datum) Equal(o *Datum) bool {
	if d == o {
		return true
	}
	if d == nil || o == nil {
		return false
	}
	if d.Code != "" && d.Code == o.Code {
		return true
	}
	return floatEqual(d.Ellipsoid.SemiMajorAxis, o.Ellipsoid.SemiMajorAxis) &&
		floatEqual(d.Ellipsoid.InverseFlattening, o.Ellipsoid.InverseFlattening) &&
		d.PrimeMeridian.Equal(o.PrimeMeridian) &&
		d.ToWGS84.Equal(o.ToWGS84)
}

package coord

import (
	"fmt"
	"math"
)

// DegToRad converts decimal degrees to radians. Angular parameters are
// multiplied by it exactly once, when a definition is constructed.
const DegToRad = math.Pi / 180.0

// RadToDeg converts radians to decimal degrees.
const RadToDeg = 180.0 / math.Pi

// ArcSecToRad converts arc-seconds to radians.
const ArcSecToRad = 4.84813681109535993589914102357e-6

// Ellipsoid is a biaxial ellipsoid of revolution. InverseFlattening is 0
// for a sphere.
type Ellipsoid struct {
	Name              string
	Code              string
	SemiMajorAxis     float64 // metres
	InverseFlattening float64
}

// Well-known ellipsoids.
var (
	WGS84             = Ellipsoid{Name: "WGS 84", Code: "EPSG:7030", SemiMajorAxis: 6378137, InverseFlattening: 298.257223563}
	GRS80             = Ellipsoid{Name: "GRS 1980", Code: "EPSG:7019", SemiMajorAxis: 6378137, InverseFlattening: 298.257222101}
	Bessel1841        = Ellipsoid{Name: "Bessel 1841", Code: "EPSG:7004", SemiMajorAxis: 6377397.155, InverseFlattening: 299.1528128}
	Airy1830          = Ellipsoid{Name: "Airy 1830", Code: "EPSG:7001", SemiMajorAxis: 6377563.396, InverseFlattening: 299.3249646}
	Clarke1866        = Ellipsoid{Name: "Clarke 1866", Code: "EPSG:7008", SemiMajorAxis: 6378206.4, InverseFlattening: 294.9786982}
	International1924 = Ellipsoid{Name: "International 1924", Code: "EPSG:7022", SemiMajorAxis: 6378388, InverseFlattening: 297}
	Krassowsky1940    = Ellipsoid{Name: "Krassowsky 1940", Code: "EPSG:7024", SemiMajorAxis: 6378245, InverseFlattening: 298.3}
)

// Sphere returns a spherical ellipsoid with the given radius.
func Sphere(name string, radius float64) Ellipsoid {
	return Ellipsoid{Name: name, SemiMajorAxis: radius}
}

// Validate reports whether the parameters describe a usable ellipsoid.
func (e Ellipsoid) Validate() error {
	if !(e.SemiMajorAxis > 0) || math.IsInf(e.SemiMajorAxis, 0) {
		return fmt.Errorf("ellipsoid %q: semi-major axis must be positive, got %v", e.Name, e.SemiMajorAxis)
	}
	if e.InverseFlattening < 0 || math.IsNaN(e.InverseFlattening) || (e.InverseFlattening > 0 && e.InverseFlattening <= 1) {
		return fmt.Errorf("ellipsoid %q: invalid inverse flattening %v", e.Name, e.InverseFlattening)
	}
	return nil
}

// Flattening returns f = 1/invf, or 0 for a sphere.
func (e Ellipsoid) Flattening() float64 {
	if e.InverseFlattening == 0 {
		return 0
	}
	return 1 / e.InverseFlattening
}

// Eccentricity2 returns the squared first eccentricity.
func (e Ellipsoid) Eccentricity2() float64 {
	f := e.Flattening()
	return 2*f - f*f
}

// Eccentricity returns the first eccentricity.
func (e Ellipsoid) Eccentricity() float64 {
	return math.Sqrt(e.Eccentricity2())
}

// SemiMinorAxis returns b = a(1-f).
func (e Ellipsoid) SemiMinorAxis() float64 {
	return e.SemiMajorAxis * (1 - e.Flattening())
}

// IsSphere reports whether the flattening is zero.
func (e Ellipsoid) IsSphere() bool {
	return e.InverseFlattening == 0
}

// primeVerticalRadius returns N(phi).
func (e Ellipsoid) primeVerticalRadius(sinPhi float64) float64 {
	return e.SemiMajorAxis / math.Sqrt(1-e.Eccentricity2()*sinPhi*sinPhi)
}

// ToGeocentric converts geodetic longitude/latitude (radians) and
// ellipsoidal height (metres) to earth-centred cartesian coordinates.
func (e Ellipsoid) ToGeocentric(lam, phi, h float64) (x, y, z float64) {
	sinPhi, cosPhi := math.Sincos(phi)
	sinLam, cosLam := math.Sincos(lam)
	n := e.primeVerticalRadius(sinPhi)
	x = (n + h) * cosPhi * cosLam
	y = (n + h) * cosPhi * sinLam
	z = (n*(1-e.Eccentricity2()) + h) * sinPhi
	return
}

const (
	geodeticMaxIter = 30
	geodeticEps     = 1e-14
)

// ToGeodetic converts earth-centred cartesian coordinates back to geodetic
// longitude/latitude (radians) and ellipsoidal height. Latitude is refined
// by fixed-point iteration until it changes less than 1e-14 rad.
func (e Ellipsoid) ToGeodetic(x, y, z float64) (lam, phi, h float64) {
	es := e.Eccentricity2()
	p := math.Hypot(x, y)

	if p < 1e-9 {
		// On the rotation axis: longitude is arbitrary, use 0.
		b := e.SemiMinorAxis()
		switch {
		case z > 0:
			return 0, math.Pi / 2, z - b
		case z < 0:
			return 0, -math.Pi / 2, -z - b
		default:
			return 0, 0, -b
		}
	}

	lam = math.Atan2(y, x)
	phi = math.Atan2(z, p*(1-es))
	for i := 0; i < geodeticMaxIter; i++ {
		n := e.primeVerticalRadius(math.Sin(phi))
		h = p/math.Cos(phi) - n
		next := math.Atan2(z, p*(1-es*n/(n+h)))
		if math.Abs(next-phi) < geodeticEps {
			phi = next
			break
		}
		phi = next
	}

	sinPhi, cosPhi := math.Sincos(phi)
	n := e.primeVerticalRadius(sinPhi)
	if math.Abs(cosPhi) > 1e-10 {
		h = p/cosPhi - n
	} else {
		h = z/sinPhi - n*(1-es)
	}
	return lam, phi, h
}

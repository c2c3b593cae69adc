package coord

import "math"

const (
	// EarthCircumference is the WGS84 equatorial circumference in metres.
	EarthCircumference = 40075016.685578488
	// OriginShift is half the equatorial circumference, the Pseudo-Mercator
	// easting of the antimeridian.
	OriginShift = EarthCircumference / 2.0
)

func init() {
	Register(Mercator1SP, newMercator)
	Register(PseudoMercator, newPseudoMercator)
}

// mercator is the ellipsoidal normal-aspect Mercator (EPSG method 9804).
type mercator struct {
	base
	a, e float64
}

func newMercator(e Ellipsoid, p Params) (Projection, error) {
	return &mercator{
		base: base{kind: Mercator1SP, ell: e, params: p},
		a:    e.SemiMajorAxis,
		e:    e.Eccentricity(),
	}, nil
}

func (m *mercator) Forward(lam, phi float64) (float64, float64, error) {
	p := m.params
	if math.Abs(math.Abs(phi)-halfPi) <= epsLat || math.Abs(phi) > halfPi {
		return 0, 0, outOfDomain(m.kind, "latitude %.6f° is not finite in Mercator", phi*RadToDeg)
	}
	k := m.a * p.ScaleFactor
	x := p.FalseEasting + k*adjlon(lam-p.CentralMeridian)
	y := p.FalseNorthing - k*math.Log(tsfn(m.e, phi))
	return x, y, nil
}

func (m *mercator) Inverse(x, y float64) (float64, float64, error) {
	p := m.params
	k := m.a * p.ScaleFactor
	phi, ok := phi2(m.e, math.Exp(-(y-p.FalseNorthing)/k))
	if !ok {
		return 0, 0, outOfDomain(m.kind, "latitude did not converge for northing %.3f", y)
	}
	return adjlon((x-p.FalseEasting)/k + p.CentralMeridian), phi, nil
}

// pseudoMercator applies the spherical Mercator formulas to ellipsoidal
// coordinates, as web maps do (EPSG:3857). It is not conformal on the
// ellipsoid.
type pseudoMercator struct {
	base
	r float64
}

func newPseudoMercator(e Ellipsoid, p Params) (Projection, error) {
	return &pseudoMercator{
		base: base{kind: PseudoMercator, ell: e, params: p},
		r:    e.SemiMajorAxis,
	}, nil
}

func (w *pseudoMercator) Forward(lam, phi float64) (float64, float64, error) {
	p := w.params
	if math.Abs(math.Abs(phi)-halfPi) <= epsLat || math.Abs(phi) > halfPi {
		return 0, 0, outOfDomain(w.kind, "latitude %.6f° is not finite in Mercator", phi*RadToDeg)
	}
	x := p.FalseEasting + w.r*adjlon(lam-p.CentralMeridian)
	y := p.FalseNorthing + w.r*math.Log(math.Tan(quartPi+phi/2))
	return x, y, nil
}

func (w *pseudoMercator) Inverse(x, y float64) (float64, float64, error) {
	p := w.params
	lam := (x-p.FalseEasting)/w.r + p.CentralMeridian
	phi := 2*math.Atan(math.Exp((y-p.FalseNorthing)/w.r)) - halfPi
	return adjlon(lam), phi, nil
}

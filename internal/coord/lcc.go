package coord

import (
	"fmt"
	"math"
)

func init() {
	Register(LambertConformalConic1SP, newLambertConformalConic1SP)
	Register(LambertConformalConic2SP, newLambertConformalConic2SP)
}

// lambertConformalConic follows Snyder (eqs. 15-1 to 15-11). The one
// standard parallel variant is the tangent cone at the latitude of origin
// scaled by k0; the two parallel variant is the secant cone with k0 = 1.
type lambertConformalConic struct {
	base
	a, e      float64
	n, f, rh0 float64
	k0        float64
}

func newLambertConformalConic1SP(e Ellipsoid, p Params) (Projection, error) {
	return newLambertConformalConic(LambertConformalConic1SP, e, p, p.LatitudeOfOrigin, p.LatitudeOfOrigin, p.ScaleFactor)
}

func newLambertConformalConic2SP(e Ellipsoid, p Params) (Projection, error) {
	return newLambertConformalConic(LambertConformalConic2SP, e, p, p.StandardParallel1, p.StandardParallel2, 1)
}

func newLambertConformalConic(k Kind, e Ellipsoid, p Params, lat1, lat2, k0 float64) (Projection, error) {
	if math.Abs(lat1+lat2) < epsLat {
		return nil, fmt.Errorf("%s: standard parallels %.6f° and %.6f° are symmetric about the equator",
			k, lat1*RadToDeg, lat2*RadToDeg)
	}
	if math.Abs(lat1) >= halfPi || math.Abs(lat2) >= halfPi {
		return nil, fmt.Errorf("%s: standard parallel at a pole", k)
	}

	l := &lambertConformalConic{
		base: base{kind: k, ell: e, params: p},
		a:    e.SemiMajorAxis,
		e:    e.Eccentricity(),
		k0:   k0,
	}
	es := e.Eccentricity2()

	m1 := msfn(es, lat1)
	t1 := tsfn(l.e, lat1)
	if math.Abs(lat1-lat2) > epsLat {
		m2 := msfn(es, lat2)
		t2 := tsfn(l.e, lat2)
		l.n = math.Log(m1/m2) / math.Log(t1/t2)
	} else {
		l.n = math.Sin(lat1)
	}
	l.f = m1 / (l.n * math.Pow(t1, l.n))
	l.rh0 = l.a * l.f * math.Pow(tsfn(l.e, p.LatitudeOfOrigin), l.n) * l.k0
	return l, nil
}

func (l *lambertConformalConic) Forward(lam, phi float64) (float64, float64, error) {
	p := l.params
	var rh float64
	if math.Abs(math.Abs(phi)-halfPi) <= epsLat {
		if phi*l.n <= 0 {
			return 0, 0, outOfDomain(l.kind, "latitude %.6f° is the pole opposite the cone apex", phi*RadToDeg)
		}
	} else {
		rh = l.a * l.f * math.Pow(tsfn(l.e, phi), l.n) * l.k0
	}
	theta := l.n * adjlon(lam-p.CentralMeridian)
	return p.FalseEasting + rh*math.Sin(theta), p.FalseNorthing + l.rh0 - rh*math.Cos(theta), nil
}

func (l *lambertConformalConic) Inverse(x, y float64) (float64, float64, error) {
	p := l.params
	dx := x - p.FalseEasting
	dy := l.rh0 - (y - p.FalseNorthing)

	rh := math.Hypot(dx, dy)
	if l.n < 0 {
		rh = -rh
		dx, dy = -dx, -dy
	}

	if rh == 0 {
		return p.CentralMeridian, math.Copysign(halfPi, l.n), nil
	}

	theta := math.Atan2(dx, dy)
	ts := math.Pow(rh/(l.a*l.f*l.k0), 1/l.n)
	phi, ok := phi2(l.e, ts)
	if !ok {
		return 0, 0, outOfDomain(l.kind, "latitude did not converge at (%.3f, %.3f)", x, y)
	}
	return adjlon(theta/l.n + p.CentralMeridian), phi, nil
}

package coord

import "math"

func init() {
	Register(ObliqueStereographic, newObliqueStereographic)
}

// obliqueStereographic is the double stereographic projection used by the
// Dutch RD and other national grids (EPSG method 9809): the ellipsoid is
// first mapped conformally onto a sphere, which is then projected
// stereographically.
type obliqueStereographic struct {
	base
	e, es   float64
	r2      float64 // 2 * R * k0
	n, c    float64
	chi0    float64
	sinChi0 float64
	cosChi0 float64
}

func newObliqueStereographic(e Ellipsoid, p Params) (Projection, error) {
	s := &obliqueStereographic{
		base: base{kind: ObliqueStereographic, ell: e, params: p},
		e:    e.Eccentricity(),
		es:   e.Eccentricity2(),
	}
	phi0 := p.LatitudeOfOrigin
	sin0, cos0 := math.Sincos(phi0)
	a := e.SemiMajorAxis

	rho0 := a * (1 - s.es) / math.Pow(1-s.es*sin0*sin0, 1.5)
	nu0 := a / math.Sqrt(1-s.es*sin0*sin0)
	s.r2 = 2 * math.Sqrt(rho0*nu0) * p.ScaleFactor
	s.n = math.Sqrt(1 + s.es*math.Pow(cos0, 4)/(1-s.es))

	w1 := math.Pow(s.isometric(sin0), s.n)
	sinChi := (w1 - 1) / (w1 + 1)
	s.c = (s.n + sin0) * (1 - sinChi) / ((s.n - sin0) * (1 + sinChi))
	w2 := s.c * w1
	s.chi0 = math.Asin((w2 - 1) / (w2 + 1))
	s.sinChi0, s.cosChi0 = math.Sincos(s.chi0)
	return s, nil
}

// isometric returns ((1+sinφ)/(1-sinφ)) * ((1-e sinφ)/(1+e sinφ))^e.
func (s *obliqueStereographic) isometric(sinPhi float64) float64 {
	return (1 + sinPhi) / (1 - sinPhi) * math.Pow((1-s.e*sinPhi)/(1+s.e*sinPhi), s.e)
}

// conformal maps a geodetic latitude/longitude onto the conformal sphere.
func (s *obliqueStereographic) conformal(lam, phi float64) (chi, dLam float64) {
	lam0 := s.params.CentralMeridian
	dLam = s.n * adjlon(lam-lam0)
	sinPhi := math.Sin(phi)
	switch {
	case sinPhi >= 1-1e-15:
		return halfPi, dLam
	case sinPhi <= -1+1e-15:
		return -halfPi, dLam
	}
	w := s.c * math.Pow(s.isometric(sinPhi), s.n)
	return math.Asin((w - 1) / (w + 1)), dLam
}

func (s *obliqueStereographic) Forward(lam, phi float64) (float64, float64, error) {
	p := s.params
	chi, dLam := s.conformal(lam, phi)
	sinChi, cosChi := math.Sincos(chi)
	sinL, cosL := math.Sincos(dLam)

	b := 1 + sinChi*s.sinChi0 + cosChi*s.cosChi0*cosL
	if b < 1e-12 {
		return 0, 0, outOfDomain(s.kind, "point is antipodal to the projection origin")
	}
	x := p.FalseEasting + s.r2*cosChi*sinL/b
	y := p.FalseNorthing + s.r2*(sinChi*s.cosChi0-cosChi*s.sinChi0*cosL)/b
	return x, y, nil
}

func (s *obliqueStereographic) Inverse(x, y float64) (float64, float64, error) {
	p := s.params
	dx := x - p.FalseEasting
	dy := y - p.FalseNorthing

	g := s.r2 * math.Tan(quartPi-s.chi0/2)
	h := 2*s.r2*math.Tan(s.chi0) + g
	i := math.Atan(dx / (h + dy))
	j := math.Atan(dx/(g-dy)) - i
	chi := s.chi0 + 2*math.Atan((dy-dx*math.Tan(j/2))/s.r2)
	dLam := j + 2*i

	lam := dLam/s.n + p.CentralMeridian

	sinChi := math.Sin(chi)
	if math.Abs(sinChi) >= 1 {
		return adjlon(lam), math.Copysign(halfPi, sinChi), nil
	}
	psi := 0.5 * math.Log((1+sinChi)/(s.c*(1-sinChi))) / s.n
	phi := 2*math.Atan(math.Exp(psi)) - halfPi
	for k := 0; k < maxIter; k++ {
		sinPhi := math.Sin(phi)
		psiI := math.Log(math.Tan(phi/2+quartPi) * math.Pow((1-s.e*sinPhi)/(1+s.e*sinPhi), s.e/2))
		next := phi - (psiI-psi)*math.Cos(phi)*(1-s.es*sinPhi*sinPhi)/(1-s.es)
		if math.Abs(next-phi) < iterEps {
			return adjlon(lam), next, nil
		}
		phi = next
	}
	return 0, 0, outOfDomain(s.kind, "latitude did not converge at (%.3f, %.3f)", x, y)
}

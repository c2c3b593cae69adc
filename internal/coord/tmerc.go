package coord

import "math"

func init() {
	Register(TransverseMercator, newTransverseMercator)
}

// transverseMercator uses the Krüger series to sixth order in the third
// flattening n (Karney 2011, eqs. 35-36). Round trips are exact to well
// below a micrometre within 20° of the central meridian.
type transverseMercator struct {
	base
	e, es float64
	rectA float64 // rectifying radius A
	alpha [7]float64
	beta  [7]float64
	m0    float64 // meridian distance of the latitude of origin
}

func newTransverseMercator(e Ellipsoid, p Params) (Projection, error) {
	f := e.Flattening()
	n := f / (2 - f)
	n2 := n * n
	n3 := n2 * n
	n4 := n3 * n
	n5 := n4 * n
	n6 := n5 * n

	t := &transverseMercator{
		base:  base{kind: TransverseMercator, ell: e, params: p},
		e:     e.Eccentricity(),
		es:    e.Eccentricity2(),
		rectA: e.SemiMajorAxis / (1 + n) * (1 + n2/4 + n4/64 + n6/256),
	}
	t.alpha = [7]float64{0,
		n/2 - 2.0/3*n2 + 5.0/16*n3 + 41.0/180*n4 - 127.0/288*n5 + 7891.0/37800*n6,
		13.0/48*n2 - 3.0/5*n3 + 557.0/1440*n4 + 281.0/630*n5 - 1983433.0/1935360*n6,
		61.0/240*n3 - 103.0/140*n4 + 15061.0/26880*n5 + 167603.0/181440*n6,
		49561.0/161280*n4 - 179.0/168*n5 + 6601661.0/7257600*n6,
		34729.0/80640*n5 - 3418889.0/1995840*n6,
		212378941.0 / 319334400 * n6,
	}
	t.beta = [7]float64{0,
		n/2 - 2.0/3*n2 + 37.0/96*n3 - 1.0/360*n4 - 81.0/512*n5 + 96199.0/604800*n6,
		1.0/48*n2 + 1.0/15*n3 - 437.0/1440*n4 + 46.0/105*n5 - 1118711.0/3870720*n6,
		17.0/480*n3 - 37.0/840*n4 - 209.0/4480*n5 + 5569.0/90720*n6,
		4397.0/161280*n4 - 11.0/504*n5 - 830251.0/7257600*n6,
		4583.0/161280*n5 - 108847.0/3991680*n6,
		20648693.0 / 638668800 * n6,
	}
	xi, _ := t.gauss(p.LatitudeOfOrigin, 0)
	t.m0 = t.rectA * xi
	return t, nil
}

// gauss maps latitude and longitude difference to the normalised
// transverse Mercator coordinates (ξ, η) on the rectifying sphere.
func (t *transverseMercator) gauss(phi, dl float64) (xi, eta float64) {
	sinPhi := math.Sin(phi)
	tau := math.Sinh(math.Atanh(sinPhi) - t.e*math.Atanh(t.e*sinPhi))
	xiP := math.Atan2(tau, math.Cos(dl))
	etaP := math.Atanh(math.Sin(dl) / math.Sqrt(1+tau*tau))

	xi, eta = xiP, etaP
	for j := 1; j <= 6; j++ {
		s, c := math.Sincos(2 * float64(j) * xiP)
		xi += t.alpha[j] * s * math.Cosh(2*float64(j)*etaP)
		eta += t.alpha[j] * c * math.Sinh(2*float64(j)*etaP)
	}
	return xi, eta
}

func (t *transverseMercator) Forward(lam, phi float64) (float64, float64, error) {
	p := t.params
	dl := adjlon(lam - p.CentralMeridian)
	if math.Abs(dl) >= halfPi-epsLat {
		return 0, 0, outOfDomain(t.kind, "longitude %.6f° from central meridian", dl*RadToDeg)
	}
	if math.Abs(phi) > halfPi {
		return 0, 0, outOfDomain(t.kind, "latitude %.6f° beyond the pole", phi*RadToDeg)
	}
	xi, eta := t.gauss(phi, dl)
	k := p.ScaleFactor
	return p.FalseEasting + k*t.rectA*eta, p.FalseNorthing + k*(t.rectA*xi-t.m0), nil
}

func (t *transverseMercator) Inverse(x, y float64) (float64, float64, error) {
	p := t.params
	k := p.ScaleFactor
	xi := (y - p.FalseNorthing + k*t.m0) / (k * t.rectA)
	eta := (x - p.FalseEasting) / (k * t.rectA)

	xiP, etaP := xi, eta
	for j := 1; j <= 6; j++ {
		s, c := math.Sincos(2 * float64(j) * xi)
		xiP -= t.beta[j] * s * math.Cosh(2*float64(j)*eta)
		etaP -= t.beta[j] * c * math.Sinh(2*float64(j)*eta)
	}

	sinhEta := math.Sinh(etaP)
	sinXi, cosXi := math.Sincos(xiP)
	lam := math.Atan2(sinhEta, cosXi)
	tauP := sinXi / math.Hypot(sinhEta, cosXi)
	if math.Abs(tauP) > 1e15 {
		return p.CentralMeridian, math.Copysign(halfPi, tauP), nil
	}

	// Newton iteration from the conformal to the geodetic latitude.
	tau := tauP
	for i := 0; i < maxIter; i++ {
		sq := math.Sqrt(1 + tau*tau)
		sigma := math.Sinh(t.e * math.Atanh(t.e*tau/sq))
		tauI := tau*math.Sqrt(1+sigma*sigma) - sigma*sq
		d := (tauP - tauI) / math.Sqrt(1+tauI*tauI) * (1 + (1-t.es)*tau*tau) / ((1 - t.es) * sq)
		tau += d
		if math.Abs(d) < iterEps*math.Max(1, math.Abs(tau)) {
			return adjlon(lam + p.CentralMeridian), math.Atan(tau), nil
		}
	}
	return 0, 0, outOfDomain(t.kind, "latitude did not converge at (%.3f, %.3f)", x, y)
}

package coord

import "math"

const (
	halfPi  = math.Pi / 2
	quartPi = math.Pi / 4
	epsLat  = 1e-10
	maxIter = 30
	iterEps = 1e-14
)

// adjlon wraps a longitude difference into [-pi, pi].
func adjlon(x float64) float64 {
	if math.Abs(x) <= math.Pi {
		return x
	}
	return x - 2*math.Pi*math.Floor((x+math.Pi)/(2*math.Pi))
}

// tsfn computes Snyder's t (eq. 15-9), the isometric colatitude term.
func tsfn(e, phi float64) float64 {
	s := math.Sin(phi)
	return math.Tan(quartPi-phi/2) / math.Pow((1-e*s)/(1+e*s), e/2)
}

// msfn computes Snyder's m (eq. 14-15).
func msfn(es, phi float64) float64 {
	s, c := math.Sincos(phi)
	return c / math.Sqrt(1-es*s*s)
}

// phi2 inverts tsfn (Snyder eq. 7-9) by iteration.
func phi2(e, ts float64) (float64, bool) {
	phi := halfPi - 2*math.Atan(ts)
	for i := 0; i < maxIter; i++ {
		s := e * math.Sin(phi)
		next := halfPi - 2*math.Atan(ts*math.Pow((1-s)/(1+s), e/2))
		if math.Abs(next-phi) < iterEps {
			return next, true
		}
		phi = next
	}
	return phi, false
}

package coord

func init() {
	Register(SwissLV95Polynomial, newSwissLV95)
}

// LV95 false origin at the old observatory of Bern.
const (
	lv95E0 = 2_600_000.0
	lv95N0 = 1_200_000.0
)

// swissLV95 maps WGS84 longitude/latitude directly to CH1903+ / LV95
// easting/northing with swisstopo's approximation polynomials. The
// polynomials absorb the datum shift, so the projection must sit on a
// WGS84 base CRS. Accuracy is about one metre inside Switzerland.
//
// Reference: swisstopo, "Approximate formulas for the transformation
// between Swiss projection coordinates and WGS84".
type swissLV95 struct {
	base
}

func newSwissLV95(e Ellipsoid, p Params) (Projection, error) {
	return &swissLV95{base: base{kind: SwissLV95Polynomial, ell: e, params: p}}, nil
}

// Forward works in units of 10000 sexagesimal seconds relative to Bern.
func (s *swissLV95) Forward(lam, phi float64) (float64, float64, error) {
	p := (phi*RadToDeg*3600 - 169_028.66) / 10_000
	l := (lam*RadToDeg*3600 - 26_782.5) / 10_000
	l2, p2 := l*l, p*p

	e := 2_600_072.37 + l*(211_455.93-10_938.51*p-0.36*p2-44.54*l2)
	n := 1_200_147.07 + 308_807.95*p + 3_745.25*l2 + 76.63*p2 - 194.56*l2*p + 119.79*p2*p
	return e, n, nil
}

// Inverse works in units of 1000 km relative to the false origin and
// yields seconds/10000.
func (s *swissLV95) Inverse(x, y float64) (float64, float64, error) {
	e := (x - lv95E0) / 1_000_000
	n := (y - lv95N0) / 1_000_000
	e2, n2 := e*e, n*n

	lon := 2.677_909_4 + e*(4.728_982+0.791_484*n+0.130_6*n2-0.043_6*e2)
	lat := 16.902_389_2 + 3.238_272*n - 0.270_978*e2 - 0.002_528*n2 - 0.044_7*e2*n - 0.014_0*n2*n

	// 10000" units to degrees
	return lon * 100 / 36 * DegToRad, lat * 100 / 36 * DegToRad, nil
}

package coord

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSwiss(t *testing.T) Projection {
	t.Helper()
	p, err := New(SwissLV95Polynomial, WGS84, Params{ScaleFactor: 1})
	require.NoError(t, err)
	return p
}

// Points with published LV95 and WGS84 coordinates. The worked example
// is the one in swisstopo's approximate formulas; the landmarks carry
// rounded coordinates and get wider tolerances.
var lv95Points = []struct {
	name     string
	e, n     float64 // LV95 metres
	lon, lat float64 // WGS84 degrees
	tolM     float64
	tolDeg   float64
}{
	{
		name: "swisstopo worked example",
		e:    2_700_000, n: 1_100_000,
		lon: dms(8, 43, 49.80), lat: dms(46, 2, 38.86),
		tolM: 0.5, tolDeg: 1e-5,
	},
	{
		name: "Bern old observatory",
		e:    2_600_000, n: 1_200_000,
		lon: 7.438632, lat: 46.951083,
		tolM: 2, tolDeg: 1e-4,
	},
	{
		name: "Zurich",
		e:    2_683_474, n: 1_247_862,
		lon: 8.5417, lat: 47.3769,
		tolM: 600, tolDeg: 0.005,
	},
	{
		name: "Geneva",
		e:    2_500_560, n: 1_118_017,
		lon: 6.1432, lat: 46.2075,
		tolM: 600, tolDeg: 0.01,
	},
}

func TestSwissLV95_ReferencePoints(t *testing.T) {
	s := newSwiss(t)
	for _, tt := range lv95Points {
		t.Run(tt.name, func(t *testing.T) {
			e, n, err := s.Forward(tt.lon*DegToRad, tt.lat*DegToRad)
			require.NoError(t, err)
			assert.InDelta(t, tt.e, e, tt.tolM, "easting")
			assert.InDelta(t, tt.n, n, tt.tolM, "northing")

			lam, phi, err := s.Inverse(tt.e, tt.n)
			require.NoError(t, err)
			assert.InDelta(t, tt.lon, lam*RadToDeg, tt.tolDeg, "lon")
			assert.InDelta(t, tt.lat, phi*RadToDeg, tt.tolDeg, "lat")
		})
	}
}

// The two polynomial sets are independent approximations, so a round trip
// only closes to within their combined error.
func TestSwissLV95_RoundTrip(t *testing.T) {
	s := newSwiss(t)
	corners := []struct {
		name     string
		lon, lat float64
	}{
		{"south-west near Geneva", 5.96, 45.82},
		{"north-east at Lake Constance", 10.49, 47.81},
		{"north-west in the Jura", 6.13, 47.50},
		{"south-east in the Engadin", 10.47, 46.17},
		{"centre", 8.23, 46.80},
	}
	for _, c := range corners {
		t.Run(c.name, func(t *testing.T) {
			e, n, err := s.Forward(c.lon*DegToRad, c.lat*DegToRad)
			require.NoError(t, err)
			lam, phi, err := s.Inverse(e, n)
			require.NoError(t, err)
			assert.InDelta(t, c.lon, lam*RadToDeg, 1e-3)
			assert.InDelta(t, c.lat, phi*RadToDeg, 1e-3)

			e2, n2, err := s.Forward(lam, phi)
			require.NoError(t, err)
			assert.InDelta(t, e, e2, 5.0)
			assert.InDelta(t, n, n2, 5.0)
		})
	}
}

func TestSwissLV95_Kind(t *testing.T) {
	s := newSwiss(t)
	assert.Equal(t, SwissLV95Polynomial, s.Kind())
	assert.Equal(t, "Swiss_LV95_Polynomial", s.Kind().String())
	assert.Equal(t, WGS84, s.Ellipsoid())
}

package coord

import (
	"errors"
	"math"
	"testing"

	"github.com/ctessum/geom/proj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wroge/wgs84"
)

const usSurveyFoot = 0.3048006096012192

func dms(d, m, s float64) float64 {
	return math.Copysign(math.Abs(d)+m/60+s/3600, d)
}

// Worked examples from EPSG Guidance Note 7-2.
var projectionExamples = []struct {
	name     string
	kind     Kind
	ell      Ellipsoid
	params   Params
	lon, lat float64 // degrees
	x, y     float64 // metres
	tol      float64 // metres
}{
	{
		name: "Transverse Mercator / British National Grid",
		kind: TransverseMercator,
		ell:  Airy1830,
		params: Params{
			CentralMeridian: -2 * DegToRad, LatitudeOfOrigin: 49 * DegToRad,
			ScaleFactor: 0.9996012717, FalseEasting: 400000, FalseNorthing: -100000,
		},
		lon: 0.5, lat: 50.5,
		x: 577274.99, y: 69740.50,
		tol: 0.02,
	},
	{
		name: "Lambert Conic Conformal 2SP / Texas South Central",
		kind: LambertConformalConic2SP,
		ell:  Clarke1866,
		params: Params{
			CentralMeridian: -99 * DegToRad, LatitudeOfOrigin: dms(27, 50, 0) * DegToRad,
			StandardParallel1: dms(28, 23, 0) * DegToRad, StandardParallel2: dms(30, 17, 0) * DegToRad,
			ScaleFactor: 1, FalseEasting: 2000000 * usSurveyFoot,
		},
		lon: -96, lat: 28.5,
		x: 2963503.91 * usSurveyFoot, y: 254759.80 * usSurveyFoot,
		tol: 0.01,
	},
	{
		name: "Lambert Conic Conformal 1SP / Jamaica",
		kind: LambertConformalConic1SP,
		ell:  Clarke1866,
		params: Params{
			CentralMeridian: -77 * DegToRad, LatitudeOfOrigin: 18 * DegToRad,
			ScaleFactor: 1, FalseEasting: 250000, FalseNorthing: 150000,
		},
		lon: dms(-76, 56, 37.26), lat: dms(17, 55, 55.80),
		x: 255966.58, y: 142493.51,
		tol: 0.01,
	},
	{
		name: "Oblique Stereographic / Amersfoort RD New",
		kind: ObliqueStereographic,
		ell:  Bessel1841,
		params: Params{
			CentralMeridian: dms(5, 23, 15.5) * DegToRad, LatitudeOfOrigin: dms(52, 9, 22.178) * DegToRad,
			ScaleFactor: 0.9999079, FalseEasting: 155000, FalseNorthing: 463000,
		},
		lon: 6, lat: 53,
		x: 196105.283, y: 557057.739,
		tol: 0.005,
	},
	{
		name: "Mercator 1SP / Makassar",
		kind: Mercator1SP,
		ell:  Bessel1841,
		params: Params{
			CentralMeridian: 110 * DegToRad,
			ScaleFactor:     0.997, FalseEasting: 3900000, FalseNorthing: 900000,
		},
		lon: 120, lat: -3,
		x: 5009726.58, y: 569150.82,
		tol: 0.01,
	},
	{
		name:   "Popular Visualisation Pseudo Mercator",
		kind:   PseudoMercator,
		ell:    WGS84,
		params: Params{ScaleFactor: 1},
		lon:    dms(-100, 20, 0), lat: dms(24, 22, 54.433),
		x: -11169055.58, y: 2800000.00,
		tol: 0.01,
	},
}

func TestProjection_GuidanceNoteExamples(t *testing.T) {
	for _, ex := range projectionExamples {
		t.Run(ex.name, func(t *testing.T) {
			p, err := New(ex.kind, ex.ell, ex.params)
			require.NoError(t, err)

			x, y, err := p.Forward(ex.lon*DegToRad, ex.lat*DegToRad)
			require.NoError(t, err)
			if dx := math.Abs(x - ex.x); dx > ex.tol {
				t.Errorf("Forward easting: got %.4f, want ~%.4f (delta=%.4f > tol=%.4f)", x, ex.x, dx, ex.tol)
			}
			if dy := math.Abs(y - ex.y); dy > ex.tol {
				t.Errorf("Forward northing: got %.4f, want ~%.4f (delta=%.4f > tol=%.4f)", y, ex.y, dy, ex.tol)
			}

			lam, phi, err := p.Inverse(x, y)
			require.NoError(t, err)
			tolRad := 1e-10
			if d := math.Abs(lam - ex.lon*DegToRad); d > tolRad {
				t.Errorf("Inverse lon: got %.10f°, want %.10f° (delta=%.2e rad)", lam*RadToDeg, ex.lon, d)
			}
			if d := math.Abs(phi - ex.lat*DegToRad); d > tolRad {
				t.Errorf("Inverse lat: got %.10f°, want %.10f° (delta=%.2e rad)", phi*RadToDeg, ex.lat, d)
			}
		})
	}
}

func TestProjection_RoundTripGrid(t *testing.T) {
	for _, ex := range projectionExamples {
		t.Run(ex.name, func(t *testing.T) {
			p, err := New(ex.kind, ex.ell, ex.params)
			require.NoError(t, err)
			for dLon := -2.0; dLon <= 2.0; dLon += 0.5 {
				for dLat := -2.0; dLat <= 2.0; dLat += 0.5 {
					lon, lat := (ex.lon+dLon)*DegToRad, (ex.lat+dLat)*DegToRad
					x, y, err := p.Forward(lon, lat)
					require.NoError(t, err)
					gotLon, gotLat, err := p.Inverse(x, y)
					require.NoError(t, err)
					assert.InDelta(t, lon, gotLon, 1e-10, "lon at (%.2f, %.2f)", ex.lon+dLon, ex.lat+dLat)
					assert.InDelta(t, lat, gotLat, 1e-10, "lat at (%.2f, %.2f)", ex.lon+dLon, ex.lat+dLat)
				}
			}
		})
	}
}

type spheroid struct {
	a, fi float64
}

func (s spheroid) A() float64  { return s.a }
func (s spheroid) Fi() float64 { return s.fi }

// TestTransverseMercator_AgainstWGS84Package compares UTM zone 32 with the
// independent implementation in github.com/wroge/wgs84.
func TestTransverseMercator_AgainstWGS84Package(t *testing.T) {
	utm32 := wgs84.Datum{
		Spheroid: spheroid{a: WGS84.SemiMajorAxis, fi: WGS84.InverseFlattening},
		Area:     wgs84.AreaFunc(func(lon, lat float64) bool { return true }),
	}.TransverseMercator(9, 0, 0.9996, 500000, 0)
	epsg := wgs84.EPSG()
	epsg.Add(32632, utm32)
	oracle := wgs84.Transform(wgs84.WGS84().LonLat(), epsg.Code(32632))

	p, err := New(TransverseMercator, WGS84, Params{CentralMeridian: 9 * DegToRad, ScaleFactor: 0.9996, FalseEasting: 500000})
	require.NoError(t, err)

	points := [][2]float64{
		{9.0, 0.0},
		{8.5417, 47.3769}, // Zurich
		{6.1432, 46.2075}, // Geneva
		{11.5, 48.1},      // Munich
		{7.0, 54.0},
		{10.5, 36.0},
	}
	for _, pt := range points {
		wantX, wantY, _ := oracle(pt[0], pt[1], 0)
		x, y, err := p.Forward(pt[0]*DegToRad, pt[1]*DegToRad)
		require.NoError(t, err)
		assert.InDelta(t, wantX, x, 0.01, "easting at %v", pt)
		assert.InDelta(t, wantY, y, 0.01, "northing at %v", pt)
	}
}

func TestPseudoMercator_AgainstWGS84Package(t *testing.T) {
	p, err := New(PseudoMercator, WGS84, Params{ScaleFactor: 1})
	require.NoError(t, err)

	toWebMercator := wgs84.LonLat().To(wgs84.WebMercator())
	for _, pt := range [][2]float64{{0, 0}, {8.5417, 47.3769}, {-122.4, 37.8}, {179.9, -60}} {
		wantX, wantY, _ := toWebMercator(pt[0], pt[1], 0)
		x, y, err := p.Forward(pt[0]*DegToRad, pt[1]*DegToRad)
		require.NoError(t, err)
		assert.InDelta(t, wantX, x, 1e-6, "easting at %v", pt)
		assert.InDelta(t, wantY, y, 1e-6, "northing at %v", pt)
	}

	x, _, _ := p.Forward(math.Pi, 0)
	if math.Abs(x-OriginShift) > 1e-6 {
		t.Errorf("Forward(180°, 0).x = %v, want %v", x, OriginShift)
	}
}

// TestLambertConformalConic_AgainstProj4 compares RGF93 / Lambert-93 with
// the proj4 port in github.com/ctessum/geom/proj.
func TestLambertConformalConic_AgainstProj4(t *testing.T) {
	src, err := proj.Parse("+proj=longlat +ellps=GRS80 +no_defs")
	require.NoError(t, err)
	dst, err := proj.Parse("+proj=lcc +lat_1=49 +lat_2=44 +lat_0=46.5 +lon_0=3 +x_0=700000 +y_0=6600000 +ellps=GRS80 +units=m +no_defs")
	require.NoError(t, err)
	oracle, err := src.NewTransform(dst)
	require.NoError(t, err)

	p, err := New(LambertConformalConic2SP, GRS80, Params{
		CentralMeridian: 3 * DegToRad, LatitudeOfOrigin: 46.5 * DegToRad,
		StandardParallel1: 49 * DegToRad, StandardParallel2: 44 * DegToRad,
		ScaleFactor: 1, FalseEasting: 700000, FalseNorthing: 6600000,
	})
	require.NoError(t, err)

	for _, pt := range [][2]float64{{2.3522, 48.8566}, {-4.4861, 48.3904}, {7.2620, 43.7102}, {3, 46.5}} {
		wantX, wantY, err := oracle(pt[0], pt[1])
		require.NoError(t, err)
		x, y, err := p.Forward(pt[0]*DegToRad, pt[1]*DegToRad)
		require.NoError(t, err)
		assert.InDelta(t, wantX, x, 1e-3, "easting at %v", pt)
		assert.InDelta(t, wantY, y, 1e-3, "northing at %v", pt)
	}
}

func TestProjection_Singularities(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		ell      Ellipsoid
		params   Params
		lon, lat float64
	}{
		{"mercator at pole", Mercator1SP, WGS84, Params{ScaleFactor: 1}, 0, 90},
		{"pseudo mercator at pole", PseudoMercator, WGS84, Params{ScaleFactor: 1}, 10, -90},
		{"transverse mercator beyond 90° from meridian", TransverseMercator, WGS84, Params{ScaleFactor: 1}, 120, 10},
		{"lcc at opposite pole", LambertConformalConic1SP, WGS84, Params{LatitudeOfOrigin: 45 * DegToRad, ScaleFactor: 1}, 0, -90},
		// On a sphere the conformal latitude equals the geodetic one, so the
		// antipode is exactly (-175°, -52°).
		{"stereographic at antipode", ObliqueStereographic, Sphere("sphere", 6371000), Params{LatitudeOfOrigin: 52 * DegToRad, CentralMeridian: 5 * DegToRad, ScaleFactor: 1}, -175, -52},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.kind, tt.ell, tt.params)
			require.NoError(t, err)
			_, _, err = p.Forward(tt.lon*DegToRad, tt.lat*DegToRad)
			if !errors.Is(err, ErrOutOfDomain) {
				t.Errorf("Forward(%v, %v) error = %v, want ErrOutOfDomain", tt.lon, tt.lat, err)
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(LambertConformalConic2SP, WGS84, Params{StandardParallel1: 30 * DegToRad, StandardParallel2: -30 * DegToRad, ScaleFactor: 1})
	assert.Error(t, err, "symmetric standard parallels")

	_, err = New(TransverseMercator, WGS84, Params{ScaleFactor: 0})
	assert.Error(t, err, "zero scale factor")

	_, err = New(TransverseMercator, Ellipsoid{Name: "bad", SemiMajorAxis: -1}, Params{ScaleFactor: 1})
	assert.Error(t, err, "negative semi-major axis")

	_, err = New(KindUnknown, WGS84, Params{ScaleFactor: 1})
	assert.Error(t, err, "unknown kind")
}

func TestKindByName(t *testing.T) {
	tests := []struct {
		name string
		want Kind
		ok   bool
	}{
		{"Transverse_Mercator", TransverseMercator, true},
		{"Gauss_Kruger", TransverseMercator, true},
		{"lambert conformal conic 1SP", LambertConformalConic1SP, true},
		{"Lambert_Conformal_Conic_2SP", LambertConformalConic2SP, true},
		{"Lambert_Conformal_Conic", LambertConformalConic2SP, true},
		{"Oblique_Stereographic", ObliqueStereographic, true},
		{"Double_Stereographic", ObliqueStereographic, true},
		{"Mercator_1SP", Mercator1SP, true},
		{"Popular_Visualisation_Pseudo_Mercator", PseudoMercator, true},
		{"Hotine_Oblique_Mercator", KindUnknown, false},
	}
	for _, tt := range tests {
		got, ok := KindByName(tt.name)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("KindByName(%q) = %v, %v; want %v, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSupported(t *testing.T) {
	got := Supported()
	want := []Kind{TransverseMercator, LambertConformalConic1SP, LambertConformalConic2SP, ObliqueStereographic, Mercator1SP, PseudoMercator, SwissLV95Polynomial}
	assert.Equal(t, want, got)
}

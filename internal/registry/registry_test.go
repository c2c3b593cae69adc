package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pspoerri/crstransform/internal/crs"
)

const testGK = `PROJCS["Test GK",
	GEOGCS["DHDN",DATUM["Deutsches_Hauptdreiecksnetz",SPHEROID["Bessel 1841",6377397.155,299.1528128],TOWGS84[598.1,73.7,418.2,0.202,0.045,-2.455,6.7]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]],
	PROJECTION["Transverse_Mercator"],
	PARAMETER["central_meridian",12],
	PARAMETER["false_easting",4500000],
	UNIT["metre",1],
	AXIS["X",NORTH],
	AXIS["Y",EAST]]`

func newTestRegistry(t *testing.T, opts Options) (*Registry, *logtest.Hook) {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	opts.Log = log
	r, err := New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, hook
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"4326", "EPSG:4326"},
		{"EPSG:4326", "EPSG:4326"},
		{"epsg:4326", "EPSG:4326"},
		{"  EPSG:31467 ", "EPSG:31467"},
		{"urn:ogc:def:crs:EPSG::4326", "EPSG:4326"},
		{"urn:ogc:def:crs:EPSG:6.18:4326", "EPSG:4326"},
		{"URN:X-OGC:DEF:CRS:EPSG:4326", "EPSG:4326"},
		{"http://www.opengis.net/def/crs/EPSG/0/4326", "EPSG:4326"},
		{"http://www.opengis.net/gml/srs/epsg.xml#4326", "EPSG:4326"},
		{"EPSG:004326", "EPSG:4326"},
		{"CRS:84", "CRS:84"},
		{"urn:ogc:def:crs:OGC:1.3:CRS84", "CRS:84"},
		{"4326_AO", "4326_ao"},
		{"EPSG:4326_AO", "epsg:4326_ao"},
		{"WGS84", "wgs84"},
		{"Amersfoort_RD", "amersfoort_rd"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, id.String())
		})
	}

	_, err := Normalize("   ")
	assert.ErrorIs(t, err, crs.ErrUnknownCRS)
}

func TestLookup_AxisOrder(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})

	natural, err := r.Lookup("EPSG:4326", false)
	require.NoError(t, err)
	xy, err := r.Lookup("EPSG:4326", true)
	require.NoError(t, err)

	assert.Equal(t, crs.North, natural.Axis(0).Orientation)
	assert.Equal(t, crs.East, natural.Axis(1).Orientation)
	assert.Equal(t, crs.East, xy.Axis(0).Orientation)
	assert.Equal(t, crs.North, xy.Axis(1).Orientation)
	assert.Equal(t, natural.Axis(0), xy.Axis(1))
	assert.Equal(t, natural.Axis(1), xy.Axis(0))
	assert.Same(t, natural.Datum(), xy.Datum())
	assert.True(t, crs.EqualIgnoringAxisOrder(natural, xy))

	// CRS:84 and easting-first projected CRSs are unchanged by forceXY.
	lonLat, err := r.Lookup("CRS:84", false)
	require.NoError(t, err)
	assert.Equal(t, crs.East, lonLat.Axis(0).Orientation)
	lonLatXY, err := r.Lookup("CRS:84", true)
	require.NoError(t, err)
	assert.Same(t, lonLat, lonLatXY)

	gk, err := r.Lookup("EPSG:31467", false)
	require.NoError(t, err)
	gkXY, err := r.Lookup("EPSG:31467", true)
	require.NoError(t, err)
	assert.Same(t, gk, gkXY)
}

func TestLookup_Interning(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})

	first, err := r.Lookup("EPSG:4326", false)
	require.NoError(t, err)
	firstXY, err := r.Lookup("EPSG:4326", true)
	require.NoError(t, err)

	for _, id := range []string{"4326", "epsg:4326", "urn:ogc:def:crs:EPSG::4326", "http://www.opengis.net/def/crs/EPSG/0/4326", "4326_AO", "EPSG:4326_AO", "WGS84"} {
		c, err := r.Lookup(id, false)
		require.NoError(t, err, id)
		assert.Same(t, first, c, id)
		cxy, err := r.Lookup(id, true)
		require.NoError(t, err, id)
		assert.Same(t, firstXY, cxy, id)
	}
}

func TestLookup_Concurrent(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})

	const n = 64
	results := make([]*crs.CRS, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := r.Lookup("urn:ogc:def:crs:EPSG::28992", i%2 == 0)
			if err == nil {
				results[i] = c
			}
		}()
	}
	wg.Wait()

	for i := range n {
		require.NotNil(t, results[i])
		assert.Same(t, results[i%2], results[i])
	}
}

func TestLookup_Catalog(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})

	codes := r.AvailableCodes()
	for _, want := range []string{"CRS:84", "EPSG:2056", "EPSG:25832", "EPSG:28992", "EPSG:31467", "EPSG:3857", "EPSG:4258", "EPSG:4314", "EPSG:4326", "EPSG:4964", "EPSG:4979"} {
		assert.Contains(t, codes, want)
	}
	for _, code := range codes {
		for _, xy := range []bool{false, true} {
			c, err := r.Lookup(code, xy)
			require.NoError(t, err, code)
			assert.Equal(t, code, c.Code())
		}
	}

	c, err := r.Lookup("EPSG:4979", false)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Dimension())
	gc, err := r.Lookup("EPSG:4978", false)
	require.NoError(t, err)
	assert.Equal(t, crs.Geocentric, gc.Kind())
}

func TestLookup_Unknown(t *testing.T) {
	r, hook := newTestRegistry(t, Options{})

	_, err := r.Lookup("EPSG:99999", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, crs.ErrUnknownCRS)
	var ue *crs.UnknownCRSError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "EPSG:99999", ue.ID)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	_, err = r.Lookup("no-such-alias", true)
	assert.ErrorIs(t, err, crs.ErrUnknownCRS)
}

func TestDirStore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "99001.prj"), []byte(testGK), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "my_grid.wkt"), []byte(testGK), 0o644))
	// Overrides the catalog entry.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "4326.wkt"), []byte(
		`GEOGCS["lon-lat WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.wkt"), []byte(`PROJCS["x",`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`ignored`), 0o644))

	r, _ := newTestRegistry(t, Options{Dirs: []string{dir}})

	c, err := r.Lookup("EPSG:99001", false)
	require.NoError(t, err)
	assert.Equal(t, crs.North, c.Axis(0).Orientation)
	cxy, err := r.Lookup("EPSG:99001", true)
	require.NoError(t, err)
	assert.Equal(t, crs.East, cxy.Axis(0).Orientation)

	alias, err := r.Lookup("MY_GRID", false)
	require.NoError(t, err)
	assert.True(t, crs.Equal(c, alias))

	w, err := r.Lookup("4326", false)
	require.NoError(t, err)
	assert.Equal(t, "lon-lat WGS 84", w.Name())

	_, err = r.Lookup("broken", false)
	assert.ErrorIs(t, err, crs.ErrMalformedDefinition)

	_, err = r.Lookup("notes", false)
	assert.ErrorIs(t, err, crs.ErrUnknownCRS)

	assert.Contains(t, r.AvailableCodes(), "EPSG:99001")
	assert.Contains(t, r.AvailableCodes(), "my_grid")
}

func TestDirStore_InitFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	r, hook := newTestRegistry(t, Options{Dirs: []string{missing}})

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && strings.Contains(e.Message, "disabled") {
			warned = true
		}
	}
	assert.True(t, warned)

	// The catalog still answers.
	_, err := r.Lookup("EPSG:4326", false)
	require.NoError(t, err)

	// A miss reports the broken store rather than an unknown CRS.
	_, err = r.Lookup("EPSG:99001", false)
	assert.ErrorIs(t, err, crs.ErrResourceInit)
}

func TestRemoteStore(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		n := calls.Add(1)
		switch req.URL.Path {
		case "/99002.wkt":
			// The first request fails transiently.
			if n == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			fmt.Fprint(w, testGK)
		case "/99003.wkt":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, req)
		}
	}))
	defer srv.Close()

	r, _ := newTestRegistry(t, Options{
		DisableCatalog: true,
		Remote: &RemoteConfig{
			URLTemplate: srv.URL + "/%s.wkt",
			Timeout:     5 * time.Second,
			MaxRetries:  1,
		},
	})

	c, err := r.Lookup("EPSG:99002", false)
	require.NoError(t, err)
	assert.Equal(t, "Test GK", c.Name())
	assert.Equal(t, int32(2), calls.Load())

	// Cached: no further requests.
	_, err = r.Lookup("urn:ogc:def:crs:EPSG::99002", false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	_, err = r.Lookup("EPSG:99004", false)
	assert.ErrorIs(t, err, crs.ErrUnknownCRS)

	_, err = r.Lookup("EPSG:99003", false)
	assert.ErrorIs(t, err, crs.ErrResourceInit)

	// Aliases never go to the network.
	before := calls.Load()
	_, err = r.Lookup("some_alias", false)
	assert.ErrorIs(t, err, crs.ErrUnknownCRS)
	assert.Equal(t, before, calls.Load())
}

func TestRemoteStore_BadTemplate(t *testing.T) {
	r, _ := newTestRegistry(t, Options{
		DisableCatalog: true,
		Remote:         &RemoteConfig{URLTemplate: "http://example.invalid/crs"},
	})
	_, err := r.Lookup("EPSG:4326", false)
	assert.ErrorIs(t, err, crs.ErrResourceInit)
}

func TestRemoteStore_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		select {
		case <-req.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	r, _ := newTestRegistry(t, Options{
		DisableCatalog: true,
		Remote: &RemoteConfig{
			URLTemplate: srv.URL + "/%s.wkt",
			Timeout:     150 * time.Millisecond,
			MaxRetries:  1,
		},
	})

	start := time.Now()
	_, err := r.Lookup("EPSG:99002", false)
	assert.ErrorIs(t, err, crs.ErrResourceInit)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRemoteStore_CancelledCallerSharesFlight(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-req.Context().Done():
			return
		case <-release:
		}
		fmt.Fprint(w, testGK)
	}))
	defer srv.Close()

	r, _ := newTestRegistry(t, Options{
		DisableCatalog: true,
		Remote: &RemoteConfig{
			URLTemplate: srv.URL + "/%s.wkt",
			Timeout:     5 * time.Second,
			MaxRetries:  1,
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := r.LookupContext(ctx, "EPSG:99002", false)
		first <- err
	}()
	<-started

	second := make(chan error, 1)
	go func() {
		_, err := r.LookupContext(context.Background(), "EPSG:99002", false)
		second <- err
	}()
	// Give the second caller time to join the in-flight lookup.
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(release)
	require.NoError(t, <-second)
	assert.Equal(t, int32(1), calls.Load())

	c, err := r.Lookup("EPSG:99002", false)
	require.NoError(t, err)
	assert.Equal(t, "Test GK", c.Name())
}

func TestRegistry_Close(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})
	c, err := r.Lookup("EPSG:25832", false)
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Equal(t, "EPSG:25832", c.Code())

	_, err = r.Lookup("EPSG:25832", false)
	assert.ErrorIs(t, err, crs.ErrResourceInit)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNew_NoStores(t *testing.T) {
	_, err := New(context.Background(), Options{DisableCatalog: true})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(ctx, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefault(t *testing.T) {
	a, err := Default().Lookup("EPSG:3857", false)
	require.NoError(t, err)
	b, err := Default().Lookup("EPSG:3857", false)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Same(t, Default(), Default())
}

func TestCatalogStore_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "definitions: [\n"},
		{"duplicate", "definitions:\n  - code: EPSG:1\n    wkt: x\n  - code: '1'\n    wkt: y\n"},
		{"dangling alias", "definitions: []\naliases:\n  foo: EPSG:1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewCatalogStoreFromYAML([]byte(tt.yaml))
			assert.Error(t, s.Init(context.Background()))
		})
	}
}

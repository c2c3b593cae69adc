package main

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pspoerri/crstransform/internal/crs"
)

type result struct {
	app    *app
	stdout string
	stderr string
	err    error
}

func run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	a := newApp()
	a.log.SetOutput(io.Discard)
	root := newRoot(a)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := execute(a, root)
	return result{app: a, stdout: out.String(), stderr: errOut.String(), err: err}
}

func parseOutput(t *testing.T, s string) [][]float64 {
	t.Helper()
	var pts [][]float64
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		var p []float64
		for _, f := range strings.Fields(line) {
			v, err := strconv.ParseFloat(f, 64)
			require.NoError(t, err)
			p = append(p, v)
		}
		pts = append(pts, p)
	}
	return pts
}

func mercator(lon, lat float64) (x, y float64) {
	const a = 6378137.0
	return a * lon * math.Pi / 180, a * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
}

func TestTransformCmd_Args(t *testing.T) {
	r := run(t, "", "transform", "--from", "EPSG:4326", "--to", "EPSG:4326", "--to-xy", "47.5,8.25", "46,7,500")
	require.NoError(t, r.err)
	assert.Equal(t, "8.25 47.5\n7 46 500\n", r.stdout)
}

func TestTransformCmd_Stdin(t *testing.T) {
	in := `# lon lat
9 47

10.5, 48.25
`
	r := run(t, in, "transform", "--from", "CRS:84", "--to", "EPSG:3857")
	require.NoError(t, r.err)

	got := parseOutput(t, r.stdout)
	require.Len(t, got, 2)
	for i, want := range [][2]float64{{9, 47}, {10.5, 48.25}} {
		x, y := mercator(want[0], want[1])
		assert.InDelta(t, x, got[i][0], 1e-6, "point %d x", i)
		assert.InDelta(t, y, got[i][1], 1e-6, "point %d y", i)
	}
}

func TestTransformCmd_Describe(t *testing.T) {
	r := run(t, "", "transform", "--from", "EPSG:31467", "--to", "EPSG:25832", "--describe", "3532465.57,5301523.49")
	require.NoError(t, r.err)
	assert.Contains(t, r.stderr, "EPSG:31467 -> EPSG:25832 (chain)")
	assert.Contains(t, r.stderr, "helmert")
	require.Len(t, parseOutput(t, r.stdout), 1)
}

func TestTransformCmd_GeoJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.geojson")
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{9, 47}))
	fc.Append(geojson.NewFeature(orb.LineString{{9, 47}, {10.5, 48.25}}))
	data, err := fc.MarshalJSON()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	// --from-xy is implied, so EPSG:4326 is read longitude first.
	r := run(t, "", "transform", "--from", "EPSG:4326", "--to", "EPSG:3857", "--geojson", path)
	require.NoError(t, r.err)

	out, err := geojson.UnmarshalFeatureCollection([]byte(r.stdout))
	require.NoError(t, err)
	require.Len(t, out.Features, 2)

	x, y := mercator(9, 47)
	pt := out.Features[0].Geometry.(orb.Point)
	assert.InDelta(t, x, pt[0], 1e-6)
	assert.InDelta(t, y, pt[1], 1e-6)

	ls := out.Features[1].Geometry.(orb.LineString)
	require.Len(t, ls, 2)
	x, y = mercator(10.5, 48.25)
	assert.InDelta(t, x, ls[1][0], 1e-6)
	assert.InDelta(t, y, ls[1][1], 1e-6)
}

func TestTransformCmd_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
		is      error
	}{
		{
			name: "unknown CRS",
			args: []string{"transform", "--from", "EPSG:999999", "--to", "EPSG:4326", "1,2"},
			is:   crs.ErrUnknownCRS,
		},
		{
			name:    "bad tuple",
			args:    []string{"transform", "--from", "EPSG:4326", "--to", "EPSG:4326", "1;2"},
			wantErr: "expected 2 or 3 components",
		},
		{
			name:    "missing flag",
			args:    []string{"transform", "--to", "EPSG:4326", "1,2"},
			wantErr: "from",
		},
		{
			name: "pole in mercator",
			args: []string{"transform", "--from", "CRS:84", "--to", "EPSG:3857", "0,90"},
			is:   crs.ErrTransformation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := run(t, "", tt.args...)
			require.Error(t, r.err)
			if tt.wantErr != "" {
				assert.Contains(t, r.err.Error(), tt.wantErr)
			}
			if tt.is != nil {
				assert.ErrorIs(t, r.err, tt.is)
			}
		})
	}
}

func TestInfoCmd(t *testing.T) {
	r := run(t, "", "info", "EPSG:25832")
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "Identifier: EPSG:25832")
	assert.Contains(t, r.stdout, "Kind:       Projected")
	assert.Contains(t, r.stdout, "Projection: Transverse_Mercator")
	assert.Contains(t, r.stdout, "central_meridian:   9.000000000")
}

func TestParseCmd(t *testing.T) {
	const def = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],` +
		`PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]`
	path := filepath.Join(t.TempDir(), "wgs84.prj")
	require.NoError(t, os.WriteFile(path, []byte(def), 0o644))

	r := run(t, "", "parse", path)
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "Kind:       Geographic")
	assert.Contains(t, r.stdout, "Datum:      WGS_1984")

	r = run(t, def, "parse", "-")
	require.NoError(t, r.err)

	r = run(t, "", "parse", "--strict", path)
	require.Error(t, r.err)
	assert.ErrorIs(t, r.err, crs.ErrMalformedDefinition)
}

func TestCodesCmd(t *testing.T) {
	r := run(t, "", "codes")
	require.NoError(t, r.err)
	codes := strings.Split(strings.TrimSpace(r.stdout), "\n")
	assert.Contains(t, codes, "EPSG:4326")
	assert.Contains(t, codes, "EPSG:25832")
	assert.IsIncreasing(t, codes)
}

// writeTIFF writes a little-endian TIFF header with one IFD holding only
// the image size.
func writeTIFF(t *testing.T, path string, width, height uint16) {
	t.Helper()
	le := binary.LittleEndian
	b := []byte("II")
	b = le.AppendUint16(b, 42)
	b = le.AppendUint32(b, 8)
	b = le.AppendUint16(b, 2)
	for _, e := range [][2]uint16{{256, width}, {257, height}} {
		b = le.AppendUint16(b, e[0])
		b = le.AppendUint16(b, 3) // SHORT
		b = le.AppendUint32(b, 1)
		b = le.AppendUint16(b, e[1])
		b = le.AppendUint16(b, 0)
	}
	b = le.AppendUint32(b, 0)
	require.NoError(t, os.WriteFile(path, b, 0o644))
}

func TestGeorefCmd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raster.tif")
	writeTIFF(t, path, 4, 2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "raster.tfw"),
		[]byte("0.5\n0\n0\n-0.5\n5.25\n47.75\n"), 0o644))

	r := run(t, "", "georef", path, "--to", "EPSG:3857")
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "Size:       4 x 2")
	assert.Contains(t, r.stdout, "CRS:        CRS:84 (from inferred)")
	assert.Contains(t, r.stdout, "Bounds:     5.000000 47.000000 7.000000 48.000000")

	i := strings.Index(r.stdout, "Bounds in EPSG:3857: ")
	require.GreaterOrEqual(t, i, 0)
	got := parseOutput(t, r.stdout[i+len("Bounds in EPSG:3857: "):])
	require.Len(t, got, 1)
	require.Len(t, got[0], 4)
	minX, minY := mercator(5, 47)
	maxX, maxY := mercator(7, 48)
	for k, want := range []float64{minX, minY, maxX, maxY} {
		assert.InDelta(t, want, got[0][k], 1e-6, "bound %d", k)
	}
}

func TestVersionCmd(t *testing.T) {
	r := run(t, "", "version")
	require.NoError(t, r.err)
	assert.Equal(t, "crstransform dev (commit unknown, built unknown)\n", r.stdout)
}

func TestConfig(t *testing.T) {
	t.Run("environment", func(t *testing.T) {
		t.Setenv("CRSTRANSFORM_LOG_LEVEL", "debug")
		r := run(t, "", "version")
		require.NoError(t, r.err)
		assert.Equal(t, logrus.DebugLevel, r.app.log.GetLevel())
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "crstransform.yaml")
		require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n  format: json\ntransform:\n  workers: 2\n"), 0o644))
		r := run(t, "", "--config", path, "version")
		require.NoError(t, r.err)
		assert.Equal(t, logrus.WarnLevel, r.app.log.GetLevel())
		assert.IsType(t, &logrus.JSONFormatter{}, r.app.log.Formatter)
		assert.Equal(t, 2, r.app.transformOptions().Workers)
	})

	t.Run("flag beats file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "crstransform.yaml")
		require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o644))
		r := run(t, "", "--config", path, "--log-level", "error", "version")
		require.NoError(t, r.err)
		assert.Equal(t, logrus.ErrorLevel, r.app.log.GetLevel())
	})

	t.Run("bad format", func(t *testing.T) {
		r := run(t, "", "--log-format", "xml", "version")
		assert.ErrorContains(t, r.err, "unknown log format")
	})

	t.Run("log file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "crstransform.log")
		r := run(t, "", "--log-file", path, "--log-level", "debug", "info", "EPSG:4326")
		require.NoError(t, r.err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "CRS resolved")
	})

	t.Run("closed after a failed command", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "crstransform.log")
		r := run(t, "", "--log-file", path, "info", "EPSG:999999")
		require.ErrorIs(t, r.err, crs.ErrUnknownCRS)
		assert.Nil(t, r.app.reg)
		assert.Nil(t, r.app.logFile)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "crstransform failed")
	})

	t.Run("every option is bound", func(t *testing.T) {
		a := newApp()
		root := newRoot(a)
		for _, o := range options {
			require.NotNil(t, root.PersistentFlags().Lookup(flagName(o.name)), o.name)
		}
		require.NoError(t, root.PersistentFlags().Set("remote-max-retries", "7"))
		assert.Equal(t, 7, a.cfg.GetInt("remote.max_retries"))
	})
}

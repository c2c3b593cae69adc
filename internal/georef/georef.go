// Package georef reads the coordinate reference system and pixel-to-world
// mapping of georeferenced rasters, and reprojects their bounds.
//
// The CRS comes from, in order: GeoTIFF GeoKeys, a .prj sidecar, or the
// coordinate ranges of the raster. The pixel mapping comes from the
// ModelPixelScale and ModelTiepoint tags, or from a world file.
package georef

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/pspoerri/crstransform/internal/crs"
	"github.com/pspoerri/crstransform/internal/registry"
	"github.com/pspoerri/crstransform/internal/transform"
	"github.com/pspoerri/crstransform/internal/wkt"
)

// Source records where georeferencing information came from.
type Source string

const (
	SourceGeoTIFF   Source = "geotiff"
	SourceWorldFile Source = "worldfile"
	SourcePrj       Source = "prj"
	SourceInferred  Source = "inferred"
)

// DefaultDensify is the number of segments each raster edge is split
// into when reprojecting bounds.
const DefaultDensify = 20

// Georeference describes where a raster lies. Raster coordinates are
// always easting first, whatever the authority axis order of the CRS.
type Georeference struct {
	Path   string
	Width  int
	Height int

	OriginX    float64 // easting of the upper-left corner
	OriginY    float64 // northing of the upper-left corner
	PixelSizeX float64 // pixel width in CRS units (positive)
	PixelSizeY float64 // pixel height in CRS units (positive)

	// CRSID is the registry identifier of the raster CRS, empty when the
	// CRS is given as WKT.
	CRSID string
	// WKT is the definition from a .prj sidecar.
	WKT string
	// Citation is the GeoTIFF citation, if any.
	Citation string

	TransformSource Source // where the pixel mapping came from
	CRSSource       Source // where the CRS came from
}

// Open reads the georeferencing of a TIFF or BigTIFF file and its
// sidecars.
func Open(path string) (*Georeference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	d, err := readFirstIFD(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if d.Width == 0 || d.Height == 0 {
		return nil, fmt.Errorf("%s: missing image dimensions", path)
	}
	keys, err := parseGeoKeys(&d)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	g := &Georeference{
		Path:     path,
		Width:    int(d.Width),
		Height:   int(d.Height),
		Citation: keys.citation(),
	}

	// ModelPixelScale: [ScaleX, ScaleY, ScaleZ]
	// ModelTiepoint: [I, J, K, X, Y, Z] maps pixel (I,J) to (X,Y)
	if len(d.ModelPixelScale) >= 2 && len(d.ModelTiepoint) >= 6 {
		g.PixelSizeX = d.ModelPixelScale[0]
		g.PixelSizeY = d.ModelPixelScale[1]
		i, j := d.ModelTiepoint[0], d.ModelTiepoint[1]
		if keys.pixelIsPoint() {
			i, j = i+0.5, j+0.5
		}
		g.OriginX = d.ModelTiepoint[3] - i*g.PixelSizeX
		g.OriginY = d.ModelTiepoint[4] + j*g.PixelSizeY
		g.TransformSource = SourceGeoTIFF
	} else if wfPath := findWorldFile(path); wfPath != "" {
		wf, err := parseWorldFile(wfPath)
		if err != nil {
			return nil, err
		}
		wf.apply(g)
		g.TransformSource = SourceWorldFile
	} else {
		return nil, fmt.Errorf("%s: no GeoTIFF tags and no world file", path)
	}
	if g.PixelSizeX <= 0 || g.PixelSizeY <= 0 {
		return nil, fmt.Errorf("%s: pixel size must be positive, got %g x %g", path, g.PixelSizeX, g.PixelSizeY)
	}

	switch {
	case keys.crsID() != "":
		g.CRSID = keys.crsID()
		g.CRSSource = SourceGeoTIFF
	case findPrj(path) != "":
		data, err := os.ReadFile(findPrj(path))
		if err != nil {
			return nil, fmt.Errorf("reading projection sidecar: %w", err)
		}
		g.WKT = string(data)
		g.CRSSource = SourcePrj
	default:
		g.CRSID = inferCRS(g)
		g.CRSSource = SourceInferred
	}
	return g, nil
}

// BoundsInCRS returns the bounding box in the raster CRS, easting first.
func (g *Georeference) BoundsInCRS() (minX, minY, maxX, maxY float64) {
	minX = g.OriginX
	maxY = g.OriginY
	maxX = minX + float64(g.Width)*g.PixelSizeX
	minY = maxY - float64(g.Height)*g.PixelSizeY
	return
}

// CRS resolves the raster CRS in easting-first axis order.
func (g *Georeference) CRS(ctx context.Context, reg *registry.Registry) (*crs.CRS, error) {
	if g.WKT != "" {
		c, err := wkt.Parse(g.WKT)
		if err != nil {
			return nil, fmt.Errorf("%s: projection sidecar: %w", g.Path, err)
		}
		return crs.WithXYOrder(c), nil
	}
	return reg.LookupContext(ctx, g.CRSID, true)
}

// Bounds is an axis-aligned box in the axis order of its CRS: Min[0] and
// Max[0] bound the first tuple component.
type Bounds struct {
	Min, Max [2]float64
}

// Bounds reprojects the raster extent into target. Each edge is split
// into DefaultDensify segments so that curved edges are enclosed.
func (g *Georeference) Bounds(ctx context.Context, reg *registry.Registry, target *crs.CRS) (Bounds, error) {
	src, err := g.CRS(ctx, reg)
	if err != nil {
		return Bounds{}, err
	}
	minX, minY, maxX, maxY := g.BoundsInCRS()

	pts := make([][]float64, 0, 4*DefaultDensify)
	for i := range DefaultDensify {
		f := float64(i) / DefaultDensify
		x := minX + f*(maxX-minX)
		y := minY + f*(maxY-minY)
		pts = append(pts,
			[]float64{x, minY},
			[]float64{maxX, y},
			[]float64{maxX - (x - minX), maxY},
			[]float64{minX, maxY - (y - minY)},
		)
	}

	out, err := transform.New(target, transform.Options{}).TransformContext(ctx, src, pts)
	if err != nil {
		return Bounds{}, err
	}

	b := Bounds{
		Min: [2]float64{math.Inf(1), math.Inf(1)},
		Max: [2]float64{math.Inf(-1), math.Inf(-1)},
	}
	for _, p := range out {
		for k := range 2 {
			b.Min[k] = math.Min(b.Min[k], p[k])
			b.Max[k] = math.Max(b.Max[k], p[k])
		}
	}
	return b, nil
}

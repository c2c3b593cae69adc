package georef

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// worldFile holds the six parameters of an ESRI world file (.tfw).
//
// Line 1: pixel width (x-component of pixel size)
// Line 2: rotation about y-axis (typically 0)
// Line 3: rotation about x-axis (typically 0)
// Line 4: pixel height (y-component, typically negative for north-up)
// Line 5: x-coordinate of the center of the upper-left pixel
// Line 6: y-coordinate of the center of the upper-left pixel
type worldFile struct {
	PixelSizeX float64
	RotationY  float64
	RotationX  float64
	PixelSizeY float64
	OriginX    float64
	OriginY    float64
}

// parseWorldFile reads a world file from the given path.
func parseWorldFile(path string) (*worldFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading world file %s: %w", path, err)
	}

	lines := strings.Fields(string(data))
	if len(lines) < 6 {
		return nil, fmt.Errorf("world file %s: expected 6 values, got %d", path, len(lines))
	}

	var vals [6]float64
	for i := range vals {
		v, err := strconv.ParseFloat(lines[i], 64)
		if err != nil {
			return nil, fmt.Errorf("world file %s line %d: %w", path, i+1, err)
		}
		vals[i] = v
	}

	wf := &worldFile{
		PixelSizeX: vals[0],
		RotationY:  vals[1],
		RotationX:  vals[2],
		PixelSizeY: vals[3],
		OriginX:    vals[4],
		OriginY:    vals[5],
	}
	if wf.RotationX != 0 || wf.RotationY != 0 {
		return nil, fmt.Errorf("world file %s: rotated world files are not supported (rotation: %f, %f)",
			path, wf.RotationX, wf.RotationY)
	}
	if wf.PixelSizeX == 0 || wf.PixelSizeY == 0 {
		return nil, fmt.Errorf("world file %s: zero pixel size", path)
	}
	return wf, nil
}

// findSidecar looks for a file next to path with one of the given
// extensions, trying each in lower and upper case.
func findSidecar(path string, exts ...string) string {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range exts {
		for _, c := range []string{ext, strings.ToUpper(ext)} {
			p := base + c
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}

func findWorldFile(path string) string {
	return findSidecar(path, ".tfw", ".tifw", ".wld")
}

func findPrj(path string) string {
	return findSidecar(path, ".prj")
}

// apply sets the raster origin from the world file. World files locate
// the center of the upper-left pixel; the origin is its outer corner.
func (wf *worldFile) apply(g *Georeference) {
	g.PixelSizeX = math.Abs(wf.PixelSizeX)
	g.PixelSizeY = math.Abs(wf.PixelSizeY)
	g.OriginX = wf.OriginX - g.PixelSizeX/2
	g.OriginY = wf.OriginY + g.PixelSizeY/2
}

// inferCRS guesses the CRS from coordinate ranges: geographic lon/lat,
// Swiss LV95, or Web Mercator.
func inferCRS(g *Georeference) string {
	minX, minY, maxX, maxY := g.BoundsInCRS()

	if minX >= -180 && maxX <= 360 && minY >= -90 && maxY <= 90 {
		return "CRS:84"
	}
	if math.Abs(minX) > 100000 || math.Abs(maxY) > 100000 {
		if minX >= 2400000 && minX <= 2900000 &&
			maxY >= 1000000 && maxY <= 1400000 {
			return "EPSG:2056"
		}
		if math.Abs(minX) <= 20037508.34 && math.Abs(maxY) <= 20048966.10 {
			return "EPSG:3857"
		}
	}
	return "CRS:84"
}

package transform

import (
	"fmt"

	"github.com/pspoerri/crstransform/internal/coord"
	"github.com/pspoerri/crstransform/internal/crs"
)

// frame maps between a CRS's coordinate tuples and the internal working
// triple (u, v, w):
//
//	Geographic  longitude, latitude (radians from the prime meridian), height
//	Projected   easting, northing (metres), height
//	Geocentric  X, Y, Z (metres)
//
// Compound CRSs use the frame of their horizontal part plus the height.
type frame struct {
	crs    *crs.CRS
	kind   crs.Kind // Geographic, Projected or Geocentric
	datum  *crs.Datum
	proj   coord.Projection
	pm     float64 // prime meridian, radians east of Greenwich
	dim    int
	height bool // carries an ellipsoidal or gravity-related height

	idx   [3]int // tuple position of u, v, w; idx[2] is -1 without height
	scale [3]float64

	defaultHeight float64
}

func newFrame(c *crs.CRS) (*frame, error) {
	f := &frame{crs: c, dim: c.Dimension(), idx: [3]int{-1, -1, -1}}
	h := c
	if c.Kind() == crs.Compound {
		h = c.Horizontal()
		f.defaultHeight = c.DefaultHeight()
	}
	f.kind = h.Kind()
	f.datum = h.Datum()
	f.proj = h.Projection()
	if f.datum != nil {
		f.pm = f.datum.PrimeMeridian.Longitude
	}

	switch f.kind {
	case crs.Geocentric:
		for i := 0; i < 3; i++ {
			f.idx[i] = i
			f.scale[i] = c.Axis(i).Unit.Factor
		}
		return f, nil
	case crs.Geographic, crs.Projected:
	default:
		return nil, fmt.Errorf("%s CRS %s cannot be transformed", f.kind, c.Identifier())
	}

	for i, a := range c.Axes() {
		s := a.Unit.Factor * a.Orientation.Sign()
		switch {
		case a.Orientation.IsEasting():
			f.idx[0], f.scale[0] = i, s
		case a.Orientation.IsNorthing():
			f.idx[1], f.scale[1] = i, s
		case a.Orientation.IsVertical():
			f.idx[2], f.scale[2] = i, s
			f.height = true
		}
	}
	if f.idx[0] < 0 || f.idx[1] < 0 {
		return nil, fmt.Errorf("CRS %s lacks a north/east axis pair", c.Identifier())
	}
	return f, nil
}

// horizontal reports the tuple positions that must be present and finite
// for the working triple to be computed.
func (f *frame) horizontal() []int {
	if f.kind == crs.Geocentric {
		return f.idx[:]
	}
	return f.idx[:2]
}

// read converts the horizontal tuple components into working units. The
// height is handled by the caller.
func (f *frame) read(p []float64) (u, v, w float64) {
	u = p[f.idx[0]] * f.scale[0]
	v = p[f.idx[1]] * f.scale[1]
	if f.kind == crs.Geocentric {
		w = p[f.idx[2]] * f.scale[2]
	}
	return u, v, w
}

// write stores a working triple into out.
func (f *frame) write(u, v, w float64, out []float64) {
	out[f.idx[0]] = u / f.scale[0]
	out[f.idx[1]] = v / f.scale[1]
	if f.idx[2] >= 0 {
		out[f.idx[2]] = w / f.scale[2]
	}
}

// axisFamily names the quantity a tuple position measures, so that NaN
// inputs can be routed to the output slot of the same quantity.
func (f *frame) axisFamily(pos int) int {
	for k, i := range f.idx {
		if i == pos {
			return k
		}
	}
	return -1
}

func (f *frame) is3D() bool {
	return f.height || f.kind == crs.Geocentric
}

package transform

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/pspoerri/crstransform/internal/crs"
)

// Geometry transforms every vertex of g from source into the target CRS
// and returns a new geometry; g is not modified. Point components are the
// first two tuple components in the axis order of each CRS, so a
// latitude-first CRS expects orb.Point{lat, lon}.
func (t *Transformer) Geometry(source *crs.CRS, g orb.Geometry) (orb.Geometry, error) {
	c, err := t.chain(source)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, nil
	}

	var (
		n    int
		ferr error
		in   = make([]float64, 2)
		out  = make([]float64, c.outLen(2))
	)
	res := project.Geometry(orb.Clone(g), func(p orb.Point) orb.Point {
		if ferr != nil {
			return p
		}
		in[0], in[1] = p[0], p[1]
		if err := c.apply(in, out); err != nil {
			ferr = t.fail(source, fmt.Sprintf("vertex %d", n), err)
			return p
		}
		n++
		return orb.Point{out[0], out[1]}
	})
	if ferr != nil {
		return nil, ferr
	}
	pointsMetric.WithLabelValues(c.path.String()).Add(float64(n))
	return res, nil
}

package transform

import (
	"fmt"
	"math"
	"strings"

	"github.com/pspoerri/crstransform/internal/crs"
)

// Path is the strategy a chain uses.
type Path int

const (
	// PathIdentity copies tuples; source and target are equal.
	PathIdentity Path = iota
	// PathFlip permutes tuple components; the CRSs differ only in axis order.
	PathFlip
	// PathChain runs the full normalize, project, shift, project, denormalize
	// pipeline.
	PathChain
)

func (p Path) String() string {
	switch p {
	case PathIdentity:
		return "identity"
	case PathFlip:
		return "flip"
	case PathChain:
		return "chain"
	}
	return fmt.Sprintf("Path(%d)", int(p))
}

// step is one operation on the working triple.
type step struct {
	name  string
	apply func(u, v, w float64) (float64, float64, float64, error)
}

// chain is the immutable, precomputed transformation from one CRS to
// another. It is safe for concurrent use.
type chain struct {
	source, target *crs.CRS
	path           Path
	perm           []int // PathFlip: out[i] = in[perm[i]]

	src, dst *frame
	steps    []step
}

func buildChain(source, target *crs.CRS) (*chain, error) {
	c := &chain{source: source, target: target}
	if crs.Equal(source, target) {
		c.path = PathIdentity
		return c, nil
	}
	if crs.EqualIgnoringAxisOrder(source, target) {
		perm, ok := crs.AxisPermutation(source.Axes(), target.Axes())
		if ok {
			c.path = PathFlip
			c.perm = perm
			return c, nil
		}
	}

	c.path = PathChain
	var err error
	if c.src, err = newFrame(source); err != nil {
		return nil, err
	}
	if c.dst, err = newFrame(target); err != nil {
		return nil, err
	}
	if err := c.plan(); err != nil {
		return nil, err
	}
	return c, nil
}

// plan lays out the steps between the two frames. Geographic coordinates
// are only lifted to geocentric space when the datums differ or one side
// is geocentric.
func (c *chain) plan() error {
	src, dst := c.src, c.dst

	if src.kind == crs.Projected {
		p := src.proj
		c.add("inverse "+p.Kind().String(), func(x, y, h float64) (float64, float64, float64, error) {
			lam, phi, err := p.Inverse(x, y)
			return lam, phi, h, err
		})
	}
	if src.kind != crs.Geocentric && src.pm != 0 {
		pm := src.pm
		c.add(fmt.Sprintf("prime meridian %+.9f rad", pm), func(lam, phi, h float64) (float64, float64, float64, error) {
			return lam + pm, phi, h, nil
		})
	}

	shift := src.kind == crs.Geocentric || dst.kind == crs.Geocentric || !src.datum.Equal(dst.datum)
	if shift {
		if src.kind != crs.Geocentric {
			ell := src.datum.Ellipsoid
			c.add("geodetic to geocentric ("+ell.Name+")", func(lam, phi, h float64) (float64, float64, float64, error) {
				x, y, z := ell.ToGeocentric(lam, phi, h)
				return x, y, z, nil
			})
		}
		if !src.datum.ToWGS84.IsIdentity() || !dst.datum.ToWGS84.IsIdentity() {
			inv, err := dst.datum.ToWGS84.InverseMatrix()
			if err != nil {
				return err
			}
			a := src.datum.ToWGS84.Matrix().Then(inv)
			c.add(fmt.Sprintf("helmert %s -> %s", src.datum.Name, dst.datum.Name), func(x, y, z float64) (float64, float64, float64, error) {
				x, y, z = a.Apply(x, y, z)
				return x, y, z, nil
			})
		}
		if dst.kind != crs.Geocentric {
			ell := dst.datum.Ellipsoid
			c.add("geocentric to geodetic ("+ell.Name+")", func(x, y, z float64) (float64, float64, float64, error) {
				lam, phi, h := ell.ToGeodetic(x, y, z)
				return lam, phi, h, nil
			})
		}
	}

	if dst.kind != crs.Geocentric && dst.pm != 0 {
		pm := dst.pm
		c.add(fmt.Sprintf("prime meridian %+.9f rad", -pm), func(lam, phi, h float64) (float64, float64, float64, error) {
			return lam - pm, phi, h, nil
		})
	}
	if dst.kind == crs.Projected {
		p := dst.proj
		c.add("forward "+p.Kind().String(), func(lam, phi, h float64) (float64, float64, float64, error) {
			x, y, err := p.Forward(lam, phi)
			return x, y, h, err
		})
	}
	return nil
}

func (c *chain) add(name string, fn func(u, v, w float64) (float64, float64, float64, error)) {
	c.steps = append(c.steps, step{name: name, apply: fn})
}

// outLen is the length of the tuple produced for an input of length n.
func (c *chain) outLen(n int) int {
	if d := c.target.Dimension(); d > n {
		return d
	}
	return n
}

// minLen is the shortest tuple the source accepts. A trailing height axis
// is optional on every path; geocentric coordinates are always complete.
func (c *chain) minLen() int {
	n := c.source.Dimension()
	if c.source.Kind() != crs.Geocentric && n > 1 && c.source.Axis(n-1).Orientation.IsVertical() {
		return n - 1
	}
	return n
}

// apply transforms one tuple into out, which has length outLen(len(p)).
func (c *chain) apply(p, out []float64) error {
	if n := c.minLen(); len(p) < n {
		return fmt.Errorf("tuple has %d components, %s needs %d", len(p), c.source.Identifier(), n)
	}
	if c.path != PathChain && len(p) < c.source.Dimension() {
		// Missing trailing height.
		p = append(p[:len(p):len(p)], c.source.DefaultHeight())
	}
	switch c.path {
	case PathIdentity:
		copy(out, p)
		return nil
	case PathFlip:
		copy(out, p)
		for i, j := range c.perm {
			out[i] = p[j]
		}
		return nil
	}

	src, dst := c.src, c.dst
	copy(out, p)

	// Input height, or NaN when absent.
	inH := math.NaN()
	hasInH := false
	switch {
	case src.height && src.idx[2] < len(p):
		inH, hasInH = p[src.idx[2]], true
	case !src.height && src.kind != crs.Geocentric && len(p) > 2:
		inH, hasInH = p[2], true
	}

	for _, i := range src.horizontal() {
		if math.IsNaN(p[i]) {
			c.passNaN(p, out, i, inH, hasInH)
			return nil
		}
	}

	// A third value is only a height when one of the two sides has a
	// vertical dimension; between 2D CRSs it rides along untouched.
	u, v, w := src.read(p)
	if src.kind != crs.Geocentric {
		w = src.defaultHeight
		if hasInH && !math.IsNaN(inH) && (src.height || dst.is3D()) {
			w = inH
			if src.height {
				w *= src.scale[2]
			}
		}
	}

	var err error
	for _, s := range c.steps {
		if u, v, w, err = s.apply(u, v, w); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	dst.write(u, v, w, out)

	switch {
	case dst.kind == crs.Geocentric:
	case dst.height:
		if src.height && math.IsNaN(inH) {
			out[dst.idx[2]] = inH
		}
	case src.is3D() && len(out) > 2:
		// A 3D source loses its height in a 2D target.
		if src.height && math.IsNaN(inH) {
			out[2] = inH
		} else {
			out[2] = math.NaN()
		}
	}
	return nil
}

// passNaN fills out without arithmetic when a horizontal input is NaN.
// Each computed output slot receives the input NaN of the same quantity
// when there is one, otherwise the first NaN found.
func (c *chain) passNaN(p, out []float64, first int, inH float64, hasInH bool) {
	src, dst := c.src, c.dst
	nan := p[first]
	sameFrames := src.kind != crs.Geocentric && dst.kind != crs.Geocentric
	for _, i := range dst.horizontal() {
		out[i] = nan
		if sameFrames {
			if j := src.idx[dst.axisFamily(i)]; math.IsNaN(p[j]) {
				out[i] = p[j]
			}
		}
	}
	switch {
	case dst.kind == crs.Geocentric:
	case dst.height:
		if hasInH && math.IsNaN(inH) {
			out[dst.idx[2]] = inH
		} else {
			out[dst.idx[2]] = nan
		}
	case src.is3D() && len(out) > 2:
		if src.height && math.IsNaN(inH) {
			out[2] = inH
		} else {
			out[2] = math.NaN()
		}
	}
}

// describe renders the chain one step per line.
func (c *chain) describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s -> %s (%s)\n", c.source.Identifier(), c.target.Identifier(), c.path)
	switch c.path {
	case PathIdentity:
		return b.String()
	case PathFlip:
		fmt.Fprintf(&b, "  permute axes %v\n", c.perm)
		return b.String()
	}
	fmt.Fprintf(&b, "  normalize axes of %s\n", c.source.Identifier())
	for _, s := range c.steps {
		fmt.Fprintf(&b, "  %s\n", s.name)
	}
	fmt.Fprintf(&b, "  denormalize axes to %s\n", c.target.Identifier())
	return b.String()
}

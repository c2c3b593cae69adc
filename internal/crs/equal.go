package crs

// Equal reports whether two CRSs describe the same coordinate space with
// the same axis order. Names and codes are ignored.
func Equal(a, b *CRS) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || len(a.axes) != len(b.axes) {
		return false
	}
	for i := range a.axes {
		if !a.axes[i].sameDirection(b.axes[i]) {
			return false
		}
	}
	return equalIgnoringAxes(a, b)
}

// EqualIgnoringAxisOrder reports whether two CRSs differ at most in the
// order of their axes.
func EqualIgnoringAxisOrder(a, b *CRS) bool {
	if a == nil || b == nil {
		return a == b
	}
	if _, ok := AxisPermutation(a.axes, b.axes); !ok {
		return false
	}
	return equalIgnoringAxes(a, b)
}

func equalIgnoringAxes(a, b *CRS) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Geographic, Geocentric:
		return a.datum.Equal(b.datum)
	case Projected:
		return a.datum.Equal(b.datum) && equalProjection(a, b)
	case Vertical:
		return true
	case Compound:
		return Equal(a.horizontal, b.horizontal) || EqualIgnoringAxisOrder(a.horizontal, b.horizontal)
	}
	return false
}

func equalProjection(a, b *CRS) bool {
	pa, pb := a.projection, b.projection
	if pa.Kind() != pb.Kind() || !pa.Params().Equal(pb.Params()) {
		return false
	}
	ea, eb := pa.Ellipsoid(), pb.Ellipsoid()
	return floatEqual(ea.SemiMajorAxis, eb.SemiMajorAxis) && floatEqual(ea.InverseFlattening, eb.InverseFlattening)
}

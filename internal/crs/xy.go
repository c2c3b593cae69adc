package crs

// WithXYOrder returns the variant of c whose first axis is the east/west
// axis, swapping the first two axes when the authority order is
// northing-first. Compound CRSs reorder their horizontal component.
// Geocentric and vertical CRSs, and CRSs that are already easting-first,
// are returned unchanged.
func WithXYOrder(c *CRS) *CRS {
	switch c.kind {
	case Geographic, Projected:
		if len(c.axes) < 2 || !c.axes[0].Orientation.IsNorthing() || !Perpendicular(c.axes[0].Orientation, c.axes[1].Orientation) {
			return c
		}
		swapped := *c
		swapped.axes = cloneAxes(c.axes)
		swapped.axes[0], swapped.axes[1] = swapped.axes[1], swapped.axes[0]
		return &swapped
	case Compound:
		h := WithXYOrder(c.horizontal)
		if h == c.horizontal {
			return c
		}
		swapped := *c
		swapped.horizontal = h
		swapped.axes = append(cloneAxes(h.axes), c.vertical.axes[0])
		return &swapped
	}
	return c
}

// IsXYOrder reports whether the first axis of c is an east/west axis.
func IsXYOrder(c *CRS) bool {
	return len(c.axes) > 0 && c.axes[0].Orientation.IsEasting()
}

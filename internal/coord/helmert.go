package coord

import (
	"fmt"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

// Helmert is a 7-parameter similarity transformation from a datum's
// geocentric frame into WGS84, using the position vector convention of
// WKT TOWGS84 and proj's +towgs84.
type Helmert struct {
	Dx, Dy, Dz float64 // translation, metres
	Rx, Ry, Rz float64 // rotation, radians
	Ds         float64 // scale difference, parts per million
}

// HelmertFromTOWGS84 builds a Helmert from the seven TOWGS84 values
// (dx, dy, dz in metres, rx, ry, rz in arc-seconds, ds in ppm).
func HelmertFromTOWGS84(p [7]float64) Helmert {
	return Helmert{
		Dx: p[0], Dy: p[1], Dz: p[2],
		Rx: p[3] * ArcSecToRad, Ry: p[4] * ArcSecToRad, Rz: p[5] * ArcSecToRad,
		Ds: p[6],
	}
}

// TOWGS84 returns the parameters in TOWGS84 units.
func (h Helmert) TOWGS84() [7]float64 {
	return [7]float64{h.Dx, h.Dy, h.Dz, h.Rx / ArcSecToRad, h.Ry / ArcSecToRad, h.Rz / ArcSecToRad, h.Ds}
}

// IsIdentity reports whether every parameter is zero.
func (h Helmert) IsIdentity() bool {
	return h == Helmert{}
}

// Equal compares parameters with a relative tolerance of 1e-12.
func (h Helmert) Equal(o Helmert) bool {
	a, b := h.TOWGS84(), o.TOWGS84()
	for i := range a {
		if !scalar.EqualWithinAbsOrRel(a[i], b[i], 1e-12, 1e-12) {
			return false
		}
	}
	return true
}

// Affine is a 3x4 affine map in row-major order: a rotation-scale block
// followed by a translation column.
type Affine struct {
	m *mat.Dense // 3x3
	t [3]float64
}

// Matrix returns the forward affine map (datum frame to WGS84).
func (h Helmert) Matrix() Affine {
	m := 1 + h.Ds*1e-6
	return Affine{
		m: mat.NewDense(3, 3, []float64{
			m, -m * h.Rz, m * h.Ry,
			m * h.Rz, m, -m * h.Rx,
			-m * h.Ry, m * h.Rx, m,
		}),
		t: [3]float64{h.Dx, h.Dy, h.Dz},
	}
}

// InverseMatrix returns the exact inverse of Matrix, mapping WGS84 back
// into the datum frame.
func (h Helmert) InverseMatrix() (Affine, error) {
	fwd := h.Matrix()
	var inv mat.Dense
	if err := inv.Inverse(fwd.m); err != nil {
		return Affine{}, fmt.Errorf("helmert %v is singular: %w", h.TOWGS84(), err)
	}
	t := mat.NewVecDense(3, fwd.t[:])
	var it mat.VecDense
	it.MulVec(&inv, t)
	return Affine{
		m: &inv,
		t: [3]float64{-it.AtVec(0), -it.AtVec(1), -it.AtVec(2)},
	}, nil
}

// Apply maps a geocentric point.
func (a Affine) Apply(x, y, z float64) (float64, float64, float64) {
	m := a.m
	return m.At(0, 0)*x + m.At(0, 1)*y + m.At(0, 2)*z + a.t[0],
		m.At(1, 0)*x + m.At(1, 1)*y + m.At(1, 2)*z + a.t[1],
		m.At(2, 0)*x + m.At(2, 1)*y + m.At(2, 2)*z + a.t[2]
}

// Then returns the composition "a followed by b".
func (a Affine) Then(b Affine) Affine {
	var m mat.Dense
	m.Mul(b.m, a.m)
	t := mat.NewVecDense(3, a.t[:])
	var bt mat.VecDense
	bt.MulVec(b.m, t)
	return Affine{
		m: &m,
		t: [3]float64{bt.AtVec(0) + b.t[0], bt.AtVec(1) + b.t[1], bt.AtVec(2) + b.t[2]},
	}
}

// Forward maps a point from the datum frame into WGS84.
func (h Helmert) Forward(x, y, z float64) (float64, float64, float64) {
	return h.Matrix().Apply(x, y, z)
}

// Inverse maps a WGS84 point back into the datum frame.
func (h Helmert) Inverse(x, y, z float64) (float64, float64, float64, error) {
	inv, err := h.InverseMatrix()
	if err != nil {
		return 0, 0, 0, err
	}
	xo, yo, zo := inv.Apply(x, y, z)
	return xo, yo, zo, nil
}

package coord

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gonum.org/v1/gonum/floats/scalar"
)

// ErrOutOfDomain is returned when a projection formula is undefined for
// the given input (poles, antipodes, points too far from the origin).
var ErrOutOfDomain = errors.New("coordinate outside projection domain")

// Kind identifies a map projection method.
type Kind int

const (
	KindUnknown Kind = iota
	TransverseMercator
	LambertConformalConic1SP
	LambertConformalConic2SP
	ObliqueStereographic
	Mercator1SP
	PseudoMercator
	SwissLV95Polynomial
)

var kindNames = map[Kind]string{
	KindUnknown:              "Unknown",
	TransverseMercator:       "Transverse_Mercator",
	LambertConformalConic1SP: "Lambert_Conformal_Conic_1SP",
	LambertConformalConic2SP: "Lambert_Conformal_Conic_2SP",
	ObliqueStereographic:     "Oblique_Stereographic",
	Mercator1SP:              "Mercator_1SP",
	PseudoMercator:           "Popular_Visualisation_Pseudo_Mercator",
	SwissLV95Polynomial:      "Swiss_LV95_Polynomial",
}

// Alternative method names seen in WKT files in the wild, keyed by their
// folded form (see foldName).
var kindAliases = map[string]Kind{
	"gausskruger":                        TransverseMercator,
	"tmerc":                              TransverseMercator,
	"lambertconformalconic":              LambertConformalConic2SP,
	"lcc":                                LambertConformalConic2SP,
	"doublestereographic":                ObliqueStereographic,
	"sterea":                             ObliqueStereographic,
	"mercator":                           Mercator1SP,
	"merc":                               Mercator1SP,
	"mercatorauxiliarysphere":            PseudoMercator,
	"popularvisualisationpseudomercator": PseudoMercator,
	"pseudomercator":                     PseudoMercator,
	"webmercator":                        PseudoMercator,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// foldName lower-cases a method or parameter name and drops separators, so
// that "Lambert_Conformal_Conic_2SP" and "lambert conformal conic 2sp"
// compare equal.
func foldName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch r {
		case '_', ' ', '-', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FoldName is the exported form of the name folding used for projection
// methods; parameter names are matched the same way.
func FoldName(s string) string { return foldName(s) }

// KindByName resolves a projection method name.
func KindByName(name string) (Kind, bool) {
	f := foldName(name)
	for k, n := range kindNames {
		if k != KindUnknown && foldName(n) == f {
			return k, true
		}
	}
	k, ok := kindAliases[f]
	return k, ok
}

// Params holds the projection parameters. Angles are radians, linear
// values are metres.
type Params struct {
	CentralMeridian   float64
	LatitudeOfOrigin  float64
	StandardParallel1 float64
	StandardParallel2 float64
	ScaleFactor       float64
	FalseEasting      float64
	FalseNorthing     float64
}

// Equal compares all parameters within 1e-12 (absolute or relative).
func (p Params) Equal(o Params) bool {
	a := [...]float64{p.CentralMeridian, p.LatitudeOfOrigin, p.StandardParallel1, p.StandardParallel2, p.ScaleFactor, p.FalseEasting, p.FalseNorthing}
	b := [...]float64{o.CentralMeridian, o.LatitudeOfOrigin, o.StandardParallel1, o.StandardParallel2, o.ScaleFactor, o.FalseEasting, o.FalseNorthing}
	for i := range a {
		if !scalar.EqualWithinAbsOrRel(a[i], b[i], 1e-12, 1e-12) {
			return false
		}
	}
	return true
}

// Projection converts between geographic coordinates (radians, longitude
// relative to the prime meridian of the datum) and planar coordinates in
// metres.
type Projection interface {
	Kind() Kind
	Params() Params
	Ellipsoid() Ellipsoid

	// Forward projects longitude/latitude (radians) to easting/northing.
	Forward(lam, phi float64) (x, y float64, err error)

	// Inverse recovers longitude/latitude (radians) from easting/northing.
	Inverse(x, y float64) (lam, phi float64, err error)
}

// Constructor builds a projection for one Kind.
type Constructor func(e Ellipsoid, p Params) (Projection, error)

var (
	handlersMu sync.RWMutex
	handlers   = map[Kind]Constructor{}
)

// Register installs the constructor for a projection kind. Registering the
// same kind twice replaces the earlier handler.
func Register(k Kind, c Constructor) {
	handlersMu.Lock()
	defer handlersMu.Unlock()
	handlers[k] = c
}

// Supported returns the kinds that have a registered handler.
func Supported() []Kind {
	handlersMu.RLock()
	defer handlersMu.RUnlock()
	kinds := make([]Kind, 0, len(handlers))
	for k := range handlers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// New validates the ellipsoid and parameters and returns a projection of
// the given kind.
func New(k Kind, e Ellipsoid, p Params) (Projection, error) {
	handlersMu.RLock()
	c, ok := handlers[k]
	handlersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported projection %s", k)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if !(p.ScaleFactor > 0) {
		return nil, fmt.Errorf("%s: scale factor must be positive, got %v", k, p.ScaleFactor)
	}
	return c(e, p)
}

// base carries the state shared by every projection implementation.
type base struct {
	kind   Kind
	ell    Ellipsoid
	params Params
}

func (b *base) Kind() Kind           { return b.kind }
func (b *base) Params() Params       { return b.params }
func (b *base) Ellipsoid() Ellipsoid { return b.ell }

func outOfDomain(k Kind, format string, args ...any) error {
	return fmt.Errorf("%s: %s: %w", k, fmt.Sprintf(format, args...), ErrOutOfDomain)
}

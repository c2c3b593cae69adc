package wkt

import (
	"math"
	"strings"

	"github.com/pspoerri/crstransform/internal/coord"
	"github.com/pspoerri/crstransform/internal/crs"
)

// Parser converts WKT 1 text into a CRS. The zero value is lenient: AXIS
// and AUTHORITY blocks may be omitted and fall back to the OGC defaults,
// and unknown projection parameters are ignored. Strict requires both
// blocks and rejects unknown parameters.
type Parser struct {
	Strict bool
}

// Parse parses text with a lenient Parser.
func Parse(text string) (*crs.CRS, error) {
	return Parser{}.Parse(text)
}

// Parse parses a GEOGCS, PROJCS, GEOCCS, VERT_CS or COMPD_CS definition.
// Units are applied here: the returned CRS carries radians and metres in
// its datum and projection parameters.
func (p Parser) Parse(text string) (*crs.CRS, error) {
	root, err := parseTree(text)
	if err != nil {
		return nil, err
	}
	b := &builder{src: text, strict: p.Strict}
	return b.crs(root)
}

type builder struct {
	src    string
	strict bool
}

func (b *builder) fail(n *node, reason string) error {
	return malformed(b.src, n.offset, reason)
}

func (b *builder) crs(n *node) (*crs.CRS, error) {
	switch n.keyword {
	case "GEOGCS":
		return b.geographic(n)
	case "PROJCS":
		return b.projected(n)
	case "GEOCCS":
		return b.geocentric(n)
	case "VERT_CS":
		return b.vertical(n)
	case "COMPD_CS":
		return b.compound(n)
	}
	return nil, b.fail(n, "unsupported CRS keyword "+n.keyword)
}

// require returns the first child with one of the keywords or a
// MalformedDefinitionError naming the missing block.
func (b *builder) require(n *node, keywords ...string) (*node, error) {
	c := n.child(keywords...)
	if c == nil {
		return nil, b.fail(n, n.keyword+" is missing "+keywords[0])
	}
	return c, nil
}

func (b *builder) str(n *node, i int) (string, error) {
	lits := n.literals()
	if i >= len(lits) {
		return "", b.fail(n, n.keyword+" has too few arguments")
	}
	if lits[i].kind != tokString {
		return "", malformed(b.src, lits[i].offset, n.keyword+" expects a quoted string")
	}
	return lits[i].text, nil
}

func (b *builder) num(n *node, i int) (float64, error) {
	lits := n.literals()
	if i >= len(lits) {
		return 0, b.fail(n, n.keyword+" has too few arguments")
	}
	if lits[i].kind != tokNumber {
		return 0, malformed(b.src, lits[i].offset, n.keyword+" expects a number")
	}
	return lits[i].num, nil
}

// code renders AUTHORITY["EPSG","4326"] as "EPSG:4326".
func (b *builder) code(n *node) (string, error) {
	a := n.child("AUTHORITY")
	if a == nil {
		if b.strict {
			return "", b.fail(n, n.keyword+" is missing AUTHORITY")
		}
		return "", nil
	}
	lits := a.literals()
	if len(lits) < 2 {
		return "", b.fail(a, "AUTHORITY needs a name and a code")
	}
	return strings.ToUpper(lits[0].text) + ":" + lits[1].text, nil
}

func (b *builder) unit(n *node, kind crs.UnitKind) (crs.Unit, error) {
	u, err := b.require(n, "UNIT")
	if err != nil {
		return crs.Unit{}, err
	}
	name, err := b.str(u, 0)
	if err != nil {
		return crs.Unit{}, err
	}
	f, err := b.num(u, 1)
	if err != nil {
		return crs.Unit{}, err
	}
	if !(f > 0) || math.IsInf(f, 0) {
		return crs.Unit{}, b.fail(u, "UNIT factor must be positive")
	}
	// Files commonly round pi/180 in the last digit.
	if kind == crs.Angular && math.Abs(f-coord.DegToRad) < 1e-15 {
		f = coord.DegToRad
	}
	return crs.Unit{Name: name, Kind: kind, Factor: f}, nil
}

// axes reads the AXIS blocks in declaration order. Vertical axes of a
// geographic CRS are always measured in metres.
func (b *builder) axes(n *node, horizontal crs.Unit) ([]crs.Axis, error) {
	blocks := n.children("AXIS")
	if len(blocks) == 0 {
		if b.strict {
			return nil, b.fail(n, n.keyword+" is missing AXIS")
		}
		return nil, nil
	}
	out := make([]crs.Axis, 0, len(blocks))
	for _, a := range blocks {
		name, err := b.str(a, 0)
		if err != nil {
			return nil, err
		}
		lits := a.literals()
		if len(lits) < 2 {
			return nil, b.fail(a, "AXIS needs a name and an orientation")
		}
		o, err := crs.ParseOrientation(lits[1].text)
		if err != nil {
			return nil, malformed(b.src, lits[1].offset, err.Error())
		}
		u := horizontal
		if o.IsVertical() && horizontal.Kind == crs.Angular {
			u = crs.Metre
		}
		out = append(out, crs.Axis{Name: name, Orientation: o, Unit: u})
	}
	return out, nil
}

func (b *builder) primeMeridian(n *node, angular crs.Unit) (crs.PrimeMeridian, error) {
	pm, err := b.require(n, "PRIMEM")
	if err != nil {
		return crs.PrimeMeridian{}, err
	}
	name, err := b.str(pm, 0)
	if err != nil {
		return crs.PrimeMeridian{}, err
	}
	lon, err := b.num(pm, 1)
	if err != nil {
		return crs.PrimeMeridian{}, err
	}
	code, err := b.optionalCode(pm)
	if err != nil {
		return crs.PrimeMeridian{}, err
	}
	return crs.PrimeMeridian{Name: name, Code: code, Longitude: lon * angular.Factor, Unit: angular}, nil
}

// optionalCode reads AUTHORITY of nested blocks, which is never required.
func (b *builder) optionalCode(n *node) (string, error) {
	strict := b.strict
	b.strict = false
	defer func() { b.strict = strict }()
	return b.code(n)
}

func (b *builder) datum(n *node, pm crs.PrimeMeridian) (*crs.Datum, error) {
	d, err := b.require(n, "DATUM")
	if err != nil {
		return nil, err
	}
	name, err := b.str(d, 0)
	if err != nil {
		return nil, err
	}
	sph, err := b.require(d, "SPHEROID", "ELLIPSOID")
	if err != nil {
		return nil, err
	}
	ell, err := b.spheroid(sph)
	if err != nil {
		return nil, err
	}
	code, err := b.optionalCode(d)
	if err != nil {
		return nil, err
	}
	datum := &crs.Datum{Name: name, Code: code, Ellipsoid: ell, PrimeMeridian: pm}

	if t := d.child("TOWGS84"); t != nil {
		lits := t.literals()
		if len(lits) != 3 && len(lits) != 7 {
			return nil, b.fail(t, "TOWGS84 needs 3 or 7 values")
		}
		var p [7]float64
		for i := range lits {
			v, err := b.num(t, i)
			if err != nil {
				return nil, err
			}
			p[i] = v
		}
		datum.ToWGS84 = coord.HelmertFromTOWGS84(p)
	}
	return datum, nil
}

func (b *builder) spheroid(n *node) (coord.Ellipsoid, error) {
	name, err := b.str(n, 0)
	if err != nil {
		return coord.Ellipsoid{}, err
	}
	a, err := b.num(n, 1)
	if err != nil {
		return coord.Ellipsoid{}, err
	}
	invf, err := b.num(n, 2)
	if err != nil {
		return coord.Ellipsoid{}, err
	}
	code, err := b.optionalCode(n)
	if err != nil {
		return coord.Ellipsoid{}, err
	}
	e := coord.Ellipsoid{Name: name, Code: code, SemiMajorAxis: a, InverseFlattening: invf}
	if err := e.Validate(); err != nil {
		return coord.Ellipsoid{}, b.fail(n, err.Error())
	}
	return e, nil
}

func (b *builder) geographic(n *node) (*crs.CRS, error) {
	name, err := b.str(n, 0)
	if err != nil {
		return nil, err
	}
	unit, err := b.unit(n, crs.Angular)
	if err != nil {
		return nil, err
	}
	pm, err := b.primeMeridian(n, unit)
	if err != nil {
		return nil, err
	}
	datum, err := b.datum(n, pm)
	if err != nil {
		return nil, err
	}
	axes, err := b.axes(n, unit)
	if err != nil {
		return nil, err
	}
	if len(axes) == 0 {
		axes = crs.DefaultGeographicAxes()
		for i := range axes {
			axes[i].Unit = unit
		}
	}
	code, err := b.code(n)
	if err != nil {
		return nil, err
	}
	c, err := crs.NewGeographic(name, code, datum, axes...)
	if err != nil {
		return nil, b.fail(n, err.Error())
	}
	return c, nil
}

func (b *builder) geocentric(n *node) (*crs.CRS, error) {
	name, err := b.str(n, 0)
	if err != nil {
		return nil, err
	}
	unit, err := b.unit(n, crs.Linear)
	if err != nil {
		return nil, err
	}
	// PRIMEM longitude of a GEOCCS is in degrees.
	pm, err := b.primeMeridian(n, crs.Degree)
	if err != nil {
		return nil, err
	}
	datum, err := b.datum(n, pm)
	if err != nil {
		return nil, err
	}
	axes, err := b.axes(n, unit)
	if err != nil {
		return nil, err
	}
	if len(axes) == 0 {
		axes = crs.DefaultGeocentricAxes()
		for i := range axes {
			axes[i].Unit = unit
		}
	}
	code, err := b.code(n)
	if err != nil {
		return nil, err
	}
	c, err := crs.NewGeocentric(name, code, datum, axes...)
	if err != nil {
		return nil, b.fail(n, err.Error())
	}
	return c, nil
}

func (b *builder) vertical(n *node) (*crs.CRS, error) {
	name, err := b.str(n, 0)
	if err != nil {
		return nil, err
	}
	if _, err := b.require(n, "VERT_DATUM"); err != nil {
		return nil, err
	}
	unit, err := b.unit(n, crs.Linear)
	if err != nil {
		return nil, err
	}
	axes, err := b.axes(n, unit)
	if err != nil {
		return nil, err
	}
	if len(axes) == 0 {
		axes = []crs.Axis{{Name: "Gravity-related height", Orientation: crs.Up, Unit: unit}}
	}
	if len(axes) != 1 {
		return nil, b.fail(n, "VERT_CS needs exactly one AXIS")
	}
	code, err := b.code(n)
	if err != nil {
		return nil, err
	}
	c, err := crs.NewVertical(name, code, axes[0])
	if err != nil {
		return nil, b.fail(n, err.Error())
	}
	return c, nil
}

func (b *builder) compound(n *node) (*crs.CRS, error) {
	name, err := b.str(n, 0)
	if err != nil {
		return nil, err
	}
	var parts []*crs.CRS
	for _, a := range n.args {
		if a.node == nil || a.node.keyword == "AUTHORITY" {
			continue
		}
		c, err := b.crs(a.node)
		if err != nil {
			return nil, err
		}
		parts = append(parts, c)
	}
	if len(parts) != 2 {
		return nil, b.fail(n, "COMPD_CS needs a horizontal and a vertical CRS")
	}
	code, err := b.code(n)
	if err != nil {
		return nil, err
	}
	c, err := crs.NewCompound(name, code, parts[0], parts[1], 0)
	if err != nil {
		return nil, b.fail(n, err.Error())
	}
	return c, nil
}

func (b *builder) projected(n *node) (*crs.CRS, error) {
	name, err := b.str(n, 0)
	if err != nil {
		return nil, err
	}
	g, err := b.require(n, "GEOGCS")
	if err != nil {
		return nil, err
	}
	base, err := b.geographic(g)
	if err != nil {
		return nil, err
	}
	if base.Dimension() != 2 {
		return nil, b.fail(g, "base GEOGCS of a PROJCS must be two-dimensional")
	}
	unit, err := b.unit(n, crs.Linear)
	if err != nil {
		return nil, err
	}
	pn, err := b.require(n, "PROJECTION")
	if err != nil {
		return nil, err
	}
	method, err := b.str(pn, 0)
	if err != nil {
		return nil, err
	}
	kind, ok := coord.KindByName(method)
	if !ok {
		return nil, b.fail(pn, "unsupported projection "+method)
	}

	angular := base.Axis(0).Unit
	params, set, err := b.params(n, angular, unit)
	if err != nil {
		return nil, err
	}
	// A generic Lambert name with only a latitude of origin is the tangent cone.
	if kind == coord.LambertConformalConic2SP && !set["standard_parallel_1"] {
		kind = coord.LambertConformalConic1SP
	}

	proj, err := coord.New(kind, base.Datum().Ellipsoid, params)
	if err != nil {
		return nil, b.fail(pn, err.Error())
	}
	axes, err := b.axes(n, unit)
	if err != nil {
		return nil, err
	}
	if len(axes) == 0 {
		axes = crs.DefaultProjectedAxes()
		for i := range axes {
			axes[i].Unit = unit
		}
	}
	code, err := b.code(n)
	if err != nil {
		return nil, err
	}
	c, err := crs.NewProjected(name, code, base, proj, axes...)
	if err != nil {
		return nil, b.fail(n, err.Error())
	}
	return c, nil
}

type paramKind int

const (
	angularParam paramKind = iota
	linearParam
	scaleParam
)

type paramSlot struct {
	name  string
	kind  paramKind
	field func(*coord.Params) *float64
}

// Parameter names in folded form, with the aliases used by EPSG, ESRI and
// GDAL.
var paramSlots = func() map[string]paramSlot {
	cm := paramSlot{"central_meridian", angularParam, func(p *coord.Params) *float64 { return &p.CentralMeridian }}
	lat0 := paramSlot{"latitude_of_origin", angularParam, func(p *coord.Params) *float64 { return &p.LatitudeOfOrigin }}
	sp1 := paramSlot{"standard_parallel_1", angularParam, func(p *coord.Params) *float64 { return &p.StandardParallel1 }}
	sp2 := paramSlot{"standard_parallel_2", angularParam, func(p *coord.Params) *float64 { return &p.StandardParallel2 }}
	k0 := paramSlot{"scale_factor", scaleParam, func(p *coord.Params) *float64 { return &p.ScaleFactor }}
	fe := paramSlot{"false_easting", linearParam, func(p *coord.Params) *float64 { return &p.FalseEasting }}
	fn := paramSlot{"false_northing", linearParam, func(p *coord.Params) *float64 { return &p.FalseNorthing }}

	m := map[string]paramSlot{}
	add := func(s paramSlot, names ...string) {
		for _, n := range names {
			m[coord.FoldName(n)] = s
		}
	}
	add(cm, "central_meridian", "longitude_of_origin", "longitude_of_center", "longitude_of_centre",
		"longitude_of_natural_origin", "longitude_of_false_origin")
	add(lat0, "latitude_of_origin", "latitude_of_center", "latitude_of_centre",
		"latitude_of_natural_origin", "latitude_of_false_origin")
	add(sp1, "standard_parallel_1", "latitude_of_1st_standard_parallel")
	add(sp2, "standard_parallel_2", "latitude_of_2nd_standard_parallel")
	add(k0, "scale_factor", "scale_factor_at_natural_origin")
	add(fe, "false_easting", "easting_at_false_origin")
	add(fn, "false_northing", "northing_at_false_origin")
	return m
}()

// params collects PARAMETER blocks. Angles are in the base GEOGCS unit and
// lengths in the PROJCS unit. Parameters not given are zero except the
// scale factor, which defaults to one.
func (b *builder) params(n *node, angular, linear crs.Unit) (coord.Params, map[string]bool, error) {
	p := coord.Params{ScaleFactor: 1}
	set := map[string]bool{} // canonical names
	for _, pn := range n.children("PARAMETER") {
		name, err := b.str(pn, 0)
		if err != nil {
			return p, nil, err
		}
		v, err := b.num(pn, 1)
		if err != nil {
			return p, nil, err
		}
		slot, ok := paramSlots[coord.FoldName(name)]
		if !ok {
			if b.strict {
				return p, nil, b.fail(pn, "unknown PARAMETER "+name)
			}
			continue
		}
		if set[slot.name] && b.strict {
			return p, nil, b.fail(pn, "duplicate PARAMETER "+name)
		}
		set[slot.name] = true
		switch slot.kind {
		case angularParam:
			v *= angular.Factor
		case linearParam:
			v *= linear.Factor
		}
		*slot.field(&p) = v
	}
	return p, set, nil
}

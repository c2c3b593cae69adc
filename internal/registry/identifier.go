package registry

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/pspoerri/crstransform/internal/crs"
)

// Identifier is a normalized CRS identifier. Authority codes such as
// EPSG:4326 keep their authority; anything else is an alias whose Code is
// the case-folded input.
type Identifier struct {
	Authority string
	Code      string
}

func (id Identifier) String() string {
	if id.Authority == "" {
		return id.Code
	}
	return id.Authority + ":" + id.Code
}

var crs84 = Identifier{Authority: "CRS", Code: "84"}

// URN and URL prefixes that end in an EPSG code, in folded form.
var epsgPrefixes = []string{
	"urn:ogc:def:crs:epsg:",
	"urn:x-ogc:def:crs:epsg:",
	"http://www.opengis.net/def/crs/epsg/",
	"https://www.opengis.net/def/crs/epsg/",
	"http://www.opengis.net/gml/srs/epsg.xml#",
	"epsg:",
}

var crs84Forms = map[string]bool{
	"crs:84":                                       true,
	"crs84":                                        true,
	"urn:ogc:def:crs:ogc:1.3:crs84":                true,
	"urn:ogc:def:crs:ogc::crs84":                   true,
	"http://www.opengis.net/def/crs/ogc/1.3/crs84": true,
}

// fold lower-cases s with Unicode case folding. A Caser keeps state, so
// each call gets its own.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Normalize maps the accepted spellings of a CRS identifier onto one key:
//
//	4326
//	EPSG:4326
//	urn:ogc:def:crs:EPSG::4326, urn:ogc:def:crs:EPSG:6.18:4326
//	urn:x-ogc:def:crs:EPSG:4326
//	http://www.opengis.net/def/crs/EPSG/0/4326
//	http://www.opengis.net/gml/srs/epsg.xml#4326
//	CRS:84
//
// Anything else is returned as a case-folded alias.
func Normalize(raw string) (Identifier, error) {
	s := fold(raw)
	if s == "" {
		return Identifier{}, &crs.UnknownCRSError{ID: raw}
	}
	if isDigits(s) {
		return Identifier{Authority: "EPSG", Code: trimZeros(s)}, nil
	}
	if crs84Forms[s] {
		return crs84, nil
	}
	for _, p := range epsgPrefixes {
		rest, ok := strings.CutPrefix(s, p)
		if !ok {
			continue
		}
		// A version segment may precede the code: "::4326", ":6.18:4326", "0/4326".
		if i := strings.LastIndexAny(rest, ":/"); i >= 0 {
			rest = rest[i+1:]
		}
		if isDigits(rest) {
			return Identifier{Authority: "EPSG", Code: trimZeros(rest)}, nil
		}
		break
	}
	return Identifier{Code: s}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func trimZeros(s string) string {
	t := strings.TrimLeft(s, "0")
	if t == "" {
		return "0"
	}
	return t
}

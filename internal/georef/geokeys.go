package georef

import (
	"fmt"
	"strings"
)

// GeoTIFF GeoKey IDs.
const (
	gkModelTypeGeoKey       = 1024
	gkRasterTypeGeoKey      = 1025
	gkCitationGeoKey        = 1026
	gkGeographicTypeGeoKey  = 2048
	gkGeogCitationGeoKey    = 2049
	gkProjectedCSTypeGeoKey = 3072
	gkPCSCitationGeoKey     = 3073
)

// GeoKey values.
const (
	modelTypeProjected  = 1
	modelTypeGeographic = 2

	rasterPixelIsPoint = 2

	userDefined = 32767
)

// geoKeys is a decoded GeoKey directory. Short values are stored inline
// and ASCII values are resolved from GeoAsciiParams. Double-valued keys
// only describe user-defined CRSs, which cannot be resolved to an
// identifier, so they are bounds-checked and otherwise skipped.
type geoKeys struct {
	shorts map[uint16]uint16
	ascii  map[uint16]string
}

func parseGeoKeys(d *ifd) (geoKeys, error) {
	k := geoKeys{
		shorts: map[uint16]uint16{},
		ascii:  map[uint16]string{},
	}
	dir := d.GeoKeys
	if len(dir) == 0 {
		return k, nil
	}
	// Header: KeyDirectoryVersion, KeyRevision, MinorRevision, NumberOfKeys
	if len(dir) < 4 {
		return k, fmt.Errorf("GeoKey directory has %d values, want at least 4", len(dir))
	}
	if dir[0] != 1 {
		return k, fmt.Errorf("unsupported GeoKey directory version %d", dir[0])
	}
	numKeys := int(dir[3])
	if 4+numKeys*4 > len(dir) {
		return k, fmt.Errorf("GeoKey directory declares %d keys but holds %d", numKeys, (len(dir)-4)/4)
	}

	for i := range numKeys {
		base := 4 + i*4
		id, loc, count, value := dir[base], dir[base+1], int(dir[base+2]), int(dir[base+3])
		switch loc {
		case 0:
			k.shorts[id] = uint16(value)
		case tagGeoDoubleParams:
			if value+count > len(d.GeoDoubleParams) {
				return k, fmt.Errorf("GeoKey %d points past GeoDoubleParams", id)
			}
		case tagGeoAsciiParams:
			if value+count > len(d.GeoAsciiParams) {
				return k, fmt.Errorf("GeoKey %d points past GeoAsciiParams", id)
			}
			s := d.GeoAsciiParams[value : value+count]
			k.ascii[id] = strings.TrimRight(s, "|\x00")
		case tagGeoKeyDirectory:
			if value+count > len(dir) {
				return k, fmt.Errorf("GeoKey %d points past the directory", id)
			}
			if count == 1 {
				k.shorts[id] = dir[value]
			}
		}
	}
	return k, nil
}

// crsID returns the EPSG identifier the keys declare, or "" when the CRS
// is user-defined or missing.
func (k geoKeys) crsID() string {
	model := k.shorts[gkModelTypeGeoKey]
	pcs := k.shorts[gkProjectedCSTypeGeoKey]
	gcs := k.shorts[gkGeographicTypeGeoKey]

	switch {
	case model != modelTypeGeographic && pcs > 0 && pcs != userDefined:
		return fmt.Sprintf("EPSG:%d", pcs)
	case model != modelTypeProjected && gcs > 0 && gcs != userDefined:
		return fmt.Sprintf("EPSG:%d", gcs)
	}
	return ""
}

// citation is the most specific human-readable CRS description.
func (k geoKeys) citation() string {
	for _, id := range []uint16{gkPCSCitationGeoKey, gkGeogCitationGeoKey, gkCitationGeoKey} {
		if s := k.ascii[id]; s != "" {
			return s
		}
	}
	return ""
}

func (k geoKeys) pixelIsPoint() bool {
	return k.shorts[gkRasterTypeGeoKey] == rasterPixelIsPoint
}

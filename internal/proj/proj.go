// Package proj converts coordinates between EPSG:4326 (lon/lat degrees) and
// EPSG:3857 (web mercator meters), the only two reference frames the tile
// scheme and its inputs use.
package proj

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Earth radius used by the spherical mercator projection, in meters.
const earthRadius = 6378137.0

const maxLatitude = 85.0511287798066

// SRID constants for the supported reference frames.
const (
	SRIDWGS84       = 4326
	SRIDWebMercator = 3857
)

// ToWebMercator projects an EPSG:4326 coordinate to EPSG:3857.
func ToWebMercator(lon, lat float64) (x, y float64) {
	if lat > maxLatitude {
		lat = maxLatitude
	}
	if lat < -maxLatitude {
		lat = -maxLatitude
	}
	x = earthRadius * lon * math.Pi / 180
	y = earthRadius * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	return x, y
}

// ToLonLat unprojects an EPSG:3857 coordinate to EPSG:4326.
func ToLonLat(x, y float64) (lon, lat float64) {
	lon = x / earthRadius * 180 / math.Pi
	lat = (2*math.Atan(math.Exp(y/earthRadius)) - math.Pi/2) * 180 / math.Pi
	return lon, lat
}

// TransformGeom reprojects a geometry in place between the two supported
// SRIDs. Passing equal SRIDs is a no-op.
func TransformGeom(g geom.T, fromSRID, toSRID int) error {
	if fromSRID == toSRID {
		return nil
	}

	var transform func(lon, lat float64) (float64, float64)
	switch {
	case fromSRID == SRIDWGS84 && toSRID == SRIDWebMercator:
		transform = ToWebMercator
	case fromSRID == SRIDWebMercator && toSRID == SRIDWGS84:
		transform = ToLonLat
	default:
		return eris.Errorf("proj: unsupported transform %d -> %d", fromSRID, toSRID)
	}

	coords := g.FlatCoords()
	stride := g.Stride()
	for i := 0; i+1 < len(coords); i += stride {
		coords[i], coords[i+1] = transform(coords[i], coords[i+1])
	}
	return nil
}

// Package geoio reads and writes the vector datasets the pipeline consumes:
// GeoJSON feature collections and ESRI shapefiles. All collections are
// normalized to EPSG:4326 before any tile math runs against them.
package geoio

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/terramap-labs/tilescout/internal/proj"
)

// Feature is one vector feature with its attributes.
type Feature struct {
	Properties map[string]any
	Geometry   geom.T
}

// Collection is an ordered set of features in a single reference frame.
type Collection struct {
	SRID     int
	Features []Feature
}

// ReadFile loads a vector dataset, dispatching on file extension.
func ReadFile(path string) (*Collection, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return ReadGeoJSON(path)
	case ".shp":
		return ReadShapefile(path)
	default:
		return nil, eris.Errorf("geoio: unsupported file extension %q", filepath.Ext(path))
	}
}

// EnsureWGS84 reprojects the collection to EPSG:4326 if needed.
func (c *Collection) EnsureWGS84() error {
	if c.SRID == proj.SRIDWGS84 {
		return nil
	}
	return c.Reproject(proj.SRIDWGS84)
}

// Reproject transforms every feature geometry to the target SRID in place.
func (c *Collection) Reproject(srid int) error {
	for i, f := range c.Features {
		if f.Geometry == nil {
			continue
		}
		if err := proj.TransformGeom(f.Geometry, c.SRID, srid); err != nil {
			return eris.Wrapf(err, "geoio: reproject feature %d", i)
		}
	}
	c.SRID = srid
	return nil
}

// ValidatePolygonal rejects collections that are empty or contain anything
// other than Polygon/MultiPolygon geometries.
func (c *Collection) ValidatePolygonal() error {
	if len(c.Features) == 0 {
		return eris.New("geoio: collection contains no features")
	}
	for i, f := range c.Features {
		switch f.Geometry.(type) {
		case *geom.Polygon, *geom.MultiPolygon:
		default:
			return eris.Errorf("geoio: feature %d is not a Polygon or MultiPolygon", i)
		}
	}
	return nil
}

// FeatureExtent returns the bounding box of one feature geometry as
// (minX, minY, maxX, maxY).
func FeatureExtent(g geom.T) (float64, float64, float64, float64) {
	b := g.Bounds()
	return b.Min(0), b.Min(1), b.Max(0), b.Max(1)
}

// Extent returns the bounding box of the whole collection.
func (c *Collection) Extent() (minX, minY, maxX, maxY float64) {
	first := true
	for _, f := range c.Features {
		if f.Geometry == nil || f.Geometry.Empty() {
			continue
		}
		fMinX, fMinY, fMaxX, fMaxY := FeatureExtent(f.Geometry)
		if first {
			minX, minY, maxX, maxY = fMinX, fMinY, fMaxX, fMaxY
			first = false
			continue
		}
		if fMinX < minX {
			minX = fMinX
		}
		if fMinY < minY {
			minY = fMinY
		}
		if fMaxX > maxX {
			maxX = fMaxX
		}
		if fMaxY > maxY {
			maxY = fMaxY
		}
	}
	return minX, minY, maxX, maxY
}

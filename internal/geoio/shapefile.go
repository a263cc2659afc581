package geoio

import (
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/terramap-labs/tilescout/internal/proj"
)

// ReadShapefile loads an ESRI shapefile with its attribute table. The SRID is
// sniffed from the sidecar .prj file; without one the data is assumed to be
// EPSG:4326.
func ReadShapefile(path string) (*Collection, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geoio: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	c := &Collection{SRID: sniffPRJ(path)}
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		g := shapeToGeom(shape)
		if g == nil {
			skipped++
			continue
		}

		props := make(map[string]any, len(names))
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val != "" {
				props[name] = val
			}
		}

		c.Features = append(c.Features, Feature{Properties: props, Geometry: g})
	}

	if skipped > 0 {
		zap.L().Debug("geoio: skipped shapefile records", zap.String("path", path), zap.Int("skipped", skipped))
	}
	return c, nil
}

// sniffPRJ maps the sidecar projection file to one of the supported SRIDs.
func sniffPRJ(shpPath string) int {
	prjPath := strings.TrimSuffix(shpPath, ".shp") + ".prj"
	data, err := os.ReadFile(prjPath)
	if err != nil {
		zap.L().Warn("geoio: no .prj sidecar, assuming EPSG:4326", zap.String("path", shpPath))
		return proj.SRIDWGS84
	}

	wkt := string(data)
	switch {
	case strings.Contains(wkt, "Pseudo-Mercator"), strings.Contains(wkt, "Web_Mercator"), strings.Contains(wkt, "3857"):
		return proj.SRIDWebMercator
	case strings.Contains(wkt, "WGS_1984"), strings.Contains(wkt, "WGS 84"), strings.Contains(wkt, "4326"):
		return proj.SRIDWGS84
	default:
		zap.L().Warn("geoio: unrecognized .prj, assuming EPSG:4326", zap.String("path", prjPath))
		return proj.SRIDWGS84
	}
}

// shapeToGeom converts a go-shp shape to a go-geom geometry. Unsupported
// shape types return nil and the record is skipped.
func shapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.Polygon:
		return polygonToMultiPolygon(s)
	default:
		return nil
	}
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon,
// one polygon per part.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("geoio: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("geoio: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

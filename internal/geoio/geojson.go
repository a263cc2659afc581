package geoio

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/terramap-labs/tilescout/internal/proj"
)

// crsEnvelope captures the legacy GeoJSON "crs" member, which go-geom's
// decoder ignores. RFC 7946 collections have no crs and are EPSG:4326.
type crsEnvelope struct {
	CRS *struct {
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	} `json:"crs"`
}

// ReadGeoJSON loads a GeoJSON FeatureCollection from disk.
func ReadGeoJSON(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geoio: read %s", path)
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "geoio: parse GeoJSON %s", path)
	}

	srid, err := parseCRS(data)
	if err != nil {
		return nil, eris.Wrapf(err, "geoio: %s", path)
	}

	c := &Collection{SRID: srid, Features: make([]Feature, 0, len(fc.Features))}
	for _, f := range fc.Features {
		c.Features = append(c.Features, Feature{
			Properties: f.Properties,
			Geometry:   f.Geometry,
		})
	}
	return c, nil
}

func parseCRS(data []byte) (int, error) {
	var env crsEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return 0, eris.Wrap(err, "parse crs member")
	}
	if env.CRS == nil {
		return proj.SRIDWGS84, nil
	}

	name := env.CRS.Properties.Name
	switch {
	case strings.HasSuffix(name, "CRS84"),
		strings.HasSuffix(name, ":4326"),
		strings.HasSuffix(name, "::4326"):
		return proj.SRIDWGS84, nil
	case strings.HasSuffix(name, ":3857"), strings.HasSuffix(name, "::3857"):
		zap.L().Info("geoio: reprojecting input from EPSG:3857 to EPSG:4326")
		return proj.SRIDWebMercator, nil
	case name == "":
		zap.L().Warn("geoio: empty crs name, assuming EPSG:4326")
		return proj.SRIDWGS84, nil
	default:
		return 0, eris.Errorf("unsupported crs %q (only EPSG:4326 and EPSG:3857 inputs are accepted)", name)
	}
}

// WriteGeoJSON writes the collection as an RFC 7946 FeatureCollection. The
// collection must already be in EPSG:4326.
func WriteGeoJSON(path string, c *Collection) error {
	if c.SRID != proj.SRIDWGS84 {
		return eris.Errorf("geoio: refusing to write GeoJSON in SRID %d", c.SRID)
	}

	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(c.Features))}
	for _, f := range c.Features {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   f.Geometry,
			Properties: f.Properties,
		})
	}

	data, err := json.Marshal(&fc)
	if err != nil {
		return eris.Wrap(err, "geoio: marshal FeatureCollection")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "geoio: write %s", path)
	}
	return nil
}

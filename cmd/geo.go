package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"

	"github.com/terramap-labs/tilescout/internal/geoio"
)

var geoCmd = &cobra.Command{
	Use:   "geo",
	Short: "Inspect and convert vector area files",
}

var geoInfoCmd = &cobra.Command{
	Use:   "info <areas-file>",
	Short: "Summarize a GeoJSON or shapefile",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		c, err := geoio.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "geo info")
		}

		types := map[string]int{}
		for _, f := range c.Features {
			types[geomTypeName(f.Geometry)]++
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "File:\t%s\n", args[0])
		_, _ = fmt.Fprintf(w, "CRS:\tEPSG:%d\n", c.SRID)
		_, _ = fmt.Fprintf(w, "Features:\t%d\n", len(c.Features))
		for name, n := range types {
			_, _ = fmt.Fprintf(w, "  %s:\t%d\n", name, n)
		}
		if len(c.Features) > 0 {
			minX, minY, maxX, maxY := c.Extent()
			_, _ = fmt.Fprintf(w, "Extent:\t%.6f %.6f %.6f %.6f\n", minX, minY, maxX, maxY)
		}
		return w.Flush()
	},
}

var geoReprojectCmd = &cobra.Command{
	Use:   "reproject <areas-file> <out.geojson>",
	Short: "Normalize a vector file to EPSG:4326 GeoJSON",
	Long:  "Reads a GeoJSON file or shapefile in EPSG:4326 or EPSG:3857 and writes it back out as an RFC 7946 GeoJSON FeatureCollection in EPSG:4326.",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		c, err := geoio.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "geo reproject")
		}
		if err := c.EnsureWGS84(); err != nil {
			return eris.Wrap(err, "geo reproject")
		}
		if err := geoio.WriteGeoJSON(args[1], c); err != nil {
			return eris.Wrap(err, "geo reproject")
		}

		fmt.Fprintf(os.Stdout, "Wrote %d features to %s\n", len(c.Features), args[1])
		return nil
	},
}

func geomTypeName(g geom.T) string {
	switch g.(type) {
	case *geom.Point:
		return "Point"
	case *geom.MultiPoint:
		return "MultiPoint"
	case *geom.LineString:
		return "LineString"
	case *geom.MultiLineString:
		return "MultiLineString"
	case *geom.Polygon:
		return "Polygon"
	case *geom.MultiPolygon:
		return "MultiPolygon"
	default:
		return "Unknown"
	}
}

func init() {
	geoCmd.AddCommand(geoInfoCmd)
	geoCmd.AddCommand(geoReprojectCmd)
	rootCmd.AddCommand(geoCmd)
}

package pipeline

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/terramap-labs/tilescout/internal/geoio"
	"github.com/terramap-labs/tilescout/internal/imagery"
	"github.com/terramap-labs/tilescout/internal/proj"
	"github.com/terramap-labs/tilescout/internal/slippy"
)

// fakeFetcher serves synthetic tiles and counts fetches.
type fakeFetcher struct {
	calls   atomic.Int64
	failAll bool
}

func (f *fakeFetcher) Fetch(_ context.Context, t slippy.Tile) imagery.Result {
	f.calls.Add(1)
	if f.failAll {
		return imagery.Result{Failure: imagery.FailureStatus}
	}
	img := image.NewRGBA(image.Rect(0, 0, slippy.TileSize, slippy.TileSize))
	c := color.RGBA{R: uint8(t.X % 256), G: uint8(t.Y % 256), B: uint8(t.Z), A: 255}
	for y := 0; y < slippy.TileSize; y++ {
		for x := 0; x < slippy.TileSize; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return imagery.Result{Image: img}
}

// polyFromExtent builds a closed EPSG:4326 polygon covering the extent.
func polyFromExtent(e slippy.Extent) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		e.West, e.South,
		e.East, e.South,
		e.East, e.North,
		e.West, e.North,
		e.West, e.South,
	}, []int{10})
}

// shrink returns an extent strictly inside the tile's bounds.
func shrink(t slippy.Tile) slippy.Extent {
	b := t.Bounds()
	return slippy.Extent{
		West:  b.West + (b.East-b.West)/4,
		East:  b.East - (b.East-b.West)/4,
		South: b.South + (b.North-b.South)/4,
		North: b.North - (b.North-b.South)/4,
	}
}

// spanning returns an extent whose covering is the (cols x rows) tile block
// anchored at base.
func spanning(base slippy.Tile, cols, rows int) slippy.Extent {
	first := base.Bounds()
	last := slippy.Tile{X: base.X + cols - 1, Y: base.Y + rows - 1, Z: base.Z}.Bounds()
	return slippy.Extent{
		West:  (first.West + first.East) / 2,
		North: (first.South + first.North) / 2,
		East:  (last.West + last.East) / 2,
		South: (last.South + last.North) / 2,
	}
}

func collectionOf(polys ...*geom.Polygon) *geoio.Collection {
	c := &geoio.Collection{SRID: proj.SRIDWGS84}
	for i, p := range polys {
		c.Features = append(c.Features, geoio.Feature{
			Properties: map[string]any{"idx": i},
			Geometry:   p,
		})
	}
	return c
}

type recordingObserver struct {
	seen []int
}

func (r *recordingObserver) Observe(completed, _ int) {
	r.seen = append(r.seen, completed)
}

func TestRunSingleTile(t *testing.T) {
	base := slippy.FromLonLat(2.17, 41.38, 18)
	areas := collectionOf(polyFromExtent(shrink(base)))
	fetcher := &fakeFetcher{}

	sum, err := Run(context.Background(), areas, fetcher, Options{
		Zoom:      18,
		OutputDir: t.TempDir(),
		Name:      "bcn",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.TotalTiles)
	assert.Equal(t, 1, sum.Written)
	assert.Equal(t, int64(4), fetcher.calls.Load())
	require.Len(t, sum.Records, 1)
	assert.Equal(t, tileFilename(base), sum.Records[0].Filename)

	// Exactly one image plus the metadata file on disk.
	entries, err := os.ReadDir(sum.TilesDir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{tileFilename(base), MetadataFilename}, names)
}

func TestRunTwoByTwoScenario(t *testing.T) {
	// 2x2 base tiles at zoom 18: 4 output tiles, 16 fetches (siblings
	// overlap across adjacent output tiles), 4 images, 4 records.
	base := slippy.FromLonLat(2.17, 41.38, 18)
	areas := collectionOf(polyFromExtent(spanning(base, 2, 2)))
	fetcher := &fakeFetcher{}

	sum, err := Run(context.Background(), areas, fetcher, Options{
		Zoom:      18,
		OutputDir: t.TempDir(),
		Name:      "grid",
		Workers:   4,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, sum.TotalTiles)
	assert.Equal(t, 4, sum.Written)
	assert.Equal(t, int64(16), fetcher.calls.Load())
	assert.Len(t, sum.Records, 4)
}

func TestRunFootprintMatchesTileBounds(t *testing.T) {
	base := slippy.FromLonLat(2.17, 41.38, 16)
	areas := collectionOf(polyFromExtent(shrink(base)))

	sum, err := Run(context.Background(), areas, &fakeFetcher{}, Options{
		Zoom:      16,
		OutputDir: t.TempDir(),
		Name:      "fp",
	})
	require.NoError(t, err)

	meta, err := geoio.ReadGeoJSON(filepath.Join(sum.TilesDir, MetadataFilename))
	require.NoError(t, err)
	require.Len(t, meta.Features, 1)
	assert.Equal(t, tileFilename(base), meta.Features[0].Properties["filename"])

	b := base.Bounds()
	minX, minY, maxX, maxY := geoio.FeatureExtent(meta.Features[0].Geometry)
	assert.InDelta(t, b.West, minX, 1e-9)
	assert.InDelta(t, b.South, minY, 1e-9)
	assert.InDelta(t, b.East, maxX, 1e-9)
	assert.InDelta(t, b.North, maxY, 1e-9)
}

func TestRunAllFetchesFail(t *testing.T) {
	base := slippy.FromLonLat(2.17, 41.38, 18)

	// Default policy: a blank image and its record are still written.
	areas := collectionOf(polyFromExtent(shrink(base)))
	sum, err := Run(context.Background(), areas, &fakeFetcher{failAll: true}, Options{
		Zoom:      18,
		OutputDir: t.TempDir(),
		Name:      "blank",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Written)
	assert.Equal(t, 4, sum.FailedFetches)
	require.Len(t, sum.Records, 1)
	assert.Equal(t, 4, sum.Records[0].FailedSubtiles)

	// SkipEmpty drops both the image and the record.
	areas = collectionOf(polyFromExtent(shrink(base)))
	sum, err = Run(context.Background(), areas, &fakeFetcher{failAll: true}, Options{
		Zoom:      18,
		OutputDir: t.TempDir(),
		Name:      "skipped",
		SkipEmpty: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Written)
	assert.Equal(t, 1, sum.SkippedEmpty)
	assert.Empty(t, sum.Records)

	meta, err := geoio.ReadGeoJSON(filepath.Join(sum.TilesDir, MetadataFilename))
	require.NoError(t, err)
	assert.Empty(t, meta.Features)
}

func TestRunProgressObservations(t *testing.T) {
	// 4x3 block: 12 tiles, observations at 5, 10, and the final 12.
	base := slippy.FromLonLat(2.17, 41.38, 17)
	areas := collectionOf(polyFromExtent(spanning(base, 4, 3)))
	obs := &recordingObserver{}

	sum, err := Run(context.Background(), areas, &fakeFetcher{}, Options{
		Zoom:      17,
		OutputDir: t.TempDir(),
		Name:      "progress",
		Workers:   3,
		Observer:  obs,
	})
	require.NoError(t, err)
	require.Equal(t, 12, sum.TotalTiles)
	assert.Equal(t, []int{5, 10, 12}, obs.seen)
}

func TestRunDeterministicAcrossRuns(t *testing.T) {
	base := slippy.FromLonLat(2.17, 41.38, 17)
	mk := func() *geoio.Collection {
		return collectionOf(polyFromExtent(spanning(base, 2, 2)))
	}

	run := func(dir string) *Summary {
		sum, err := Run(context.Background(), mk(), &fakeFetcher{}, Options{
			Zoom:      17,
			OutputDir: dir,
			Name:      "det",
			Workers:   4,
		})
		require.NoError(t, err)
		return sum
	}

	a := run(t.TempDir())
	b := run(t.TempDir())

	require.Equal(t, a.Records, b.Records)

	for _, name := range []string{tileFilename(base), MetadataFilename} {
		dataA, err := os.ReadFile(filepath.Join(a.TilesDir, name))
		require.NoError(t, err)
		dataB, err := os.ReadFile(filepath.Join(b.TilesDir, name))
		require.NoError(t, err)
		assert.Equal(t, dataA, dataB, name)
	}
}

func TestRunRejectsNonPolygonal(t *testing.T) {
	areas := &geoio.Collection{
		SRID: proj.SRIDWGS84,
		Features: []geoio.Feature{
			{Geometry: geom.NewPointFlat(geom.XY, []float64{2.17, 41.38})},
		},
	}

	fetcher := &fakeFetcher{}
	_, err := Run(context.Background(), areas, fetcher, Options{
		Zoom:      15,
		OutputDir: t.TempDir(),
		Name:      "bad",
	})
	require.Error(t, err)

	// Validation fails before any network activity.
	assert.Zero(t, fetcher.calls.Load())
}

func TestRunEmptyCollection(t *testing.T) {
	areas := &geoio.Collection{SRID: proj.SRIDWGS84}
	_, err := Run(context.Background(), areas, &fakeFetcher{}, Options{
		Zoom:      15,
		OutputDir: t.TempDir(),
		Name:      "empty",
	})
	assert.Error(t, err)
}

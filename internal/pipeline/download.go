// Package pipeline orchestrates the tile download run: polygon collection in,
// stitched imagery plus a footprint metadata file out.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/terramap-labs/tilescout/internal/geoio"
	"github.com/terramap-labs/tilescout/internal/imagery"
	"github.com/terramap-labs/tilescout/internal/slippy"
)

// MetadataFilename is the footprint collection written next to the tiles.
const MetadataFilename = "tile_metadata.geojson"

const progressInterval = 5

// TileFetcher is the single-tile fetch dependency.
type TileFetcher interface {
	Fetch(ctx context.Context, t slippy.Tile) imagery.Result
}

// Options configures a download run.
type Options struct {
	Zoom      int
	OutputDir string
	Name      string
	Workers   int
	// SkipEmpty drops tiles whose four subtile fetches all failed instead of
	// writing a blank image and footprint record.
	SkipEmpty bool
	Observer  Observer
}

// FootprintRecord describes one persisted stitched image.
type FootprintRecord struct {
	Filename       string
	Tile           slippy.Tile
	FailedSubtiles int
}

// Summary is the durable outcome of a run.
type Summary struct {
	TilesDir      string
	TotalTiles    int
	Written       int
	SkippedEmpty  int
	FailedFetches int
	Records       []FootprintRecord
}

type job struct {
	seq  int
	tile slippy.Tile
}

// Run downloads, stitches, and persists every covering tile for the polygon
// collection, then writes the footprint metadata file. Individual tile fetch
// failures degrade output; validation and filesystem errors abort.
func Run(ctx context.Context, areas *geoio.Collection, fetcher TileFetcher, opts Options) (*Summary, error) {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}

	if err := areas.EnsureWGS84(); err != nil {
		return nil, eris.Wrap(err, "pipeline: normalize areas")
	}
	if err := areas.ValidatePolygonal(); err != nil {
		return nil, eris.Wrap(err, "pipeline: validate areas")
	}

	jobs, err := coveringJobs(areas, opts.Zoom)
	if err != nil {
		return nil, err
	}
	total := len(jobs)
	zap.L().Info("pipeline: computed covering tiles",
		zap.Int("polygons", len(areas.Features)),
		zap.Int("tiles", total),
		zap.Int("zoom", opts.Zoom),
	)

	tilesDir := filepath.Join(opts.OutputDir, opts.Name, "tiles")
	if err := os.MkdirAll(tilesDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "pipeline: create output dir %s", tilesDir)
	}

	summary := &Summary{TilesDir: tilesDir, TotalTiles: total}
	records := make([]seqRecord, 0, total)

	var mu sync.Mutex
	completed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for _, jb := range jobs {
		jb := jb
		g.Go(func() error {
			rec, failures, written, err := processTile(gctx, fetcher, tilesDir, jb.tile, opts.SkipEmpty)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			summary.FailedFetches += failures
			if written {
				summary.Written++
				rec.seq = jb.seq
				records = append(records, rec)
			} else {
				summary.SkippedEmpty++
			}
			completed++
			if completed%progressInterval == 0 || completed == total {
				opts.Observer.Observe(completed, total)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Workers finish out of order; restore polygon-then-tile generation order
	// before persisting so re-runs produce identical metadata.
	sort.Slice(records, func(i, j int) bool { return records[i].seq < records[j].seq })
	summary.Records = make([]FootprintRecord, 0, len(records))
	for _, r := range records {
		summary.Records = append(summary.Records, r.FootprintRecord)
	}

	if err := writeMetadata(tilesDir, summary.Records); err != nil {
		return nil, err
	}

	zap.L().Info("pipeline: run complete",
		zap.Int("written", summary.Written),
		zap.Int("skipped_empty", summary.SkippedEmpty),
		zap.Int("failed_fetches", summary.FailedFetches),
		zap.String("tiles_dir", tilesDir),
	)
	return summary, nil
}

// coveringJobs flattens the per-polygon covering tile sets into one ordered
// job list. A tile covered by two polygons is downloaded once per polygon,
// matching the per-polygon metadata the pipeline has always produced.
func coveringJobs(areas *geoio.Collection, zoom int) ([]job, error) {
	var jobs []job
	seq := 0
	for i, f := range areas.Features {
		minX, minY, maxX, maxY := geoio.FeatureExtent(f.Geometry)
		tiles, err := slippy.Covering(slippy.Extent{West: minX, South: minY, East: maxX, North: maxY}, zoom)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: covering tiles for polygon %d", i)
		}
		for _, t := range tiles {
			jobs = append(jobs, job{seq: seq, tile: t})
			seq++
		}
	}
	return jobs, nil
}

type seqRecord struct {
	FootprintRecord
	seq int
}

// processTile fetches the quad for one base tile, stitches it, and persists
// the image. Returns written=false only when SkipEmpty is set and every
// subtile fetch failed.
func processTile(ctx context.Context, fetcher TileFetcher, tilesDir string, t slippy.Tile, skipEmpty bool) (seqRecord, int, bool, error) {
	quad := t.Quad()

	var results [4]imagery.Result
	var wg sync.WaitGroup
	for i, sibling := range quad {
		i, sibling := i, sibling
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = fetcher.Fetch(ctx, sibling)
		}()
	}
	wg.Wait()

	failures := 0
	for _, r := range results {
		if !r.OK() {
			failures++
		}
	}

	if failures == len(results) && skipEmpty {
		zap.L().Warn("pipeline: skipping fully empty tile", zap.String("tile", t.String()))
		return seqRecord{}, failures, false, nil
	}

	stitched := imagery.StitchQuad(results)
	filename := tileFilename(t)

	f, err := os.Create(filepath.Join(tilesDir, filename))
	if err != nil {
		return seqRecord{}, failures, false, eris.Wrapf(err, "pipeline: create %s", filename)
	}
	if err := imagery.EncodeJPEG(f, stitched); err != nil {
		_ = f.Close()
		return seqRecord{}, failures, false, eris.Wrapf(err, "pipeline: write %s", filename)
	}
	if err := f.Close(); err != nil {
		return seqRecord{}, failures, false, eris.Wrapf(err, "pipeline: close %s", filename)
	}

	rec := seqRecord{FootprintRecord: FootprintRecord{
		Filename:       filename,
		Tile:           t,
		FailedSubtiles: failures,
	}}
	return rec, failures, true, nil
}

func tileFilename(t slippy.Tile) string {
	return fmt.Sprintf("%d_%d_%d.jpg", t.X, t.Y, t.Z)
}

// writeMetadata persists one footprint feature per stitched image, in run
// order, as an EPSG:4326 FeatureCollection.
func writeMetadata(tilesDir string, records []FootprintRecord) error {
	c := &geoio.Collection{SRID: 4326, Features: make([]geoio.Feature, 0, len(records))}
	for _, r := range records {
		c.Features = append(c.Features, geoio.Feature{
			Properties: map[string]any{"filename": r.Filename},
			Geometry:   r.Tile.Polygon(),
		})
	}

	path := filepath.Join(tilesDir, MetadataFilename)
	if err := geoio.WriteGeoJSON(path, c); err != nil {
		return eris.Wrap(err, "pipeline: write metadata")
	}
	return nil
}

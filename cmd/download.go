package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terramap-labs/tilescout/internal/geoio"
	"github.com/terramap-labs/tilescout/internal/imagery"
	"github.com/terramap-labs/tilescout/internal/pipeline"
	"github.com/terramap-labs/tilescout/internal/store"
)

var downloadCmd = &cobra.Command{
	Use:   "download <areas-file>",
	Short: "Download and stitch satellite tiles covering vector areas",
	Long:  "Reads polygon areas from a GeoJSON or shapefile, computes the covering tile grid at the configured zoom, downloads each tile's four subtiles concurrently, stitches them into 512x512 JPEGs, and writes a footprint metadata file alongside.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, _, err := runDownload(cmd.Context(), cmd, args[0])
		if err != nil {
			return err
		}
		printDownloadSummary(summary)
		return nil
	},
}

// runDownload executes the download pipeline and records the run. It is
// shared by the download and run commands.
func runDownload(ctx context.Context, cmd *cobra.Command, areasPath string) (*pipeline.Summary, string, error) {
	areas, err := geoio.ReadFile(areasPath)
	if err != nil {
		return nil, "", err
	}

	name, _ := cmd.Flags().GetString("name")
	if name == "" {
		name = projectNameFromPath(areasPath)
	}
	zoom, _ := cmd.Flags().GetInt("zoom")
	if zoom == 0 {
		zoom = cfg.Download.Zoom
	}
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = cfg.Download.OutputDir
	}
	workers, _ := cmd.Flags().GetInt("workers")
	if workers == 0 {
		workers = cfg.Download.Workers
	}
	skipEmpty := cfg.Download.SkipEmpty
	if cmd.Flags().Changed("skip-empty") {
		skipEmpty, _ = cmd.Flags().GetBool("skip-empty")
	}

	fetcher := imagery.NewFetcher(imagery.FetcherOptions{
		URLTemplate: cfg.Download.TileURL,
		Timeout:     time.Duration(cfg.Download.TimeoutSecs) * time.Second,
		RatePerSec:  cfg.Download.RatePerSec,
	})

	st := openStore(ctx)
	var runID string
	if st != nil {
		defer st.Close() //nolint:errcheck
		if run, err := st.CreateRun(ctx, name, store.KindDownload, zoom); err != nil {
			zap.L().Warn("record download run", zap.Error(err))
		} else {
			runID = run.ID
		}
	}

	summary, err := pipeline.Run(ctx, areas, fetcher, pipeline.Options{
		Zoom:      zoom,
		OutputDir: output,
		Name:      name,
		Workers:   workers,
		SkipEmpty: skipEmpty,
		Observer:  pipeline.LogObserver{},
	})
	if err != nil {
		if st != nil && runID != "" {
			if ferr := st.FinishRun(ctx, runID, store.StatusFailed, 0, 0, 0, ""); ferr != nil {
				zap.L().Warn("record failed run", zap.Error(ferr))
			}
		}
		return nil, "", eris.Wrap(err, "download")
	}

	projectDir := filepath.Join(output, name)
	if st != nil && runID != "" {
		tiles := make([]store.TileRecord, 0, len(summary.Records))
		for _, r := range summary.Records {
			tiles = append(tiles, store.TileRecord{
				Filename:       r.Filename,
				X:              r.Tile.X,
				Y:              r.Tile.Y,
				Z:              r.Tile.Z,
				FailedSubtiles: r.FailedSubtiles,
			})
		}
		if err := st.AddTiles(ctx, runID, tiles); err != nil {
			zap.L().Warn("record run tiles", zap.Error(err))
		}
		if err := st.FinishRun(ctx, runID, store.StatusComplete, summary.Written, summary.FailedFetches, 0, projectDir); err != nil {
			zap.L().Warn("record run completion", zap.Error(err))
		}
	}

	return summary, projectDir, nil
}

// projectNameFromPath derives a project name from the areas file name.
func projectNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func printDownloadSummary(s *pipeline.Summary) {
	fmt.Fprintf(os.Stdout, "Wrote %d of %d tiles to %s\n", s.Written, s.TotalTiles, s.TilesDir)
	if s.SkippedEmpty > 0 {
		fmt.Fprintf(os.Stdout, "Skipped %d empty tiles\n", s.SkippedEmpty)
	}
	if s.FailedFetches > 0 {
		fmt.Fprintf(os.Stdout, "%d subtile fetches failed\n", s.FailedFetches)
	}
}

func init() {
	downloadCmd.Flags().String("name", "", "project name (defaults to the areas file name)")
	downloadCmd.Flags().Int("zoom", 0, "tile zoom level (default from config)")
	downloadCmd.Flags().String("output", "", "output root directory (default from config)")
	downloadCmd.Flags().Int("workers", 0, "concurrent tile workers (default from config)")
	downloadCmd.Flags().Bool("skip-empty", false, "skip tiles whose four subtile fetches all failed")

	rootCmd.AddCommand(downloadCmd)
}

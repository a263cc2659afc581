// Package detect runs hosted-model object detection over a downloaded tile
// directory and writes annotated copies of each image.
package detect

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terramap-labs/tilescout/internal/imagery"
	"github.com/terramap-labs/tilescout/pkg/roboflow"
)

const progressInterval = 5

// Options configures a detection pass.
type Options struct {
	TilesDir      string
	DetectionsDir string
	Confidence    float64
}

// Summary reports what the pass produced.
type Summary struct {
	Processed       int
	Failed          int
	TotalDetections int
}

// Run detects objects in every .jpg under TilesDir, writing annotated images
// to DetectionsDir. Per-image errors are logged and skipped; a missing tiles
// directory or unusable output directory is fatal.
func Run(ctx context.Context, client roboflow.Client, opts Options) (*Summary, error) {
	if _, err := os.Stat(opts.TilesDir); err != nil {
		return nil, eris.Wrapf(err, "detect: tiles directory %s", opts.TilesDir)
	}
	if err := os.MkdirAll(opts.DetectionsDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "detect: create detections dir %s", opts.DetectionsDir)
	}

	entries, err := os.ReadDir(opts.TilesDir)
	if err != nil {
		return nil, eris.Wrapf(err, "detect: read tiles dir %s", opts.TilesDir)
	}

	var images []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jpg") {
			images = append(images, e.Name())
		}
	}
	sort.Strings(images)

	if len(images) == 0 {
		zap.L().Warn("detect: no tile images found", zap.String("dir", opts.TilesDir))
		return &Summary{}, nil
	}

	zap.L().Info("detect: processing images",
		zap.Int("count", len(images)),
		zap.Float64("confidence", opts.Confidence),
	)

	sum := &Summary{}
	for _, name := range images {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "detect: canceled")
		}

		n, err := processImage(ctx, client, opts, name)
		if err != nil {
			zap.L().Error("detect: image failed", zap.String("image", name), zap.Error(err))
			sum.Failed++
			continue
		}

		sum.Processed++
		sum.TotalDetections += n
		if n > 0 || sum.Processed%progressInterval == 0 {
			zap.L().Info("detect: progress",
				zap.Int("processed", sum.Processed),
				zap.Int("total", len(images)),
				zap.String("image", name),
				zap.Int("detections", n),
			)
		}
	}

	zap.L().Info("detect: pass complete",
		zap.Int("processed", sum.Processed),
		zap.Int("failed", sum.Failed),
		zap.Int("total_detections", sum.TotalDetections),
		zap.String("detections_dir", opts.DetectionsDir),
	)
	return sum, nil
}

// processImage runs inference on one tile and writes its annotated copy.
func processImage(ctx context.Context, client roboflow.Client, opts Options, name string) (int, error) {
	data, err := os.ReadFile(filepath.Join(opts.TilesDir, name))
	if err != nil {
		return 0, eris.Wrap(err, "read image")
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, eris.Wrap(err, "decode image")
	}

	resp, err := client.Infer(ctx, data, opts.Confidence)
	if err != nil {
		return 0, eris.Wrap(err, "infer")
	}

	annotated := Annotate(src, resp.Predictions)

	out, err := os.Create(filepath.Join(opts.DetectionsDir, name))
	if err != nil {
		return 0, eris.Wrap(err, "create annotated image")
	}
	if err := imagery.EncodeJPEG(out, annotated); err != nil {
		_ = out.Close()
		return 0, err
	}
	if err := out.Close(); err != nil {
		return 0, eris.Wrap(err, "close annotated image")
	}

	return len(resp.Predictions), nil
}

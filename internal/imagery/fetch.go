// Package imagery fetches raster tiles from slippy tile servers and
// composites them into stitched quads.
package imagery

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/terramap-labs/tilescout/internal/slippy"
)

// DefaultTileURL points at the public ArcGIS World Imagery service.
const DefaultTileURL = "https://services.arcgisonline.com/arcgis/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}"

// FailureKind classifies why a tile fetch produced no image.
type FailureKind int

const (
	// FailureNone means the fetch succeeded.
	FailureNone FailureKind = iota
	// FailureStatus means the server answered with a non-200 status.
	FailureStatus
	// FailureNetwork means the request never completed (timeout, connection
	// refused, context cancellation).
	FailureNetwork
	// FailureDecode means the payload was not a decodable image.
	FailureDecode
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureStatus:
		return "status"
	case FailureNetwork:
		return "network"
	case FailureDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Result is the outcome of a single tile fetch. Every failure mode collapses
// to an absent image; the pipeline tolerates partial tile loss by design.
type Result struct {
	Image   image.Image
	Failure FailureKind
}

// OK reports whether the fetch produced an image.
func (r Result) OK() bool {
	return r.Failure == FailureNone && r.Image != nil
}

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	URLTemplate string
	UserAgent   string
	Timeout     time.Duration
	// RatePerSec bounds requests to the tile server. Zero disables limiting.
	RatePerSec float64
}

// Fetcher downloads individual tiles. It never returns an error: all failure
// modes are reported through the Result so callers can keep going.
type Fetcher struct {
	client  *http.Client
	opts    FetcherOptions
	limiter *rate.Limiter
}

// NewFetcher creates a tile fetcher with the given options.
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.URLTemplate == "" {
		opts.URLTemplate = DefaultTileURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "tilescout/1.0"
	}

	var limiter *rate.Limiter
	if opts.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), int(opts.RatePerSec)+1)
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:    opts,
		limiter: limiter,
	}
}

// TileURL substitutes the tile address into the URL template.
func TileURL(template string, t slippy.Tile) string {
	r := strings.NewReplacer(
		"{x}", strconv.Itoa(t.X),
		"{y}", strconv.Itoa(t.Y),
		"{z}", strconv.Itoa(t.Z),
	)
	return r.Replace(template)
}

// Fetch downloads and decodes one tile. No retries: a failed fetch is
// permanent for the run.
func (f *Fetcher) Fetch(ctx context.Context, t slippy.Tile) Result {
	url := TileURL(f.opts.URLTemplate, t)

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return Result{Failure: FailureNetwork}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		zap.L().Warn("imagery: bad tile request", zap.String("tile", t.String()), zap.Error(err))
		return Result{Failure: FailureNetwork}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		zap.L().Warn("imagery: tile fetch failed", zap.String("tile", t.String()), zap.Error(err))
		return Result{Failure: FailureNetwork}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		zap.L().Warn("imagery: tile fetch non-200",
			zap.String("tile", t.String()),
			zap.Int("status", resp.StatusCode),
		)
		return Result{Failure: FailureStatus}
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		zap.L().Warn("imagery: tile decode failed", zap.String("tile", t.String()), zap.Error(err))
		return Result{Failure: FailureDecode}
	}

	return Result{Image: img}
}

package serve

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// basemapProxy proxies raster tiles from an upstream tile server so the
// preview map can render without cross-origin requests to third parties.
type basemapProxy struct {
	baseURL string
	format  string
	client  *http.Client
	cache   *tileCache
}

func newBasemapProxy(baseURL, format string, cache *tileCache) *basemapProxy {
	return &basemapProxy{
		baseURL: baseURL,
		format:  format,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
	}
}

// fetch retrieves a basemap tile from the upstream server or cache.
func (p *basemapProxy) fetch(ctx context.Context, z, x, y int) ([]byte, error) {
	if p.cache != nil {
		if cached := p.cache.get(z, x, y); cached != nil {
			return cached, nil
		}
	}

	url := fmt.Sprintf("%s/%d/%d/%d.%s", p.baseURL, z, x, y, p.format)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "serve: create basemap request")
	}
	req.Header.Set("User-Agent", "tilescout/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "serve: fetch basemap tile")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("serve: basemap upstream returned %d for %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "serve: read basemap tile body")
	}

	if p.cache != nil {
		p.cache.put(z, x, y, data)
	}

	zap.L().Debug("serve: fetched basemap tile", zap.String("url", url), zap.Int("bytes", len(data)))
	return data, nil
}

func (p *basemapProxy) contentType() string {
	switch p.format {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

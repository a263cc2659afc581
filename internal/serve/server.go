// Package serve exposes a downloaded project directory over HTTP: stitched
// tiles, detection overlays, footprint metadata, and a cached basemap proxy.
package serve

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Options configures the preview server.
type Options struct {
	// ProjectDir is the <outputRoot>/<projectName> directory produced by a
	// download run.
	ProjectDir    string
	BasemapURL    string
	BasemapFormat string
	CacheSize     int
	CacheTTL      time.Duration
}

// Server serves one project directory.
type Server struct {
	opts    Options
	basemap *basemapProxy
	router  chi.Router
}

// New validates the project layout and builds the server.
func New(opts Options) (*Server, error) {
	tilesDir := filepath.Join(opts.ProjectDir, "tiles")
	if _, err := os.Stat(tilesDir); err != nil {
		return nil, eris.Wrapf(err, "serve: project tiles directory %s", tilesDir)
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1000
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}

	s := &Server{opts: opts}
	if opts.BasemapURL != "" {
		s.basemap = newBasemapProxy(opts.BasemapURL, opts.BasemapFormat, newTileCache(opts.CacheSize, opts.CacheTTL))
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/api/project", s.handleProject)
	r.Get("/api/metadata", s.handleMetadata)
	r.Get("/tiles/{name}", s.handleImage("tiles"))
	r.Get("/detections/{name}", s.handleImage("detections"))
	r.Get("/basemap/{z}/{x}/{y}.{ext}", s.handleBasemap)

	s.router = r
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleProject reports what the project directory contains.
func (s *Server) handleProject(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"name":       filepath.Base(s.opts.ProjectDir),
		"tiles":      countJPEGs(filepath.Join(s.opts.ProjectDir, "tiles")),
		"detections": countJPEGs(filepath.Join(s.opts.ProjectDir, "detections")),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func countJPEGs(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jpg") {
			n++
		}
	}
	return n
}

// handleMetadata returns the footprint FeatureCollection as written by the
// download pipeline.
func (s *Server) handleMetadata(w http.ResponseWriter, _ *http.Request) {
	path := filepath.Join(s.opts.ProjectDir, "tiles", "tile_metadata.geojson")
	data, err := os.ReadFile(path)
	if err != nil {
		http.Error(w, "metadata not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

// handleImage serves one stitched or annotated JPEG by filename.
func (s *Server) handleImage(sub string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if name != filepath.Base(name) || !strings.HasSuffix(name, ".jpg") {
			http.Error(w, "invalid image name", http.StatusBadRequest)
			return
		}
		path := filepath.Join(s.opts.ProjectDir, sub, name)
		data, err := os.ReadFile(path)
		if err != nil {
			http.Error(w, "image not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_, _ = w.Write(data)
	}
}

func (s *Server) handleBasemap(w http.ResponseWriter, r *http.Request) {
	if s.basemap == nil {
		http.Error(w, "basemap proxy disabled", http.StatusNotFound)
		return
	}

	z, errZ := strconv.Atoi(chi.URLParam(r, "z"))
	x, errX := strconv.Atoi(chi.URLParam(r, "x"))
	y, errY := strconv.Atoi(chi.URLParam(r, "y"))
	if errZ != nil || errX != nil || errY != nil {
		http.Error(w, "invalid tile path", http.StatusBadRequest)
		return
	}

	data, err := s.basemap.fetch(r.Context(), z, x, y)
	if err != nil {
		zap.L().Error("serve: basemap tile fetch failed", zap.Error(err))
		http.Error(w, "upstream fetch failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", s.basemap.contentType())
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(data)
}

package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/twpayne/go-geom"

	"github.com/terramap-labs/tilescout/internal/store"
)

func TestProjectNameFromPath(t *testing.T) {
	assert.Equal(t, "barcelona", projectNameFromPath("data/barcelona.geojson"))
	assert.Equal(t, "ports", projectNameFromPath("/tmp/areas/ports.shp"))
	assert.Equal(t, "areas", projectNameFromPath("areas"))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "12345678", truncateID("12345678-abcd-efgh"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestFormatRunsList(t *testing.T) {
	runs := []store.Run{
		{
			ID:        "aaaaaaaa-1111-2222-3333-444444444444",
			Name:      "barcelona",
			Kind:      store.KindDownload,
			Zoom:      18,
			Status:    store.StatusComplete,
			TileCount: 12,
			CreatedAt: time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC),
		},
	}

	var sb strings.Builder
	formatRunsList(&sb, runs)
	out := sb.String()

	assert.Contains(t, out, "aaaaaaaa")
	assert.Contains(t, out, "barcelona")
	assert.Contains(t, out, "download")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "2026-08-01 09:30")
}

func TestGeomTypeName(t *testing.T) {
	assert.Equal(t, "Polygon", geomTypeName(geom.NewPolygon(geom.XY)))
	assert.Equal(t, "MultiPolygon", geomTypeName(geom.NewMultiPolygon(geom.XY)))
	assert.Equal(t, "Point", geomTypeName(geom.NewPoint(geom.XY)))
}

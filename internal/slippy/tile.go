// Package slippy implements web-mercator slippy map tile addressing:
// (x, y, z) tiles with a top-left origin and 256px tile size.
package slippy

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// TileSize is the pixel side length of one tile.
const TileSize = 256

// Web mercator latitude limit; latitudes beyond this are clamped.
const maxLatitude = 85.0511287798066

// Nudge applied to the max corner of a bounding box so that boxes whose edge
// sits exactly on a tile boundary do not spill into the next tile column/row.
const boundaryEpsilon = 1e-11

// Tile addresses one slippy map tile. X grows east, Y grows south.
type Tile struct {
	X int
	Y int
	Z int
}

// Extent is a geographic bounding box in EPSG:4326.
type Extent struct {
	West  float64
	South float64
	East  float64
	North float64
}

// IsDegenerate reports whether the extent has zero area.
func (e Extent) IsDegenerate() bool {
	return e.East <= e.West || e.North <= e.South
}

func (t Tile) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// Right returns the tile one column east at the same zoom.
func (t Tile) Right() Tile { return Tile{X: t.X + 1, Y: t.Y, Z: t.Z} }

// Below returns the tile one row south at the same zoom.
func (t Tile) Below() Tile { return Tile{X: t.X, Y: t.Y + 1, Z: t.Z} }

// BelowRight returns the tile one column east and one row south.
func (t Tile) BelowRight() Tile { return Tile{X: t.X + 1, Y: t.Y + 1, Z: t.Z} }

// Quad returns the tile and its three stitch siblings in quadrant order:
// top-left, top-right, bottom-left, bottom-right. Siblings past the edge of
// the tile grid are returned as-is; fetching them simply yields nothing.
func (t Tile) Quad() [4]Tile {
	return [4]Tile{t, t.Right(), t.Below(), t.BelowRight()}
}

// FromLonLat returns the tile containing the given EPSG:4326 coordinate.
func FromLonLat(lon, lat float64, z int) Tile {
	x, y := fractionalTile(lon, lat, z)
	n := 1 << uint(z)
	xi := int(math.Floor(x))
	yi := int(math.Floor(y))
	if xi < 0 {
		xi = 0
	}
	if xi > n-1 {
		xi = n - 1
	}
	if yi < 0 {
		yi = 0
	}
	if yi > n-1 {
		yi = n - 1
	}
	return Tile{X: xi, Y: yi, Z: z}
}

func fractionalTile(lon, lat float64, z int) (float64, float64) {
	if lat > maxLatitude {
		lat = maxLatitude
	}
	if lat < -maxLatitude {
		lat = -maxLatitude
	}
	n := float64(int(1) << uint(z))
	x := (lon + 180) / 360 * n
	latRad := lat * math.Pi / 180
	y := (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n
	return x, y
}

// Bounds returns the tile's geographic bounding box in EPSG:4326.
func (t Tile) Bounds() Extent {
	n := float64(int(1) << uint(t.Z))
	west := float64(t.X)/n*360 - 180
	east := float64(t.X+1)/n*360 - 180
	north := tileLat(float64(t.Y), n)
	south := tileLat(float64(t.Y+1), n)
	return Extent{West: west, South: south, East: east, North: north}
}

func tileLat(y, n float64) float64 {
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*y/n)))
	return latRad * 180 / math.Pi
}

// Polygon returns the tile's footprint as a closed go-geom polygon
// (EPSG:4326, counter-clockwise exterior ring).
func (t Tile) Polygon() *geom.Polygon {
	b := t.Bounds()
	return geom.NewPolygonFlat(geom.XY, []float64{
		b.West, b.South,
		b.East, b.South,
		b.East, b.North,
		b.West, b.North,
		b.West, b.South,
	}, []int{10}).SetSRID(4326)
}

// Covering returns the tiles at zoom z whose union of bounds contains the
// extent. Order is deterministic: columns west to east, rows north to south
// within each column. A degenerate extent yields no tiles.
func Covering(e Extent, z int) ([]Tile, error) {
	if z < 0 {
		return nil, eris.Errorf("slippy: invalid zoom %d", z)
	}
	if e.IsDegenerate() {
		return nil, nil
	}

	ul := FromLonLat(e.West, e.North, z)
	lr := FromLonLat(e.East-boundaryEpsilon, e.South+boundaryEpsilon, z)

	tiles := make([]Tile, 0, (lr.X-ul.X+1)*(lr.Y-ul.Y+1))
	for x := ul.X; x <= lr.X; x++ {
		for y := ul.Y; y <= lr.Y; y++ {
			tiles = append(tiles, Tile{X: x, Y: y, Z: z})
		}
	}
	return tiles, nil
}

package imagery

import (
	"image"
	"image/draw"
	"image/jpeg"
	"io"

	"github.com/rotisserie/eris"

	"github.com/terramap-labs/tilescout/internal/slippy"
)

// StitchedSize is the pixel side length of a stitched quad.
const StitchedSize = 2 * slippy.TileSize

const jpegQuality = 85

// StitchQuad composites up to four tile fetch results into one 512x512
// canvas. Quadrant order matches slippy.Tile.Quad: 0 top-left, 1 top-right,
// 2 bottom-left, 3 bottom-right. Absent quadrants stay zero-filled. The
// canvas is always full size, even when every input is absent.
func StitchQuad(results [4]Result) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, StitchedSize, StitchedSize))

	for i, r := range results {
		if !r.OK() {
			continue
		}
		x := (i % 2) * slippy.TileSize
		y := (i / 2) * slippy.TileSize
		rect := image.Rect(x, y, x+slippy.TileSize, y+slippy.TileSize)
		draw.Draw(canvas, rect, r.Image, r.Image.Bounds().Min, draw.Src)
	}

	return canvas
}

// EncodeJPEG writes an image as JPEG.
func EncodeJPEG(w io.Writer, img image.Image) error {
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return eris.Wrap(err, "imagery: encode jpeg")
	}
	return nil
}

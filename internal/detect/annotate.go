package detect

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/terramap-labs/tilescout/pkg/roboflow"
)

const boxThickness = 2

// Class colors cycle through a fixed palette so the same class always gets
// the same color within one image set.
var palette = []color.RGBA{
	{R: 255, G: 64, B: 64, A: 255},
	{R: 64, G: 200, B: 64, A: 255},
	{R: 64, G: 128, B: 255, A: 255},
	{R: 255, G: 200, B: 0, A: 255},
	{R: 200, G: 64, B: 255, A: 255},
	{R: 0, G: 200, B: 200, A: 255},
}

// Annotate draws bounding boxes for each prediction onto a copy of the
// source image. Predictions use center-point box coordinates.
func Annotate(src image.Image, preds []roboflow.Prediction) *image.RGBA {
	bounds := src.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, src, bounds.Min, draw.Src)

	classColors := map[string]color.RGBA{}
	next := 0

	for _, p := range preds {
		c, ok := classColors[p.Class]
		if !ok {
			c = palette[next%len(palette)]
			classColors[p.Class] = c
			next++
		}

		rect := image.Rect(
			int(p.X-p.Width/2),
			int(p.Y-p.Height/2),
			int(p.X+p.Width/2),
			int(p.Y+p.Height/2),
		).Intersect(bounds)
		if rect.Empty() {
			continue
		}
		drawBox(out, rect, c)
	}

	return out
}

// drawBox strokes a rectangle outline.
func drawBox(img *image.RGBA, rect image.Rectangle, c color.RGBA) {
	for t := 0; t < boxThickness; t++ {
		inner := rect.Inset(t)
		if inner.Empty() {
			return
		}
		for x := inner.Min.X; x < inner.Max.X; x++ {
			img.SetRGBA(x, inner.Min.Y, c)
			img.SetRGBA(x, inner.Max.Y-1, c)
		}
		for y := inner.Min.Y; y < inner.Max.Y; y++ {
			img.SetRGBA(inner.Min.X, y, c)
			img.SetRGBA(inner.Max.X-1, y, c)
		}
	}
}

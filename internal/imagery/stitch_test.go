package imagery

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terramap-labs/tilescout/internal/slippy"
)

func solidResult(c color.RGBA) Result {
	img := image.NewRGBA(image.Rect(0, 0, slippy.TileSize, slippy.TileSize))
	for y := 0; y < slippy.TileSize; y++ {
		for x := 0; x < slippy.TileSize; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return Result{Image: img}
}

func TestStitchQuadPlacement(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	green := color.RGBA{G: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}

	canvas := StitchQuad([4]Result{
		solidResult(red),
		solidResult(green),
		solidResult(blue),
		solidResult(white),
	})

	require.Equal(t, StitchedSize, canvas.Bounds().Dx())
	require.Equal(t, StitchedSize, canvas.Bounds().Dy())

	// Sample the center of each quadrant.
	assert.Equal(t, red, canvas.RGBAAt(128, 128))
	assert.Equal(t, green, canvas.RGBAAt(384, 128))
	assert.Equal(t, blue, canvas.RGBAAt(128, 384))
	assert.Equal(t, white, canvas.RGBAAt(384, 384))
}

func TestStitchQuadPartial(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}

	canvas := StitchQuad([4]Result{
		solidResult(red),
		{Failure: FailureStatus},
		{Failure: FailureNetwork},
		{Failure: FailureDecode},
	})

	require.Equal(t, StitchedSize, canvas.Bounds().Dx())
	assert.Equal(t, red, canvas.RGBAAt(10, 10))

	// Absent quadrants stay zero-filled.
	zero := color.RGBA{}
	assert.Equal(t, zero, canvas.RGBAAt(384, 128))
	assert.Equal(t, zero, canvas.RGBAAt(128, 384))
	assert.Equal(t, zero, canvas.RGBAAt(384, 384))
}

func TestStitchQuadAllAbsent(t *testing.T) {
	canvas := StitchQuad([4]Result{})

	require.Equal(t, StitchedSize, canvas.Bounds().Dx())
	require.Equal(t, StitchedSize, canvas.Bounds().Dy())
	assert.Equal(t, color.RGBA{}, canvas.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{}, canvas.RGBAAt(511, 511))
}

func TestStitchQuadDeterministic(t *testing.T) {
	in := [4]Result{
		solidResult(color.RGBA{R: 10, G: 20, B: 30, A: 255}),
		solidResult(color.RGBA{R: 40, G: 50, B: 60, A: 255}),
		{},
		solidResult(color.RGBA{R: 70, G: 80, B: 90, A: 255}),
	}

	a := StitchQuad(in)
	b := StitchQuad(in)
	assert.Equal(t, a.Pix, b.Pix)
}

func TestEncodeJPEG(t *testing.T) {
	canvas := StitchQuad([4]Result{solidResult(color.RGBA{R: 128, G: 128, B: 128, A: 255})})

	var buf bytes.Buffer
	require.NoError(t, EncodeJPEG(&buf, canvas))

	decoded, err := jpeg.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, StitchedSize, decoded.Bounds().Dx())
	assert.Equal(t, StitchedSize, decoded.Bounds().Dy())
}

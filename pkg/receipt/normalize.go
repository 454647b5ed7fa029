package receipt

import (
	"image"
	"image/color"
	"io"
	"math"

	"github.com/disintegration/imaging"
)

// DefaultMaxDim caps the longest edge of a normalized raster. Phone photos
// routinely exceed 4000px; Tesseract gains nothing above this and slows down.
const DefaultMaxDim = 2000

// Normalize decodes an uploaded receipt image and redraws it onto an opaque
// white canvas capped at maxDim on the longest edge, preserving aspect ratio.
// Images already within the cap are never upscaled. Transparent or dark
// surrounds otherwise confuse recognition, hence the solid background.
func Normalize(r io.Reader, maxDim int) (*image.NRGBA, error) {
	if maxDim <= 0 {
		maxDim = DefaultMaxDim
	}
	src, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	long := w
	if h > long {
		long = h
	}
	tw, th := w, h
	if long > maxDim {
		scale := float64(maxDim) / float64(long)
		tw = int(math.Round(float64(w) * scale))
		th = int(math.Round(float64(h) * scale))
	}
	canvas := imaging.New(tw, th, color.NRGBA{255, 255, 255, 255})
	scaled := imaging.Resize(src, tw, th, imaging.Lanczos)
	return imaging.Overlay(canvas, scaled, image.Pt(0, 0), 1.0), nil
}

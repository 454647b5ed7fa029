package receipt

import (
	"image"

	"github.com/disintegration/imaging"
)

// preprocessForOCR applies the light cleanup that helps Tesseract on phone
// photos of till receipts: grayscale kills color-cast paper, a contrast and
// sharpen bump separates thermal-print text from the background.
func preprocessForOCR(img image.Image) *image.NRGBA {
	out := imaging.Grayscale(img)
	out = imaging.AdjustContrast(out, 15)
	out = imaging.Sharpen(out, 0.7)
	return out
}

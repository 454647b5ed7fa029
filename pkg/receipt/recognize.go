package receipt

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// Recognizer turns a normalized raster into raw multi-line text. Accuracy is
// best-effort; engine selection and language are configuration. A call may
// take seconds, so implementations must honor ctx cancellation.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// TesseractRecognizer runs gosseract over a temp PNG of the raster.
type TesseractRecognizer struct {
	// Lang is the Tesseract language code. Empty means "eng".
	Lang string
}

type recResult struct {
	text string
	err  error
}

// Recognize writes img to a temp PNG and runs a single Tesseract pass over it.
// The blocking engine call runs in its own goroutine so ctx expiry (timeout or
// form reset) returns promptly; a late engine result is discarded.
func (t *TesseractRecognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	lang := t.Lang
	if lang == "" {
		lang = "eng"
	}
	tmpFile, err := os.CreateTemp("", "receipt-*.png")
	if err != nil {
		return "", &RecognitionError{Err: fmt.Errorf("temp file: %w", err)}
	}
	tmp := tmpFile.Name()
	_ = tmpFile.Close()
	if err := imaging.Save(preprocessForOCR(img), tmp); err != nil {
		_ = os.Remove(tmp)
		return "", &RecognitionError{Err: fmt.Errorf("save raster: %w", err)}
	}

	ch := make(chan recResult, 1)
	go func() {
		defer os.Remove(tmp)
		client := gosseract.NewClient()
		defer client.Close()
		_ = client.SetLanguage(lang)
		_ = client.SetPageSegMode(gosseract.PSM_AUTO)
		client.SetImage(tmp)
		text, err := client.Text()
		ch <- recResult{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", &RecognitionError{Err: ctx.Err()}
	case res := <-ch:
		if res.err != nil {
			return "", &RecognitionError{Err: res.err}
		}
		return res.text, nil
	}
}

package receipt

import (
	"bytes"
	"errors"
	"image/color"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
)

func encodePNG(t *testing.T, w, h int) *bytes.Buffer {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{200, 200, 200, 255})
	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf
}

func TestNormalizeDownscales(t *testing.T) {
	out, err := Normalize(encodePNG(t, 4000, 3000), 2000)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	b := out.Bounds()
	if b.Dx() != 2000 || b.Dy() != 1500 {
		t.Fatalf("expected 2000x1500 got %dx%d", b.Dx(), b.Dy())
	}
}

func TestNormalizeNeverUpscales(t *testing.T) {
	out, err := Normalize(encodePNG(t, 800, 600), 2000)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	b := out.Bounds()
	if b.Dx() != 800 || b.Dy() != 600 {
		t.Fatalf("expected 800x600 unchanged got %dx%d", b.Dx(), b.Dy())
	}
}

func TestNormalizeTallImage(t *testing.T) {
	out, err := Normalize(encodePNG(t, 1000, 4000), 2000)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	b := out.Bounds()
	if b.Dx() != 500 || b.Dy() != 2000 {
		t.Fatalf("expected 500x2000 got %dx%d", b.Dx(), b.Dy())
	}
}

func TestNormalizeFlattensTransparency(t *testing.T) {
	img := imaging.New(10, 10, color.NRGBA{0, 0, 0, 0})
	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := Normalize(buf, 2000)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	r, g, b, a := out.At(5, 5).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 || a>>8 != 255 {
		t.Fatalf("transparent source must land on opaque white, got %d %d %d %d", r>>8, g>>8, b>>8, a>>8)
	}
}

func TestNormalizeDecodeError(t *testing.T) {
	_, err := Normalize(strings.NewReader("not an image at all"), 2000)
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError got %v", err)
	}
}

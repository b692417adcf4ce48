package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

func encodeTestImage(t *testing.T, w, h int, asPNG bool) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 10 {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	var err error
	if asPNG {
		err = png.Encode(&buf, img)
	} else {
		err = jpeg.Encode(&buf, img, nil)
	}
	if err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func TestProcessDownscalesLargeImages(t *testing.T) {
	data := encodeTestImage(t, 3200, 2400, false)

	result, err := Process(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.MIME != "image/jpeg" {
		t.Errorf("MIME = %q, want image/jpeg", result.MIME)
	}

	decoded, _, err := image.Decode(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	b := decoded.Bounds()
	if b.Dx() != MaxDimension {
		t.Errorf("width = %d, want %d", b.Dx(), MaxDimension)
	}
	if b.Dy() != 1200 {
		t.Errorf("height = %d, want 1200 (aspect preserved)", b.Dy())
	}
}

func TestProcessKeepsSmallImages(t *testing.T) {
	data := encodeTestImage(t, 800, 600, true)

	result, err := Process(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	decoded, _, err := image.Decode(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	b := decoded.Bounds()
	if b.Dx() != 800 || b.Dy() != 600 {
		t.Errorf("bounds = %dx%d, want 800x600", b.Dx(), b.Dy())
	}
}

func TestProcessRejectsNonImages(t *testing.T) {
	_, err := Process(strings.NewReader("%PDF-1.4 not a photo"))
	if err == nil {
		t.Fatal("expected error for non-image input")
	}
}

func TestExtractMetaWithoutEXIF(t *testing.T) {
	data := encodeTestImage(t, 100, 100, false)

	meta := ExtractMeta(data)
	if meta.TakenAt != nil || meta.Latitude != nil || meta.Longitude != nil {
		t.Errorf("expected empty meta for EXIF-less image, got %+v", meta)
	}
}

package thumbnail

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// pngBytes renders a solid-color PNG of the given size.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test png: %v", err)
	}
	return buf.Bytes()
}

func decodeJPEG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a valid jpeg: %v", err)
	}
	return img
}

func TestFromCaptureDownscales(t *testing.T) {
	out, err := FromCapture(pngBytes(t, 1280, 720))
	if err != nil {
		t.Fatalf("FromCapture() error = %v", err)
	}

	img := decodeJPEG(t, out)
	if got := img.Bounds().Dx(); got != TargetWidth {
		t.Errorf("width = %d, want %d", got, TargetWidth)
	}
	// 1280x720 scaled to 350 wide keeps the 16:9 ratio.
	if got := img.Bounds().Dy(); got != 197 {
		t.Errorf("height = %d, want 197", got)
	}
}

func TestFromCaptureNeverUpscales(t *testing.T) {
	out, err := FromCapture(pngBytes(t, 200, 150))
	if err != nil {
		t.Fatalf("FromCapture() error = %v", err)
	}

	img := decodeJPEG(t, out)
	if got := img.Bounds().Dx(); got != 200 {
		t.Errorf("width = %d, want unchanged 200", got)
	}
	if got := img.Bounds().Dy(); got != 150 {
		t.Errorf("height = %d, want unchanged 150", got)
	}
}

func TestFromCaptureExactTargetWidth(t *testing.T) {
	out, err := FromCapture(pngBytes(t, TargetWidth, 100))
	if err != nil {
		t.Fatalf("FromCapture() error = %v", err)
	}
	if got := decodeJPEG(t, out).Bounds().Dx(); got != TargetWidth {
		t.Errorf("width = %d, want %d", got, TargetWidth)
	}
}

func TestFromCaptureRejectsGarbage(t *testing.T) {
	if _, err := FromCapture([]byte("not an image")); err == nil {
		t.Error("FromCapture() on garbage bytes succeeded, want error")
	}
}

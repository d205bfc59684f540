package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func createTestJPEG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func createTestPNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{0, 0, 255, 255})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func TestEncodeFrameCanvasSize(t *testing.T) {
	// Captures of any resolution land on the fixed canvas.
	for _, size := range [][2]int{{100, 100}, {1920, 1080}, {50, 200}} {
		frame, err := EncodeFrame(bytes.NewReader(createTestJPEG(size[0], size[1])))
		if err != nil {
			t.Fatalf("EncodeFrame %dx%d: %v", size[0], size[1], err)
		}

		img, err := DecodeFrame(frame)
		if err != nil {
			t.Fatalf("DecodeFrame: %v", err)
		}
		bounds := img.Bounds()
		if bounds.Dx() != FrameSize || bounds.Dy() != FrameSize {
			t.Errorf("%dx%d capture: expected %dx%d frame, got %dx%d",
				size[0], size[1], FrameSize, FrameSize, bounds.Dx(), bounds.Dy())
		}
	}
}

func TestEncodeFramePNGInput(t *testing.T) {
	frame, err := EncodeFrame(bytes.NewReader(createTestPNG(300, 300)))
	if err != nil {
		t.Fatalf("EncodeFrame PNG: %v", err)
	}
	if frame == "" {
		t.Error("expected non-empty frame")
	}
}

func TestEncodeFrameInvalidFormat(t *testing.T) {
	_, err := EncodeFrame(bytes.NewReader([]byte("not an image")))
	if err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestEncodeFrameGIFRejected(t *testing.T) {
	// GIF magic bytes.
	_, err := EncodeFrame(bytes.NewReader([]byte("GIF89a...")))
	if err == nil {
		t.Error("expected error for GIF")
	}
}

func TestDecodeFrameBadBase64(t *testing.T) {
	_, err := DecodeFrame("%%% not base64 %%%")
	if err == nil {
		t.Error("expected error for bad base64")
	}
}

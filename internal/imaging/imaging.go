// Package imaging prepares camera captures for the detection service.
// Detectors expect every frame on a fixed square canvas, so captures of
// arbitrary resolution are redrawn to FrameSize x FrameSize, re-encoded
// as JPEG, and shipped base64-encoded.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

// FrameSize is the width and height of the canvas frames are drawn onto
// before being sent to the detector.
const FrameSize = 700

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 85

// AllowedMIME lists the accepted input MIME types.
var AllowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// EncodeFrame reads raw capture data, validates the format by sniffing
// bytes, redraws it onto the fixed detector canvas, and returns the
// base64-encoded JPEG (no data-URL prefix).
func EncodeFrame(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading capture data: %w", err)
	}

	// Sniff actual MIME type from bytes (not trusting file extensions).
	detected := http.DetectContentType(data)
	if !AllowedMIME[detected] {
		return "", fmt.Errorf("unsupported capture format: %s (only JPEG and PNG accepted)", detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decoding capture: %w", err)
	}

	return EncodeImageFrame(img)
}

// EncodeImageFrame redraws a decoded image onto the detector canvas and
// returns the base64-encoded JPEG.
func EncodeImageFrame(img image.Image) (string, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, FrameSize, FrameSize))
	draw.CatmullRom.Scale(canvas, canvas.Bounds(), img, img.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return "", fmt.Errorf("encoding JPEG frame: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeFrame reverses EncodeFrame, returning the decoded image.
// Detection services use it; clients only need it in tests.
func DecodeFrame(frame string) (image.Image, error) {
	data, err := base64.StdEncoding.DecodeString(frame)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 frame: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding frame image: %w", err)
	}
	return img, nil
}

func init() {
	// Register decoders (jpeg is registered by default, but be explicit).
	image.RegisterFormat("jpeg", "\xff\xd8", jpeg.Decode, jpeg.DecodeConfig)
	image.RegisterFormat("png", "\x89PNG", png.Decode, png.DecodeConfig)
}

// Package detect talks to the remote object-detection service. The service
// classifies camera frames and returns labeled confidence scores; this
// package hides whether frames travel over plain HTTP requests or a
// persistent WebSocket stream.
package detect

import (
	"context"
	"strings"
)

// Detection is one labeled hit in a classified frame.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        []int   `json:"box,omitempty"`
}

// Transport submits one encoded frame and returns the detections the
// service found in it. Implementations must be safe for sequential reuse;
// HTTPTransport is additionally safe for concurrent use.
type Transport interface {
	SubmitFrame(ctx context.Context, frame string) ([]Detection, error)
}

// DefaultThreshold is the minimum confidence for a detection to count as a
// match during verification.
const DefaultThreshold = 0.6

// Match reports whether any detection identifies the named item: labels
// compare case-insensitively and the confidence must exceed the threshold.
func Match(detections []Detection, name string, threshold float64) bool {
	for _, d := range detections {
		if strings.EqualFold(d.Label, name) && d.Confidence > threshold {
			return true
		}
	}
	return false
}

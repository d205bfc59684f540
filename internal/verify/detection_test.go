package verify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gulaghaa/SDP/internal/detect"
)

// scriptedTransport replays a fixed sequence of detection responses, one
// per submitted frame, repeating the last entry once exhausted.
type scriptedTransport struct {
	calls     atomic.Int64
	responses [][]detect.Detection
	delay     func(call int64) time.Duration
}

func (t *scriptedTransport) SubmitFrame(ctx context.Context, _ string) ([]detect.Detection, error) {
	call := t.calls.Add(1) - 1
	if t.delay != nil {
		select {
		case <-time.After(t.delay(call)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	idx := int(call)
	if idx >= len(t.responses) {
		idx = len(t.responses) - 1
	}
	return t.responses[idx], nil
}

var stubFrames = FrameFunc(func(context.Context) (string, error) {
	return "ZnJhbWU=", nil
})

func fastConfig(tr detect.Transport) DetectionConfig {
	return DetectionConfig{
		Transport: tr,
		Frames:    stubFrames,
		Interval:  5 * time.Millisecond,
		Timeout:   500 * time.Millisecond,
	}
}

func TestRunDetectionMatch(t *testing.T) {
	w := &fakeWriter{}
	s := NewSession(testRoom(), w)
	require.True(t, s.ScanBarcode(0, "ABC123"))

	tr := &scriptedTransport{responses: [][]detect.Detection{
		{{Label: "person", Confidence: 0.9}, {Label: "monitor", Confidence: 0.75}},
	}}
	verified, err := s.RunDetection(context.Background(), 0, fastConfig(tr))
	require.NoError(t, err)
	assert.True(t, verified)
	assert.Equal(t, Verified, s.State(0))
	assert.Empty(t, w.rooms, "detection success is local until completion")
}

func TestRunDetectionBelowThreshold(t *testing.T) {
	w := &fakeWriter{}
	s := NewSession(testRoom(), w)
	require.True(t, s.ScanBarcode(0, "ABC123"))

	cfg := fastConfig(&scriptedTransport{responses: [][]detect.Detection{
		{{Label: "monitor", Confidence: 0.4}},
	}})
	cfg.Timeout = 40 * time.Millisecond

	verified, err := s.RunDetection(context.Background(), 0, cfg)
	require.NoError(t, err)
	assert.False(t, verified)

	// Timeout marked the item missing and persisted the room.
	room := w.last(t)
	assert.Len(t, room.Inventory, 2)
	require.Len(t, room.MissedItems, 1)
	assert.Equal(t, "Monitor", room.MissedItems[0].Name)
}

func TestRunDetectionCancelled(t *testing.T) {
	w := &fakeWriter{}
	s := NewSession(testRoom(), w)
	require.True(t, s.ScanBarcode(0, "ABC123"))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	tr := &scriptedTransport{responses: [][]detect.Detection{
		{{Label: "chair", Confidence: 0.9}},
	}}
	verified, err := s.RunDetection(ctx, 0, fastConfig(tr))
	require.NoError(t, err, "cancellation still persists the missing item")
	assert.False(t, verified)
	require.Len(t, w.last(t).MissedItems, 1)
}

func TestRunDetectionDiscardsStaleResponse(t *testing.T) {
	w := &fakeWriter{}
	s := NewSession(testRoom(), w)
	require.True(t, s.ScanBarcode(0, "ABC123"))

	// The first response matches but arrives long after the second; by
	// then it is stale and must not verify the item. The run ends in a
	// timeout instead.
	tr := &scriptedTransport{
		responses: [][]detect.Detection{
			{{Label: "monitor", Confidence: 0.9}},
			{{Label: "laptop", Confidence: 0.9}},
		},
		delay: func(call int64) time.Duration {
			if call == 0 {
				return 60 * time.Millisecond
			}
			return 0
		},
	}
	cfg := fastConfig(tr)
	cfg.Timeout = 120 * time.Millisecond

	verified, err := s.RunDetection(context.Background(), 0, cfg)
	require.NoError(t, err)
	assert.False(t, verified, "stale match must be discarded")
	assert.Equal(t, Unverified, s.State(0), "item was marked missing, not verified")
}

func TestRunDetectionTransportErrorsAreRetried(t *testing.T) {
	w := &fakeWriter{}
	s := NewSession(testRoom(), w)
	require.True(t, s.ScanBarcode(0, "ABC123"))

	var calls atomic.Int64
	tr := transportFunc(func(context.Context, string) ([]detect.Detection, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("detector unavailable")
		}
		return []detect.Detection{{Label: "monitor", Confidence: 0.8}}, nil
	})

	verified, err := s.RunDetection(context.Background(), 0, fastConfig(tr))
	require.NoError(t, err)
	assert.True(t, verified)
}

func TestRunDetectionRequiresBarcode(t *testing.T) {
	s := NewSession(testRoom(), &fakeWriter{})

	_, err := s.RunDetection(context.Background(), 0, fastConfig(nil))
	assert.ErrorIs(t, err, ErrBarcodeFirst)

	_, err = s.RunDetection(context.Background(), 9, fastConfig(nil))
	assert.ErrorIs(t, err, ErrNoSuchItem)

	s.ScanBarcode(0, "ABC123")
	s.check(0).object = true
	_, err = s.RunDetection(context.Background(), 0, fastConfig(nil))
	assert.ErrorIs(t, err, ErrAlreadyVerified)
}

type transportFunc func(ctx context.Context, frame string) ([]detect.Detection, error)

func (f transportFunc) SubmitFrame(ctx context.Context, frame string) ([]detect.Detection, error) {
	return f(ctx, frame)
}

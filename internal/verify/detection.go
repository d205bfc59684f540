package verify

import (
	"context"
	"time"

	"github.com/Gulaghaa/SDP/internal/detect"
)

// Detection loop defaults.
const (
	DefaultInterval = time.Second
	DefaultTimeout  = 60 * time.Second
)

// FrameSource produces base64-encoded JPEG frames for detection. The
// camera capture implements it; tests feed canned frames.
type FrameSource interface {
	Frame(ctx context.Context) (string, error)
}

// FrameFunc adapts a function to a FrameSource.
type FrameFunc func(ctx context.Context) (string, error)

func (f FrameFunc) Frame(ctx context.Context) (string, error) { return f(ctx) }

// DetectionConfig wires a detection run.
type DetectionConfig struct {
	Transport detect.Transport
	Frames    FrameSource
	Interval  time.Duration // frame capture interval, default DefaultInterval
	Timeout   time.Duration // overall cap, default DefaultTimeout
	Threshold float64       // confidence threshold, default detect.DefaultThreshold
}

type frameResult struct {
	seq        uint64
	detections []detect.Detection
	err        error
}

// RunDetection drives the object-detection phase for the inventory item at
// index i, whose barcode was already matched. Frames are captured on a
// fixed interval and submitted to the detection collaborator; each
// submission carries a sequence number, and responses that arrive out of
// order behind an already-accepted one are discarded.
//
// A detection whose label matches the item name above the confidence
// threshold verifies the item (locally only) and returns true. If the
// timeout elapses, or ctx is cancelled before a match, the item is marked
// missing and RunDetection returns false. Frame capture or transport
// errors skip that cycle; only persistence failures abort the run.
func (s *Session) RunDetection(ctx context.Context, i int, cfg DetectionConfig) (bool, error) {
	if i < 0 || i >= len(s.room.Inventory) {
		return false, ErrNoSuchItem
	}
	switch s.State(i) {
	case Verified:
		return false, ErrAlreadyVerified
	case Unverified:
		return false, ErrBarcodeFirst
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = detect.DefaultThreshold
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	item := s.room.Inventory[i]
	results := make(chan frameResult)
	var sent, accepted uint64

	for {
		select {
		case <-runCtx.Done():
			// Walker left the detection view; the item counts as missing.
			// Persistence must still go through, so strip the cancellation.
			s.log.Info().Str("item", item.Name).Msg("detection cancelled")
			return false, s.MarkMissing(context.WithoutCancel(ctx), i)

		case <-deadline.C:
			s.log.Info().Str("item", item.Name).Msg("detection timed out")
			return false, s.MarkMissing(ctx, i)

		case <-ticker.C:
			sent++
			go s.submitFrame(runCtx, cfg.Transport, cfg.Frames, sent, results)

		case res := <-results:
			if res.seq <= accepted {
				continue // a newer response already landed
			}
			accepted = res.seq
			if res.err != nil {
				s.log.Warn().Err(res.err).Uint64("seq", res.seq).Msg("detection cycle failed")
				continue
			}
			if detect.Match(res.detections, item.Name, threshold) {
				s.check(i).object = true
				s.log.Info().Str("item", item.Name).Uint64("seq", res.seq).Msg("object detected")
				return true, nil
			}
		}
	}
}

// submitFrame captures one frame and runs it through the transport.
// Results from cycles that outlive the run are dropped, not delivered.
func (s *Session) submitFrame(ctx context.Context, tr detect.Transport, frames FrameSource, seq uint64, results chan<- frameResult) {
	res := frameResult{seq: seq}

	frame, err := frames.Frame(ctx)
	if err != nil {
		res.err = err
	} else {
		res.detections, res.err = tr.SubmitFrame(ctx, frame)
	}

	select {
	case results <- res:
	case <-ctx.Done():
	}
}

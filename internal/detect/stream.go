package detect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StreamTransport holds a persistent WebSocket connection to the detection
// service's /stream endpoint. Frames go out as text messages; each reply is
// a JSON object carrying the detections for the most recent frame (the
// service also echoes an annotated image, which is ignored).
type StreamTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// streamResponse is the per-frame reply. Image is the annotated echo frame.
type streamResponse struct {
	Image      string      `json:"image"`
	Detections []Detection `json:"detections"`
}

// DialStream connects to the detection stream at url (ws:// or wss://).
func DialStream(ctx context.Context, url string) (*StreamTransport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing detection stream: %w", err)
	}
	return &StreamTransport{conn: conn}, nil
}

// SubmitFrame implements Transport. The stream protocol pairs one reply
// with one frame, so sends are serialized.
func (t *StreamTransport) SubmitFrame(ctx context.Context, frame string) ([]Detection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	deadline := time.Now().Add(30 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting write deadline: %w", err)
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		return nil, fmt.Errorf("sending frame: %w", err)
	}

	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting read deadline: %w", err)
	}
	var resp streamResponse
	if err := t.conn.ReadJSON(&resp); err != nil {
		return nil, fmt.Errorf("reading detections: %w", err)
	}
	return resp.Detections, nil
}

// Close closes the stream connection.
func (t *StreamTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Best effort: tell the peer we're going away before closing.
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return t.conn.Close()
}

package sensor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// orientationFrame is the companion app's wire format.
type orientationFrame struct {
	Pitch       float64 `json:"pitch"`
	TimestampMS int64   `json:"timestamp_ms,omitempty"`
}

// WebsocketSource reads the companion device's orientation feed.
type WebsocketSource struct {
	conn *websocket.Conn
}

// NewWebsocketSource dials the feed. A 401 or 403 handshake response maps to
// ErrPermissionDenied so callers can disable the inclinometric path without
// treating it as a transport fault.
func NewWebsocketSource(ctx context.Context, url string) (*WebsocketSource, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: feed returned HTTP %d", ErrPermissionDenied, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial orientation feed: %w", err)
	}
	return &WebsocketSource{conn: conn}, nil
}

// Next blocks until the next frame arrives.
func (s *WebsocketSource) Next() (Sample, error) {
	var f orientationFrame
	if err := s.conn.ReadJSON(&f); err != nil {
		return Sample{}, fmt.Errorf("read orientation frame: %w", err)
	}
	at := time.Now()
	if f.TimestampMS > 0 {
		at = time.UnixMilli(f.TimestampMS)
	}
	return Sample{AngleDeg: f.Pitch, At: at}, nil
}

// Close sends a close frame and tears down the connection, unblocking any
// pending Next.
func (s *WebsocketSource) Close() error {
	deadline := time.Now().Add(time.Second)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return s.conn.Close()
}

package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

var (
	// ErrConnClosed is returned from SendMedia once Close has been
	// called.
	ErrConnClosed = errors.New("telephony: connection closed")

	// ErrMalformedFrame wraps a JSON decode failure on an inbound frame.
	// Per the adapter's failure semantics this is non-terminal: the
	// caller logs it and drops the message, the connection stays open.
	ErrMalformedFrame = errors.New("telephony: malformed control frame")
)

// Conn wraps one telephony WebSocket connection, decoding the JSON
// control/media protocol on read and encoding outbound media frames on
// write. It holds no call-level state; the owning session tracks the
// stream SID and everything else.
type Conn struct {
	ws     *websocket.Conn
	closed atomic.Bool
}

// Accept upgrades an incoming HTTP request to a telephony WebSocket
// connection.
func Accept(w http.ResponseWriter, r *http.Request, opts *websocket.AcceptOptions) (*Conn, error) {
	ws, err := websocket.Accept(w, r, opts)
	if err != nil {
		return nil, fmt.Errorf("telephony: accept failed: %w", err)
	}
	return &Conn{ws: ws}, nil
}

// ReadMessage blocks for the next control/media frame. A malformed JSON
// payload is reported as an error for the caller to log and drop, per
// the adapter's "malformed JSON is logged and the message dropped"
// failure semantics; it does not terminate the connection.
func (c *Conn) ReadMessage(ctx context.Context) (InboundMessage, error) {
	var msg InboundMessage
	_, payload, err := c.ws.Read(ctx)
	if err != nil {
		return msg, fmt.Errorf("telephony: read failed: %w", err)
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return msg, nil
}

// SendMedia writes one outbound media frame. It implements
// pacer.Sender so the Frame Pacer can drive playback directly against a
// live connection.
func (c *Conn) SendMedia(streamSID string, b64Payload string) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	msg := NewOutboundMedia(streamSID, b64Payload)
	if err := wsjson.Write(context.Background(), c.ws, msg); err != nil {
		return fmt.Errorf("telephony: send media failed: %w", err)
	}
	return nil
}

// SendConnected writes the informational connected acknowledgement some
// providers expect before start.
func (c *Conn) SendConnected(ctx context.Context) error {
	msg := map[string]string{"event": "connected", "protocol": "Call", "version": "1.0.0"}
	if err := wsjson.Write(ctx, c.ws, msg); err != nil {
		return fmt.Errorf("telephony: send connected failed: %w", err)
	}
	return nil
}

// Close closes the underlying WebSocket. Idempotent: a second Close is a
// no-op, matching the adapter's "closed WS is idempotent with stop" rule.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.ws.Close(websocket.StatusNormalClosure, "")
}

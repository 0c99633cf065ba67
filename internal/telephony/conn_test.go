package telephony

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func TestConnReadMessageRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Accept(w, r, nil)
		if err != nil {
			t.Errorf("Accept() error = %v", err)
			return
		}
		defer conn.Close()

		msg, err := conn.ReadMessage(r.Context())
		if err != nil {
			t.Errorf("ReadMessage() error = %v", err)
			return
		}
		if msg.Event != "start" || msg.Start == nil || msg.Start.StreamSID != "MZtest" {
			t.Errorf("ReadMessage() = %+v, want start event with streamSid MZtest", msg)
		}

		if err := conn.SendMedia("MZtest", "AAAA"); err != nil {
			t.Errorf("SendMedia() error = %v", err)
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close(websocket.StatusNormalClosure, "")

	start := map[string]interface{}{
		"event": "start",
		"start": map[string]string{"streamSid": "MZtest", "callSid": "CAtest", "accountSid": "ACtest"},
	}
	raw, err := json.Marshal(start)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if err := client.Write(ctx, websocket.MessageText, raw); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	_, payload, err := client.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	var outbound OutboundMediaMessage
	if err := json.Unmarshal(payload, &outbound); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if outbound.Event != "media" || outbound.StreamSID != "MZtest" || outbound.Media.Payload != "AAAA" {
		t.Errorf("outbound = %+v, want media frame for MZtest with payload AAAA", outbound)
	}
}

func TestConnCloseIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Accept(w, r, nil)
		if err != nil {
			t.Errorf("Accept() error = %v", err)
			return
		}
		if err := conn.Close(); err != nil {
			t.Errorf("first Close() error = %v", err)
		}
		if err := conn.Close(); err != nil {
			t.Errorf("second Close() error = %v", err)
		}
		if err := conn.SendMedia("MZtest", "AAAA"); err != ErrConnClosed {
			t.Errorf("SendMedia() after close error = %v, want ErrConnClosed", err)
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close(websocket.StatusNormalClosure, "")

	time.Sleep(50 * time.Millisecond)
}

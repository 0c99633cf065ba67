package tts

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// LokutorTTS is a persistent WebSocket TTS client, adapted from the
// teacher's pkg/providers/tts/lokutor.go to the codec=linear16/8kHz
// contract spec.md §4.6 requires instead of the teacher's mic-rate
// synthesis.
type LokutorTTS struct {
	apiKey string
	host   string
	scheme string

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewLokutorTTS builds a Lokutor WS TTS client.
func NewLokutorTTS(apiKey string) *LokutorTTS {
	return &LokutorTTS{apiKey: apiKey, host: "api.lokutor.com", scheme: "wss"}
}

func (t *LokutorTTS) Name() string { return "lokutor" }

func (t *LokutorTTS) getConn(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return t.conn, nil
	}

	u := url.URL{Scheme: t.scheme, Host: t.host, Path: "/ws", RawQuery: "api_key=" + t.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("tts: lokutor dial failed: %w", err)
	}
	t.conn = conn
	return conn, nil
}

// Synthesize requests codec=linear16, sample_rate=8000 and concatenates
// every binary chunk the upstream streams back until it signals EOS.
func (t *LokutorTTS) Synthesize(ctx context.Context, text, voice, language string) ([]byte, error) {
	conn, err := t.getConn(ctx)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	req := map[string]interface{}{
		"text":        text,
		"voice":       voice,
		"lang":        language,
		"codec":       "linear16",
		"sample_rate": 8000,
	}
	if err := wsjson.Write(ctx, conn, req); err != nil {
		t.conn = nil
		conn.Close(websocket.StatusAbnormalClosure, "failed to write json")
		return nil, fmt.Errorf("tts: lokutor send failed: %w", err)
	}

	var audio []byte
	for {
		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			t.conn = nil
			conn.Close(websocket.StatusAbnormalClosure, "failed to read")
			return nil, fmt.Errorf("tts: lokutor read failed: %w", err)
		}

		switch messageType {
		case websocket.MessageBinary:
			audio = append(audio, payload...)
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				return audio, nil
			}
			if len(msg) >= 4 && msg[:4] == "ERR:" {
				return nil, fmt.Errorf("tts: lokutor error: %s", msg)
			}
		}
	}
}

// Close releases the persistent connection, if any.
func (t *LokutorTTS) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close(websocket.StatusNormalClosure, "")
	t.conn = nil
	return err
}

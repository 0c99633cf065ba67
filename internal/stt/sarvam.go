package stt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// SarvamSTT dials Sarvam's streaming transcription WebSocket, configured
// for 8kHz linear PCM and high VAD sensitivity per spec.md §4.3.
type SarvamSTT struct {
	apiKey string
	host   string
}

// NewSarvamSTT builds a Sarvam streaming provider.
func NewSarvamSTT(apiKey string) *SarvamSTT {
	return &SarvamSTT{apiKey: apiKey, host: "api.sarvam.ai"}
}

func (s *SarvamSTT) Name() string { return "sarvam-stt" }

// sarvamUpstreamMessage is the shape of one event emitted by the
// upstream; transcript text may arrive nested under "data" depending on
// event type, matching spec.md §4.3's "possibly nested under data".
type sarvamUpstreamMessage struct {
	Type string `json:"type"`
	Data *struct {
		Transcript string `json:"transcript"`
		IsFinal    bool   `json:"is_final"`
	} `json:"data,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	IsFinal    bool   `json:"is_final,omitempty"`
}

// Open dials the upstream and starts its read loop, pushing parsed
// events to onEvent until the connection closes.
func (s *SarvamSTT) Open(ctx context.Context, onEvent func(Event)) (Session, error) {
	u := url.URL{
		Scheme:   "wss",
		Host:     s.host,
		Path:     "/speech-to-text/ws",
		RawQuery: "api-subscription-key=" + s.apiKey + "&sample_rate=8000&vad_sensitivity=high&mode=transcription",
	}

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("stt: sarvam dial failed: %w", err)
	}

	session := &sarvamSession{conn: conn}
	go session.readLoop(onEvent)
	return session, nil
}

type sarvamSession struct {
	conn *websocket.Conn
}

func (sess *sarvamSession) SendBatch(ctx context.Context, wavPCM []byte) error {
	frame := map[string]string{
		"event": "transcribe",
		"audio": base64.StdEncoding.EncodeToString(wavPCM),
	}
	if err := wsjson.Write(ctx, sess.conn, frame); err != nil {
		return fmt.Errorf("stt: sarvam send failed: %w", err)
	}
	return nil
}

func (sess *sarvamSession) Close() error {
	return sess.conn.Close(websocket.StatusNormalClosure, "")
}

func (sess *sarvamSession) readLoop(onEvent func(Event)) {
	ctx := context.Background()
	for {
		_, payload, err := sess.conn.Read(ctx)
		if err != nil {
			onEvent(Event{Type: EventClosed, CloseCode: closeCodeFromError(err)})
			return
		}

		var msg sarvamUpstreamMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "transcript":
			text := msg.Transcript
			final := msg.IsFinal
			if msg.Data != nil {
				text = msg.Data.Transcript
				final = msg.Data.IsFinal
			}
			if text != "" {
				onEvent(Event{Type: EventTranscript, Transcript: text, IsFinal: final})
			}
		case "speech_start":
			onEvent(Event{Type: EventSpeechStart})
		case "speech_end":
			onEvent(Event{Type: EventSpeechEnd})
		case "error":
			onEvent(Event{Type: EventError, Err: fmt.Errorf("stt: sarvam reported error")})
		}
	}
}

// closeCodeFromError extracts the WS close code from a coder/websocket
// read error, defaulting to an abnormal-closure code when the error
// doesn't carry one (e.g. a network-level failure).
func closeCodeFromError(err error) int {
	if code := websocket.CloseStatus(err); code != -1 {
		return int(code)
	}
	return int(websocket.StatusAbnormalClosure)
}

// Package stt manages the per-call streaming speech-to-text upstream:
// frame batching, the reconnect policy, and the event fan-out to the
// utterance assembler.
package stt

import "context"

// Provider is a streaming STT upstream. It is opened once per call and
// driven by Manager; a concrete provider (Sarvam's WS API, here) owns
// the wire protocol.
type Provider interface {
	// Open dials the upstream and returns a live Session, or an error if
	// the dial itself failed (never reconnected by the provider itself;
	// Manager owns reconnect policy).
	Open(ctx context.Context, onEvent func(Event)) (Session, error)
	Name() string
}

// Session is one live streaming STT connection.
type Session interface {
	// SendBatch sends one WAV-wrapped PCM batch upstream; batching
	// itself is done by the Manager.
	SendBatch(ctx context.Context, wavPCM []byte) error
	// Close tears down the upstream. Idempotent.
	Close() error
}

// EventType enumerates the upstream events the Manager reacts to, per
// spec.md §4.3.
type EventType int

const (
	EventTranscript EventType = iota
	EventSpeechStart
	EventSpeechEnd
	EventError
	// EventClosed carries the close code the upstream reported, feeding
	// the Manager's reconnect decision.
	EventClosed
)

// Event is one message pushed by a Provider's read loop.
type Event struct {
	Type       EventType
	Transcript string
	IsFinal    bool
	CloseCode  int
	Err        error
}

// BatchProvider is a non-streaming, request/response STT client — the
// fallback surface this package exposes for batch-style providers
// (GroqBatch and DeepgramBatch here) that only ever see a complete
// utterance rather than a live upstream.
type BatchProvider interface {
	Transcribe(ctx context.Context, pcm []byte, language string) (string, error)
	Name() string
}

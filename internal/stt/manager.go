package stt

import (
	"context"
	"fmt"
	"sync"

	"github.com/lokutor-ai/lokutor-orchestrator/pkg/audio"
)

// NormalClosureCode is the WS close code that permits a reconnect
// attempt, per spec.md §4.3's reconnect policy.
const NormalClosureCode = 1000

// batchThresholdBytes is the minimum buffered PCM16LE @ 8kHz payload
// before a batch is flushed upstream: 200ms * 8000 samples/sec * 2
// bytes/sample / 1000ms.
const batchThresholdBytes = 3200

// Manager owns one call's streaming STT upstream: PCM batching, the
// hold-until-OPEN buffer, and the reconnect policy. It generalizes the
// teacher's per-session upstream handle without any of its mic/VAD
// concerns — audio arrives already decoded from the telephony leg.
type Manager struct {
	provider Provider
	language string

	batchProvider BatchProvider

	mu       sync.Mutex
	session  Session
	open     bool
	pending  []byte
	hadError bool
	stopped  bool
	degraded bool

	onTranscript  func(transcript string, isFinal bool)
	onSpeechStart func()
	onSpeechEnd   func()
	onClosed      func(closeCode int)
}

// OnClosed registers a callback fired whenever the upstream reports
// EventClosed, so the session orchestrator can apply the reconnect
// policy and the close-code-1000 implicit speech_end fallback.
func (m *Manager) OnClosed(fn func(closeCode int)) {
	m.mu.Lock()
	m.onClosed = fn
	m.mu.Unlock()
}

// New builds a Manager bound to provider. The callbacks fire from the
// provider's event read loop; callers must not block in them.
// batchProvider may be nil; when set, it becomes the non-streaming
// fallback transcriber EnterDegraded switches to once the streaming
// upstream has gone sticky-dark (spec.md §7: "sticky upstream ... call
// continues with degraded functionality").
func New(provider Provider, language string, onTranscript func(string, bool), onSpeechStart, onSpeechEnd func(), batchProvider BatchProvider) *Manager {
	return &Manager{
		provider:      provider,
		language:      language,
		onTranscript:  onTranscript,
		onSpeechStart: onSpeechStart,
		onSpeechEnd:   onSpeechEnd,
		batchProvider: batchProvider,
	}
}

// EnterDegraded switches subsequent Write calls from the streaming
// upstream to one-shot request/response transcription via
// batchProvider, once the caller has decided ShouldReconnect no longer
// applies (a sticky close). Without a batchProvider, batches that reach
// the threshold afterward are discarded; the call still continues, just
// without further transcripts.
func (m *Manager) EnterDegraded() {
	m.mu.Lock()
	m.degraded = true
	m.mu.Unlock()
}

// Degraded reports whether the Manager has fallen back to batch
// transcription.
func (m *Manager) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

// Start dials the upstream. It may be called again after a permitted
// reconnect; a second concurrent Start is the caller's responsibility
// to avoid.
func (m *Manager) Start(ctx context.Context) error {
	session, err := m.provider.Open(ctx, m.handleEvent)
	if err != nil {
		return fmt.Errorf("stt: open failed: %w", err)
	}

	m.mu.Lock()
	m.session = session
	m.open = true
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	if len(pending) > 0 {
		if err := m.flush(ctx, pending); err != nil {
			return err
		}
	}
	return nil
}

// Write stages PCM (linear 16-bit @ 8kHz) for transmission. Once at
// least batchThresholdBytes have accumulated and the upstream is OPEN,
// the batch is wrapped in a WAV header and sent. Audio arriving before
// OPEN is held and flushed immediately after Start succeeds.
func (m *Manager) Write(ctx context.Context, pcm []byte) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.pending = append(m.pending, pcm...)
	open := m.open
	degraded := m.degraded
	var batch []byte
	if (open || degraded) && len(m.pending) >= batchThresholdBytes {
		batch = m.pending
		m.pending = nil
	}
	m.mu.Unlock()

	if batch == nil {
		return nil
	}
	if degraded {
		m.transcribeDegraded(ctx, batch)
		return nil
	}
	return m.flush(ctx, batch)
}

// transcribeDegraded sends one accumulated PCM batch through
// batchProvider and feeds the result back through onTranscript as a
// final transcript, mirroring the streaming upstream's speech_end
// contract as closely as a one-shot call can. Runs in its own
// goroutine so a slow batch HTTP round trip never stalls the media
// read loop.
func (m *Manager) transcribeDegraded(ctx context.Context, pcm []byte) {
	m.mu.Lock()
	bp := m.batchProvider
	language := m.language
	m.mu.Unlock()
	if bp == nil {
		return
	}
	go func() {
		text, err := bp.Transcribe(ctx, pcm, language)
		if err != nil || text == "" {
			return
		}
		if m.onTranscript != nil {
			m.onTranscript(text, true)
		}
	}()
}

func (m *Manager) flush(ctx context.Context, pcm []byte) error {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()
	if session == nil {
		return ErrUpstreamNotOpen
	}

	wav := audio.NewWavBuffer(pcm, 8000)
	if err := session.SendBatch(ctx, wav); err != nil {
		return fmt.Errorf("stt: send batch failed: %w", err)
	}
	return nil
}

// FlushRemaining sends any buffered audio immediately, used during
// session teardown so the last partial batch isn't silently dropped.
func (m *Manager) FlushRemaining(ctx context.Context) error {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	open := m.open
	degraded := m.degraded
	m.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	if degraded {
		m.transcribeDegraded(ctx, pending)
		return nil
	}
	if !open {
		return nil
	}
	return m.flush(ctx, pending)
}

func (m *Manager) handleEvent(ev Event) {
	switch ev.Type {
	case EventTranscript:
		if ev.Transcript != "" && m.onTranscript != nil {
			m.onTranscript(ev.Transcript, ev.IsFinal)
		}
	case EventSpeechStart:
		if m.onSpeechStart != nil {
			m.onSpeechStart()
		}
	case EventSpeechEnd:
		if m.onSpeechEnd != nil {
			m.onSpeechEnd()
		}
	case EventError:
		m.mu.Lock()
		m.hadError = true
		m.mu.Unlock()
	case EventClosed:
		m.mu.Lock()
		m.open = false
		m.session = nil
		onClosed := m.onClosed
		m.mu.Unlock()
		if onClosed != nil {
			onClosed(ev.CloseCode)
		}
	}
}

// ShouldReconnect reports whether a reconnect attempt is permitted for
// the most recent close, per spec.md §4.3: only on close code 1000,
// only if the session has not been stopped, and only if no error was
// observed on this upstream.
func (m *Manager) ShouldReconnect(closeCode int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || m.hadError {
		return false
	}
	return closeCode == NormalClosureCode
}

// Stop marks the session stopped; no further writes or reconnects are
// permitted afterward. It also closes the live upstream session, if
// any, ignoring any error from that close.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	session := m.session
	m.session = nil
	m.open = false
	m.mu.Unlock()

	if session != nil {
		_ = session.Close()
	}
}

// IsOpen reports whether the upstream is currently connected.
func (m *Manager) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

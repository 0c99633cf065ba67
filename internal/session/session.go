// Package session wires the Media Adapter, STT Manager, Utterance
// Assembler, LLM Driver, TTS Queue, Frame Pacer, and recorder together
// for one call. It generalizes the teacher's ManagedStream: one owning
// struct, one mutex guarding only the fields touched from more than one
// goroutine, cancellation propagated through a child context, and an
// Events() channel for observability — with the teacher's mic/VAD/echo
// concerns dropped in favor of the telephony adapter's start/media/stop
// event stream as the input side.
package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/lokutor-ai/lokutor-orchestrator/internal/assembler"
	"github.com/lokutor-ai/lokutor-orchestrator/internal/llmdriver"
	"github.com/lokutor-ai/lokutor-orchestrator/internal/logging"
	"github.com/lokutor-ai/lokutor-orchestrator/internal/metrics"
	"github.com/lokutor-ai/lokutor-orchestrator/internal/pacer"
	"github.com/lokutor-ai/lokutor-orchestrator/internal/recorder"
	"github.com/lokutor-ai/lokutor-orchestrator/internal/stt"
	"github.com/lokutor-ai/lokutor-orchestrator/internal/telephony"
	"github.com/lokutor-ai/lokutor-orchestrator/internal/tts"
	"github.com/lokutor-ai/lokutor-orchestrator/pkg/audio"

	"github.com/google/uuid"
)

// CallSession owns everything scoped to one telephony WebSocket
// connection: the conversation history (via llm), the STT upstream
// handle, the outbound WS writer, and the cancellation handle that
// tears all of it down together.
type CallSession struct {
	conn      *telephony.Conn
	sttMgr    *stt.Manager
	asm       *assembler.Assembler
	llm       *llmdriver.Driver
	ttsQueue  *tts.Queue
	pacerP    *pacer.Pacer
	met       *metrics.Metrics
	log       *logging.SlogLogger
	cfg       Config
	sttName   string
	llmName   string
	sessionID string

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	events    chan Event

	mu              sync.Mutex
	streamSID       string
	callSID         string
	stopped         bool
	rec             *recorder.Recorder
	turnCancel      context.CancelFunc
	userSpeechEndAt time.Time
	llmStartAt      time.Time
	llmEndAt        time.Time
	ttsFirstChunkAt time.Time
}

// New builds a CallSession bound to one accepted telephony connection.
// sttProvider and llmProvider are dialed/opened lazily as the call
// proceeds; ttsQueue is expected to be shared process-wide per spec.md
// §4.6's "one TTS request at a time across all active calls" contract.
func New(
	parent context.Context,
	conn *telephony.Conn,
	sttProvider stt.Provider,
	sttBatchFallback stt.BatchProvider,
	llmProvider llmdriver.StreamingProvider,
	systemPrompt string,
	ttsQueue *tts.Queue,
	met *metrics.Metrics,
	log *logging.SlogLogger,
	cfg Config,
) *CallSession {
	ctx, cancel := context.WithCancel(parent)

	if log == nil {
		log = logging.New(io.Discard, "json")
	}
	sessionID := uuid.NewString()
	log = log.With("session_id", sessionID)

	s := &CallSession{
		conn:      conn,
		llm:       llmdriver.New(llmProvider, systemPrompt),
		ttsQueue:  ttsQueue,
		pacerP:    pacer.New(conn),
		met:       met,
		log:       log,
		cfg:       cfg,
		sttName:   sttProvider.Name(),
		llmName:   llmProvider.Name(),
		sessionID: sessionID,
		ctx:       ctx,
		cancel:    cancel,
		events:    make(chan Event, 256),
	}

	s.asm = assembler.New(s.onUtterance)
	s.sttMgr = stt.New(sttProvider, cfg.Language, s.onTranscript, s.onSpeechStart, s.onSpeechEnd, sttBatchFallback)
	s.sttMgr.OnClosed(s.onSTTClosed)

	return s
}

// Events returns the channel CallSession pushes observability records
// to. Closed once Close has fully torn the session down.
func (s *CallSession) Events() <-chan Event {
	return s.events
}

// Run drives the read loop until the connection closes, the provider
// sends stop, or ctx is cancelled. It never returns until the session
// is fully torn down.
func (s *CallSession) Run() error {
	defer s.Close()

	if err := s.sttMgr.Start(s.ctx); err != nil {
		s.log.Warn("stt: initial open failed", "error", err)
		if s.met != nil {
			s.met.RecordProviderError(s.sttName, "open")
		}
	}

	for {
		msg, err := s.conn.ReadMessage(s.ctx)
		if err != nil {
			if errors.Is(err, telephony.ErrMalformedFrame) {
				s.log.Warn("telephony: dropping malformed frame", "error", err)
				continue
			}
			if s.isStopped() {
				return nil
			}
			return fmt.Errorf("session: read loop ended: %w", err)
		}

		switch msg.Event {
		case "connected":
			// informational, no state change.
		case "start":
			s.handleStart(msg.Start)
		case "media":
			s.handleMedia(msg.Media)
		case "stop":
			return nil
		default:
			s.log.Info("telephony: ignoring unrecognized event", "event", msg.Event)
		}
	}
}

func (s *CallSession) handleStart(p *telephony.StartPayload) {
	if p == nil {
		return
	}
	s.mu.Lock()
	s.streamSID = p.StreamSID
	s.callSID = p.CallSID
	s.ensureRecorderLocked()
	s.mu.Unlock()

	if s.met != nil {
		s.met.RecordCallStart()
	}
	s.emit(CallStarted, p.CallSID)

	go s.speak(s.cfg.WelcomeText)
}

// ensureRecorderLocked lazily creates the raw-capture recorder,
// tolerating a media frame that arrives before start (spec.md §4.1's
// "protocol error ... tolerated by lazily initialising recording
// state"). Caller must hold s.mu.
func (s *CallSession) ensureRecorderLocked() {
	if s.rec != nil || s.cfg.RecordingDir == "" {
		return
	}
	callID := s.callSID
	if callID == "" {
		callID = "unknown"
	}
	s.rec = recorder.New(s.cfg.RecordingDir, callID)
}

func (s *CallSession) handleMedia(p *telephony.MediaPayload) {
	if p == nil || p.Payload == "" {
		return
	}
	mulaw, err := base64.StdEncoding.DecodeString(p.Payload)
	if err != nil {
		s.log.Warn("telephony: bad base64 media payload", "error", err)
		return
	}

	s.mu.Lock()
	s.ensureRecorderLocked()
	rec := s.rec
	s.mu.Unlock()

	if rec != nil {
		rec.Write(mulaw)
	}

	pcm := audio.MulawDecode(mulaw)
	if err := s.sttMgr.Write(s.ctx, pcm); err != nil {
		s.log.Warn("stt: write failed", "error", err)
	}
}

func (s *CallSession) onTranscript(text string, isFinal bool) {
	if isFinal {
		s.emit(TranscriptFinal, text)
	} else {
		s.emit(TranscriptPartial, text)
	}
	s.asm.AddPartial(text)
}

func (s *CallSession) onSpeechStart() {
	s.asm.Clear()
}

func (s *CallSession) onSpeechEnd() {
	s.mu.Lock()
	s.userSpeechEndAt = time.Now()
	s.mu.Unlock()
	s.asm.Flush()
}

// onSTTClosed applies spec.md §4.3's reconnect policy and the
// close-code-1000 implicit speech_end fallback.
func (s *CallSession) onSTTClosed(closeCode int) {
	if s.isStopped() {
		return
	}

	if s.sttMgr.ShouldReconnect(closeCode) {
		if err := s.sttMgr.Start(s.ctx); err != nil {
			s.log.Warn("stt: reconnect failed", "error", err)
			if s.met != nil {
				s.met.RecordProviderError(s.sttName, "reconnect")
			}
		}
		return
	}

	s.sttMgr.EnterDegraded()
	s.log.Warn("stt: upstream sticky-closed, falling back to batch transcription", "close_code", closeCode)

	if closeCode == stt.NormalClosureCode && s.asm.HasPending() && !s.llm.IsProcessing() {
		s.mu.Lock()
		s.userSpeechEndAt = time.Now()
		s.mu.Unlock()
		s.asm.Flush()
	}
}

// onUtterance is the assembler's flush callback. An empty string means
// the utterance filter rejected it; a turn already in flight means the
// new utterance must be silently dropped per spec.md §4.5's
// concurrency contract.
func (s *CallSession) onUtterance(text string) {
	if text == "" || s.isStopped() {
		return
	}
	if s.llm.IsProcessing() {
		return
	}
	go s.runTurn(text)
}

func (s *CallSession) runTurn(text string) {
	turnCtx, cancel := context.WithCancel(s.ctx)
	s.mu.Lock()
	s.turnCancel = cancel
	s.llmStartAt = time.Now()
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.turnCancel != nil {
			s.turnCancel()
			s.turnCancel = nil
		}
		s.mu.Unlock()
	}()

	s.emit(BotThinking, text)

	err := s.llm.RunTurn(turnCtx, text, s.onSegment)

	s.mu.Lock()
	s.llmEndAt = time.Now()
	s.mu.Unlock()

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.log.Warn("llm: turn failed", "error", err)
			if s.met != nil {
				s.met.RecordProviderError(s.llmName, "turn")
			}
		}
		return
	}

	s.recordLatency()
}

func (s *CallSession) onSegment(text string) {
	s.emit(BotResponse, text)
	s.speak(text)
}

// speak synthesizes text via the shared TTS queue and paces the
// resulting PCM out to the caller. It never returns an error: a
// synthesis failure degrades to silence for this segment, per spec.md
// §4.6's "never throws" contract.
func (s *CallSession) speak(text string) {
	audioPCM := s.ttsQueue.Synthesize(s.ctx, text, s.cfg.Voice, s.cfg.Language)
	if len(audioPCM) == 0 {
		return
	}

	s.mu.Lock()
	if s.ttsFirstChunkAt.IsZero() {
		s.ttsFirstChunkAt = time.Now()
	}
	streamSID := s.streamSID
	s.mu.Unlock()

	if streamSID == "" {
		return
	}

	s.emit(BotSpeaking, nil)
	sent, err := s.pacerP.Send(s.ctx, streamSID, audioPCM, s.isStopped)
	if err != nil {
		s.log.Warn("pacer: send failed", "error", err)
	}
	if s.met != nil {
		s.met.OutboundFramesTotal.Add(float64(sent))
	}
}

func (s *CallSession) recordLatency() {
	if s.met == nil {
		return
	}
	s.mu.Lock()
	userEnd := s.userSpeechEndAt
	llmStart := s.llmStartAt
	llmEnd := s.llmEndAt
	ttsFirst := s.ttsFirstChunkAt
	s.mu.Unlock()

	if !llmStart.IsZero() && !llmEnd.IsZero() {
		s.met.LLMLatencySeconds.Observe(llmEnd.Sub(llmStart).Seconds())
	}
	if !userEnd.IsZero() && !llmEnd.IsZero() {
		s.met.STTLatencySeconds.Observe(llmStart.Sub(userEnd).Seconds())
	}
	if !llmEnd.IsZero() && !ttsFirst.IsZero() && ttsFirst.After(llmEnd) {
		s.met.TTSLatencySeconds.Observe(ttsFirst.Sub(llmEnd).Seconds())
	}
}

// LatencyBreakdown reports the most recent turn's stage timings, for
// callers that want the raw numbers rather than the histograms alone.
func (s *CallSession) LatencyBreakdown() LatencyBreakdown {
	s.mu.Lock()
	defer s.mu.Unlock()

	var bd LatencyBreakdown
	if s.userSpeechEndAt.IsZero() {
		return bd
	}
	if !s.llmStartAt.IsZero() {
		bd.UserToSTT = s.llmStartAt.Sub(s.userSpeechEndAt).Milliseconds()
	}
	if !s.llmEndAt.IsZero() {
		bd.UserToLLM = s.llmEndAt.Sub(s.userSpeechEndAt).Milliseconds()
	}
	if !s.llmStartAt.IsZero() && !s.llmEndAt.IsZero() {
		bd.LLM = s.llmEndAt.Sub(s.llmStartAt).Milliseconds()
	}
	if !s.ttsFirstChunkAt.IsZero() {
		bd.UserToTTSFirstByte = s.ttsFirstChunkAt.Sub(s.userSpeechEndAt).Milliseconds()
	}
	if !s.llmEndAt.IsZero() && !s.ttsFirstChunkAt.IsZero() {
		bd.LLMToTTSFirstByte = s.ttsFirstChunkAt.Sub(s.llmEndAt).Milliseconds()
	}
	return bd
}

func (s *CallSession) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Close fires the session's cancellation handle: marks stopped,
// aborts any in-flight LLM turn (popping its partial user turn),
// flushes remaining PCM to the STT upstream then closes it, drains the
// recorder, and stops the Frame Pacer between chunks by way of the
// stopped flag. Idempotent, matching spec.md §5's teardown contract.
func (s *CallSession) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		turnCancel := s.turnCancel
		rec := s.rec
		streamSID := s.streamSID
		s.mu.Unlock()

		if turnCancel != nil {
			turnCancel()
		}

		_ = s.sttMgr.FlushRemaining(context.Background())
		s.sttMgr.Stop()

		if rec != nil {
			if err := rec.Close(); err != nil {
				s.log.Warn("recorder: close failed", "error", err)
			}
		}

		s.cancel()

		if s.met != nil {
			s.met.RecordCallEnd("stopped")
		}
		s.emit(CallEnded, streamSID)
		close(s.events)
	})
	return nil
}

func (s *CallSession) emit(eventType EventType, data interface{}) {
	select {
	case <-s.ctx.Done():
		if eventType != CallEnded {
			return
		}
	default:
	}

	s.mu.Lock()
	streamSID := s.streamSID
	s.mu.Unlock()

	event := Event{Type: eventType, StreamSID: streamSID, Data: data}
	defer func() {
		_ = recover() // events channel may already be closed during teardown
	}()
	select {
	case s.events <- event:
	default:
	}
}

// Command bridge runs the telephony media-stream voice-agent bridge:
// an HTTP server answering the provider's inbound-call webhook with
// TwiML, and a WebSocket endpoint that pipes each call through
// STT -> utterance assembly -> streaming LLM -> TTS -> paced playback.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lokutor-ai/lokutor-orchestrator/internal/config"
	"github.com/lokutor-ai/lokutor-orchestrator/internal/llmdriver"
	"github.com/lokutor-ai/lokutor-orchestrator/internal/logging"
	"github.com/lokutor-ai/lokutor-orchestrator/internal/metrics"
	"github.com/lokutor-ai/lokutor-orchestrator/internal/session"
	"github.com/lokutor-ai/lokutor-orchestrator/internal/stt"
	"github.com/lokutor-ai/lokutor-orchestrator/internal/telephony"
	"github.com/lokutor-ai/lokutor-orchestrator/internal/tts"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// systemPrompt is the agricultural-advisor persona, kept verbatim per
// spec.md §6 — every word here shapes whether a turn honors the
// language/length/counter-question constraints that max_tokens=180 assumes.
const systemPrompt = "Reply in the exact language of the user; 2 short sentences max; " +
	"no lists; one counter-question at a time when information is missing; " +
	"refer out-of-scope or abusive queries back to farming; suggest calling the " +
	"Kisan Call Center (1800-180-1551) when unsure."

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("bridge: config: %v", err)
	}

	logger := logging.NewDefault(cfg.LogFormat)
	met := metrics.New()

	sttProvider, err := newSTTProvider(cfg)
	if err != nil {
		log.Fatalf("bridge: stt provider: %v", err)
	}
	sttBatchFallback := newSTTBatchFallback(cfg)
	llmProvider, err := newLLMProvider(cfg)
	if err != nil {
		log.Fatalf("bridge: llm provider: %v", err)
	}
	ttsProvider, err := newTTSProvider(cfg)
	if err != nil {
		log.Fatalf("bridge: tts provider: %v", err)
	}

	// One TTS queue shared process-wide: it is the mechanism that
	// serializes every call's synthesis requests into a single
	// in-flight request, per spec.md §4.6.
	ttsQueue := tts.NewQueue(ttsProvider)

	srv := &server{
		cfg:              cfg,
		log:              logger,
		met:              met,
		sttProvider:      sttProvider,
		sttBatchFallback: sttBatchFallback,
		llmProvider:      llmProvider,
		ttsQueue:         ttsQueue,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/voice/incoming", srv.handleVoiceInbound)
	mux.HandleFunc("/voice/stream", srv.handleMediaStream)
	mux.Handle("/metrics", metricsHandler())

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	go func() {
		logger.Info("bridge: listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("bridge: server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("bridge: shutting down")
	_ = httpServer.Close()
}

type server struct {
	cfg              *config.Config
	log              *logging.SlogLogger
	met              *metrics.Metrics
	sttProvider      stt.Provider
	sttBatchFallback stt.BatchProvider
	llmProvider      llmdriver.StreamingProvider
	ttsQueue         *tts.Queue
}

// handleVoiceInbound answers the provider's inbound-call webhook with
// TwiML that connects the call to our media-stream WebSocket.
func (s *server) handleVoiceInbound(w http.ResponseWriter, r *http.Request) {
	streamURL := fmt.Sprintf("wss://%s/voice/stream", s.cfg.BaseURL)
	telephony.VoiceIncoming(streamURL)(w, r)
}

// handleMediaStream upgrades the connection and runs one call session
// to completion.
func (s *server) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	conn, err := telephony.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("telephony: accept failed", "error", err)
		return
	}

	cs := session.New(
		r.Context(),
		conn,
		s.sttProvider,
		s.sttBatchFallback,
		s.llmProvider,
		systemPrompt,
		s.ttsQueue,
		s.met,
		s.log,
		session.DefaultConfig(),
	)

	go func() {
		for ev := range cs.Events() {
			s.log.Debug("session event", "type", ev.Type, "stream_sid", ev.StreamSID)
		}
	}()

	if err := cs.Run(); err != nil {
		s.log.Warn("session: run ended", "error", err)
	}
	_ = conn.Close()
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}

// newSTTProvider selects the streaming STT upstream. Sarvam is the only
// implementation of stt.Provider the bridge wires live.
func newSTTProvider(cfg *config.Config) (stt.Provider, error) {
	if cfg.SarvamAPIKey == "" {
		return nil, fmt.Errorf("SARVAM_API_KEY must be set")
	}
	return stt.NewSarvamSTT(cfg.SarvamAPIKey), nil
}

// newSTTBatchFallback builds the degraded-mode transcriber the session
// switches to once the streaming upstream goes sticky-dark (spec.md §7).
// Returns nil when GROQ_API_KEY isn't configured, in which case a
// sticky STT close simply ends transcription for the rest of the call
// rather than crashing it.
func newSTTBatchFallback(cfg *config.Config) stt.BatchProvider {
	if cfg.GroqAPIKey == "" {
		return nil
	}
	return stt.NewGroqBatch(cfg.GroqAPIKey, "")
}

// newLLMProvider selects the streaming chat-completion provider:
// Bedrock-hosted Claude by default, or the direct Anthropic HTTP API
// when LLM_PROVIDER is "anthropic". The choice is made from LLM_PROVIDER
// alone; missing AWS credentials do not switch to Anthropic.
func newLLMProvider(cfg *config.Config) (llmdriver.StreamingProvider, error) {
	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY must be set for the anthropic LLM provider")
		}
		return llmdriver.NewAnthropicHTTP(cfg.AnthropicAPIKey, ""), nil
	case "bedrock":
		fallthrough
	default:
		provider, err := llmdriver.NewBedrockProvider(context.Background(), cfg.AWSRegion, cfg.BedrockModel)
		if err != nil {
			return nil, fmt.Errorf("bedrock: %w", err)
		}
		return provider, nil
	}
}

// newTTSProvider selects the synthesis backend behind the shared
// tts.Queue: Lokutor's WebSocket voice by default, or Sarvam's TTS API.
func newTTSProvider(cfg *config.Config) (tts.Provider, error) {
	switch cfg.TTSProvider {
	case "sarvam":
		if cfg.SarvamAPIKey == "" {
			return nil, fmt.Errorf("SARVAM_API_KEY must be set for the sarvam TTS provider")
		}
		return tts.NewSarvamTTS(cfg.SarvamAPIKey), nil
	case "lokutor":
		fallthrough
	default:
		if cfg.LokutorAPIKey == "" {
			return nil, fmt.Errorf("LOKUTOR_API_KEY must be set for the lokutor TTS provider")
		}
		return tts.NewLokutorTTS(cfg.LokutorAPIKey), nil
	}
}

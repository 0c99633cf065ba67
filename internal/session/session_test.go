package session

import (
	"context"
	"encoding/base64"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lokutor-ai/lokutor-orchestrator/internal/assembler"
	"github.com/lokutor-ai/lokutor-orchestrator/internal/llmdriver"
	"github.com/lokutor-ai/lokutor-orchestrator/internal/logging"
	"github.com/lokutor-ai/lokutor-orchestrator/internal/pacer"
	"github.com/lokutor-ai/lokutor-orchestrator/internal/stt"
	"github.com/lokutor-ai/lokutor-orchestrator/internal/telephony"
	"github.com/lokutor-ai/lokutor-orchestrator/internal/tts"
	"github.com/lokutor-ai/lokutor-orchestrator/pkg/audio"
)

// fakeSender records every outbound media frame in order, standing in
// for a telephony.Conn without needing a real WebSocket.
type fakeSender struct {
	mu       sync.Mutex
	payloads []string
}

func (f *fakeSender) SendMedia(streamSID, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

type fakeSTTSession struct{}

func (fakeSTTSession) SendBatch(ctx context.Context, wavPCM []byte) error { return nil }
func (fakeSTTSession) Close() error                                       { return nil }

// fakeSTTProvider hands the Manager a live event callback the test can
// drive directly, simulating transcript/speech events without a real
// upstream connection.
type fakeSTTProvider struct {
	onEvent func(stt.Event)
}

func (f *fakeSTTProvider) Open(ctx context.Context, onEvent func(stt.Event)) (stt.Session, error) {
	f.onEvent = onEvent
	return fakeSTTSession{}, nil
}
func (f *fakeSTTProvider) Name() string { return "fake-stt" }

type fakeLLMProvider struct {
	reply string
}

func (f *fakeLLMProvider) StreamComplete(ctx context.Context, messages []llmdriver.Message, params llmdriver.Params, onDelta func(string) error) (string, error) {
	for _, word := range strings.Fields(f.reply) {
		if err := onDelta(word + " "); err != nil {
			return "", err
		}
	}
	return f.reply, nil
}
func (f *fakeLLMProvider) Name() string { return "fake-llm" }

type fakeTTSProvider struct{}

func (fakeTTSProvider) Synthesize(ctx context.Context, text, voice, language string) ([]byte, error) {
	return make([]byte, 640), nil // 2 outbound chunks of silence
}
func (fakeTTSProvider) Name() string { return "fake-tts" }

// newFixture builds a CallSession with every collaborator faked out,
// bypassing New (which requires a live *telephony.Conn) so these tests
// can drive the pipeline logic directly.
func newFixture(t *testing.T, sender *fakeSender, reply string) (*CallSession, *fakeSTTProvider) {
	t.Helper()
	sttProvider := &fakeSTTProvider{}
	llmProvider := &fakeLLMProvider{reply: reply}
	queue := tts.NewQueue(fakeTTSProvider{})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cs := &CallSession{
		llm:      llmdriver.New(llmProvider, "system prompt"),
		ttsQueue: queue,
		pacerP:   pacer.New(sender),
		log:      logging.New(io.Discard, "json"),
		cfg:      DefaultConfig(),
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan Event, 64),
		sttName:  sttProvider.Name(),
		llmName:  llmProvider.Name(),
	}
	cs.asm = assembler.New(cs.onUtterance)
	cs.sttMgr = stt.New(sttProvider, "en-IN", cs.onTranscript, cs.onSpeechStart, cs.onSpeechEnd, nil)
	cs.sttMgr.OnClosed(cs.onSTTClosed)
	if err := cs.sttMgr.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cs.streamSID = "MZtest"

	return cs, sttProvider
}

func TestOnUtteranceDropsEmptyAndRunsAccepted(t *testing.T) {
	sender := &fakeSender{}
	cs, _ := newFixture(t, sender, "which crop should I sow in July in Punjab today")

	cs.onUtterance("")
	if cs.llm.IsProcessing() {
		t.Error("empty utterance must not start a turn")
	}

	cs.onUtterance("which crop should I sow in July in Punjab today")

	startDeadline := time.Now().Add(2 * time.Second)
	for !cs.llm.IsProcessing() && time.Now().Before(startDeadline) {
		time.Sleep(time.Millisecond)
	}
	if !cs.llm.IsProcessing() {
		t.Fatal("turn never started")
	}

	endDeadline := time.Now().Add(2 * time.Second)
	for cs.llm.IsProcessing() && time.Now().Before(endDeadline) {
		time.Sleep(time.Millisecond)
	}
	if cs.llm.IsProcessing() {
		t.Fatal("turn never completed")
	}

	history := cs.llm.History()
	if len(history) != 2 || history[0].Role != "user" || history[1].Role != "assistant" {
		t.Fatalf("history = %+v, want one user+assistant pair", history)
	}
	if sender.count() == 0 {
		t.Error("expected at least one outbound media frame from the synthesized reply")
	}
}

func TestOnUtteranceDropsSecondWhileTurnInFlight(t *testing.T) {
	sender := &fakeSender{}
	cs, _ := newFixture(t, sender, "which crop should I sow in July in Punjab today")

	go cs.onUtterance("which crop should I sow in July in Punjab today")

	deadline := time.Now().Add(2 * time.Second)
	for !cs.llm.IsProcessing() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !cs.llm.IsProcessing() {
		t.Fatal("expected first turn to be in-flight")
	}

	cs.onUtterance("a second utterance arriving mid-turn")

	deadline = time.Now().Add(2 * time.Second)
	for cs.llm.IsProcessing() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	history := cs.llm.History()
	if len(history) != 2 {
		t.Fatalf("history = %+v, want exactly one user+assistant pair (second utterance dropped)", history)
	}
}

func TestOnSTTClosedReconnectsOnNormalClosure(t *testing.T) {
	sender := &fakeSender{}
	cs, sttProvider := newFixture(t, sender, "hello there friend how are you")

	sttProvider.onEvent(stt.Event{Type: stt.EventClosed, CloseCode: stt.NormalClosureCode})
	if !cs.sttMgr.IsOpen() {
		t.Error("expected reconnect to reopen the upstream on normal closure")
	}
}

func TestOnSTTClosedDoesNotReconnectOnRateLimit(t *testing.T) {
	sender := &fakeSender{}
	cs, sttProvider := newFixture(t, sender, "hello there friend how are you")

	sttProvider.onEvent(stt.Event{Type: stt.EventClosed, CloseCode: 1003})
	if cs.sttMgr.IsOpen() {
		t.Error("rate-limit close must never trigger a reconnect")
	}
}

func TestHandleMediaDecodesAndForwardsToSTT(t *testing.T) {
	sender := &fakeSender{}
	cs, _ := newFixture(t, sender, "hello there friend how are you")

	mulaw := audio.MulawEncode(make([]byte, 320))
	payload := base64.StdEncoding.EncodeToString(mulaw)

	cs.handleMedia(&telephony.MediaPayload{Payload: payload})
	// Success is simply not crashing: no recorder is configured
	// (RecordingDir == "" in DefaultConfig), and the STT manager
	// accepted the decoded PCM without error.
}

func TestCloseIsIdempotentAndTearsDownSTT(t *testing.T) {
	sender := &fakeSender{}
	cs, _ := newFixture(t, sender, "hello there friend how are you")

	if err := cs.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := cs.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if cs.sttMgr.IsOpen() {
		t.Error("expected STT upstream closed after Close()")
	}
	if !cs.isStopped() {
		t.Error("expected stopped=true after Close()")
	}
}

// Package llmdriver runs one LLM turn per accepted utterance: it holds
// conversation history, drives a streaming chat completion, and pipes
// text deltas through the incremental segmenter into a caller-supplied
// sink (ordinarily the TTS queue).
package llmdriver

import (
	"context"
	"fmt"
	"sync"
)

// Message is one turn in the conversation history.
type Message struct {
	Role    string
	Content string
}

// Params bounds one completion request, per spec.md §4.5.
type Params struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// DefaultParams matches spec.md §4.5's {max_tokens≤180, temperature≈0.2,
// top_p≈0.7}.
func DefaultParams() Params {
	return Params{MaxTokens: 180, Temperature: 0.2, TopP: 0.7}
}

// StreamingProvider opens a streaming chat completion and calls onDelta
// once per text delta as it arrives. It returns the full accumulated
// text on success.
type StreamingProvider interface {
	StreamComplete(ctx context.Context, messages []Message, params Params, onDelta func(delta string) error) (string, error)
	Name() string
}

// Driver owns one call's conversation history and enforces the
// at-most-one-turn concurrency contract. It generalizes the teacher's
// ManagedStream turn-tracking without the audio/VAD concerns that
// belong to internal/session instead.
type Driver struct {
	provider StreamingProvider
	system   string

	mu         sync.Mutex
	history    []Message
	processing bool
}

// New builds a Driver against provider, seeded with a system prompt
// kept verbatim as history[0] would be under a simpler design; it is
// instead threaded separately so popping a partial user turn on abort
// never risks popping the system prompt.
func New(provider StreamingProvider, systemPrompt string) *Driver {
	return &Driver{provider: provider, system: systemPrompt}
}

// IsProcessing reports whether a turn is currently in flight. The
// utterance assembler's flush path must check this and drop the
// utterance rather than starting a second concurrent turn.
func (d *Driver) IsProcessing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.processing
}

// History returns a copy of the accumulated conversation turns.
func (d *Driver) History() []Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Message, len(d.history))
	copy(out, d.history)
	return out
}

// RunTurn appends a user turn, streams a completion, and feeds each
// segmented candidate emitted by the incremental segmenter to onSegment
// in order. It fails closed: if another turn is already in flight, it
// returns ErrTurnInFlight without mutating history. On ctx cancellation
// mid-stream the partial user turn is popped so the next continuation
// stays coherent.
func (d *Driver) RunTurn(ctx context.Context, userText string, onSegment func(segment string)) error {
	d.mu.Lock()
	if d.processing {
		d.mu.Unlock()
		return ErrTurnInFlight
	}
	d.processing = true
	d.history = append(d.history, Message{Role: "user", Content: userText})
	historySnapshot := make([]Message, len(d.history))
	copy(historySnapshot, d.history)
	d.mu.Unlock()

	var turnErr error
	var assistantText string
	func() {
		defer func() {
			d.mu.Lock()
			d.processing = false
			if turnErr != nil {
				d.popPartialUserTurnLocked()
			} else {
				d.history = append(d.history, Message{Role: "assistant", Content: assistantText})
			}
			d.mu.Unlock()
		}()

		messages := historySnapshot
		if d.system != "" {
			messages = append([]Message{{Role: "system", Content: d.system}}, historySnapshot...)
		}

		seg := newSegmenter(onSegment)
		assistantText, turnErr = d.provider.StreamComplete(ctx, messages, DefaultParams(), func(delta string) error {
			seg.feed(delta)
			return nil
		})
		if turnErr == nil {
			seg.finish()
		}
	}()

	if turnErr != nil {
		return fmt.Errorf("llmdriver: turn failed: %w", turnErr)
	}
	return nil
}

// popPartialUserTurnLocked removes the trailing user turn added at the
// start of an aborted RunTurn, so conversation history never ends on a
// dangling user message. Caller must hold d.mu.
func (d *Driver) popPartialUserTurnLocked() {
	if len(d.history) == 0 {
		return
	}
	if d.history[len(d.history)-1].Role == "user" {
		d.history = d.history[:len(d.history)-1]
	}
}

// Package tts serializes every call's text-to-speech requests behind a
// single process-wide queue, per spec.md §4.6's rate-limit discipline.
package tts

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Provider synthesizes one text segment to PCM16LE @ 8kHz audio.
type Provider interface {
	Synthesize(ctx context.Context, text string, voice, language string) ([]byte, error)
	Name() string
}

const (
	// MaxRetries is the number of retry attempts after the first try,
	// per spec.md §4.6.
	MaxRetries = 2
	// RetryBackoff is the linear backoff between attempts.
	RetryBackoff = 500 * time.Millisecond
	// MinWords is the defence-in-depth minimum before a job ever reaches
	// the provider.
	MinWords = 5
	// DefaultLanguage matches spec.md §4.6's en-IN default.
	DefaultLanguage = "en-IN"
)

// Queue is a process-wide sequential TTS worker: exactly one request is
// in flight against the provider at any time, across every active call.
type Queue struct {
	provider Provider
	mu       sync.Mutex
}

// NewQueue builds a Queue backed by provider.
func NewQueue(provider Provider) *Queue {
	return &Queue{provider: provider}
}

// Synthesize enqueues one job and blocks until it runs. It never
// returns an error to the caller: on permanent failure (all retries
// exhausted) it returns nil audio, matching spec.md §4.6's "never
// throws" contract. Inputs below MinWords words are rejected before
// ever reaching the provider.
func (q *Queue) Synthesize(ctx context.Context, text, voice, language string) []byte {
	if language == "" {
		language = DefaultLanguage
	}
	if len(strings.Fields(strings.TrimSpace(text))) < MinWords {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		audio, err := q.provider.Synthesize(ctx, text, voice, language)
		if err == nil {
			return audio
		}
		if attempt < MaxRetries {
			select {
			case <-time.After(RetryBackoff):
			case <-ctx.Done():
				return nil
			}
		}
	}
	return nil
}

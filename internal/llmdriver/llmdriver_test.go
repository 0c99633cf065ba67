package llmdriver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeProvider struct {
	response string
	err      error
	deltas   []string
	block    chan struct{}
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) StreamComplete(ctx context.Context, messages []Message, params Params, onDelta func(string) error) (string, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	var full string
	for _, d := range f.deltas {
		if err := onDelta(d); err != nil {
			return "", err
		}
		full += d
	}
	return full, nil
}

func TestDriverRunTurnAppendsHistory(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"Sow basmati rice this season for best results."}}
	d := New(provider, "you are a helpful agri assistant")

	var segments []string
	err := d.RunTurn(context.Background(), "which crop should I sow in July in Punjab?", func(seg string) {
		segments = append(segments, seg)
	})
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}

	history := d.History()
	if len(history) != 2 {
		t.Fatalf("history len = %d, want 2", len(history))
	}
	if history[0].Role != "user" || history[0].Content != "which crop should I sow in July in Punjab?" {
		t.Errorf("history[0] = %+v, want the user turn", history[0])
	}
	if history[1].Role != "assistant" {
		t.Errorf("history[1].Role = %q, want assistant", history[1].Role)
	}
	if len(segments) == 0 {
		t.Error("expected at least one segmented candidate")
	}
}

func TestDriverRejectsConcurrentTurn(t *testing.T) {
	block := make(chan struct{})
	provider := &fakeProvider{deltas: []string{"hello there friend, how can I help"}, block: block}
	d := New(provider, "")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = d.RunTurn(context.Background(), "first utterance here", func(string) {})
	}()

	// Give the first turn a chance to set processing=true before asserting.
	deadline := time.Now().Add(time.Second)
	for !d.IsProcessing() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !d.IsProcessing() {
		t.Fatal("first turn never marked processing")
	}

	err := d.RunTurn(context.Background(), "second utterance here", func(string) {})
	if !errors.Is(err, ErrTurnInFlight) {
		t.Errorf("second RunTurn() error = %v, want ErrTurnInFlight", err)
	}

	close(block)
	wg.Wait()
}

func TestDriverAbortPopsPartialUserTurn(t *testing.T) {
	provider := &fakeProvider{err: errors.New("upstream exploded")}
	d := New(provider, "")

	err := d.RunTurn(context.Background(), "an utterance that will fail", func(string) {})
	if err == nil {
		t.Fatal("expected RunTurn() to return an error")
	}

	history := d.History()
	if len(history) != 0 {
		t.Errorf("history len = %d after abort, want 0 (partial user turn popped)", len(history))
	}
	if d.IsProcessing() {
		t.Error("IsProcessing() true after turn completed (even with error)")
	}
}

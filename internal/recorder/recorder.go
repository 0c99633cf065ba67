// Package recorder streams a call's raw mu-law audio to disk and
// converts it to a WAV file at stop. It is best-effort: a failure here
// is logged and never aborts the call, per spec.md §6's "Persisted
// state" contract.
package recorder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lokutor-ai/lokutor-orchestrator/pkg/audio"
)

// Recorder captures one call's inbound mu-law audio to a temporary raw
// file, then folds it into a WAV file on Close. It holds no other
// session state.
type Recorder struct {
	rawPath string
	wavPath string
	file    *os.File
	failed  bool
}

// New creates the raw capture file at dir/<callID>.raw. If the file
// can't be created, it returns a Recorder whose Write is a silent no-op
// and whose Close reports that capture never started — the caller
// should still proceed with the rest of the pipeline, per the
// best-effort contract.
func New(dir, callID string) *Recorder {
	r := &Recorder{
		rawPath: filepath.Join(dir, callID+".raw"),
		wavPath: filepath.Join(dir, callID+".wav"),
	}

	f, err := os.Create(r.rawPath)
	if err != nil {
		r.failed = true
		return r
	}
	r.file = f
	return r
}

// Write appends one chunk of inbound mu-law audio. Errors are recorded
// internally rather than returned, since a recording failure must never
// propagate into the call's audio path.
func (r *Recorder) Write(mulaw []byte) {
	if r.failed || r.file == nil {
		return
	}
	if _, err := r.file.Write(mulaw); err != nil {
		r.failed = true
	}
}

// Close converts the raw capture to a WAV file and removes the raw
// file on success. Any failure along the way is returned as an error
// for the caller to log; nothing here aborts the call. A second Close
// after a successful one is a no-op returning nil.
func (r *Recorder) Close() error {
	if r.file == nil {
		if r.failed {
			return fmt.Errorf("recorder: capture never started, skipping conversion")
		}
		return nil
	}
	path := r.rawPath
	if err := r.file.Close(); err != nil {
		r.failed = true
		return fmt.Errorf("recorder: close raw file failed: %w", err)
	}
	r.file = nil

	if r.failed {
		return fmt.Errorf("recorder: capture failed mid-call, skipping conversion")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("recorder: read raw capture failed: %w", err)
	}

	pcm := audio.MulawDecode(raw)
	wav := audio.WrapWAV(pcm, audio.DefaultWavParams())

	if err := os.WriteFile(r.wavPath, wav, 0o644); err != nil {
		return fmt.Errorf("recorder: write wav failed: %w", err)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("recorder: remove raw capture failed: %w", err)
	}
	return nil
}

// WAVPath returns the path the converted WAV file will be written to.
func (r *Recorder) WAVPath() string {
	return r.wavPath
}

// Package pacer slices outbound PCM16LE audio into 20ms mu-law frames and
// paces their delivery to the telephony WS connection.
package pacer

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/lokutor-ai/lokutor-orchestrator/pkg/audio"
)

// Sender writes one outbound media frame (base64 mu-law payload) for the
// given stream SID. Implemented by the telephony media adapter.
type Sender interface {
	SendMedia(streamSID string, b64Payload string) error
}

// StopFunc reports whether the owning session has been torn down; the
// pacer checks it between chunks so hang-up halts playback promptly.
type StopFunc func() bool

// Pacer emits paced outbound audio for one call leg. It carries no
// per-call state beyond what is passed to Send, matching spec.md's
// "Codec and Frame Pacer are stateless utilities" ownership rule.
type Pacer struct {
	sender Sender
	// RealTime selects whether Send sleeps between chunks to bound jitter
	// (true, the default) or writes as fast as the WS accepts them and
	// relies on the provider to buffer (false). Either is a correct
	// implementation of the frame-pacing contract; this field makes the
	// choice explicit and overridable per instance rather than global.
	RealTime bool
}

// New returns a Pacer that paces chunks to real time between sends.
func New(sender Sender) *Pacer {
	return &Pacer{sender: sender, RealTime: true}
}

const chunkInterval = 20 * time.Millisecond

// Send slices pcm (PCM16LE @ 8kHz) into OutboundPCMChunkBytes chunks,
// mu-law encodes and base64-wraps each, and writes it as an outbound
// media message for streamSID. It stops early if ctx is cancelled or
// stopped reports true between chunks, and returns the number of chunks
// actually sent along with any write error.
func (p *Pacer) Send(ctx context.Context, streamSID string, pcm []byte, stopped StopFunc) (int, error) {
	var ticker *time.Ticker
	if p.RealTime {
		ticker = time.NewTicker(chunkInterval)
		defer ticker.Stop()
	}

	sent := 0
	for offset := 0; offset < len(pcm); offset += audio.OutboundPCMChunkBytes {
		if stopped != nil && stopped() {
			return sent, nil
		}
		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		default:
		}

		end := offset + audio.OutboundPCMChunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		chunk := pcm[offset:end]

		mulaw := audio.MulawEncode(chunk)
		payload := base64.StdEncoding.EncodeToString(mulaw)

		if err := p.sender.SendMedia(streamSID, payload); err != nil {
			return sent, err
		}
		sent++

		if p.RealTime && end < len(pcm) {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return sent, ctx.Err()
			}
		}
	}

	return sent, nil
}

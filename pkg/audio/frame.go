package audio

import "fmt"

// Encoding identifies how the bytes in a Frame are laid out.
type Encoding string

const (
	EncodingMulaw Encoding = "mulaw"
	EncodingPCM16 Encoding = "pcm16"
)

// Frame is a length-tagged span of audio carrying either mu-law @ 8kHz or
// linear PCM16LE @ 8kHz or 16kHz.
type Frame struct {
	Data       []byte
	SampleRate int
	Encoding   Encoding
}

// BytesPerSample returns the per-sample byte width for the frame's encoding.
func (f Frame) BytesPerSample() int {
	if f.Encoding == EncodingMulaw {
		return 1
	}
	return 2
}

// Validate checks that Data's length is consistent with the declared
// sample rate and sample width (i.e. is a whole number of samples).
func (f Frame) Validate() error {
	width := f.BytesPerSample()
	if len(f.Data)%width != 0 {
		return fmt.Errorf("audio: frame length %d not a multiple of sample width %d", len(f.Data), width)
	}
	if f.SampleRate != 8000 && f.SampleRate != 16000 {
		return fmt.Errorf("audio: unsupported sample rate %d", f.SampleRate)
	}
	return nil
}

// DurationMS returns the duration of the frame in milliseconds.
func (f Frame) DurationMS() float64 {
	samples := len(f.Data) / f.BytesPerSample()
	if f.SampleRate == 0 {
		return 0
	}
	return float64(samples) / float64(f.SampleRate) * 1000
}

// OutboundFrameBytes is the fixed size of a 20ms mu-law frame sent to the
// telephony provider: 8000 samples/sec * 1 byte/sample * 20ms / 1000ms.
const OutboundFrameBytes = 160

// OutboundPCMChunkBytes is the PCM16LE @ 8kHz byte count that encodes down
// to one OutboundFrameBytes mu-law frame: 8000 * 2 bytes * 20ms / 1000ms.
const OutboundPCMChunkBytes = 320

// Package audio implements the codec layer shared by every component that
// touches raw call audio: mu-law <-> linear PCM conversion, zero-order-hold
// resampling, and WAV header framing.
package audio

import (
	"bytes"
	"encoding/binary"
)

// WavParams describes the PCM payload a WAV header is wrapped around.
type WavParams struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultWavParams matches the telephony leg: 8kHz mono 16-bit PCM.
func DefaultWavParams() WavParams {
	return WavParams{SampleRate: 8000, Channels: 1, BitsPerSample: 16}
}

// NewWavBuffer wraps pcm in a canonical WAV header at the given sample
// rate, mono, 16-bit. Kept for callers that only care about sample rate.
func NewWavBuffer(pcm []byte, sampleRate int) []byte {
	return WrapWAV(pcm, WavParams{SampleRate: sampleRate, Channels: 1, BitsPerSample: 16})
}

// WrapWAV emits a 44-byte canonical RIFF/WAVE header (PCM format code 1)
// followed by pcm: "RIFF", u32(fileSize-8), "WAVE", "fmt ", u32(16),
// u16(1), u16(channels), u32(sampleRate), u32(byteRate), u16(blockAlign),
// u16(bitsPerSample), "data", u32(dataSize).
func WrapWAV(pcm []byte, p WavParams) []byte {
	if p.Channels == 0 {
		p.Channels = 1
	}
	if p.BitsPerSample == 0 {
		p.BitsPerSample = 16
	}

	blockAlign := p.Channels * p.BitsPerSample / 8
	byteRate := p.SampleRate * blockAlign

	buf := new(bytes.Buffer)
	buf.Grow(44 + len(pcm))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(p.Channels))
	binary.Write(buf, binary.LittleEndian, uint32(p.SampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(p.BitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

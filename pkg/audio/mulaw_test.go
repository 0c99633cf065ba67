package audio

import (
	"encoding/binary"
	"testing"
)

func abs16(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestMulawRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 100, -100, 1000, -1000, 8192, -8192, 30000, -30000, 32767, -32768}

	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}

	encoded := MulawEncode(pcm)
	if len(encoded) != len(samples) {
		t.Fatalf("encoded len = %d, want %d", len(encoded), len(samples))
	}

	decoded := MulawDecode(encoded)
	if len(decoded) != len(pcm) {
		t.Fatalf("decoded len = %d, want %d", len(decoded), len(pcm))
	}

	for i, want := range samples {
		got := int16(binary.LittleEndian.Uint16(decoded[i*2 : i*2+2]))
		// mu-law is a lossy logarithmic codec; the quantization error grows
		// with magnitude but stays within a small fraction of the sample.
		diff := abs16(int(got) - int(want))
		bound := abs16(int(want))/32 + 32
		if diff > bound {
			t.Errorf("sample %d: want %d, got %d (diff %d > bound %d)", i, want, got, diff, bound)
		}
	}
}

func TestMulawEncodeSilence(t *testing.T) {
	pcm := make([]byte, 16)
	encoded := MulawEncode(pcm)
	for i, b := range encoded {
		if b != 0xFF {
			t.Errorf("silence sample %d encoded as 0x%02X, want 0xFF", i, b)
		}
	}
}

func TestMulawEncodeSignSymmetry(t *testing.T) {
	pos := int16(5000)
	neg := -pos

	pcm := make([]byte, 4)
	binary.LittleEndian.PutUint16(pcm[0:], uint16(pos))
	binary.LittleEndian.PutUint16(pcm[2:], uint16(neg))

	encoded := MulawEncode(pcm)
	// Sign bit (bit 7 of the pre-inversion byte, i.e. bit 7 of ^encoded) must
	// differ between the positive and negative encodings of the same
	// magnitude; the remaining 7 bits (exponent+mantissa) must match.
	if encoded[0]&0x80 == encoded[1]&0x80 {
		t.Errorf("expected opposite sign bits, got 0x%02X and 0x%02X", encoded[0], encoded[1])
	}
	if encoded[0]&0x7F != encoded[1]&0x7F {
		t.Errorf("expected matching magnitude bits, got 0x%02X and 0x%02X", encoded[0]&0x7F, encoded[1]&0x7F)
	}
}

func TestMulawDecodeLength(t *testing.T) {
	buf := make([]byte, 160)
	decoded := MulawDecode(buf)
	if len(decoded) != 320 {
		t.Errorf("decoded len = %d, want 320", len(decoded))
	}
}

func TestMulawEncodeOddTrailingByteDropped(t *testing.T) {
	pcm := []byte{0x00, 0x00, 0x01}
	encoded := MulawEncode(pcm)
	if len(encoded) != 1 {
		t.Errorf("encoded len = %d, want 1 (trailing odd byte dropped)", len(encoded))
	}
}

package audio

import "encoding/binary"

// ITU-T G.711 mu-law constants.
const (
	ulawBias = 0x84  // 132, bias added before segmenting
	ulawClip = 32635 // maximum linear magnitude mu-law can represent
)

// mulawDecodeTable is the standard 256-entry decode table: byte index is
// the mu-law octet as received on the wire, value is the signed linear
// PCM16 sample it represents. Built once at init from the bit-exact
// formula so the hot path (MulawDecode) is a table lookup.
var mulawDecodeTable [256]int16

func init() {
	for i := 0; i < 256; i++ {
		mulawDecodeTable[i] = decodeMulawSample(byte(i))
	}
}

func decodeMulawSample(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b & 0x70) >> 4
	mantissa := b & 0x0F

	magnitude := ((uint16(mantissa) << 3) + ulawBias) << exponent
	magnitude -= ulawBias

	const maxInt16 = 32767
	if magnitude > maxInt16 {
		magnitude = maxInt16
	}

	if sign != 0 {
		return -int16(magnitude)
	}
	return int16(magnitude)
}

func encodeMulawSample(sample int16) byte {
	var sign byte
	var magnitude uint16

	if sample < 0 {
		sign = 0x80
		magnitude = uint16(-int32(sample))
	} else {
		magnitude = uint16(sample)
	}

	magnitude += ulawBias
	if magnitude > ulawClip {
		magnitude = ulawClip
	}

	var exponent byte
	switch {
	case magnitude >= 0x4000:
		exponent = 7
	case magnitude >= 0x2000:
		exponent = 6
	case magnitude >= 0x1000:
		exponent = 5
	case magnitude >= 0x0800:
		exponent = 4
	case magnitude >= 0x0400:
		exponent = 3
	case magnitude >= 0x0200:
		exponent = 2
	case magnitude >= 0x0100:
		exponent = 1
	default:
		exponent = 0
	}

	mantissa := byte((magnitude >> (exponent + 3)) & 0x0F)
	encoded := sign | (exponent << 4) | mantissa
	return ^encoded
}

// MulawDecode decodes a buffer of mu-law octets into signed 16-bit
// little-endian PCM samples, two bytes emitted per input byte.
func MulawDecode(buf []byte) []byte {
	out := make([]byte, len(buf)*2)
	for i, b := range buf {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(mulawDecodeTable[b]))
	}
	return out
}

// MulawEncode encodes signed 16-bit little-endian PCM samples into mu-law
// octets, one byte emitted per input sample. An odd trailing byte is
// dropped (a malformed PCM buffer should never reach this point).
func MulawEncode(pcm []byte) []byte {
	n := len(pcm) / 2
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		out[i] = encodeMulawSample(sample)
	}
	return out
}

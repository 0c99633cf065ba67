package audio

// UpsampleZeroOrderHold doubles the sample rate of a 16-bit little-endian
// PCM buffer by repeating each sample once (zero-order hold), chosen for
// minimum latency: no window to fill before the first output sample is
// available. This introduces high-frequency images above the original
// Nyquist rate; a linear interpolator would reduce them at the cost of a
// one-sample lookahead delay, which the call's latency budget cannot
// afford (see DESIGN.md, Open Question Decisions (c)).
func UpsampleZeroOrderHold(pcm []byte) []byte {
	n := len(pcm) / 2
	out := make([]byte, n*2*2)
	for i := 0; i < n; i++ {
		sample := pcm[i*2 : i*2+2]
		copy(out[i*4:i*4+2], sample)
		copy(out[i*4+2:i*4+4], sample)
	}
	return out
}

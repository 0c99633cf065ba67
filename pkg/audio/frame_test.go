package audio

import "testing"

func TestFrameValidate(t *testing.T) {
	cases := []struct {
		name    string
		frame   Frame
		wantErr bool
	}{
		{"valid mulaw 8k", Frame{Data: make([]byte, 160), SampleRate: 8000, Encoding: EncodingMulaw}, false},
		{"valid pcm16 16k", Frame{Data: make([]byte, 640), SampleRate: 16000, Encoding: EncodingPCM16}, false},
		{"odd pcm16", Frame{Data: make([]byte, 321), SampleRate: 8000, Encoding: EncodingPCM16}, true},
		{"bad sample rate", Frame{Data: make([]byte, 160), SampleRate: 44100, Encoding: EncodingMulaw}, true},
	}

	for _, tc := range cases {
		err := tc.frame.Validate()
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestFrameDurationMS(t *testing.T) {
	f := Frame{Data: make([]byte, OutboundFrameBytes), SampleRate: 8000, Encoding: EncodingMulaw}
	if got := f.DurationMS(); got != 20 {
		t.Errorf("DurationMS() = %v, want 20", got)
	}

	pcmFrame := Frame{Data: make([]byte, OutboundPCMChunkBytes), SampleRate: 8000, Encoding: EncodingPCM16}
	if got := pcmFrame.DurationMS(); got != 20 {
		t.Errorf("DurationMS() = %v, want 20", got)
	}
}

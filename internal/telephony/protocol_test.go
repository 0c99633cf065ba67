package telephony

import (
	"encoding/json"
	"testing"
)

func TestInboundMessageDecodeStart(t *testing.T) {
	raw := `{"event":"start","streamSid":"MZabc","start":{"accountSid":"ACxyz","callSid":"CAxyz","streamSid":"MZabc"}}`

	var msg InboundMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if msg.Event != "start" {
		t.Errorf("Event = %q, want start", msg.Event)
	}
	if msg.Start == nil {
		t.Fatal("Start payload not decoded")
	}
	if msg.Start.CallSID != "CAxyz" || msg.Start.StreamSID != "MZabc" {
		t.Errorf("Start = %+v, want callSid=CAxyz streamSid=MZabc", msg.Start)
	}
}

func TestInboundMessageDecodeMedia(t *testing.T) {
	raw := `{"event":"media","streamSid":"MZabc","media":{"track":"inbound","chunk":"1","timestamp":"100","payload":"//79/A=="}}`

	var msg InboundMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if msg.Media == nil || msg.Media.Payload != "//79/A==" {
		t.Fatalf("Media = %+v, want payload //79/A==", msg.Media)
	}
}

func TestInboundMessageDecodeStop(t *testing.T) {
	raw := `{"event":"stop","streamSid":"MZabc","stop":{"accountSid":"ACxyz","callSid":"CAxyz"}}`

	var msg InboundMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if msg.Stop == nil || msg.Stop.CallSID != "CAxyz" {
		t.Fatalf("Stop = %+v, want callSid=CAxyz", msg.Stop)
	}
}

func TestInboundMessageMalformedJSON(t *testing.T) {
	var msg InboundMessage
	if err := json.Unmarshal([]byte(`{"event":`), &msg); err == nil {
		t.Fatal("expected decode error for malformed JSON")
	}
}

func TestNewOutboundMedia(t *testing.T) {
	msg := NewOutboundMedia("MZabc", "//79/A==")
	if msg.Event != "media" {
		t.Errorf("Event = %q, want media", msg.Event)
	}
	if msg.StreamSID != "MZabc" {
		t.Errorf("StreamSID = %q, want MZabc", msg.StreamSID)
	}
	if msg.Media.Payload != "//79/A==" {
		t.Errorf("Media.Payload = %q, want //79/A==", msg.Media.Payload)
	}

	encoded, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var roundTrip map[string]interface{}
	if err := json.Unmarshal(encoded, &roundTrip); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if roundTrip["event"] != "media" {
		t.Errorf("round-tripped event = %v, want media", roundTrip["event"])
	}
}

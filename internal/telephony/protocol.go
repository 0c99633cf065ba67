package telephony

// InboundMessage is a control or media frame received over the telephony
// WebSocket. Only the fields relevant to event are ever populated; the
// rest decode to zero values.
type InboundMessage struct {
	Event     string        `json:"event"`
	Sequence  string        `json:"sequenceNumber,omitempty"`
	StreamSID string        `json:"streamSid,omitempty"`
	Start     *StartPayload `json:"start,omitempty"`
	Media     *MediaPayload `json:"media,omitempty"`
	Stop      *StopPayload  `json:"stop,omitempty"`
	Protocol  string        `json:"protocol,omitempty"`
	Version   string        `json:"version,omitempty"`
}

// StartPayload carries the call and stream identifiers delivered on the
// start event; streamSid is mandatory for any outbound media afterward.
type StartPayload struct {
	AccountSID       string            `json:"accountSid"`
	CallSID          string            `json:"callSid"`
	StreamSID        string            `json:"streamSid"`
	From             string            `json:"from,omitempty"`
	To               string            `json:"to,omitempty"`
	Tracks           []string          `json:"tracks,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

// MediaPayload carries one inbound audio chunk. Payload decodes to mu-law
// @ 8kHz bytes, ordinarily 160 bytes (20ms) but callers must not assume an
// exact size.
type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// StopPayload carries the terminal event's metadata.
type StopPayload struct {
	AccountSID string `json:"accountSid"`
	CallSID    string `json:"callSid"`
}

// OutboundMediaMessage is the shape of an outbound media frame: a single
// base64 mu-law payload addressed to a stream SID.
type OutboundMediaMessage struct {
	Event     string             `json:"event"`
	StreamSID string             `json:"streamSid"`
	Media     OutboundMediaFrame `json:"media"`
}

// OutboundMediaFrame wraps the base64 payload of one outbound chunk.
type OutboundMediaFrame struct {
	Payload string `json:"payload"`
}

// NewOutboundMedia builds the outbound media envelope for one paced
// mu-law chunk already base64-encoded.
func NewOutboundMedia(streamSID, payload string) OutboundMediaMessage {
	return OutboundMediaMessage{
		Event:     "media",
		StreamSID: streamSID,
		Media:     OutboundMediaFrame{Payload: payload},
	}
}

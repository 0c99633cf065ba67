package telephony

import (
	"fmt"
	"net/http"
)

// VoiceIncoming responds to the provider's inbound-call webhook
// (HTTP POST, URL-encoded form body) with XML instructing it to connect
// the call to the media WebSocket at streamURL. The exact XML dialect is
// provider-prescribed; this matches the Twilio Media Streams <Connect>
// verb the teacher pack's providers target.
func VoiceIncoming(streamURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form body", http.StatusBadRequest)
			return
		}
		callSID := r.FormValue("CallSid")
		from := r.FormValue("From")

		twiml := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
	<Connect>
		<Stream url="%s">
			<Parameter name="callSid" value="%s"/>
			<Parameter name="caller" value="%s"/>
		</Stream>
	</Connect>
</Response>`, streamURL, callSID, from)

		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(twiml))
	}
}

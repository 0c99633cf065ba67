package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
)

// SarvamTTS is an HTTP request/response TTS client, following the same
// JSON-body idiom as the teacher's batch HTTP providers
// (pkg/providers/stt/groq.go) rather than a persistent connection. It
// requests sample rate 8000 and base64-decodes the first returned audio
// blob; the request carries no codec field, so the output encoding is
// whatever the endpoint returns by default.
type SarvamTTS struct {
	apiKey string
	url    string
}

// NewSarvamTTS builds an HTTP TTS client against Sarvam's text-to-speech
// endpoint.
func NewSarvamTTS(apiKey string) *SarvamTTS {
	return &SarvamTTS{apiKey: apiKey, url: "https://api.sarvam.ai/text-to-speech"}
}

func (s *SarvamTTS) Name() string { return "sarvam-tts" }

func (s *SarvamTTS) Synthesize(ctx context.Context, text, voice, language string) ([]byte, error) {
	payload := map[string]interface{}{
		"inputs":               []string{text},
		"target_language_code": language,
		"speaker":              voice,
		"speech_sample_rate":   8000,
		"enable_preprocessing": true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("tts: sarvam payload marshal failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tts: sarvam request build failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-subscription-key", s.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts: sarvam request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, fmt.Errorf("tts: sarvam error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Audios []string `json:"audios"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("tts: sarvam decode failed: %w", err)
	}
	if len(result.Audios) == 0 {
		return nil, fmt.Errorf("tts: sarvam returned no audio blobs")
	}

	audio, err := base64.StdEncoding.DecodeString(result.Audios[0])
	if err != nil {
		return nil, fmt.Errorf("tts: sarvam base64 decode failed: %w", err)
	}
	return audio, nil
}

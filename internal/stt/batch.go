package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/lokutor-ai/lokutor-orchestrator/pkg/audio"
)

// GroqBatch transcribes a complete utterance in one HTTP request. It is
// the degraded-mode fallback Manager.EnterDegraded switches to once the
// streaming Sarvam upstream has gone sticky-dark (spec.md §7's "sticky
// upstream ... call continues with degraded functionality").
type GroqBatch struct {
	apiKey string
	url    string
	model  string
}

// NewGroqBatch builds a batch STT client against Groq's Whisper
// endpoint.
func NewGroqBatch(apiKey, model string) *GroqBatch {
	if model == "" {
		model = "whisper-large-v3-turbo"
	}
	return &GroqBatch{apiKey: apiKey, url: "https://api.groq.com/openai/v1/audio/transcriptions", model: model}
}

func (g *GroqBatch) Name() string { return "groq-batch" }

func (g *GroqBatch) Transcribe(ctx context.Context, pcm []byte, language string) (string, error) {
	wav := audio.NewWavBuffer(pcm, 8000)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", g.model); err != nil {
		return "", fmt.Errorf("stt: groq batch form build failed: %w", err)
	}
	if language != "" {
		if err := writer.WriteField("language", language); err != nil {
			return "", fmt.Errorf("stt: groq batch form build failed: %w", err)
		}
	}
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("stt: groq batch form build failed: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(wav)); err != nil {
		return "", fmt.Errorf("stt: groq batch form build failed: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("stt: groq batch form build failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, body)
	if err != nil {
		return "", fmt.Errorf("stt: groq batch request failed: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("stt: groq batch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("stt: groq batch error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("stt: groq batch decode failed: %w", err)
	}
	return result.Text, nil
}

// DeepgramBatch transcribes a complete utterance via Deepgram's
// prerecorded endpoint, streaming raw linear16 bytes rather than
// multipart form data.
type DeepgramBatch struct {
	apiKey string
	url    string
}

// NewDeepgramBatch builds a batch STT client against Deepgram's listen
// endpoint.
func NewDeepgramBatch(apiKey string) *DeepgramBatch {
	return &DeepgramBatch{apiKey: apiKey, url: "https://api.deepgram.com/v1/listen"}
}

func (d *DeepgramBatch) Name() string { return "deepgram-batch" }

func (d *DeepgramBatch) Transcribe(ctx context.Context, pcm []byte, language string) (string, error) {
	u, err := url.Parse(d.url)
	if err != nil {
		return "", fmt.Errorf("stt: deepgram batch url parse failed: %w", err)
	}

	params := u.Query()
	params.Set("model", "nova-2")
	params.Set("smart_format", "true")
	if language != "" {
		params.Set("language", language)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(pcm))
	if err != nil {
		return "", fmt.Errorf("stt: deepgram batch request failed: %w", err)
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", "audio/l16; rate=8000; channels=1")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("stt: deepgram batch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("stt: deepgram batch error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("stt: deepgram batch decode failed: %w", err)
	}
	if len(result.Results.Channels) == 0 || len(result.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return result.Results.Channels[0].Alternatives[0].Transcript, nil
}

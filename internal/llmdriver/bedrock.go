package llmdriver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BedrockProvider streams a chat completion from an Anthropic Claude
// model hosted on AWS Bedrock, the primary LLM provider per spec.md §6's
// AWS_REGION/BEDROCK_MODEL_ID configuration.
type BedrockProvider struct {
	client  *bedrockruntime.Client
	modelID string
}

// NewBedrockProvider resolves AWS credentials/region the standard SDK
// way (environment, shared config, IAM role) and binds to modelID.
func NewBedrockProvider(ctx context.Context, region, modelID string) (*BedrockProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("llmdriver: bedrock config load failed: %w", err)
	}
	return &BedrockProvider{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
	}, nil
}

func (b *BedrockProvider) Name() string { return "bedrock-" + b.modelID }

type anthropicBody struct {
	AnthropicVersion string       `json:"anthropic_version"`
	MaxTokens        int          `json:"max_tokens"`
	Temperature      float64      `json:"temperature"`
	TopP             float64      `json:"top_p"`
	System           string       `json:"system,omitempty"`
	Messages         []bedrockMsg `json:"messages"`
}

type bedrockMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicStreamChunk mirrors the subset of Anthropic's Messages
// streaming protocol (as relayed verbatim by Bedrock's
// InvokeModelWithResponseStream) that the segmenter cares about: text
// deltas and the stream's terminal event.
type anthropicStreamChunk struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

func (b *BedrockProvider) StreamComplete(ctx context.Context, messages []Message, params Params, onDelta func(string) error) (string, error) {
	var system string
	bedrockMessages := make([]bedrockMsg, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		bedrockMessages = append(bedrockMessages, bedrockMsg{Role: m.Role, Content: m.Content})
	}

	payload, err := json.Marshal(anthropicBody{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        params.MaxTokens,
		Temperature:      params.Temperature,
		TopP:             params.TopP,
		System:           system,
		Messages:         bedrockMessages,
	})
	if err != nil {
		return "", fmt.Errorf("llmdriver: bedrock payload marshal failed: %w", err)
	}

	out, err := b.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return "", fmt.Errorf("llmdriver: bedrock invoke failed: %w", err)
	}

	stream := out.GetStream()
	defer stream.Close()

	var full string
	for event := range stream.Events() {
		chunkEvent, ok := event.(*types.ResponseStreamMemberChunk)
		if !ok {
			continue
		}

		var chunk anthropicStreamChunk
		if err := json.Unmarshal(chunkEvent.Value.Bytes, &chunk); err != nil {
			continue
		}
		if chunk.Type != "content_block_delta" || chunk.Delta.Text == "" {
			continue
		}

		full += chunk.Delta.Text
		if err := onDelta(chunk.Delta.Text); err != nil {
			return full, err
		}
	}

	if err := stream.Err(); err != nil {
		return full, fmt.Errorf("llmdriver: bedrock stream error: %w", err)
	}
	if full == "" {
		return "", ErrEmptyResponse
	}
	return full, nil
}

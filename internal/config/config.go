// Package config loads process configuration from the environment,
// following the teacher's .env-then-os.Getenv convention.
package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds every environment-derived setting the bridge needs, per
// spec.md §6's Configuration table plus the STT/TTS provider credentials
// the teacher's cmd/agent/main.go already reads.
type Config struct {
	Port    string
	BaseURL string

	AWSRegion    string
	BedrockModel string
	SarvamAPIKey string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	GroqAPIKey       string
	OpenAIAPIKey     string
	AnthropicAPIKey  string
	GoogleAPIKey     string
	DeepgramAPIKey   string
	AssemblyAIAPIKey string
	LokutorAPIKey    string

	DebugLLMPrompt bool
	LogFormat      string

	LLMProvider string
	TTSProvider string
}

// Load reads a .env file if present (missing is not an error, matching
// the teacher's "Note: No .env file found" tolerance) then populates a
// Config from the process environment, applying spec.md's defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, using system environment variables")
	}

	cfg := &Config{
		Port:    getenvDefault("PORT", "3000"),
		BaseURL: os.Getenv("BASE_URL"),

		AWSRegion:    getenvDefault("AWS_REGION", "us-east-1"),
		BedrockModel: getenvDefault("BEDROCK_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0"),
		SarvamAPIKey: os.Getenv("SARVAM_API_KEY"),

		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: os.Getenv("TWILIO_FROM_NUMBER"),

		GroqAPIKey:       os.Getenv("GROQ_API_KEY"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		GoogleAPIKey:     os.Getenv("GOOGLE_API_KEY"),
		DeepgramAPIKey:   os.Getenv("DEEPGRAM_API_KEY"),
		AssemblyAIAPIKey: os.Getenv("ASSEMBLYAI_API_KEY"),
		LokutorAPIKey:    os.Getenv("LOKUTOR_API_KEY"),

		DebugLLMPrompt: os.Getenv("DEBUG_LLM_PROMPT") == "true" || os.Getenv("DEBUG_LLM_PROMPT") == "1",
		LogFormat:      getenvDefault("LOG_FORMAT", "text"),

		LLMProvider: getenvDefault("LLM_PROVIDER", "bedrock"),
		TTSProvider: getenvDefault("TTS_PROVIDER", "lokutor"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("config: BASE_URL must be set (used to build the TwiML media-stream callback URL)")
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

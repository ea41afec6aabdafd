package transcribe

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// WhisperClient calls an OpenAI-compatible audio transcription endpoint.
// Implements the Provider interface.
type WhisperClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewWhisperClient creates a Whisper STT client. baseURL overrides the
// vendor endpoint for compatible self-hosted servers; empty uses the default.
func NewWhisperClient(apiKey, baseURL, model string, timeout time.Duration) *WhisperClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &WhisperClient{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}
}

// Name returns the provider name.
func (w *WhisperClient) Name() string { return "whisper" }

// Model returns the configured model identifier.
func (w *WhisperClient) Model() string { return w.model }

// Transcribe sends the audio file at audioPath to the vendor and returns the
// transcript. One request per call; retry policy lives in the Adapter.
func (w *WhisperClient) Transcribe(ctx context.Context, audioPath string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("whisper request: %w", err)
	}

	return &Response{
		Text:     resp.Text,
		Language: resp.Language,
		Duration: resp.Duration,
	}, nil
}

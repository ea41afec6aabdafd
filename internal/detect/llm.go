package detect

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// LanguageModel is the interface for generative-language backends. The
// response is free-form text expected to contain one JSON object.
type LanguageModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ChatModel calls an OpenAI-compatible chat completion endpoint. Gemini and
// other vendors expose compatible endpoints, selected via base URL.
type ChatModel struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewChatModel creates a chat completion client.
func NewChatModel(apiKey, baseURL, model string, timeout time.Duration) *ChatModel {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &ChatModel{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}
}

// Complete sends the prompt as a single user message and returns the raw
// response text. One request per call; failures propagate without retry.
func (c *ChatModel) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

package llm

import (
	"context"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"pediatric-assistant/pkg"
)

// OpenAIClient calls the OpenAI chat completion API. Each request is
// bounded by the configured timeout independently of the caller's
// context.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIClient constructs an OpenAI-backed client. An empty model
// falls back to a small default; a zero timeout to 30 seconds.
func NewOpenAIClient(apiKey, model string, timeout time.Duration) *OpenAIClient {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIClient{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: timeout,
	}
}

var _ Client = (*OpenAIClient)(nil)

// Complete sends the assembled prompt as a single user message and
// returns the model's text.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	if c.client == nil {
		return "", &pkg.RemoteServiceError{Service: "model", Err: errors.New("client not initialized")}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: opts.Temperature,
	}
	if opts.MaxOutputTokens > 0 {
		req.MaxTokens = opts.MaxOutputTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", &pkg.RemoteServiceError{Service: "model", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &pkg.RemoteServiceError{Service: "model", Err: errors.New("empty completion")}
	}
	return resp.Choices[0].Message.Content, nil
}

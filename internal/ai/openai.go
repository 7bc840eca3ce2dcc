package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAICompleter struct {
	client *openai.Client
	opts   Options
}

// NewOpenAICompleter returns nil when no API key is configured.
func NewOpenAICompleter(apiKey, baseURL string, opts Options) *OpenAICompleter {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	return &OpenAICompleter{client: openai.NewClientWithConfig(cfg), opts: opts}
}

func (o *OpenAICompleter) Name() string {
	return "openai:" + o.opts.Model
}

func (o *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		// zero is dropped by omitempty and the server would use its default of 1
		Temperature: math.SmallestNonzeroFloat32,
		MaxTokens:   o.opts.MaxTokens,
	}
	if o.opts.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
			return "", RateLimitError{Err: err}
		}
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

// WithOptions returns a copy that shares the client but uses different decoding options.
func (o *OpenAICompleter) WithOptions(opts Options) *OpenAICompleter {
	if opts.Model == "" {
		opts.Model = o.opts.Model
	}
	return &OpenAICompleter{client: o.client, opts: opts}
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type GeminiCompleter struct {
	client *genai.Client
	opts   Options
}

// NewGeminiCompleter returns nil, nil when no API key is configured.
func NewGeminiCompleter(ctx context.Context, apiKey string, opts Options) (*GeminiCompleter, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if opts.Model == "" {
		opts.Model = "gemini-1.5-flash"
	}
	return &GeminiCompleter{client: client, opts: opts}, nil
}

func (g *GeminiCompleter) Name() string {
	return "gemini:" + g.opts.Model
}

func (g *GeminiCompleter) Close() error {
	return g.client.Close()
}

func (g *GeminiCompleter) WithOptions(opts Options) *GeminiCompleter {
	if opts.Model == "" {
		opts.Model = g.opts.Model
	}
	return &GeminiCompleter{client: g.client, opts: opts}
}

func (g *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.opts.Model)
	model.SetTemperature(0)
	if g.opts.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(g.opts.MaxTokens))
	}
	if g.opts.JSON {
		model.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		var gErr *googleapi.Error
		if errors.As(err, &gErr) && gErr.Code == 429 {
			var body map[string]any
			_ = json.Unmarshal([]byte(gErr.Body), &body)
			return "", RateLimitError{RetryAfter: extractRetryAfter(body), Err: err}
		}
		return "", fmt.Errorf("gemini completion: %w", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		break
	}
	if sb.Len() == 0 {
		return "", errors.New("empty completion response")
	}
	return sb.String(), nil
}

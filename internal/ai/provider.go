package ai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

type ProviderConfig struct {
	Provider      string
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	GeminiKey     string
	GeminiModel   string
	MaxTokens     int
	Breaker       BreakerSettings
}

// Providers holds the completers used for classification (JSON output) and reply drafting (plain text).
// Both are nil when no provider is configured.
type Providers struct {
	Classify Completer
	Reply    Completer
	close    func() error
}

func (p *Providers) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}

// NewProviders picks a backend. "auto" prefers OpenAI, then Gemini, then none. Naming a provider
// explicitly without its key is an error.
func NewProviders(ctx context.Context, cfg ProviderConfig, logger zerolog.Logger) (*Providers, error) {
	name := cfg.Provider
	if name == "" || name == "auto" {
		switch {
		case cfg.OpenAIKey != "":
			name = "openai"
		case cfg.GeminiKey != "":
			name = "gemini"
		default:
			name = "none"
		}
	}

	classifyOpts := Options{MaxTokens: cfg.MaxTokens, JSON: true}
	replyOpts := Options{MaxTokens: cfg.MaxTokens}

	var classify, reply Completer
	p := &Providers{}
	switch name {
	case "none":
		logger.Info().Msg("no ai provider configured, classification uses keyword fallback")
		return p, nil
	case "openai":
		classifyOpts.Model = cfg.OpenAIModel
		c := NewOpenAICompleter(cfg.OpenAIKey, cfg.OpenAIBaseURL, classifyOpts)
		if c == nil {
			return nil, fmt.Errorf("ai provider openai requires OPENAI_API_KEY")
		}
		classify, reply = c, c.WithOptions(replyOpts)
	case "gemini":
		classifyOpts.Model = cfg.GeminiModel
		c, err := NewGeminiCompleter(ctx, cfg.GeminiKey, classifyOpts)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, fmt.Errorf("ai provider gemini requires GEMINI_API_KEY")
		}
		classify, reply = c, c.WithOptions(replyOpts)
		p.close = c.Close
	default:
		return nil, fmt.Errorf("unknown ai provider %q", name)
	}

	p.Classify = NewBreakerCompleter(classify, cfg.Breaker, logger)
	p.Reply = NewBreakerCompleter(reply, cfg.Breaker, logger)
	logger.Info().Str("provider", classify.Name()).Msg("ai provider configured")
	return p, nil
}

package ai

import "context"

//go:generate mockgen -source=ai.go -destination=mock_ai/mock_completer.go -package=mock_ai

// Completer sends a single prompt to a text-generation model and returns its raw text output.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Options are the decoding settings shared by every provider.
type Options struct {
	Model     string
	MaxTokens int
	// JSON asks the provider to constrain output to a JSON object where supported.
	JSON bool
}

package llm

import (
	"context"

	"github.com/ollama/ollama/api"
)

// Client is the inference capability the chat session depends on. Prompt
// analysis and reply generation are two separate Chat calls through it.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (Response, error)
	Version(ctx context.Context) (string, error)
}

// ChatRequest is one non-streaming chat call
type ChatRequest struct {
	Messages []api.Message
	Options  Options
}

// Response holds the raw body returned by the backend. Its shape is read
// through an extraction chain rather than a fixed schema.
type Response struct {
	StatusCode int
	Body       []byte
}

// Options holds the generation parameters sent with every request
type Options struct {
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TopP        float64 `yaml:"top_p"`
	TopK        int     `yaml:"top_k"`
}

// DefaultOptions returns the default generation parameters
func DefaultOptions() Options {
	return Options{
		Temperature: 0.7,
		MaxTokens:   2000,
		TopP:        0.9,
		TopK:        40,
	}
}

// AnalysisOptions biases the model toward short, deterministic answers
func AnalysisOptions() Options {
	return Options{
		Temperature: 0.1,
		MaxTokens:   100,
		TopP:        0.9,
		TopK:        40,
	}
}

// Map renders the options with Ollama's parameter names
func (o Options) Map() map[string]any {
	return map[string]any{
		"temperature": o.Temperature,
		"num_predict": o.MaxTokens,
		"top_p":       o.TopP,
		"top_k":       o.TopK,
	}
}

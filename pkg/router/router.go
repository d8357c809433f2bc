// Package router decides whether a user prompt needs a lookup before it is
// answered and turns lookup markup emitted by the model into readable text.
package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/andrew/emma/pkg/llm"
)

// NoSearch is the analysis answer meaning the prompt needs no lookup
const NoSearch = "NO_SEARCH"

const analysisTemplate = `
Analyze the following user prompt and decide whether it requires a search.
If it requires a search, answer with the appropriate search command.
If it does not require a search, answer with "NO_SEARCH".

Prompt: %s
`

// commandPattern matches <kind>payload</kind>; the back-reference keeps
// mismatched tag pairs from being treated as a command.
var commandPattern = regexp2.MustCompile(`<([^>]+)>(.*?)</\1>`, regexp2.None)

// Router runs the analysis call and rewrites lookup commands
type Router struct {
	client llm.Client
	lookup LookupProvider
	logger *zap.Logger
}

// Option configures a Router
type Option func(*Router)

// WithLookupProvider replaces the placeholder provider
func WithLookupProvider(p LookupProvider) Option {
	return func(r *Router) {
		r.lookup = p
	}
}

// New creates a router backed by client
func New(client llm.Client, logger *zap.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		client: client,
		lookup: Placeholders{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AnalyzePrompt asks the model whether input needs a lookup. It returns the
// candidate command and true, or false when no lookup is needed. Failures
// are logged and reported as no lookup so the turn falls back to generation.
func (r *Router) AnalyzePrompt(ctx context.Context, input string) (string, bool) {
	req := llm.ChatRequest{
		Messages: []api.Message{
			{Role: "system", Content: fmt.Sprintf(analysisTemplate, input)},
		},
		Options: llm.AnalysisOptions(),
	}

	resp, err := r.client.Chat(ctx, req)
	if err != nil {
		r.logger.Error("prompt analysis failed", zap.Error(err))
		return "", false
	}

	result, err := llm.Extract(resp.Body, llm.AnalysisChain)
	if err != nil {
		r.logger.Error("prompt analysis returned an unreadable response", zap.Error(err))
		return "", false
	}

	result = strings.TrimSpace(result)
	if result == "" || result == NoSearch {
		return "", false
	}
	r.logger.Debug("prompt analysis produced a lookup command", zap.String("command", result))
	return result, true
}

// ProcessSearchCommands replaces every <search>, <memory> and <query> command
// in text with the lookup provider's answer. Other tags are left untouched.
func (r *Router) ProcessSearchCommands(ctx context.Context, text string) string {
	out, err := commandPattern.ReplaceFunc(text, func(m regexp2.Match) string {
		kind := m.GroupByNumber(1).String()
		payload := m.GroupByNumber(2).String()
		return r.runLookup(ctx, kind, payload, m.String())
	}, -1, -1)
	if err != nil {
		r.logger.Warn("failed to process lookup commands", zap.Error(err))
		return text
	}
	return out
}

func (r *Router) runLookup(ctx context.Context, kind, payload, original string) string {
	var (
		result string
		err    error
	)
	switch kind {
	case KindSearch:
		result, err = r.lookup.SearchInternet(ctx, payload)
	case KindMemory:
		result, err = r.lookup.SearchMemory(ctx, payload)
	case KindQuery:
		result, err = r.lookup.QueryDatabase(ctx, payload)
	default:
		return original
	}
	if err != nil {
		r.logger.Warn("lookup failed, using placeholder",
			zap.String("kind", kind),
			zap.String("payload", payload),
			zap.Error(err))
		return placeholder(kind, payload)
	}
	return result
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// DefaultHost is the address of a local Ollama server
const DefaultHost = "http://localhost:11434"

// versionTimeout bounds the best-effort reachability probe
const versionTimeout = 2 * time.Second

// StatusError is returned when Ollama answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Ollama API error (status %d): %s", e.StatusCode, e.Body)
}

// OllamaClient talks to the Ollama HTTP API
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
	api        *api.Client
	modelName  string
}

// ClientOption configures an OllamaClient
type ClientOption func(*clientOptions)

type clientOptions struct {
	apiKey string
}

// WithAPIKey sends key as a bearer token, for servers behind an
// authenticating proxy. An empty key sends nothing.
func WithAPIKey(key string) ClientOption {
	return func(o *clientOptions) {
		o.apiKey = key
	}
}

// bearerTransport adds an Authorization header to every request
type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(req)
}

// NewOllamaClient creates a new client for interacting with a local Ollama server
func NewOllamaClient(modelName string, host string, opts ...ClientOption) (*OllamaClient, error) {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	if host == "" {
		host = DefaultHost
	}
	host = strings.TrimRight(host, "/")

	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama host %q: %w", host, err)
	}

	transport := http.DefaultTransport
	if o.apiKey != "" {
		transport = &bearerTransport{token: o.apiKey, base: transport}
	}

	return &OllamaClient{
		baseURL: host,
		// Generation waits as long as the model needs; only ctx can cut it short.
		httpClient: &http.Client{Transport: transport},
		api:        api.NewClient(base, &http.Client{Transport: transport, Timeout: versionTimeout}),
		modelName:  modelName,
	}, nil
}

// Chat sends a non-streaming request to /api/chat and returns the raw body
func (c *OllamaClient) Chat(ctx context.Context, req ChatRequest) (Response, error) {
	stream := false
	body := api.ChatRequest{
		Model:    c.modelName,
		Messages: req.Messages,
		Stream:   &stream,
		Options:  req.Options.Map(),
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(reqBody))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	return Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}

// Version asks the server for its version string
func (c *OllamaClient) Version(ctx context.Context) (string, error) {
	v, err := c.api.Version(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to query Ollama version: %w", err)
	}
	return v, nil
}

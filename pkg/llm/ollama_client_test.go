package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaClient_Chat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Write([]byte(`{"message":{"role":"assistant","content":"hi"},"done":true}`))
	}))
	defer srv.Close()

	client, err := NewOllamaClient("gemma3:1b", srv.URL+"/")
	require.NoError(t, err)

	resp, err := client.Chat(context.Background(), ChatRequest{
		Messages: []api.Message{{Role: "user", Content: "hello"}},
		Options:  DefaultOptions(),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":{"role":"assistant","content":"hi"},"done":true}`, string(resp.Body))

	assert.Equal(t, map[string]any{
		"model":    "gemma3:1b",
		"messages": []any{map[string]any{"role": "user", "content": "hello"}},
		"options": map[string]any{
			"temperature": 0.7,
			"num_predict": float64(2000),
			"top_p":       0.9,
			"top_k":       float64(40),
		},
		"stream": false,
	}, got)
}

func TestOllamaClient_ChatStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := NewOllamaClient("missing", srv.URL)
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), ChatRequest{})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Contains(t, err.Error(), "model not found")
}

func TestOllamaClient_ChatUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewOllamaClient("m", url)
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), ChatRequest{})
	assert.ErrorContains(t, err, "failed to send request")
}

func TestOllamaClient_Version(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/version", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"version":"0.6.6"}`))
	}))
	defer srv.Close()

	client, err := NewOllamaClient("m", srv.URL)
	require.NoError(t, err)

	v, err := client.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.6.6", v)
}

func TestNewOllamaClient_InvalidHost(t *testing.T) {
	_, err := NewOllamaClient("m", "http://[::1")
	assert.Error(t, err)
}

func TestOllamaClient_APIKey(t *testing.T) {
	var auth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = append(auth, r.Header.Get("Authorization"))
		if r.URL.Path == "/api/version" {
			w.Write([]byte(`{"version":"0.6.6"}`))
			return
		}
		w.Write([]byte(`{"message":{"content":"ok"}}`))
	}))
	defer srv.Close()

	client, err := NewOllamaClient("m", srv.URL, WithAPIKey("secret"))
	require.NoError(t, err)
	_, err = client.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	_, err = client.Version(context.Background())
	require.NoError(t, err)

	plain, err := NewOllamaClient("m", srv.URL, WithAPIKey(""))
	require.NoError(t, err)
	_, err = plain.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer secret", "Bearer secret", ""}, auth)
}

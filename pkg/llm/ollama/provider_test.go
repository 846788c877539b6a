package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kart-io/databridge/pkg/llm"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BaseURL != "http://localhost:11434" {
		t.Errorf("expected BaseURL http://localhost:11434, got %s", cfg.BaseURL)
	}
	if cfg.EmbedModel != "nomic-embed-text" {
		t.Errorf("expected EmbedModel nomic-embed-text, got %s", cfg.EmbedModel)
	}
	if cfg.ChatModel != "llama3.1" {
		t.Errorf("expected ChatModel llama3.1, got %s", cfg.ChatModel)
	}
	if cfg.Timeout != 120*time.Second {
		t.Errorf("expected Timeout 120s, got %v", cfg.Timeout)
	}
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(map[string]any{
		"base_url":    "http://ollama:11434",
		"embed_model": "mxbai-embed-large",
		"chat_model":  "qwen2.5",
	})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if p.Name() != ProviderName {
		t.Errorf("expected name %s, got %s", ProviderName, p.Name())
	}
}

func newTestProvider(baseURL string) *Provider {
	return NewProviderWithConfig(&Config{
		BaseURL:    baseURL,
		EmbedModel: "nomic-embed-text",
		ChatModel:  "llama3.1",
		Timeout:    5 * time.Second,
	})
}

func TestEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("unexpected model: %s", req.Model)
		}
		if len(req.Input) != 2 {
			t.Fatalf("expected 2 inputs, got %d", len(req.Input))
		}

		_, _ = w.Write([]byte(`{
			"model": "nomic-embed-text",
			"embeddings": [[0.1, 0.2], [0.3, 0.4]]
		}`))
	}))
	defer server.Close()

	p := newTestProvider(server.URL)

	embeddings, err := p.Embed(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(embeddings))
	}
	if embeddings[1][1] != 0.4 {
		t.Errorf("unexpected embedding value: %v", embeddings[1][1])
	}
}

func TestEmbedSingle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings": [[1.0, 2.0, 3.0]]}`))
	}))
	defer server.Close()

	p := newTestProvider(server.URL)

	embedding, err := p.EmbedSingle(context.Background(), "hello")
	if err != nil {
		t.Fatalf("EmbedSingle() error = %v", err)
	}
	if len(embedding) != 3 {
		t.Errorf("expected 3 dimensions, got %d", len(embedding))
	}
}

func TestChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("stream should be false")
		}

		_, _ = w.Write([]byte(`{
			"model": "llama3.1",
			"message": {"role": "assistant", "content": "chat reply"},
			"done": true,
			"prompt_eval_count": 10,
			"eval_count": 3
		}`))
	}))
	defer server.Close()

	p := newTestProvider(server.URL)

	content, err := p.Chat(context.Background(), []llm.Message{
		{Role: llm.RoleUser, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if content != "chat reply" {
		t.Errorf("unexpected content: %s", content)
	}
}

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.System != "be terse" {
			t.Errorf("unexpected system prompt: %s", req.System)
		}

		_, _ = w.Write([]byte(`{
			"model": "llama3.1",
			"response": "generated text",
			"done": true,
			"prompt_eval_count": 12,
			"eval_count": 4
		}`))
	}))
	defer server.Close()

	p := newTestProvider(server.URL)

	resp, err := p.Generate(context.Background(), "prompt", "be terse")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "generated text" {
		t.Errorf("unexpected content: %s", resp.Content)
	}
	if resp.TokenUsage == nil || resp.TokenUsage.TotalTokens != 16 {
		t.Error("token usage not computed from eval counts")
	}
}

func TestComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(req.Messages))
		}
		userMsg := req.Messages[1].Content
		if !strings.Contains(userMsg, "some context") {
			t.Error("context chunk missing from prompt")
		}
		if !strings.Contains(userMsg, "Question: the query") {
			t.Error("query missing from prompt")
		}
		if req.Options["num_predict"] != float64(100) {
			t.Errorf("expected num_predict 100, got %v", req.Options["num_predict"])
		}

		_, _ = w.Write([]byte(`{
			"model": "llama3.1",
			"message": {"role": "assistant", "content": "the completion"},
			"done": true,
			"prompt_eval_count": 30,
			"eval_count": 8
		}`))
	}))
	defer server.Close()

	p := newTestProvider(server.URL)

	resp, err := p.Complete(context.Background(), &llm.CompletionRequest{
		Query:         "the query",
		ContextChunks: []string{"some context"},
		MaxTokens:     100,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Completion != "the completion" {
		t.Errorf("unexpected completion: %s", resp.Completion)
	}
	if resp.Usage.TotalTokens != 38 {
		t.Errorf("expected 38 total tokens, got %d", resp.Usage.TotalTokens)
	}
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"models": [{"name": "llama3.1"}, {"name": "nomic-embed-text"}]}`))
	}))
	defer server.Close()

	p := newTestProvider(server.URL)

	models, err := p.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 2 || models[1] != "nomic-embed-text" {
		t.Errorf("unexpected models: %v", models)
	}
}

func TestServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "model not found"}`))
	}))
	defer server.Close()

	p := newTestProvider(server.URL)

	_, err := p.Embed(context.Background(), []string{"x"})
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
}

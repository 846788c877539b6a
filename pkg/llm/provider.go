// Package llm provides a unified abstraction over LLM providers.
// Embedding, chat and completion roles can be served by different
// providers and models.
package llm

import (
	"context"
	"fmt"
	"sync"
)

// EmbeddingProvider generates vector embeddings.
type EmbeddingProvider interface {
	// Embed generates embeddings for multiple texts. The returned
	// slice is index-aligned with the input.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle generates an embedding for a single text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Name returns the provider name.
	Name() string
}

// ChatProvider serves multi-turn chat and single-shot generation.
type ChatProvider interface {
	// Chat runs a multi-turn conversation.
	Chat(ctx context.Context, messages []Message) (string, error)

	// Generate produces text for a single prompt.
	Generate(ctx context.Context, prompt string, systemPrompt string) (*GenerateResponse, error)

	// Name returns the provider name.
	Name() string
}

// CompletionProvider answers a query grounded in context chunks.
type CompletionProvider interface {
	// Complete generates a completion for the request.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Reranker scores candidate chunks for relevance to a query.
type Reranker interface {
	// Rerank returns one relevance score per chunk, index-aligned
	// with the input, on a 0-1 scale.
	Rerank(ctx context.Context, query string, chunks []string) ([]float64, error)

	// Name returns the reranker name.
	Name() string
}

// Message represents one message in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role defines the message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TokenUsage reports token accounting for a generation.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerateResponse is the result of a single-shot generation.
type GenerateResponse struct {
	Content    string      `json:"content"`
	TokenUsage *TokenUsage `json:"token_usage,omitempty"`
}

// CompletionRequest asks for an answer to Query grounded in
// ContextChunks.
type CompletionRequest struct {
	Query         string   `json:"query"`
	ContextChunks []string `json:"context_chunks"`

	// MaxTokens bounds the completion length. Zero uses the provider
	// default.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness. Zero uses the provider default.
	Temperature float64 `json:"temperature,omitempty"`
}

// CompletionResponse is the result of a grounded completion.
type CompletionResponse struct {
	Completion string     `json:"completion"`
	Usage      TokenUsage `json:"usage"`
}

// Provider serves all roles.
type Provider interface {
	EmbeddingProvider
	ChatProvider
	CompletionProvider
}

// ProviderFactory creates a full provider from a config map.
type ProviderFactory func(config map[string]any) (Provider, error)

// EmbeddingProviderFactory creates an embedding-only provider.
type EmbeddingProviderFactory func(config map[string]any) (EmbeddingProvider, error)

// ChatProviderFactory creates a chat-only provider.
type ChatProviderFactory func(config map[string]any) (ChatProvider, error)

// CompletionProviderFactory creates a completion-only provider.
type CompletionProviderFactory func(config map[string]any) (CompletionProvider, error)

var registry = &providerRegistry{
	providers:           make(map[string]ProviderFactory),
	embeddingProviders:  make(map[string]EmbeddingProviderFactory),
	chatProviders:       make(map[string]ChatProviderFactory),
	completionProviders: make(map[string]CompletionProviderFactory),
}

type providerRegistry struct {
	mu                  sync.RWMutex
	providers           map[string]ProviderFactory
	embeddingProviders  map[string]EmbeddingProviderFactory
	chatProviders       map[string]ChatProviderFactory
	completionProviders map[string]CompletionProviderFactory
}

// RegisterProvider registers a full provider factory.
func RegisterProvider(name string, factory ProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.providers[name] = factory
}

// RegisterEmbeddingProvider registers an embedding provider factory.
func RegisterEmbeddingProvider(name string, factory EmbeddingProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.embeddingProviders[name] = factory
}

// RegisterChatProvider registers a chat provider factory.
func RegisterChatProvider(name string, factory ChatProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.chatProviders[name] = factory
}

// RegisterCompletionProvider registers a completion provider factory.
func RegisterCompletionProvider(name string, factory CompletionProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.completionProviders[name] = factory
}

// NewProvider creates a full provider instance by name.
func NewProvider(name string, config map[string]any) (Provider, error) {
	registry.mu.RLock()
	factory, ok := registry.providers[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}

	return factory(config)
}

// NewEmbeddingProvider creates an embedding provider by name.
// Dedicated embedding factories take precedence over full providers.
func NewEmbeddingProvider(name string, config map[string]any) (EmbeddingProvider, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	if factory, ok := registry.embeddingProviders[name]; ok {
		return factory(config)
	}
	if factory, ok := registry.providers[name]; ok {
		return factory(config)
	}

	return nil, fmt.Errorf("unknown embedding provider: %s", name)
}

// NewChatProvider creates a chat provider by name.
// Dedicated chat factories take precedence over full providers.
func NewChatProvider(name string, config map[string]any) (ChatProvider, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	if factory, ok := registry.chatProviders[name]; ok {
		return factory(config)
	}
	if factory, ok := registry.providers[name]; ok {
		return factory(config)
	}

	return nil, fmt.Errorf("unknown chat provider: %s", name)
}

// NewCompletionProvider creates a completion provider by name.
// Dedicated completion factories take precedence over full providers.
func NewCompletionProvider(name string, config map[string]any) (CompletionProvider, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	if factory, ok := registry.completionProviders[name]; ok {
		return factory(config)
	}
	if factory, ok := registry.providers[name]; ok {
		return factory(config)
	}

	return nil, fmt.Errorf("unknown completion provider: %s", name)
}

// ListProviders lists all registered provider names.
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	seen := make(map[string]bool)
	var names []string

	for name := range registry.providers {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for name := range registry.embeddingProviders {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for name := range registry.chatProviders {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for name := range registry.completionProviders {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	return names
}

// Package llm defines the provider abstractions for embeddings, chat
// completion and cross-encoder reranking, plus a name-based registry so
// concrete providers can self-register from init().
package llm

import (
	"context"
	"fmt"
	"sync"
)

// EmbeddingProvider generates vector embeddings for texts.
type EmbeddingProvider interface {
	// Embed generates embeddings for a batch of texts, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle generates an embedding for one text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Name returns the provider name.
	Name() string
}

// ChatProvider produces chat completions.
type ChatProvider interface {
	// Chat runs one completion over the message history. opts may be nil.
	Chat(ctx context.Context, messages []Message, opts *ChatOptions) (string, error)

	// Name returns the provider name.
	Name() string
}

// RerankProvider scores query/document pairs with a cross-encoder.
type RerankProvider interface {
	// Rerank returns one relevance score per document, in input order.
	Rerank(ctx context.Context, query string, documents []string) ([]float64, error)

	// Name returns the provider name.
	Name() string
}

// ChatOptions tunes a single completion.
type ChatOptions struct {
	Temperature float64
	MaxTokens   int
}

// Message is one entry of a chat conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Provider supports both embeddings and chat.
type Provider interface {
	EmbeddingProvider
	ChatProvider
}

// ProviderFactory builds a combined provider from a config map.
type ProviderFactory func(config map[string]any) (Provider, error)

// RerankProviderFactory builds a rerank provider from a config map.
type RerankProviderFactory func(config map[string]any) (RerankProvider, error)

var registry = &providerRegistry{
	providers:       make(map[string]ProviderFactory),
	rerankProviders: make(map[string]RerankProviderFactory),
}

type providerRegistry struct {
	mu              sync.RWMutex
	providers       map[string]ProviderFactory
	rerankProviders map[string]RerankProviderFactory
}

// RegisterProvider registers a combined provider factory under name.
func RegisterProvider(name string, factory ProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.providers[name] = factory
}

// RegisterRerankProvider registers a rerank provider factory under name.
func RegisterRerankProvider(name string, factory RerankProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.rerankProviders[name] = factory
}

// NewEmbeddingProvider creates an embedding provider by name.
func NewEmbeddingProvider(name string, config map[string]any) (EmbeddingProvider, error) {
	registry.mu.RLock()
	factory, ok := registry.providers[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown embedding provider: %s", name)
	}
	return factory(config)
}

// NewChatProvider creates a chat provider by name.
func NewChatProvider(name string, config map[string]any) (ChatProvider, error) {
	registry.mu.RLock()
	factory, ok := registry.providers[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown chat provider: %s", name)
	}
	return factory(config)
}

// NewRerankProvider creates a rerank provider by name.
func NewRerankProvider(name string, config map[string]any) (RerankProvider, error) {
	registry.mu.RLock()
	factory, ok := registry.rerankProviders[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown rerank provider: %s", name)
	}
	return factory(config)
}

// ListProviders returns the names of all registered providers.
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
	for name := range registry.rerankProviders {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

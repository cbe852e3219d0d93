// Package llm provides the provider abstraction for embedding and text
// generation backends. Providers register themselves via init and are
// constructed by name from a config map.
package llm

import (
	"context"
	"fmt"
	"sync"
)

// EmbeddingProvider generates vector embeddings.
type EmbeddingProvider interface {
	// Embed generates embeddings for multiple texts, one vector per input,
	// in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle generates an embedding for a single text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Name returns the provider name.
	Name() string

	// Model returns the embedding model label.
	Model() string
}

// ChatProvider generates text.
type ChatProvider interface {
	// Chat runs a multi-turn conversation.
	Chat(ctx context.Context, messages []Message) (string, error)

	// Generate produces text for a single prompt with an optional system
	// prompt.
	Generate(ctx context.Context, prompt string, systemPrompt string) (string, error)

	// Name returns the provider name.
	Name() string

	// Model returns the generation model label.
	Model() string
}

// Message is a single conversation message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role identifies the message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Provider supports both embedding and generation.
type Provider interface {
	EmbeddingProvider
	ChatProvider
}

// ProviderFactory constructs a full provider from a config map.
type ProviderFactory func(config map[string]any) (Provider, error)

var registry = &providerRegistry{
	providers: make(map[string]ProviderFactory),
}

type providerRegistry struct {
	mu        sync.RWMutex
	providers map[string]ProviderFactory
}

// RegisterProvider registers a provider factory under a name.
func RegisterProvider(name string, factory ProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.providers[name] = factory
}

// NewProvider constructs a full provider by name.
func NewProvider(name string, config map[string]any) (Provider, error) {
	registry.mu.RLock()
	factory, ok := registry.providers[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	return factory(config)
}

// embedModeler is implemented by providers that carry a distinct
// embedding model label alongside their generation model.
type embedModeler interface {
	EmbedModel() string
}

// embeddingHandle narrows a Provider to embedding use. Model reports the
// embedding model, so chunks ingested through the handle are tagged with
// the model that actually produced their vectors.
type embeddingHandle struct {
	Provider
	model string
}

func (h embeddingHandle) Model() string { return h.model }

// NewEmbeddingProvider constructs a provider by name for embedding use.
func NewEmbeddingProvider(name string, config map[string]any) (EmbeddingProvider, error) {
	p, err := NewProvider(name, config)
	if err != nil {
		return nil, err
	}
	if em, ok := p.(embedModeler); ok {
		return embeddingHandle{Provider: p, model: em.EmbedModel()}, nil
	}
	return p, nil
}

// NewChatProvider constructs a provider by name for generation use.
func NewChatProvider(name string, config map[string]any) (ChatProvider, error) {
	return NewProvider(name, config)
}

// ListProviders lists all registered provider names.
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.providers))
	for name := range registry.providers {
		names = append(names, name)
	}
	return names
}

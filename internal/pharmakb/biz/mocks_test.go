package biz

import (
	"context"
	"fmt"
	"sync"

	"github.com/pharmakb/pharmakb/internal/model"
	"github.com/pharmakb/pharmakb/pkg/component/cpic"
	"github.com/pharmakb/pharmakb/pkg/llm"
)

// mockEmbedder returns deterministic vectors and can fail a configured
// number of leading calls.
type mockEmbedder struct {
	mu        sync.Mutex
	dim       int
	calls     int
	failFirst int
	failAll   bool
}

func newMockEmbedder(dim int) *mockEmbedder {
	return &mockEmbedder{dim: dim}
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.failAll || m.calls <= m.failFirst {
		return nil, fmt.Errorf("embedding service unavailable")
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = m.vectorFor(text)
	}
	return vectors, nil
}

func (m *mockEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// vectorFor spreads the text's bytes over the vector so similar texts get
// similar vectors.
func (m *mockEmbedder) vectorFor(text string) []float32 {
	vec := make([]float32, m.dim)
	for i, b := range []byte(text) {
		vec[i%m.dim] += float32(b) / 255.0
	}
	return vec
}

func (m *mockEmbedder) Name() string  { return "mock" }
func (m *mockEmbedder) Model() string { return "mock-embed-v1" }

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var _ llm.EmbeddingProvider = (*mockEmbedder)(nil)

// mockChat records generation calls.
type mockChat struct {
	mu       sync.Mutex
	calls    int
	response string
	err      error
}

func (m *mockChat) Chat(_ context.Context, _ []llm.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.response, m.err
}

func (m *mockChat) Generate(_ context.Context, _ string, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.response, m.err
}

func (m *mockChat) Name() string  { return "mock" }
func (m *mockChat) Model() string { return "mock-chat-v1" }

func (m *mockChat) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var _ llm.ChatProvider = (*mockChat)(nil)

// mockFetcher serves a fixed document.
type mockFetcher struct {
	doc *cpic.SourceDocument
	err error
}

func (m *mockFetcher) FetchGuideline(_ context.Context, identity model.Identity) (*cpic.SourceDocument, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.doc != nil {
		return m.doc, nil
	}
	return &cpic.SourceDocument{
		Title:   fmt.Sprintf("CPIC Guideline for %s and %s", identity.Gene, identity.Drug),
		PageURL: "https://example.org/guideline",
		PDFURL:  "https://example.org/guideline.pdf",
		Data:    []byte("%PDF-mock"),
	}, nil
}

var _ Fetcher = (*mockFetcher)(nil)

// mockParser returns fixed blocks regardless of input bytes.
type mockParser struct {
	blocks []model.Block
	err    error
}

func (m *mockParser) Parse(_ []byte) ([]model.Block, error) {
	return m.blocks, m.err
}

var _ DocumentParser = (*mockParser)(nil)

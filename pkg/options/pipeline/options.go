// Package pipeline provides ingestion and retrieval pipeline options.
package pipeline

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/pharmakb/pharmakb/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options configures the ingestion and retrieval pipeline.
type Options struct {
	// VectorBackend selects the vector index implementation
	// (milvus, memory).
	VectorBackend string `json:"vector-backend" mapstructure:"vector-backend"`

	// Collection is the vector collection name.
	Collection string `json:"collection" mapstructure:"collection"`

	// EmbeddingDim is the expected embedding vector dimension.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// ChunkTokens is the passage token budget.
	ChunkTokens int `json:"chunk-tokens" mapstructure:"chunk-tokens"`

	// ChunkOverlapTokens is the token overlap between consecutive
	// passages.
	ChunkOverlapTokens int `json:"chunk-overlap-tokens" mapstructure:"chunk-overlap-tokens"`

	// EmbedBatchSize is the number of chunks embedded per provider call.
	EmbedBatchSize int `json:"embed-batch-size" mapstructure:"embed-batch-size"`

	// MaxEmbedAttempts bounds embedding retries per batch.
	MaxEmbedAttempts int `json:"max-embed-attempts" mapstructure:"max-embed-attempts"`

	// RetryBaseDelay is the base delay for exponential backoff between
	// embedding attempts.
	RetryBaseDelay time.Duration `json:"retry-base-delay" mapstructure:"retry-base-delay"`

	// StageTimeout bounds each ingestion stage.
	StageTimeout time.Duration `json:"stage-timeout" mapstructure:"stage-timeout"`

	// TopK is the default number of passages retrieved per query.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// ContextTokenBudget bounds the generation context window.
	ContextTokenBudget int `json:"context-token-budget" mapstructure:"context-token-budget"`

	// SystemPrompt is the generation system prompt.
	SystemPrompt string `json:"system-prompt" mapstructure:"system-prompt"`

	// PromptTemplate is the generation prompt with {{context}} and
	// {{question}} placeholders.
	PromptTemplate string `json:"prompt-template" mapstructure:"prompt-template"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		VectorBackend:      "milvus",
		Collection:         "pharmakb_chunks",
		EmbeddingDim:       768, // nomic-embed-text dimension
		ChunkTokens:        400,
		ChunkOverlapTokens: 50,
		EmbedBatchSize:     16,
		MaxEmbedAttempts:   4,
		RetryBaseDelay:     500 * time.Millisecond,
		StageTimeout:       5 * time.Minute,
		TopK:               5,
		ContextTokenBudget: 2048,
		SystemPrompt: `You are a clinical pharmacogenomics assistant. Answer questions about
gene-drug dosing using only the provided guideline excerpts. If the
excerpts do not contain the answer, say so. Cite the gene and drug when
giving recommendations.`,
		PromptTemplate: `Context from clinical guidelines:
{{context}}

Question: {{question}}

Answer:`,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	join := options.Join(prefixes...)
	fs.StringVar(&o.VectorBackend, join+"pipeline.vector-backend", o.VectorBackend, "Vector index backend (milvus, memory).")
	fs.StringVar(&o.Collection, join+"pipeline.collection", o.Collection, "Vector collection name.")
	fs.IntVar(&o.EmbeddingDim, join+"pipeline.embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.IntVar(&o.ChunkTokens, join+"pipeline.chunk-tokens", o.ChunkTokens, "Passage token budget.")
	fs.IntVar(&o.ChunkOverlapTokens, join+"pipeline.chunk-overlap-tokens", o.ChunkOverlapTokens, "Token overlap between consecutive passages.")
	fs.IntVar(&o.EmbedBatchSize, join+"pipeline.embed-batch-size", o.EmbedBatchSize, "Chunks embedded per provider call.")
	fs.IntVar(&o.MaxEmbedAttempts, join+"pipeline.max-embed-attempts", o.MaxEmbedAttempts, "Maximum embedding attempts per batch.")
	fs.DurationVar(&o.RetryBaseDelay, join+"pipeline.retry-base-delay", o.RetryBaseDelay, "Base delay for embedding retry backoff.")
	fs.DurationVar(&o.StageTimeout, join+"pipeline.stage-timeout", o.StageTimeout, "Timeout per ingestion stage.")
	fs.IntVar(&o.TopK, join+"pipeline.top-k", o.TopK, "Default number of passages retrieved per query.")
	fs.IntVar(&o.ContextTokenBudget, join+"pipeline.context-token-budget", o.ContextTokenBudget, "Generation context token budget.")
	fs.StringVar(&o.SystemPrompt, join+"pipeline.system-prompt", o.SystemPrompt, "Generation system prompt.")
	fs.StringVar(&o.PromptTemplate, join+"pipeline.prompt-template", o.PromptTemplate, "Generation prompt template.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.VectorBackend != "milvus" && o.VectorBackend != "memory" {
		errs = append(errs, fmt.Errorf("pipeline vector-backend must be milvus or memory"))
	}
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("pipeline collection is required"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("pipeline embedding-dim must be positive"))
	}
	if o.ChunkTokens <= 0 {
		errs = append(errs, fmt.Errorf("pipeline chunk-tokens must be positive"))
	}
	if o.ChunkOverlapTokens < 0 || o.ChunkOverlapTokens >= o.ChunkTokens {
		errs = append(errs, fmt.Errorf("pipeline chunk-overlap-tokens must be non-negative and smaller than chunk-tokens"))
	}
	if o.MaxEmbedAttempts <= 0 {
		errs = append(errs, fmt.Errorf("pipeline max-embed-attempts must be positive"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("pipeline top-k must be positive"))
	}
	return errs
}

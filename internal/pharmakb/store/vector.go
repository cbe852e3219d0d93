// Package store provides the persistence layer: the metadata store for
// jobs, guidelines, and chunks, and the vector store for embeddings.
package store

import (
	"context"
	"math"

	"github.com/pharmakb/pharmakb/internal/model"
)

// Filter restricts a vector search to a set of guidelines. A nil Filter
// means no restriction; an empty GuidelineIDs slice matches nothing.
type Filter struct {
	GuidelineIDs []string
}

// Hit is a single vector search result. Scores are cosine similarities.
type Hit struct {
	ChunkID     string
	GuidelineID string
	Ordinal     int
	Score       float32
}

// VectorStore indexes chunk embeddings and serves nearest-neighbor
// queries.
type VectorStore interface {
	// EnsureCollection creates the collection for the given dimension if
	// it does not exist.
	EnsureCollection(ctx context.Context, dim int) error

	// Insert adds chunks with their embeddings. Rows are searchable when
	// Insert returns.
	Insert(ctx context.Context, chunks []*model.Chunk) error

	// Search returns the top-k nearest chunks for the query vector,
	// optionally restricted by filter. The filter changes the candidate
	// set, never the relative ranking.
	Search(ctx context.Context, vector []float32, k int, filter *Filter) ([]Hit, error)

	// DeleteByGuideline removes all chunks of a guideline.
	DeleteByGuideline(ctx context.Context, guidelineID string) error

	// Count returns the number of indexed chunks.
	Count(ctx context.Context) (int64, error)

	// Close releases resources.
	Close(ctx context.Context) error
}

// normalizeVector returns the L2-normalized copy of vec, so inner product
// search equals cosine similarity. A zero vector is returned unchanged.
func normalizeVector(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))

	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/pharmakb/pharmakb/internal/model"
)

// memoryVector is one indexed row in the in-memory store.
type memoryVector struct {
	chunkID     string
	guidelineID string
	ordinal     int
	embedding   []float32
}

// MemoryVectorStore is a brute-force in-memory VectorStore. It is used
// for tests and the memory backend; search semantics match the Milvus
// store: cosine similarity over normalized vectors, deterministic
// ordering.
type MemoryVectorStore struct {
	mu   sync.RWMutex
	dim  int
	rows []memoryVector
}

var _ VectorStore = (*MemoryVectorStore)(nil)

// NewMemoryVectorStore creates an empty in-memory vector store.
func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{}
}

func (s *MemoryVectorStore) EnsureCollection(_ context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dim = dim
	return nil
}

func (s *MemoryVectorStore) Insert(_ context.Context, chunks []*model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range chunks {
		s.rows = append(s.rows, memoryVector{
			chunkID:     chunk.ID,
			guidelineID: chunk.GuidelineID,
			ordinal:     chunk.Ordinal,
			embedding:   normalizeVector(chunk.Embedding),
		})
	}
	return nil
}

func (s *MemoryVectorStore) Search(_ context.Context, vector []float32, k int, filter *Filter) ([]Hit, error) {
	var allowed map[string]struct{}
	if filter != nil {
		if len(filter.GuidelineIDs) == 0 {
			return nil, nil
		}
		allowed = make(map[string]struct{}, len(filter.GuidelineIDs))
		for _, id := range filter.GuidelineIDs {
			allowed[id] = struct{}{}
		}
	}

	query := normalizeVector(vector)

	s.mu.RLock()
	hits := make([]Hit, 0, len(s.rows))
	for _, row := range s.rows {
		if allowed != nil {
			if _, ok := allowed[row.guidelineID]; !ok {
				continue
			}
		}
		hits = append(hits, Hit{
			ChunkID:     row.chunkID,
			GuidelineID: row.guidelineID,
			Ordinal:     row.ordinal,
			Score:       dotProduct(query, row.embedding),
		})
	}
	s.mu.RUnlock()

	// Score descending, newer guideline first on ties, then ordinal.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].GuidelineID != hits[j].GuidelineID {
			return hits[i].GuidelineID > hits[j].GuidelineID
		}
		return hits[i].Ordinal < hits[j].Ordinal
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *MemoryVectorStore) DeleteByGuideline(_ context.Context, guidelineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.rows[:0]
	for _, row := range s.rows {
		if row.guidelineID != guidelineID {
			kept = append(kept, row)
		}
	}
	s.rows = kept
	return nil
}

func (s *MemoryVectorStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.rows)), nil
}

func (s *MemoryVectorStore) Close(_ context.Context) error {
	return nil
}

// dotProduct returns the inner product of two equal-length vectors.
func dotProduct(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

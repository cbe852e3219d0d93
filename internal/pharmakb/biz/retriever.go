package biz

import (
	"context"
	"sort"

	"github.com/pharmakb/pharmakb/internal/model"
	"github.com/pharmakb/pharmakb/internal/pharmakb/metrics"
	"github.com/pharmakb/pharmakb/internal/pharmakb/store"
	"github.com/pharmakb/pharmakb/pkg/errors"
	"github.com/pharmakb/pharmakb/pkg/llm"
)

// Retriever embeds questions and returns the most similar guideline
// passages, optionally restricted by gene and drug.
type Retriever struct {
	meta     store.MetadataStore
	vectors  store.VectorStore
	embedder llm.EmbeddingProvider
	metrics  *metrics.Metrics
	topK     int
}

// NewRetriever wires a Retriever.
func NewRetriever(meta store.MetadataStore, vectors store.VectorStore, embedder llm.EmbeddingProvider, m *metrics.Metrics, topK int) *Retriever {
	return &Retriever{
		meta:     meta,
		vectors:  vectors,
		embedder: embedder,
		metrics:  m,
		topK:     topK,
	}
}

// Retrieve returns up to topK passages for the question. Gene and drug
// restrict the candidate guidelines; a restriction that resolves to no
// guidelines returns an empty result rather than falling back to an
// unfiltered search.
func (r *Retriever) Retrieve(ctx context.Context, question, gene, drug string) ([]model.RetrievedPassage, error) {
	r.metrics.Retrieval()

	var filter *store.Filter
	if gene != "" || drug != "" {
		ids, err := r.meta.GuidelineIDs(ctx, gene, drug)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return nil, nil
		}
		filter = &store.Filter{GuidelineIDs: ids}
	}

	vector, err := r.embedder.EmbedSingle(ctx, question)
	if err != nil {
		return nil, errors.ErrUpstreamUnavailable.WithMessagef("question embedding failed: %v", err)
	}

	hits, err := r.vectors.Search(ctx, vector, r.topK, filter)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	// Re-sort so ordering is deterministic regardless of backend: score
	// descending, newer guideline first on ties, ordinal ascending.
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].GuidelineID != hits[j].GuidelineID {
			return hits[i].GuidelineID > hits[j].GuidelineID
		}
		return hits[i].Ordinal < hits[j].Ordinal
	})

	return r.hydrate(ctx, hits)
}

// hydrate joins hits with their chunk text and guideline provenance,
// preserving hit order. Hits whose chunk or guideline has been removed
// since the search are dropped.
func (r *Retriever) hydrate(ctx context.Context, hits []store.Hit) ([]model.RetrievedPassage, error) {
	chunkIDs := make([]string, len(hits))
	for i, h := range hits {
		chunkIDs[i] = h.ChunkID
	}

	chunks, err := r.meta.ChunksByID(ctx, chunkIDs)
	if err != nil {
		return nil, err
	}
	chunkByID := make(map[string]*model.Chunk, len(chunks))
	for _, c := range chunks {
		chunkByID[c.ID] = c
	}

	guidelines := make(map[string]*model.Guideline)
	passages := make([]model.RetrievedPassage, 0, len(hits))

	for _, hit := range hits {
		chunk, ok := chunkByID[hit.ChunkID]
		if !ok {
			continue
		}

		g, ok := guidelines[hit.GuidelineID]
		if !ok {
			g, err = r.meta.GetGuideline(ctx, hit.GuidelineID)
			if err != nil {
				continue
			}
			guidelines[hit.GuidelineID] = g
		}

		passages = append(passages, model.RetrievedPassage{
			ChunkID:     chunk.ID,
			GuidelineID: hit.GuidelineID,
			Gene:        g.Gene,
			Drug:        g.Drug,
			Ordinal:     chunk.Ordinal,
			Section:     chunk.Section,
			Page:        chunk.Page,
			Score:       hit.Score,
			Text:        chunk.Text,
			TokenCount:  chunk.TokenCount,
		})
	}
	return passages, nil
}

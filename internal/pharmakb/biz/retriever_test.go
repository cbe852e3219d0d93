package biz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmakb/pharmakb/internal/model"
	"github.com/pharmakb/pharmakb/internal/pharmakb/metrics"
	"github.com/pharmakb/pharmakb/internal/pharmakb/store"
	"github.com/pharmakb/pharmakb/pkg/id"
)

// seedGuideline completes a synthetic guideline with the given chunk
// texts directly through the stores.
func seedGuideline(t *testing.T, meta *store.MemoryStore, vectors *store.MemoryVectorStore, embedder *mockEmbedder, gene, drug string, texts []string) string {
	return seedGuidelineAt(t, meta, vectors, embedder, gene, drug, texts, time.Now())
}

// seedGuidelineAt pins the ULID timestamps so tests control guideline
// recency.
func seedGuidelineAt(t *testing.T, meta *store.MemoryStore, vectors *store.MemoryVectorStore, embedder *mockEmbedder, gene, drug string, texts []string, at time.Time) string {
	t.Helper()
	ctx := context.Background()

	identity := model.NewIdentity(gene, drug)
	gen := id.NewGenerator()

	job := &model.IngestionJob{
		ID:          gen.NewAt(at),
		Gene:        identity.Gene,
		Drug:        identity.Drug,
		IdentityKey: identity.Key(),
		State:       model.JobStateRequested,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, meta.CreateJob(ctx, job))

	guidelineID := gen.NewAt(at)
	chunks := make([]*model.Chunk, len(texts))
	for i, text := range texts {
		vec, err := embedder.EmbedSingle(ctx, text)
		require.NoError(t, err)
		chunks[i] = &model.Chunk{
			ID:          gen.NewAt(at),
			GuidelineID: guidelineID,
			Ordinal:     i,
			Text:        text,
			Page:        i + 1,
			TokenCount:  10,
			Embedding:   vec,
		}
	}
	require.NoError(t, vectors.Insert(ctx, chunks))

	guideline := &model.Guideline{
		ID:         guidelineID,
		Gene:       identity.Gene,
		Drug:       identity.Drug,
		Title:      gene + " guideline",
		ChunkCount: len(chunks),
		IngestedAt: time.Now().UTC(),
	}
	require.NoError(t, meta.CompleteJob(ctx, job.ID, guideline, chunks))
	return guidelineID
}

func TestRetrieveWithGeneFilter(t *testing.T) {
	meta := store.NewMemoryStore()
	vectors := store.NewMemoryVectorStore()
	require.NoError(t, vectors.EnsureCollection(context.Background(), testDim))
	embedder := newMockEmbedder(testDim)

	seedGuideline(t, meta, vectors, embedder, "CYP2D6", "codeine", []string{
		"Poor metabolizers should avoid codeine.",
		"Ultrarapid metabolizers risk toxicity.",
	})
	seedGuideline(t, meta, vectors, embedder, "TPMT", "azathioprine", []string{
		"Reduce thiopurine dose for intermediate activity.",
	})

	r := NewRetriever(meta, vectors, embedder, metrics.New(), 5)

	passages, err := r.Retrieve(context.Background(), "dosing for poor metabolizers", "CYP2D6", "")
	require.NoError(t, err)
	require.NotEmpty(t, passages)
	for _, p := range passages {
		assert.Equal(t, "CYP2D6", p.Gene)
		assert.Equal(t, "codeine", p.Drug)
	}
}

func TestRetrieveUnresolvableFilterIsEmpty(t *testing.T) {
	meta := store.NewMemoryStore()
	vectors := store.NewMemoryVectorStore()
	require.NoError(t, vectors.EnsureCollection(context.Background(), testDim))
	embedder := newMockEmbedder(testDim)

	seedGuideline(t, meta, vectors, embedder, "CYP2D6", "codeine", []string{"Avoid codeine."})

	r := NewRetriever(meta, vectors, embedder, metrics.New(), 5)

	// BRCA1 was never ingested: no fallback to an unfiltered search, and
	// no embedding call is needed to answer.
	before := embedder.callCount()
	passages, err := r.Retrieve(context.Background(), "dosing question", "BRCA1", "")
	require.NoError(t, err)
	assert.Empty(t, passages)
	assert.Equal(t, before, embedder.callCount())
}

func TestRetrieveOrderingDeterministic(t *testing.T) {
	meta := store.NewMemoryStore()
	vectors := store.NewMemoryVectorStore()
	require.NoError(t, vectors.EnsureCollection(context.Background(), testDim))
	embedder := newMockEmbedder(testDim)

	texts := []string{
		"Poor metabolizers should avoid codeine entirely.",
		"Normal metabolizers may use standard codeine dosing.",
		"Ultrarapid metabolizers risk morphine toxicity.",
	}
	seedGuideline(t, meta, vectors, embedder, "CYP2D6", "codeine", texts)

	r := NewRetriever(meta, vectors, embedder, metrics.New(), 3)

	first, err := r.Retrieve(context.Background(), "codeine dosing by metabolizer status", "", "")
	require.NoError(t, err)
	require.NotEmpty(t, first)

	for i := 0; i < 5; i++ {
		again, err := r.Retrieve(context.Background(), "codeine dosing by metabolizer status", "", "")
		require.NoError(t, err)
		require.Equal(t, len(first), len(again))
		for j := range first {
			assert.Equal(t, first[j].ChunkID, again[j].ChunkID)
		}
	}

	for i := 1; i < len(first); i++ {
		assert.GreaterOrEqual(t, first[i-1].Score, first[i].Score)
	}
}

func TestRetrieveTieBreakPrefersNewerGuideline(t *testing.T) {
	meta := store.NewMemoryStore()
	vectors := store.NewMemoryVectorStore()
	require.NoError(t, vectors.EnsureCollection(context.Background(), testDim))
	embedder := newMockEmbedder(testDim)

	// Identical text in two guidelines produces identical scores; the
	// newer guideline (larger id) must rank first.
	text := "Reduce dose for poor metabolizers."
	now := time.Now()
	older := seedGuidelineAt(t, meta, vectors, embedder, "CYP2C19", "clopidogrel", []string{text}, now.Add(-time.Hour))
	newer := seedGuidelineAt(t, meta, vectors, embedder, "CYP2C9", "warfarin", []string{text}, now)
	require.Less(t, older, newer)

	r := NewRetriever(meta, vectors, embedder, metrics.New(), 2)

	passages, err := r.Retrieve(context.Background(), text, "", "")
	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Equal(t, newer, passages[0].GuidelineID)
	assert.Equal(t, older, passages[1].GuidelineID)
}

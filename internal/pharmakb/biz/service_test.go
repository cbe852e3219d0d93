package biz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmakb/pharmakb/internal/model"
	"github.com/pharmakb/pharmakb/internal/pharmakb/metrics"
	"github.com/pharmakb/pharmakb/pkg/component/cpic"
)

func newTestService(t *testing.T, h *testHarness, chat *mockChat) (*Service, *metrics.Metrics) {
	t.Helper()

	m := h.metrics
	retriever := NewRetriever(h.meta, h.vectors, h.embedder, m, 5)
	assembler := NewAssembler(chat, NewChunker(100, 10), m, AssemblerConfig{
		ContextTokenBudget: 2000,
		SystemPrompt:       "You are a clinical pharmacogenomics assistant.",
		PromptTemplate:     "Context:\n{{context}}\n\nQuestion: {{question}}",
	})

	catalog, err := cpic.LoadCatalog("")
	require.NoError(t, err)

	svc := NewService(
		h.orch,
		retriever,
		assembler,
		nil,
		NewPhenotypeResolver(&mockDiplotypeAPI{records: cyp2d6Table()}, h.meta, []string{"CYP2D6"}),
		NewCatalogService(catalog, h.meta),
		m,
		h.meta,
		h.vectors,
	)
	return svc, m
}

func ingestAndWait(t *testing.T, svc *Service, h *testHarness, gene, drug string) {
	t.Helper()
	job, err := svc.Ingest(context.Background(), gene, drug, false)
	require.NoError(t, err)
	done := h.waitTerminal(t, job.ID)
	require.Equal(t, model.JobStateCompleted, done.State)
}

func TestServiceQueryAnswersFromIngestedGuideline(t *testing.T) {
	h := newHarness(t, newMockEmbedder(testDim), nil)
	chat := &mockChat{response: "Reduce the starting dose for poor metabolizers."}
	svc, m := newTestService(t, h, chat)

	ingestAndWait(t, svc, h, "CYP2D6", "Amitriptyline")

	// A lower-cased filter matches the normalized identity.
	answer, err := svc.Query(context.Background(), "What is the dosing recommendation?", "cyp2d6", "")
	require.NoError(t, err)
	assert.Equal(t, "Reduce the starting dose for poor metabolizers.", answer.Answer)
	assert.Equal(t, "mock-chat-v1", answer.ModelUsed)
	assert.Greater(t, answer.Confidence, 0.0)
	require.NotEmpty(t, answer.Sources)
	for _, src := range answer.Sources {
		assert.Equal(t, "CYP2D6", src.Gene)
		assert.Equal(t, "amitriptyline", src.Drug)
	}

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.Queries)
	assert.Equal(t, int64(1), snap.Retrievals)
	assert.Equal(t, int64(1), snap.GenerationCalls)
	assert.Zero(t, snap.CacheHits)
}

func TestServiceQueryInsufficientEvidence(t *testing.T) {
	h := newHarness(t, newMockEmbedder(testDim), nil)
	chat := &mockChat{response: "should never be called"}
	svc, _ := newTestService(t, h, chat)

	// Nothing ingested for this gene.
	answer, err := svc.Query(context.Background(), "warfarin dosing?", "CYP2C9", "")
	require.NoError(t, err)
	assert.Equal(t, insufficientEvidence, answer.Answer)
	assert.Zero(t, answer.Confidence)
	assert.Empty(t, answer.Sources)
	assert.Zero(t, chat.callCount())
}

func TestServiceListGuidelinesAndStats(t *testing.T) {
	h := newHarness(t, newMockEmbedder(testDim), nil)
	svc, _ := newTestService(t, h, &mockChat{response: "ok"})

	ingestAndWait(t, svc, h, "CYP2D6", "codeine")
	ingestAndWait(t, svc, h, "TPMT", "azathioprine")

	summaries, err := svc.ListGuidelines(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	for _, s := range summaries {
		assert.NotEmpty(t, s.ID)
		assert.Greater(t, s.ChunkCount, 0)
	}

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Guidelines)
	assert.Equal(t, int64(summaries[0].ChunkCount+summaries[1].ChunkCount), stats.IndexedChunks)
	assert.Equal(t, int64(2), stats.Counters.IngestCompleted)
}

func TestCatalogServiceMergesIngestionHistory(t *testing.T) {
	h := newHarness(t, newMockEmbedder(testDim), nil)
	svc, _ := newTestService(t, h, &mockChat{response: "ok"})

	// The configured catalog is empty; discovery still reflects what was
	// actually ingested.
	ingestAndWait(t, svc, h, "CYP2C19", "clopidogrel")

	genes, err := svc.Catalog().Genes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"CYP2C19"}, genes)

	drugs, err := svc.Catalog().Drugs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"clopidogrel"}, drugs)

	pairs, err := svc.Catalog().Pairs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.CatalogPair{{Gene: "CYP2C19", Drug: "clopidogrel"}}, pairs)
}

func TestQueryCacheKeyDerivation(t *testing.T) {
	c := &QueryCache{prefix: "pharmakb:query:", ttl: time.Minute}

	key := c.key("dosing?", "CYP2D6", "codeine")
	assert.Equal(t, key, c.key("dosing?", "CYP2D6", "codeine"))
	assert.NotEqual(t, key, c.key("dosing?", "CYP2D6", ""))
	assert.NotEqual(t, key, c.key("dosing?", "", "codeine"))

	// Field boundaries matter: shifting characters between fields changes
	// the key.
	assert.NotEqual(t, c.key("ab", "c", ""), c.key("a", "bc", ""))

	// A nil cache is a safe no-op.
	var disabled *QueryCache
	assert.Nil(t, disabled.Get(context.Background(), "q", "", ""))
	disabled.Set(context.Background(), "q", "", "", &model.QueryAnswer{})
	assert.NoError(t, disabled.Close())
}

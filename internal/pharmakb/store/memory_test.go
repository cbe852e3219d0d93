package store

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmakb/pharmakb/internal/model"
	"github.com/pharmakb/pharmakb/pkg/errors"
	"github.com/pharmakb/pharmakb/pkg/id"
)

func newJob(gen *id.Generator, gene, drug string) *model.IngestionJob {
	identity := model.NewIdentity(gene, drug)
	now := time.Now().UTC()
	return &model.IngestionJob{
		ID:          gen.New(),
		Gene:        identity.Gene,
		Drug:        identity.Drug,
		IdentityKey: identity.Key(),
		State:       model.JobStateRequested,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestMemoryStoreSingleActiveJob(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	gen := id.NewGenerator()

	first := newJob(gen, "CYP2D6", "codeine")
	require.NoError(t, s.CreateJob(ctx, first))

	// A second job for the same identity is rejected while the first is
	// active.
	err := s.CreateJob(ctx, newJob(gen, "cyp2d6", "Codeine"))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrIngestInProgress))

	// A different identity is unaffected.
	require.NoError(t, s.CreateJob(ctx, newJob(gen, "TPMT", "azathioprine")))

	// Once the first job is terminal, a new job for the identity is
	// allowed again.
	require.NoError(t, s.FailJob(ctx, first.ID, "fetch failed"))
	require.NoError(t, s.CreateJob(ctx, newJob(gen, "CYP2D6", "codeine")))
}

func TestMemoryStoreJobLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	gen := id.NewGenerator()

	job := newJob(gen, "CYP2C19", "clopidogrel")
	require.NoError(t, s.CreateJob(ctx, job))

	for _, state := range []model.JobState{
		model.JobStateFetching,
		model.JobStateParsing,
		model.JobStateEmbedding,
		model.JobStateIndexing,
	} {
		require.NoError(t, s.UpdateJobState(ctx, job.ID, state))
		got, err := s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, state, got.State)
		assert.False(t, got.State.Terminal())
	}

	_, err := s.GetJob(ctx, "missing")
	assert.True(t, stderrors.Is(err, errors.ErrJobNotFound))
}

func TestMemoryStoreCompleteJobVisibility(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	gen := id.NewGenerator()
	identity := model.NewIdentity("CYP2C9", "warfarin")

	job := newJob(gen, "CYP2C9", "warfarin")
	require.NoError(t, s.CreateJob(ctx, job))

	// Before completion nothing is visible to readers.
	_, err := s.LatestGuideline(ctx, identity)
	assert.True(t, stderrors.Is(err, errors.ErrGuidelineNotFound))

	guidelineID := gen.New()
	chunks := []*model.Chunk{
		{ID: gen.New(), GuidelineID: guidelineID, Ordinal: 0, Text: "first"},
		{ID: gen.New(), GuidelineID: guidelineID, Ordinal: 1, Text: "second"},
	}
	guideline := &model.Guideline{
		ID:         guidelineID,
		Gene:       identity.Gene,
		Drug:       identity.Drug,
		ChunkCount: len(chunks),
		IngestedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CompleteJob(ctx, job.ID, guideline, chunks))

	// A visible guideline always resolves its full chunk set.
	got, err := s.LatestGuideline(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, guidelineID, got.ID)

	listed, err := s.ListChunks(ctx, guidelineID)
	require.NoError(t, err)
	require.Len(t, listed, got.ChunkCount)
	for i, chunk := range listed {
		assert.Equal(t, i, chunk.Ordinal)
	}

	done, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStateCompleted, done.State)
	assert.Equal(t, guidelineID, done.GuidelineID)
}

func TestMemoryStoreLatestGuidelineByRecency(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	gen := id.NewGenerator()
	identity := model.NewIdentity("DPYD", "fluorouracil")

	now := time.Now()
	olderID := gen.NewAt(now.Add(-time.Hour))
	newerID := gen.NewAt(now)

	for _, gid := range []string{olderID, newerID} {
		job := newJob(gen, "DPYD", "fluorouracil")
		require.NoError(t, s.CreateJob(ctx, job))
		require.NoError(t, s.CompleteJob(ctx, job.ID, &model.Guideline{
			ID:   gid,
			Gene: identity.Gene,
			Drug: identity.Drug,
		}, nil))
	}

	got, err := s.LatestGuideline(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, newerID, got.ID)
}

func TestMemoryStoreGuidelineIDsFilter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	gen := id.NewGenerator()

	seed := func(gene, drug string) string {
		job := newJob(gen, gene, drug)
		require.NoError(t, s.CreateJob(ctx, job))
		g := &model.Guideline{ID: gen.New(), Gene: job.Gene, Drug: job.Drug}
		require.NoError(t, s.CompleteJob(ctx, job.ID, g, nil))
		return g.ID
	}

	cyp2d6Codeine := seed("CYP2D6", "codeine")
	cyp2d6Amitriptyline := seed("CYP2D6", "amitriptyline")
	tpmt := seed("TPMT", "azathioprine")

	ids, err := s.GuidelineIDs(ctx, "CYP2D6", "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{cyp2d6Codeine, cyp2d6Amitriptyline}, ids)

	ids, err = s.GuidelineIDs(ctx, "CYP2D6", "codeine")
	require.NoError(t, err)
	assert.Equal(t, []string{cyp2d6Codeine}, ids)

	ids, err = s.GuidelineIDs(ctx, "BRCA1", "")
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = s.GuidelineIDs(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.Contains(t, ids, tpmt)
}

func TestMemoryStoreDeleteGuideline(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	gen := id.NewGenerator()

	job := newJob(gen, "SLCO1B1", "simvastatin")
	require.NoError(t, s.CreateJob(ctx, job))

	gid := gen.New()
	chunks := []*model.Chunk{{ID: gen.New(), GuidelineID: gid, Ordinal: 0, Text: "dose"}}
	require.NoError(t, s.CompleteJob(ctx, job.ID, &model.Guideline{ID: gid, Gene: "SLCO1B1", Drug: "simvastatin", ChunkCount: 1}, chunks))

	require.NoError(t, s.DeleteGuideline(ctx, gid))

	_, err := s.GetGuideline(ctx, gid)
	assert.True(t, stderrors.Is(err, errors.ErrGuidelineNotFound))
	listed, err := s.ListChunks(ctx, gid)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestMemoryStoreDiplotypeCache(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.GetDiplotypes(ctx, "CYP2D6")
	assert.True(t, stderrors.Is(err, errors.ErrDiplotypeNotFound))

	score := 1.0
	entry := &model.DiplotypeCacheEntry{
		Gene: "CYP2D6",
		Records: []model.DiplotypeRecord{
			{Gene: "CYP2D6", Diplotype: "*1/*4", Phenotype: "Intermediate Metabolizer", ActivityScore: &score},
		},
		FetchedAt: time.Now().UTC(),
	}
	require.NoError(t, s.PutDiplotypes(ctx, entry))

	got, err := s.GetDiplotypes(ctx, "CYP2D6")
	require.NoError(t, err)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "*1/*4", got.Records[0].Diplotype)
}

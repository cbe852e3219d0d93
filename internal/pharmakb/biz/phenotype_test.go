package biz

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmakb/pharmakb/internal/model"
	"github.com/pharmakb/pharmakb/internal/pharmakb/store"
	"github.com/pharmakb/pharmakb/pkg/errors"
)

// mockDiplotypeAPI serves a fixed table or a fixed error.
type mockDiplotypeAPI struct {
	records []model.DiplotypeRecord
	err     error
	calls   int
}

func (m *mockDiplotypeAPI) Diplotypes(_ context.Context, _ string) ([]model.DiplotypeRecord, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.records, nil
}

func cyp2d6Table() []model.DiplotypeRecord {
	one := 1.0
	zero := 0.0
	return []model.DiplotypeRecord{
		{Gene: "CYP2D6", Diplotype: "*1/*1", Phenotype: "Normal Metabolizer", ActivityScore: &one},
		{Gene: "CYP2D6", Diplotype: "*4/*4", Phenotype: "Poor Metabolizer", ActivityScore: &zero,
			Recommendation: "Avoid codeine. Use alternative analgesic."},
	}
}

func TestPhenotypeLookupCaseInsensitive(t *testing.T) {
	api := &mockDiplotypeAPI{records: cyp2d6Table()}
	r := NewPhenotypeResolver(api, store.NewMemoryStore(), []string{"CYP2D6"})

	result, err := r.Lookup(context.Background(), "cyp2d6", "*4/*4")
	require.NoError(t, err)
	assert.Equal(t, "CYP2D6", result.Gene)
	assert.Equal(t, "Poor Metabolizer", result.Phenotype)
	assert.NotNil(t, result.ActivityScore)
	assert.Zero(t, *result.ActivityScore)
	assert.False(t, result.FromCache)
}

func TestPhenotypeLookupUnknownDiplotype(t *testing.T) {
	api := &mockDiplotypeAPI{records: cyp2d6Table()}
	r := NewPhenotypeResolver(api, store.NewMemoryStore(), nil)

	_, err := r.Lookup(context.Background(), "CYP2D6", "*99/*99")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrDiplotypeNotFound))
}

func TestPhenotypeFallsBackToCache(t *testing.T) {
	meta := store.NewMemoryStore()
	api := &mockDiplotypeAPI{records: cyp2d6Table()}
	r := NewPhenotypeResolver(api, meta, nil)

	// First lookup populates the cache.
	_, err := r.Lookup(context.Background(), "CYP2D6", "*1/*1")
	require.NoError(t, err)

	// The API goes away; the cached table still answers.
	api.err = stderrors.New("connection refused")
	result, err := r.Lookup(context.Background(), "CYP2D6", "*4/*4")
	require.NoError(t, err)
	assert.Equal(t, "Poor Metabolizer", result.Phenotype)
	assert.True(t, result.FromCache)
}

func TestPhenotypeUpstreamWithoutCache(t *testing.T) {
	api := &mockDiplotypeAPI{err: stderrors.New("connection refused")}
	r := NewPhenotypeResolver(api, store.NewMemoryStore(), nil)

	_, err := r.Lookup(context.Background(), "CYP2D6", "*1/*1")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrPhenotypeUpstream))
}

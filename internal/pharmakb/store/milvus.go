package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/pharmakb/pharmakb/internal/model"
	"github.com/pharmakb/pharmakb/pkg/component/milvus"
	"github.com/pharmakb/pharmakb/pkg/errors"
)

const (
	fieldChunkID     = "chunk_id"
	fieldGuidelineID = "guideline_id"
	fieldOrdinal     = "ordinal"
)

// MilvusStore is the Milvus-backed VectorStore.
type MilvusStore struct {
	client     *milvus.Client
	collection string
}

var _ VectorStore = (*MilvusStore)(nil)

// NewMilvusStore creates a MilvusStore over the component client.
func NewMilvusStore(client *milvus.Client, collection string) *MilvusStore {
	return &MilvusStore{
		client:     client,
		collection: collection,
	}
}

// EnsureCollection creates the chunk collection if needed.
func (s *MilvusStore) EnsureCollection(ctx context.Context, dim int) error {
	schema := &milvus.CollectionSchema{
		Name:        s.collection,
		Description: "Guideline chunk embeddings",
		Dimension:   dim,
		PKField:     fieldChunkID,
		PKMaxLen:    32,
		MetaFields: []milvus.MetaField{
			{Name: fieldGuidelineID, DataType: entity.FieldTypeVarChar, MaxLen: 32},
			{Name: fieldOrdinal, DataType: entity.FieldTypeInt64},
		},
	}
	if err := s.client.CreateCollection(ctx, schema); err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}
	return nil
}

// Insert adds chunks with L2-normalized embeddings.
func (s *MilvusStore) Insert(ctx context.Context, chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, len(chunks))
	embeddings := make([][]float32, len(chunks))
	guidelineIDs := make([]any, len(chunks))
	ordinals := make([]any, len(chunks))

	for i, chunk := range chunks {
		ids[i] = chunk.ID
		embeddings[i] = normalizeVector(chunk.Embedding)
		guidelineIDs[i] = chunk.GuidelineID
		ordinals[i] = int64(chunk.Ordinal)
	}

	data := &milvus.InsertData{
		IDs:        ids,
		PKField:    fieldChunkID,
		Embeddings: embeddings,
		Metadata: map[string][]any{
			fieldGuidelineID: guidelineIDs,
			fieldOrdinal:     ordinals,
		},
	}

	if err := s.client.Insert(ctx, s.collection, data); err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}
	return nil
}

// Search runs a cosine top-k query, optionally filtered by guideline ids.
func (s *MilvusStore) Search(ctx context.Context, vector []float32, k int, filter *Filter) ([]Hit, error) {
	expr := ""
	if filter != nil {
		if len(filter.GuidelineIDs) == 0 {
			return nil, nil
		}
		expr = guidelineFilterExpr(filter.GuidelineIDs)
	}

	results, err := s.client.Search(ctx, s.collection, normalizeVector(vector), k, expr, []string{fieldGuidelineID, fieldOrdinal})
	if err != nil {
		return nil, errors.ErrVectorStore.WithCause(err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hit := Hit{ChunkID: r.ID, Score: r.Score}
		if v, ok := r.Metadata[fieldGuidelineID].(string); ok {
			hit.GuidelineID = v
		}
		if v, ok := r.Metadata[fieldOrdinal].(int64); ok {
			hit.Ordinal = int(v)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// guidelineFilterExpr builds a guideline_id membership expression.
func guidelineFilterExpr(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = fmt.Sprintf("%q", id)
	}
	return fmt.Sprintf("%s in [%s]", fieldGuidelineID, strings.Join(quoted, ", "))
}

// DeleteByGuideline removes all chunks of a guideline.
func (s *MilvusStore) DeleteByGuideline(ctx context.Context, guidelineID string) error {
	expr := fmt.Sprintf("%s == %q", fieldGuidelineID, guidelineID)
	if err := s.client.DeleteByExpr(ctx, s.collection, expr); err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}
	return nil
}

// Count returns the number of indexed chunks.
func (s *MilvusStore) Count(ctx context.Context) (int64, error) {
	count, err := s.client.GetCollectionStats(ctx, s.collection)
	if err != nil {
		return 0, errors.ErrVectorStore.WithCause(err)
	}
	return count, nil
}

// Close closes the underlying client.
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

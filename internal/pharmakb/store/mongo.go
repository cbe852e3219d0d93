package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pharmakb/pharmakb/internal/model"
	"github.com/pharmakb/pharmakb/pkg/component/mongodb"
	"github.com/pharmakb/pharmakb/pkg/errors"
)

const (
	collJobs       = "ingestion_jobs"
	collGuidelines = "guidelines"
	collChunks     = "chunks"
	collDiplotypes = "diplotype_cache"
)

// MongoStore is the MongoDB-backed MetadataStore.
type MongoStore struct {
	client *mongodb.Client
}

var _ MetadataStore = (*MongoStore)(nil)

// NewMongoStore creates a MongoStore and ensures its indexes.
func NewMongoStore(ctx context.Context, client *mongodb.Client) (*MongoStore, error) {
	s := &MongoStore{client: client}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// ensureIndexes creates the indexes the store relies on. The partial
// unique index on identity_key is what makes CreateJob a compare-and-set:
// at most one job per identity may be in a non-terminal state.
func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	jobs := s.client.Collection(collJobs)
	_, err := jobs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "identity_key", Value: 1}},
		Options: mongoopts.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{
				"state": bson.M{"$nin": bson.A{
					string(model.JobStateCompleted),
					string(model.JobStateFailed),
				}},
			}),
	})
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}

	guidelines := s.client.Collection(collGuidelines)
	_, err = guidelines.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "gene", Value: 1}, {Key: "drug", Value: 1}},
	})
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}

	chunks := s.client.Collection(collChunks)
	_, err = chunks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "guideline_id", Value: 1}, {Key: "ordinal", Value: 1}},
	})
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}

	return nil
}

func (s *MongoStore) CreateJob(ctx context.Context, job *model.IngestionJob) error {
	_, err := s.client.Collection(collJobs).InsertOne(ctx, job)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.ErrIngestInProgress
		}
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

func (s *MongoStore) GetJob(ctx context.Context, jobID string) (*model.IngestionJob, error) {
	var job model.IngestionJob
	err := s.client.Collection(collJobs).FindOne(ctx, bson.M{"_id": jobID}).Decode(&job)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.ErrJobNotFound
		}
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return &job, nil
}

// LatestJob relies on job ids being ULIDs: the lexicographically largest
// id is the most recently created.
func (s *MongoStore) LatestJob(ctx context.Context, identity model.Identity) (*model.IngestionJob, error) {
	var job model.IngestionJob
	err := s.client.Collection(collJobs).FindOne(ctx,
		bson.M{"identity_key": identity.Key()},
		mongoopts.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}}),
	).Decode(&job)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.ErrJobNotFound
		}
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return &job, nil
}

func (s *MongoStore) UpdateJobState(ctx context.Context, jobID string, state model.JobState) error {
	res, err := s.client.Collection(collJobs).UpdateOne(ctx,
		bson.M{"_id": jobID},
		bson.M{"$set": bson.M{
			"state":      string(state),
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	if res.MatchedCount == 0 {
		return errors.ErrJobNotFound
	}
	return nil
}

func (s *MongoStore) FailJob(ctx context.Context, jobID, message string) error {
	res, err := s.client.Collection(collJobs).UpdateOne(ctx,
		bson.M{"_id": jobID},
		bson.M{"$set": bson.M{
			"state":      string(model.JobStateFailed),
			"message":    message,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	if res.MatchedCount == 0 {
		return errors.ErrJobNotFound
	}
	return nil
}

// CompleteJob writes chunks, then the guideline, then the job. The order
// matters: readers resolve chunks only through guideline records, so the
// guideline must not be visible until every chunk is persisted.
func (s *MongoStore) CompleteJob(ctx context.Context, jobID string, guideline *model.Guideline, chunks []*model.Chunk) error {
	if len(chunks) > 0 {
		docs := make([]any, len(chunks))
		for i, c := range chunks {
			docs[i] = c
		}
		if _, err := s.client.Collection(collChunks).InsertMany(ctx, docs); err != nil {
			return errors.ErrDatabase.WithCause(err)
		}
	}

	if _, err := s.client.Collection(collGuidelines).InsertOne(ctx, guideline); err != nil {
		return errors.ErrDatabase.WithCause(err)
	}

	res, err := s.client.Collection(collJobs).UpdateOne(ctx,
		bson.M{"_id": jobID},
		bson.M{"$set": bson.M{
			"state":        string(model.JobStateCompleted),
			"guideline_id": guideline.ID,
			"updated_at":   time.Now().UTC(),
		}},
	)
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	if res.MatchedCount == 0 {
		return errors.ErrJobNotFound
	}
	return nil
}

func (s *MongoStore) GetGuideline(ctx context.Context, guidelineID string) (*model.Guideline, error) {
	var g model.Guideline
	err := s.client.Collection(collGuidelines).FindOne(ctx, bson.M{"_id": guidelineID}).Decode(&g)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.ErrGuidelineNotFound
		}
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return &g, nil
}

// LatestGuideline relies on guideline ids being ULIDs: the
// lexicographically largest id is the most recently created.
func (s *MongoStore) LatestGuideline(ctx context.Context, identity model.Identity) (*model.Guideline, error) {
	var g model.Guideline
	err := s.client.Collection(collGuidelines).FindOne(ctx,
		bson.M{"gene": identity.Gene, "drug": identity.Drug},
		mongoopts.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}}),
	).Decode(&g)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.ErrGuidelineNotFound
		}
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return &g, nil
}

func (s *MongoStore) ListGuidelines(ctx context.Context) ([]*model.Guideline, error) {
	cursor, err := s.client.Collection(collGuidelines).Find(ctx, bson.M{},
		mongoopts.Find().SetSort(bson.D{{Key: "_id", Value: -1}}),
	)
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	defer cursor.Close(ctx)

	var guidelines []*model.Guideline
	if err := cursor.All(ctx, &guidelines); err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return guidelines, nil
}

func (s *MongoStore) GuidelineIDs(ctx context.Context, gene, drug string) ([]string, error) {
	filter := bson.M{}
	if gene != "" {
		filter["gene"] = gene
	}
	if drug != "" {
		filter["drug"] = drug
	}

	cursor, err := s.client.Collection(collGuidelines).Find(ctx, filter,
		mongoopts.Find().SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

func (s *MongoStore) ChunksByID(ctx context.Context, chunkIDs []string) ([]*model.Chunk, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}

	cursor, err := s.client.Collection(collChunks).Find(ctx, bson.M{"_id": bson.M{"$in": chunkIDs}})
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	defer cursor.Close(ctx)

	var chunks []*model.Chunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return chunks, nil
}

func (s *MongoStore) ListChunks(ctx context.Context, guidelineID string) ([]*model.Chunk, error) {
	cursor, err := s.client.Collection(collChunks).Find(ctx,
		bson.M{"guideline_id": guidelineID},
		mongoopts.Find().SetSort(bson.D{{Key: "ordinal", Value: 1}}),
	)
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	defer cursor.Close(ctx)

	var chunks []*model.Chunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return chunks, nil
}

// DeleteGuideline removes the guideline record first so readers stop
// resolving it, then its chunk records.
func (s *MongoStore) DeleteGuideline(ctx context.Context, guidelineID string) error {
	if _, err := s.client.Collection(collGuidelines).DeleteOne(ctx, bson.M{"_id": guidelineID}); err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	if _, err := s.client.Collection(collChunks).DeleteMany(ctx, bson.M{"guideline_id": guidelineID}); err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

func (s *MongoStore) GetDiplotypes(ctx context.Context, gene string) (*model.DiplotypeCacheEntry, error) {
	var entry model.DiplotypeCacheEntry
	err := s.client.Collection(collDiplotypes).FindOne(ctx, bson.M{"_id": gene}).Decode(&entry)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.ErrDiplotypeNotFound
		}
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return &entry, nil
}

func (s *MongoStore) PutDiplotypes(ctx context.Context, entry *model.DiplotypeCacheEntry) error {
	_, err := s.client.Collection(collDiplotypes).ReplaceOne(ctx,
		bson.M{"_id": entry.Gene},
		entry,
		mongoopts.Replace().SetUpsert(true),
	)
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

func (s *MongoStore) Close(_ context.Context) error {
	return s.client.Close()
}

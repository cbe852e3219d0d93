package store

import (
	"context"

	"github.com/pharmakb/pharmakb/internal/model"
)

// MetadataStore persists ingestion jobs, guidelines, chunks, and the
// diplotype cache.
//
// Two invariants matter to callers:
//
//   - CreateJob enforces at most one active job per identity. If a job
//     for the same identity is already in a non-terminal state, it
//     returns errors.ErrIngestInProgress.
//
//   - CompleteJob makes a finished ingestion visible atomically from the
//     reader's point of view: chunks are persisted first, the guideline
//     record second, and the job last. Readers resolve chunks only
//     through guideline records, so a visible guideline always has its
//     full chunk set.
type MetadataStore interface {
	// CreateJob registers a new ingestion job in the requested state.
	CreateJob(ctx context.Context, job *model.IngestionJob) error

	// GetJob returns a job by id, or errors.ErrJobNotFound.
	GetJob(ctx context.Context, jobID string) (*model.IngestionJob, error)

	// LatestJob returns the most recent job for an identity, or
	// errors.ErrJobNotFound.
	LatestJob(ctx context.Context, identity model.Identity) (*model.IngestionJob, error)

	// UpdateJobState advances a job to the given state.
	UpdateJobState(ctx context.Context, jobID string, state model.JobState) error

	// FailJob moves a job to the failed terminal state with a message.
	FailJob(ctx context.Context, jobID, message string) error

	// CompleteJob persists chunks, then the guideline, then marks the job
	// completed with the guideline id.
	CompleteJob(ctx context.Context, jobID string, guideline *model.Guideline, chunks []*model.Chunk) error

	// GetGuideline returns a guideline by id, or
	// errors.ErrGuidelineNotFound.
	GetGuideline(ctx context.Context, guidelineID string) (*model.Guideline, error)

	// LatestGuideline returns the newest guideline for an identity, or
	// errors.ErrGuidelineNotFound.
	LatestGuideline(ctx context.Context, identity model.Identity) (*model.Guideline, error)

	// ListGuidelines returns all guidelines, newest first.
	ListGuidelines(ctx context.Context) ([]*model.Guideline, error)

	// GuidelineIDs returns the ids of guidelines matching the optional
	// gene and drug restrictions. Empty gene or drug means no
	// restriction on that axis.
	GuidelineIDs(ctx context.Context, gene, drug string) ([]string, error)

	// ChunksByID returns the chunks for the given chunk ids. Missing ids
	// are skipped, not errors.
	ChunksByID(ctx context.Context, chunkIDs []string) ([]*model.Chunk, error)

	// ListChunks returns a guideline's chunks in ordinal order.
	ListChunks(ctx context.Context, guidelineID string) ([]*model.Chunk, error)

	// DeleteGuideline removes a guideline record and its chunk records.
	DeleteGuideline(ctx context.Context, guidelineID string) error

	// GetDiplotypes returns the cached diplotype records for a gene, or
	// errors.ErrDiplotypeNotFound when the gene has no cache entry.
	GetDiplotypes(ctx context.Context, gene string) (*model.DiplotypeCacheEntry, error)

	// PutDiplotypes replaces the cached diplotype records for a gene.
	PutDiplotypes(ctx context.Context, entry *model.DiplotypeCacheEntry) error

	// Close releases resources.
	Close(ctx context.Context) error
}

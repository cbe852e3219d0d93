package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pharmakb/pharmakb/internal/model"
	"github.com/pharmakb/pharmakb/pkg/errors"
)

// MemoryStore is an in-memory MetadataStore for tests and the memory
// backend. A mutex plays the role of the partial unique index: CreateJob
// checks the active-job map and inserts under the same lock.
type MemoryStore struct {
	mu         sync.RWMutex
	jobs       map[string]*model.IngestionJob
	activeJobs map[string]string // identity key -> job id
	guidelines map[string]*model.Guideline
	chunks     map[string]*model.Chunk
	diplotypes map[string]*model.DiplotypeCacheEntry
}

var _ MetadataStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:       make(map[string]*model.IngestionJob),
		activeJobs: make(map[string]string),
		guidelines: make(map[string]*model.Guideline),
		chunks:     make(map[string]*model.Chunk),
		diplotypes: make(map[string]*model.DiplotypeCacheEntry),
	}
}

func (s *MemoryStore) CreateJob(_ context.Context, job *model.IngestionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if activeID, ok := s.activeJobs[job.IdentityKey]; ok {
		if existing, found := s.jobs[activeID]; found && !existing.State.Terminal() {
			return errors.ErrIngestInProgress
		}
	}

	copied := *job
	s.jobs[job.ID] = &copied
	s.activeJobs[job.IdentityKey] = job.ID
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, jobID string) (*model.IngestionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, errors.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *MemoryStore) LatestJob(_ context.Context, identity model.Identity) (*model.IngestionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := identity.Key()
	var latest *model.IngestionJob
	for _, job := range s.jobs {
		if job.IdentityKey != key {
			continue
		}
		if latest == nil || job.ID > latest.ID {
			latest = job
		}
	}
	if latest == nil {
		return nil, errors.ErrJobNotFound
	}
	copied := *latest
	return &copied, nil
}

func (s *MemoryStore) UpdateJobState(_ context.Context, jobID string, state model.JobState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return errors.ErrJobNotFound
	}
	job.State = state
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) FailJob(_ context.Context, jobID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return errors.ErrJobNotFound
	}
	job.State = model.JobStateFailed
	job.Message = message
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) CompleteJob(_ context.Context, jobID string, guideline *model.Guideline, chunks []*model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return errors.ErrJobNotFound
	}

	for _, c := range chunks {
		copied := *c
		s.chunks[c.ID] = &copied
	}

	copiedGuideline := *guideline
	s.guidelines[guideline.ID] = &copiedGuideline

	job.State = model.JobStateCompleted
	job.GuidelineID = guideline.ID
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) GetGuideline(_ context.Context, guidelineID string) (*model.Guideline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.guidelines[guidelineID]
	if !ok {
		return nil, errors.ErrGuidelineNotFound
	}
	copied := *g
	return &copied, nil
}

func (s *MemoryStore) LatestGuideline(_ context.Context, identity model.Identity) (*model.Guideline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *model.Guideline
	for _, g := range s.guidelines {
		if g.Gene != identity.Gene || g.Drug != identity.Drug {
			continue
		}
		// ULID ids order lexicographically by creation time.
		if latest == nil || g.ID > latest.ID {
			latest = g
		}
	}
	if latest == nil {
		return nil, errors.ErrGuidelineNotFound
	}
	copied := *latest
	return &copied, nil
}

func (s *MemoryStore) ListGuidelines(_ context.Context) ([]*model.Guideline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Guideline, 0, len(s.guidelines))
	for _, g := range s.guidelines {
		copied := *g
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *MemoryStore) GuidelineIDs(_ context.Context, gene, drug string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, g := range s.guidelines {
		if gene != "" && g.Gene != gene {
			continue
		}
		if drug != "" && g.Drug != drug {
			continue
		}
		ids = append(ids, g.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) ChunksByID(_ context.Context, chunkIDs []string) ([]*model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Chunk, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		if c, ok := s.chunks[id]; ok {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListChunks(_ context.Context, guidelineID string) ([]*model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Chunk
	for _, c := range s.chunks {
		if c.GuidelineID == guidelineID {
			copied := *c
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

func (s *MemoryStore) DeleteGuideline(_ context.Context, guidelineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.guidelines, guidelineID)
	for id, c := range s.chunks {
		if c.GuidelineID == guidelineID {
			delete(s.chunks, id)
		}
	}
	return nil
}

func (s *MemoryStore) GetDiplotypes(_ context.Context, gene string) (*model.DiplotypeCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.diplotypes[gene]
	if !ok {
		return nil, errors.ErrDiplotypeNotFound
	}
	copied := *entry
	copied.Records = append([]model.DiplotypeRecord(nil), entry.Records...)
	return &copied, nil
}

func (s *MemoryStore) PutDiplotypes(_ context.Context, entry *model.DiplotypeCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *entry
	copied.Records = append([]model.DiplotypeRecord(nil), entry.Records...)
	s.diplotypes[entry.Gene] = &copied
	return nil
}

func (s *MemoryStore) Close(_ context.Context) error {
	return nil
}

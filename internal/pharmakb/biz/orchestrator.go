package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/pharmakb/pharmakb/internal/model"
	"github.com/pharmakb/pharmakb/internal/pharmakb/metrics"
	"github.com/pharmakb/pharmakb/internal/pharmakb/store"
	"github.com/pharmakb/pharmakb/pkg/component/cpic"
	"github.com/pharmakb/pharmakb/pkg/errors"
	"github.com/pharmakb/pharmakb/pkg/id"
	"github.com/pharmakb/pharmakb/pkg/llm"
	"github.com/pharmakb/pharmakb/pkg/pool"
)

// Fetcher resolves an identity to its guideline document.
// *cpic.Client is the production implementation.
type Fetcher interface {
	FetchGuideline(ctx context.Context, identity model.Identity) (*cpic.SourceDocument, error)
}

// DocumentParser converts raw document bytes into ordered blocks.
type DocumentParser interface {
	Parse(data []byte) ([]model.Block, error)
}

// OrchestratorConfig bounds the ingestion pipeline.
type OrchestratorConfig struct {
	EmbeddingDim     int
	EmbedBatchSize   int
	MaxEmbedAttempts int
	RetryBaseDelay   time.Duration
	StageTimeout     time.Duration
}

// Orchestrator drives ingestion jobs through the state machine
// requested, fetching, parsing, chunking_embedding, indexing, and
// finally completed or failed. Each transition is committed to the
// metadata store before the stage runs.
type Orchestrator struct {
	meta      store.MetadataStore
	vectors   store.VectorStore
	fetcher   Fetcher
	parser    DocumentParser
	chunker   *Chunker
	embedder  llm.EmbeddingProvider
	ingestRun *pool.Pool
	embedRun  *pool.Pool
	metrics   *metrics.Metrics
	cfg       OrchestratorConfig
}

// NewOrchestrator wires an Orchestrator.
func NewOrchestrator(
	meta store.MetadataStore,
	vectors store.VectorStore,
	fetcher Fetcher,
	parser DocumentParser,
	chunker *Chunker,
	embedder llm.EmbeddingProvider,
	ingestPool, embedPool *pool.Pool,
	m *metrics.Metrics,
	cfg OrchestratorConfig,
) *Orchestrator {
	return &Orchestrator{
		meta:      meta,
		vectors:   vectors,
		fetcher:   fetcher,
		parser:    parser,
		chunker:   chunker,
		embedder:  embedder,
		ingestRun: ingestPool,
		embedRun:  embedPool,
		metrics:   m,
		cfg:       cfg,
	}
}

// Start begins an ingestion for the identity and returns the job
// snapshot. A completed identity short-circuits unless force is set: the
// returned snapshot carries the existing guideline id and no new job is
// created. An identity with a job already in flight is not an error
// either; the caller gets that job's current snapshot. With force, the
// prior guideline stays queryable until the replacement completes, then
// is removed.
func (o *Orchestrator) Start(ctx context.Context, identity model.Identity, force bool) (*model.IngestionJob, error) {
	if !force {
		if g, err := o.meta.LatestGuideline(ctx, identity); err == nil {
			return &model.IngestionJob{
				Gene:        identity.Gene,
				Drug:        identity.Drug,
				IdentityKey: identity.Key(),
				State:       model.JobStateCompleted,
				GuidelineID: g.ID,
				CreatedAt:   g.IngestedAt,
				UpdatedAt:   g.IngestedAt,
			}, nil
		} else if !stderrors.Is(err, errors.ErrGuidelineNotFound) {
			return nil, err
		}
	}

	var priorGuidelineID string
	if force {
		if g, err := o.meta.LatestGuideline(ctx, identity); err == nil {
			priorGuidelineID = g.ID
		}
	}

	now := time.Now().UTC()
	job := &model.IngestionJob{
		ID:          id.New(),
		Gene:        identity.Gene,
		Drug:        identity.Drug,
		IdentityKey: identity.Key(),
		State:       model.JobStateRequested,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := o.meta.CreateJob(ctx, job); err != nil {
		if stderrors.Is(err, errors.ErrIngestInProgress) {
			// Another job holds the identity; return its snapshot.
			return o.meta.LatestJob(ctx, identity)
		}
		return nil, err
	}
	o.metrics.IngestStarted()

	if err := o.ingestRun.Submit(func() {
		o.run(job.ID, identity, priorGuidelineID)
	}); err != nil {
		msg := "ingestion worker pool saturated"
		if failErr := o.meta.FailJob(ctx, job.ID, msg); failErr != nil {
			logger.Errorw("failed to fail unscheduled job", "job_id", job.ID, "error", failErr)
		}
		o.metrics.IngestFailed()
		return nil, errors.ErrInternal.WithMessage(msg).WithCause(err)
	}

	return job, nil
}

// Status returns the most recent job snapshot for the identity.
func (o *Orchestrator) Status(ctx context.Context, identity model.Identity) (*model.IngestionJob, error) {
	return o.meta.LatestJob(ctx, identity)
}

// run executes the pipeline on a worker. It deliberately does not use the
// request context: the job outlives the request that started it.
func (o *Orchestrator) run(jobID string, identity model.Identity, priorGuidelineID string) {
	ctx := context.Background()

	doc, err := o.fetchStage(ctx, jobID, identity)
	if err != nil {
		o.fail(ctx, jobID, identity, err)
		return
	}

	blocks, err := o.parseStage(ctx, jobID, doc)
	if err != nil {
		o.fail(ctx, jobID, identity, err)
		return
	}

	guidelineID := id.New()
	chunks, err := o.embedStage(ctx, jobID, guidelineID, blocks)
	if err != nil {
		o.fail(ctx, jobID, identity, err)
		return
	}

	guideline := &model.Guideline{
		ID:             guidelineID,
		Gene:           identity.Gene,
		Drug:           identity.Drug,
		Title:          doc.Title,
		SourceURL:      doc.PDFURL,
		ChunkCount:     len(chunks),
		EmbeddingModel: o.embedder.Model(),
		IngestedAt:     time.Now().UTC(),
	}

	if err := o.indexStage(ctx, jobID, guideline, chunks); err != nil {
		o.fail(ctx, jobID, identity, err)
		return
	}

	o.metrics.IngestCompleted()
	logger.Infow("ingestion completed",
		"job_id", jobID,
		"gene", identity.Gene,
		"drug", identity.Drug,
		"guideline_id", guidelineID,
		"chunks", len(chunks),
	)

	if priorGuidelineID != "" {
		o.cleanupPrior(ctx, priorGuidelineID)
	}
}

// fetchStage downloads the guideline document.
func (o *Orchestrator) fetchStage(ctx context.Context, jobID string, identity model.Identity) (*cpic.SourceDocument, error) {
	if err := o.meta.UpdateJobState(ctx, jobID, model.JobStateFetching); err != nil {
		return nil, err
	}

	stageCtx, cancel := context.WithTimeout(ctx, o.cfg.StageTimeout)
	defer cancel()

	doc, err := o.fetcher.FetchGuideline(stageCtx, identity)
	if err != nil {
		return nil, errors.ErrUpstreamUnavailable.WithMessagef("document fetch failed: %v", err)
	}
	return doc, nil
}

// parseStage extracts blocks from the document.
func (o *Orchestrator) parseStage(ctx context.Context, jobID string, doc *cpic.SourceDocument) ([]model.Block, error) {
	if err := o.meta.UpdateJobState(ctx, jobID, model.JobStateParsing); err != nil {
		return nil, err
	}

	blocks, err := o.parser.Parse(doc.Data)
	if err != nil {
		return nil, errors.ErrUnsupportedDocument.WithMessagef("document parse failed: %v", err)
	}
	return blocks, nil
}

// embedStage chunks the blocks and embeds every chunk. Ordinals and ids
// are assigned before batches run in parallel, so embedding order never
// affects chunk identity.
func (o *Orchestrator) embedStage(ctx context.Context, jobID, guidelineID string, blocks []model.Block) ([]*model.Chunk, error) {
	if err := o.meta.UpdateJobState(ctx, jobID, model.JobStateEmbedding); err != nil {
		return nil, err
	}

	chunks, err := o.chunker.Chunk(blocks)
	if err != nil {
		return nil, err
	}

	modelTag := o.embedder.Model()
	for _, chunk := range chunks {
		chunk.ID = id.New()
		chunk.GuidelineID = guidelineID
		chunk.EmbeddingModel = modelTag
	}

	stageCtx, cancel := context.WithTimeout(ctx, o.cfg.StageTimeout)
	defer cancel()

	if err := o.embedAll(stageCtx, chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// embedAll runs embedding batches in parallel on the embed pool.
func (o *Orchestrator) embedAll(ctx context.Context, chunks []*model.Chunk) error {
	batchSize := o.cfg.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = len(chunks)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		wg.Add(1)
		task := func() {
			defer wg.Done()
			if err := o.embedBatch(ctx, batch); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}
		if err := o.embedRun.Submit(task); err != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = errors.ErrInternal.WithMessage("embedding pool saturated").WithCause(err)
			}
			mu.Unlock()
			break
		}
	}

	wg.Wait()
	return firstErr
}

// embedBatch embeds one batch with bounded exponential backoff. A
// dimension mismatch is a configuration error and is never retried.
func (o *Orchestrator) embedBatch(ctx context.Context, batch []*model.Chunk) error {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Text
	}

	var lastErr error
	for attempt := 0; attempt < o.cfg.MaxEmbedAttempts; attempt++ {
		if attempt > 0 {
			o.metrics.EmbedRetry()
			delay := o.cfg.RetryBaseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return errors.ErrUpstreamUnavailable.WithMessagef("embedding timed out: %v", lastErr)
			case <-time.After(delay):
			}
		}

		vectors, err := o.embedder.Embed(ctx, texts)
		if err != nil {
			lastErr = err
			continue
		}
		if len(vectors) != len(batch) {
			lastErr = fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(batch))
			continue
		}

		for i, vec := range vectors {
			if len(vec) != o.cfg.EmbeddingDim {
				return errors.ErrEmbeddingDimMismatch.WithMessagef(
					"provider %s returned dimension %d, configured %d",
					o.embedder.Name(), len(vec), o.cfg.EmbeddingDim)
			}
			batch[i].Embedding = vec
		}
		return nil
	}

	return errors.ErrUpstreamUnavailable.WithMessagef(
		"embedding failed after %d attempts: %v", o.cfg.MaxEmbedAttempts, lastErr)
}

// indexStage inserts vectors, then commits the metadata. The vector
// insert happens first and the guideline record last, so a reader that
// can see the guideline can always resolve its chunks.
func (o *Orchestrator) indexStage(ctx context.Context, jobID string, guideline *model.Guideline, chunks []*model.Chunk) error {
	if err := o.meta.UpdateJobState(ctx, jobID, model.JobStateIndexing); err != nil {
		return err
	}

	stageCtx, cancel := context.WithTimeout(ctx, o.cfg.StageTimeout)
	defer cancel()

	if err := o.vectors.Insert(stageCtx, chunks); err != nil {
		return err
	}
	if err := o.meta.CompleteJob(stageCtx, jobID, guideline, chunks); err != nil {
		// The guideline never became visible; remove its vectors so they
		// cannot occupy top-k slots as unhydratable hits.
		if delErr := o.vectors.DeleteByGuideline(ctx, guideline.ID); delErr != nil {
			logger.Warnw("failed to remove vectors after commit failure",
				"guideline_id", guideline.ID, "error", delErr)
		}
		return err
	}
	return nil
}

// fail moves the job to the failed terminal state with the error message.
func (o *Orchestrator) fail(ctx context.Context, jobID string, identity model.Identity, cause error) {
	o.metrics.IngestFailed()
	logger.Warnw("ingestion failed",
		"job_id", jobID,
		"gene", identity.Gene,
		"drug", identity.Drug,
		"error", cause,
	)
	if err := o.meta.FailJob(ctx, jobID, cause.Error()); err != nil {
		logger.Errorw("failed to record job failure", "job_id", jobID, "error", err)
	}
}

// cleanupPrior removes a superseded guideline after its replacement is
// visible.
func (o *Orchestrator) cleanupPrior(ctx context.Context, guidelineID string) {
	if err := o.meta.DeleteGuideline(ctx, guidelineID); err != nil {
		logger.Warnw("failed to remove superseded guideline", "guideline_id", guidelineID, "error", err)
	}
	if err := o.vectors.DeleteByGuideline(ctx, guidelineID); err != nil {
		logger.Warnw("failed to remove superseded vectors", "guideline_id", guidelineID, "error", err)
	}
}

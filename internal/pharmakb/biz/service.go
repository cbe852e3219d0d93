package biz

import (
	"context"

	"github.com/pharmakb/pharmakb/internal/model"
	"github.com/pharmakb/pharmakb/internal/pharmakb/metrics"
	"github.com/pharmakb/pharmakb/internal/pharmakb/store"
)

// Stats is the service statistics payload.
type Stats struct {
	Counters      metrics.Snapshot `json:"counters"`
	Guidelines    int              `json:"guidelines"`
	IndexedChunks int64            `json:"indexed_chunks"`
}

// Service composes the business operations behind the HTTP surface.
type Service struct {
	orchestrator *Orchestrator
	retriever    *Retriever
	assembler    *Assembler
	cache        *QueryCache
	phenotypes   *PhenotypeResolver
	catalog      *CatalogService
	metrics      *metrics.Metrics
	meta         store.MetadataStore
	vectors      store.VectorStore
}

// NewService wires a Service.
func NewService(
	orchestrator *Orchestrator,
	retriever *Retriever,
	assembler *Assembler,
	cache *QueryCache,
	phenotypes *PhenotypeResolver,
	catalog *CatalogService,
	m *metrics.Metrics,
	meta store.MetadataStore,
	vectors store.VectorStore,
) *Service {
	return &Service{
		orchestrator: orchestrator,
		retriever:    retriever,
		assembler:    assembler,
		cache:        cache,
		phenotypes:   phenotypes,
		catalog:      catalog,
		metrics:      m,
		meta:         meta,
		vectors:      vectors,
	}
}

// Ingest starts (or short-circuits) an ingestion for the pair.
func (s *Service) Ingest(ctx context.Context, gene, drug string, force bool) (*model.IngestionJob, error) {
	return s.orchestrator.Start(ctx, model.NewIdentity(gene, drug), force)
}

// IngestStatus returns the latest job snapshot for the pair.
func (s *Service) IngestStatus(ctx context.Context, gene, drug string) (*model.IngestionJob, error) {
	return s.orchestrator.Status(ctx, model.NewIdentity(gene, drug))
}

// Query answers a dosing question, optionally restricted by gene and
// drug. Answers are served from the cache when available.
func (s *Service) Query(ctx context.Context, question, gene, drug string) (*model.QueryAnswer, error) {
	s.metrics.Query()

	// Filters follow the same normalization as ingestion identities so a
	// lower-cased gene still matches.
	identity := model.NewIdentity(gene, drug)
	if gene != "" {
		gene = identity.Gene
	}
	if drug != "" {
		drug = identity.Drug
	}

	if cached := s.cache.Get(ctx, question, gene, drug); cached != nil {
		s.metrics.CacheHit()
		return cached, nil
	}

	passages, err := s.retriever.Retrieve(ctx, question, gene, drug)
	if err != nil {
		return nil, err
	}

	answer, err := s.assembler.Assemble(ctx, question, passages)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, question, gene, drug, answer)
	return answer, nil
}

// ListGuidelines returns summaries of all ingested guidelines, newest
// first.
func (s *Service) ListGuidelines(ctx context.Context) ([]model.GuidelineSummary, error) {
	guidelines, err := s.meta.ListGuidelines(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]model.GuidelineSummary, len(guidelines))
	for i, g := range guidelines {
		summaries[i] = g.Summary()
	}
	return summaries, nil
}

// Catalog exposes the discovery surface.
func (s *Service) Catalog() *CatalogService {
	return s.catalog
}

// Phenotypes exposes the phenotype lookup surface.
func (s *Service) Phenotypes() *PhenotypeResolver {
	return s.phenotypes
}

// Stats returns service statistics.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	guidelines, err := s.meta.ListGuidelines(ctx)
	if err != nil {
		return nil, err
	}

	chunks, err := s.vectors.Count(ctx)
	if err != nil {
		// The index being unreachable should not break the stats page.
		chunks = -1
	}

	return &Stats{
		Counters:      s.metrics.Snapshot(),
		Guidelines:    len(guidelines),
		IndexedChunks: chunks,
	}, nil
}

// Close releases the cache connection.
func (s *Service) Close() error {
	return s.cache.Close()
}

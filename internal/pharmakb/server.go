// Package pharmakb wires the service: stores, providers, pools, business
// logic, and the HTTP server.
package pharmakb

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kart-io/logger"

	"github.com/pharmakb/pharmakb/internal/pharmakb/biz"
	"github.com/pharmakb/pharmakb/internal/pharmakb/handler"
	"github.com/pharmakb/pharmakb/internal/pharmakb/metrics"
	"github.com/pharmakb/pharmakb/internal/pharmakb/router"
	"github.com/pharmakb/pharmakb/internal/pharmakb/store"
	"github.com/pharmakb/pharmakb/pkg/app"
	"github.com/pharmakb/pharmakb/pkg/component/cpic"
	"github.com/pharmakb/pharmakb/pkg/component/docparse"
	"github.com/pharmakb/pharmakb/pkg/component/milvus"
	"github.com/pharmakb/pharmakb/pkg/component/mongodb"
	"github.com/pharmakb/pharmakb/pkg/llm"
	"github.com/pharmakb/pharmakb/pkg/pool"

	// Register LLM providers.
	_ "github.com/pharmakb/pharmakb/pkg/llm/ollama"
	_ "github.com/pharmakb/pharmakb/pkg/llm/openai"

	cacheopts "github.com/pharmakb/pharmakb/pkg/options/cache"
	cpicopts "github.com/pharmakb/pharmakb/pkg/options/cpic"
	llmopts "github.com/pharmakb/pharmakb/pkg/options/llm"
	logopts "github.com/pharmakb/pharmakb/pkg/options/logger"
	milvusopts "github.com/pharmakb/pharmakb/pkg/options/milvus"
	mongodbopts "github.com/pharmakb/pharmakb/pkg/options/mongodb"
	pipelineopts "github.com/pharmakb/pharmakb/pkg/options/pipeline"
	serveropts "github.com/pharmakb/pharmakb/pkg/options/server"
)

// Name is the service name.
const Name = "pharmakb"

// Config contains the assembled application configuration.
type Config struct {
	ServerOptions    *serveropts.Options
	LogOptions       *logopts.Options
	MongoOptions     *mongodbopts.Options
	MilvusOptions    *milvusopts.Options
	CacheOptions     *cacheopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	PipelineOptions  *pipelineopts.Options
	CPICOptions      *cpicopts.Options
}

// Server is the assembled pharmakb service.
type Server struct {
	httpServer *http.Server
	service    *biz.Service
	meta       store.MetadataStore
	vectors    store.VectorStore
	ingestPool *pool.Pool
	embedPool  *pool.Pool
	cfg        *Config
}

// NewServer initializes the full service from config.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	// 1. Logger.
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Infow("Starting pharmakb service...", "version", app.GetVersion())

	// 2. Stores. The memory backend replaces both stores for development
	// and testing; production runs on MongoDB and Milvus.
	var (
		meta    store.MetadataStore
		vectors store.VectorStore
	)
	if cfg.PipelineOptions.VectorBackend == "memory" {
		meta = store.NewMemoryStore()
		vectors = store.NewMemoryVectorStore()
		logger.Info("In-memory stores initialized")
	} else {
		mongoClient, err := mongodb.NewWithContext(ctx, cfg.MongoOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mongodb: %w", err)
		}
		meta, err = store.NewMongoStore(ctx, mongoClient)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize metadata store: %w", err)
		}
		logger.Info("Metadata store initialized")

		milvusClient, err := milvus.New(cfg.MilvusOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize milvus: %w", err)
		}
		vectors = store.NewMilvusStore(milvusClient, cfg.PipelineOptions.Collection)
		logger.Info("Vector store initialized")
	}

	if err := vectors.EnsureCollection(ctx, cfg.PipelineOptions.EmbeddingDim); err != nil {
		return nil, fmt.Errorf("failed to ensure vector collection: %w", err)
	}

	// 3. Query cache.
	queryCache, err := biz.NewQueryCache(ctx, cfg.CacheOptions)
	if err != nil {
		logger.Warnw("cache unavailable, continuing without it", "error", err)
		queryCache = nil
	}

	// 4. LLM providers.
	embedder, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
	)

	generator, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generation provider: %w", err)
	}
	logger.Infow("Generation provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
	)

	// 5. Document source and parser.
	cpicClient, err := cpic.New(cfg.CPICOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cpic client: %w", err)
	}
	logger.Infow("CPIC client initialized", "catalog_pairs", cpicClient.Catalog().Len())

	parser := docparse.New()

	// 6. Worker pools.
	ingestPool, err := pool.New("ingest", pool.IngestPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest pool: %w", err)
	}
	embedPool, err := pool.New("embed", pool.EmbedPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create embed pool: %w", err)
	}

	// 7. Business layer.
	m := metrics.New()
	chunker := biz.NewChunker(cfg.PipelineOptions.ChunkTokens, cfg.PipelineOptions.ChunkOverlapTokens)

	orchestrator := biz.NewOrchestrator(meta, vectors, cpicClient, parser, chunker, embedder,
		ingestPool, embedPool, m, biz.OrchestratorConfig{
			EmbeddingDim:     cfg.PipelineOptions.EmbeddingDim,
			EmbedBatchSize:   cfg.PipelineOptions.EmbedBatchSize,
			MaxEmbedAttempts: cfg.PipelineOptions.MaxEmbedAttempts,
			RetryBaseDelay:   cfg.PipelineOptions.RetryBaseDelay,
			StageTimeout:     cfg.PipelineOptions.StageTimeout,
		})

	retriever := biz.NewRetriever(meta, vectors, embedder, m, cfg.PipelineOptions.TopK)
	assembler := biz.NewAssembler(generator, chunker, m, biz.AssemblerConfig{
		ContextTokenBudget: cfg.PipelineOptions.ContextTokenBudget,
		SystemPrompt:       cfg.PipelineOptions.SystemPrompt,
		PromptTemplate:     cfg.PipelineOptions.PromptTemplate,
	})

	phenotypes := biz.NewPhenotypeResolver(cpicClient, meta, cpicClient.Catalog().Genes())
	catalog := biz.NewCatalogService(cpicClient.Catalog(), meta)

	service := biz.NewService(orchestrator, retriever, assembler, queryCache, phenotypes, catalog, m, meta, vectors)
	logger.Info("Business layer initialized")

	// 8. HTTP server.
	engine := router.New(handler.New(service))
	httpServer := &http.Server{
		Addr:         cfg.ServerOptions.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.ServerOptions.ReadTimeout,
		WriteTimeout: cfg.ServerOptions.WriteTimeout,
		IdleTimeout:  cfg.ServerOptions.IdleTimeout,
	}

	logger.Infow("pharmakb service is ready", "addr", cfg.ServerOptions.Addr)
	return &Server{
		httpServer: httpServer,
		service:    service,
		meta:       meta,
		vectors:    vectors,
		ingestPool: ingestPool,
		embedPool:  embedPool,
		cfg:        cfg,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ServerOptions.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("http shutdown failed", "error", err)
	}

	s.ingestPool.Release()
	s.embedPool.Release()

	if err := s.service.Close(); err != nil {
		logger.Warnw("cache close failed", "error", err)
	}
	if err := s.vectors.Close(shutdownCtx); err != nil {
		logger.Warnw("vector store close failed", "error", err)
	}
	if err := s.meta.Close(shutdownCtx); err != nil {
		logger.Warnw("metadata store close failed", "error", err)
	}

	logger.Info("Shutdown complete")
	return nil
}

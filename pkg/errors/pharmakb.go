package errors

import "net/http"

// Knowledge base errors.
var (
	// ErrGuidelineNotFound indicates no completed guideline exists for the
	// requested (gene, drug) identity.
	ErrGuidelineNotFound = Register(&Errno{
		Code:    MakeCode(ServiceKnowledge, CategoryNotFound, 1),
		HTTP:    http.StatusNotFound,
		Message: "Guideline not found",
	})

	// ErrJobNotFound indicates no ingestion job exists for the identity.
	ErrJobNotFound = Register(&Errno{
		Code:    MakeCode(ServiceKnowledge, CategoryNotFound, 2),
		HTTP:    http.StatusNotFound,
		Message: "Ingestion job not found",
	})

	// ErrIngestInProgress indicates an active ingestion job already exists
	// for the identity.
	ErrIngestInProgress = Register(&Errno{
		Code:    MakeCode(ServiceKnowledge, CategoryConflict, 1),
		HTTP:    http.StatusConflict,
		Message: "Ingestion already in progress",
	})

	// ErrUnsupportedDocument indicates the fetched document yielded no
	// usable text.
	ErrUnsupportedDocument = Register(&Errno{
		Code:    MakeCode(ServiceKnowledge, CategoryRequest, 2),
		HTTP:    http.StatusUnprocessableEntity,
		Message: "Document yielded no usable text",
	})

	// ErrUpstreamUnavailable indicates a transient upstream failure
	// (document source, embedding service, generation service).
	ErrUpstreamUnavailable = Register(&Errno{
		Code:    MakeCode(ServiceKnowledge, CategoryUpstream, 1),
		HTTP:    http.StatusBadGateway,
		Message: "Upstream service unavailable",
	})

	// ErrEmbeddingDimMismatch indicates the embedding provider returned
	// vectors whose dimension disagrees with the configured index. This is a
	// configuration error and is never retried.
	ErrEmbeddingDimMismatch = Register(&Errno{
		Code:    MakeCode(ServiceKnowledge, CategoryConfig, 1),
		HTTP:    http.StatusInternalServerError,
		Message: "Embedding dimension mismatch",
	})

	// ErrGenerationFailed indicates the generation provider failed after
	// passages were retrieved.
	ErrGenerationFailed = Register(&Errno{
		Code:    MakeCode(ServiceKnowledge, CategoryUpstream, 2),
		HTTP:    http.StatusBadGateway,
		Message: "Answer generation failed",
	})

	// ErrVectorStore indicates a vector index failure.
	ErrVectorStore = Register(&Errno{
		Code:    MakeCode(ServiceKnowledge, CategoryDatabase, 1),
		HTTP:    http.StatusInternalServerError,
		Message: "Vector store error",
	})
)

// Phenotype lookup errors.
var (
	// ErrDiplotypeNotFound indicates the diplotype is unknown for the gene.
	ErrDiplotypeNotFound = Register(&Errno{
		Code:    MakeCode(ServicePhenotype, CategoryNotFound, 1),
		HTTP:    http.StatusNotFound,
		Message: "Diplotype not found for gene",
	})

	// ErrPhenotypeUpstream indicates the CPIC API is unreachable and no
	// cached table exists for the gene.
	ErrPhenotypeUpstream = Register(&Errno{
		Code:    MakeCode(ServicePhenotype, CategoryUpstream, 1),
		HTTP:    http.StatusBadGateway,
		Message: "Phenotype service unavailable",
	})
)

// Package handler provides the HTTP handlers for the pharmakb service.
package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pharmakb/pharmakb/internal/model"
	"github.com/pharmakb/pharmakb/internal/pharmakb/biz"
	"github.com/pharmakb/pharmakb/internal/pkg/httputils"
	"github.com/pharmakb/pharmakb/pkg/errors"
)

// queryTimeout bounds a single retrieval-and-generation round trip.
const queryTimeout = 60 * time.Second

// Handler handles pharmakb HTTP requests.
type Handler struct {
	service *biz.Service
}

// New creates a Handler.
func New(service *biz.Service) *Handler {
	return &Handler{service: service}
}

// IngestRequest is the ingestion request body.
type IngestRequest struct {
	Gene  string `json:"gene" binding:"required"`
	Drug  string `json:"drug" binding:"required"`
	Force bool   `json:"force"`
}

// Ingest starts an ingestion for a (gene, drug) pair.
func (h *Handler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrInvalidParam.WithMessage(err.Error()), nil)
		return
	}

	identity := model.NewIdentity(req.Gene, req.Drug)
	if !identity.Valid() {
		httputils.WriteResponse(c, errors.ErrInvalidParam.WithMessage("gene and drug are required"), nil)
		return
	}

	job, err := h.service.Ingest(c.Request.Context(), req.Gene, req.Drug, req.Force)
	httputils.WriteResponse(c, err, job)
}

// IngestStatus returns the latest job snapshot for a pair.
func (h *Handler) IngestStatus(c *gin.Context) {
	gene := c.Query("gene")
	drug := c.Query("drug")
	if gene == "" || drug == "" {
		httputils.WriteResponse(c, errors.ErrInvalidParam.WithMessage("gene and drug query parameters are required"), nil)
		return
	}

	job, err := h.service.IngestStatus(c.Request.Context(), gene, drug)
	httputils.WriteResponse(c, err, job)
}

// ListGuidelines returns summaries of ingested guidelines.
func (h *Handler) ListGuidelines(c *gin.Context) {
	summaries, err := h.service.ListGuidelines(c.Request.Context())
	httputils.WriteResponse(c, err, summaries)
}

// QueryRequest is the dosing question request body.
type QueryRequest struct {
	Question string `json:"question" binding:"required"`
	Gene     string `json:"gene"`
	Drug     string `json:"drug"`
}

// Query answers a dosing question.
func (h *Handler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrInvalidParam.WithMessage(err.Error()), nil)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	answer, err := h.service.Query(ctx, req.Question, req.Gene, req.Drug)
	httputils.WriteResponse(c, err, answer)
}

// CatalogGenes lists the known genes.
func (h *Handler) CatalogGenes(c *gin.Context) {
	genes, err := h.service.Catalog().Genes(c.Request.Context())
	httputils.WriteResponse(c, err, genes)
}

// CatalogDrugs lists the known drugs.
func (h *Handler) CatalogDrugs(c *gin.Context) {
	drugs, err := h.service.Catalog().Drugs(c.Request.Context())
	httputils.WriteResponse(c, err, drugs)
}

// CatalogPairs lists the known (gene, drug) pairs.
func (h *Handler) CatalogPairs(c *gin.Context) {
	pairs, err := h.service.Catalog().Pairs(c.Request.Context())
	httputils.WriteResponse(c, err, pairs)
}

// PhenotypeRequest is the phenotype lookup request body.
type PhenotypeRequest struct {
	Gene      string `json:"gene" binding:"required"`
	Diplotype string `json:"diplotype" binding:"required"`
}

// Phenotype resolves a (gene, diplotype) to its phenotype.
func (h *Handler) Phenotype(c *gin.Context) {
	var req PhenotypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrInvalidParam.WithMessage(err.Error()), nil)
		return
	}

	result, err := h.service.Phenotypes().Lookup(c.Request.Context(), req.Gene, req.Diplotype)
	httputils.WriteResponse(c, err, result)
}

// PhenotypeGenes lists the genes phenotype lookup supports.
func (h *Handler) PhenotypeGenes(c *gin.Context) {
	httputils.WriteResponse(c, nil, h.service.Phenotypes().Genes(c.Request.Context()))
}

// PhenotypeDiplotypes returns the diplotype table for a gene.
func (h *Handler) PhenotypeDiplotypes(c *gin.Context) {
	gene := c.Param("gene")
	if gene == "" {
		httputils.WriteResponse(c, errors.ErrInvalidParam.WithMessage("gene is required"), nil)
		return
	}

	records, err := h.service.Phenotypes().Diplotypes(c.Request.Context(), gene)
	httputils.WriteResponse(c, err, records)
}

// Stats returns service statistics.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	httputils.WriteResponse(c, err, stats)
}

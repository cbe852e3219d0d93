package biz

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/pharmakb/pharmakb/internal/model"
	"github.com/pharmakb/pharmakb/internal/pharmakb/store"
	"github.com/pharmakb/pharmakb/pkg/errors"
)

// DiplotypeAPI fetches a gene's diplotype-to-phenotype table.
// *cpic.Client is the production implementation.
type DiplotypeAPI interface {
	Diplotypes(ctx context.Context, gene string) ([]model.DiplotypeRecord, error)
}

// PhenotypeResolver answers (gene, diplotype) phenotype lookups against
// the CPIC REST API, with a per-gene cache in the metadata store. The
// cache is refreshed on every successful API call and serves as the
// fallback when the API is unreachable.
type PhenotypeResolver struct {
	api   DiplotypeAPI
	meta  store.MetadataStore
	genes []string
}

// NewPhenotypeResolver wires a PhenotypeResolver. genes is the discovery
// list served by Genes, typically the pairs catalog's gene set.
func NewPhenotypeResolver(api DiplotypeAPI, meta store.MetadataStore, genes []string) *PhenotypeResolver {
	return &PhenotypeResolver{
		api:   api,
		meta:  meta,
		genes: genes,
	}
}

// Lookup resolves the phenotype for a diplotype. The diplotype match is
// exact but case-insensitive.
func (r *PhenotypeResolver) Lookup(ctx context.Context, gene, diplotype string) (*model.PhenotypeResult, error) {
	gene = strings.ToUpper(strings.TrimSpace(gene))
	diplotype = strings.TrimSpace(diplotype)

	records, fromCache, err := r.table(ctx, gene)
	if err != nil {
		return nil, err
	}

	want := strings.ToLower(diplotype)
	for _, rec := range records {
		if strings.ToLower(rec.Diplotype) == want {
			return &model.PhenotypeResult{
				Gene:           gene,
				Diplotype:      rec.Diplotype,
				Phenotype:      rec.Phenotype,
				ActivityScore:  rec.ActivityScore,
				EHRPriority:    rec.EHRPriority,
				Recommendation: rec.Recommendation,
				FromCache:      fromCache,
			}, nil
		}
	}
	return nil, errors.ErrDiplotypeNotFound.WithMessagef("diplotype %s not found for %s", diplotype, gene)
}

// Diplotypes returns the full table for a gene.
func (r *PhenotypeResolver) Diplotypes(ctx context.Context, gene string) ([]model.DiplotypeRecord, error) {
	gene = strings.ToUpper(strings.TrimSpace(gene))
	records, _, err := r.table(ctx, gene)
	return records, err
}

// Genes returns the discovery gene list.
func (r *PhenotypeResolver) Genes(_ context.Context) []string {
	return r.genes
}

// table fetches the gene's table from the API, refreshing the cache on
// success and falling back to it on failure.
func (r *PhenotypeResolver) table(ctx context.Context, gene string) ([]model.DiplotypeRecord, bool, error) {
	records, err := r.api.Diplotypes(ctx, gene)
	if err == nil && len(records) > 0 {
		entry := &model.DiplotypeCacheEntry{
			Gene:      gene,
			Records:   records,
			FetchedAt: time.Now().UTC(),
		}
		if putErr := r.meta.PutDiplotypes(ctx, entry); putErr != nil {
			logger.Warnw("failed to cache diplotype table", "gene", gene, "error", putErr)
		}
		return records, false, nil
	}
	if err != nil {
		logger.Warnw("diplotype API unavailable, trying cache", "gene", gene, "error", err)
	}

	entry, cacheErr := r.meta.GetDiplotypes(ctx, gene)
	if cacheErr == nil {
		return entry.Records, true, nil
	}

	if err != nil {
		return nil, false, errors.ErrPhenotypeUpstream.WithCause(err)
	}
	// API reachable but returned nothing for the gene.
	return nil, false, errors.ErrDiplotypeNotFound.WithMessagef("no diplotype table for %s", gene)
}

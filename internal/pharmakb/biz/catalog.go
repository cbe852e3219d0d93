package biz

import (
	"context"
	"sort"

	"github.com/pharmakb/pharmakb/internal/model"
	"github.com/pharmakb/pharmakb/internal/pharmakb/store"
	"github.com/pharmakb/pharmakb/pkg/component/cpic"
)

// CatalogService serves the discovery surface: the genes, drugs, and
// pairs the service knows about, merging the configured pairs catalog
// with the ingestion history.
type CatalogService struct {
	catalog *cpic.Catalog
	meta    store.MetadataStore
}

// NewCatalogService wires a CatalogService.
func NewCatalogService(catalog *cpic.Catalog, meta store.MetadataStore) *CatalogService {
	return &CatalogService{
		catalog: catalog,
		meta:    meta,
	}
}

// Genes returns the distinct genes, sorted.
func (s *CatalogService) Genes(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	for _, g := range s.catalog.Genes() {
		seen[g] = true
	}

	guidelines, err := s.meta.ListGuidelines(ctx)
	if err != nil {
		return nil, err
	}
	for _, g := range guidelines {
		seen[g.Gene] = true
	}

	return sortedKeys(seen), nil
}

// Drugs returns the distinct drugs, sorted.
func (s *CatalogService) Drugs(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	for _, d := range s.catalog.Drugs() {
		seen[d] = true
	}

	guidelines, err := s.meta.ListGuidelines(ctx)
	if err != nil {
		return nil, err
	}
	for _, g := range guidelines {
		seen[g.Drug] = true
	}

	return sortedKeys(seen), nil
}

// Pairs returns the known (gene, drug) pairs sorted by gene then drug.
func (s *CatalogService) Pairs(ctx context.Context) ([]model.CatalogPair, error) {
	seen := make(map[string]model.CatalogPair)
	for _, p := range s.catalog.Pairs() {
		seen[p.Gene+"|"+p.Drug] = p
	}

	guidelines, err := s.meta.ListGuidelines(ctx)
	if err != nil {
		return nil, err
	}
	for _, g := range guidelines {
		seen[g.Gene+"|"+g.Drug] = model.CatalogPair{Gene: g.Gene, Drug: g.Drug}
	}

	pairs := make([]model.CatalogPair, 0, len(seen))
	for _, p := range seen {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Gene != pairs[j].Gene {
			return pairs[i].Gene < pairs[j].Gene
		}
		return pairs[i].Drug < pairs[j].Drug
	})
	return pairs, nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package cpic

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/pharmakb/pharmakb/internal/model"
)

// pairEntry is one row of the pairs catalog.
type pairEntry struct {
	Gene         string
	Drug         string
	GuidelineURL string
}

// Catalog is the gene-drug pairs catalog loaded from CSV. It maps each
// normalized (gene, drug) pair to its guideline page URL.
type Catalog struct {
	entries map[string]pairEntry
}

// LoadCatalog reads the pairs CSV (columns: gene, drug, guideline_url).
// A missing file yields an empty catalog rather than an error so the
// service can start before the catalog is provisioned.
func LoadCatalog(path string) (*Catalog, error) {
	cat := &Catalog{entries: make(map[string]pairEntry)}
	if path == "" {
		return cat, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cat, nil
		}
		return nil, err
	}
	defer f.Close()

	if err := cat.read(f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

func (c *Catalog) read(r io.Reader) error {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return err
	}

	for i, row := range rows {
		if len(row) < 3 {
			return fmt.Errorf("row %d: expected 3 columns (gene, drug, guideline_url), got %d", i+1, len(row))
		}
		// Skip the header row.
		if i == 0 && strings.EqualFold(row[0], "gene") {
			continue
		}
		identity := model.NewIdentity(row[0], row[1])
		if !identity.Valid() {
			continue
		}
		c.entries[identity.Key()] = pairEntry{
			Gene:         identity.Gene,
			Drug:         identity.Drug,
			GuidelineURL: strings.TrimSpace(row[2]),
		}
	}
	return nil
}

// GuidelineURL returns the guideline page URL for an identity.
func (c *Catalog) GuidelineURL(identity model.Identity) (string, bool) {
	entry, ok := c.entries[identity.Key()]
	if !ok {
		return "", false
	}
	return entry.GuidelineURL, true
}

// Pairs returns all catalog pairs sorted by gene then drug.
func (c *Catalog) Pairs() []model.CatalogPair {
	pairs := make([]model.CatalogPair, 0, len(c.entries))
	for _, e := range c.entries {
		pairs = append(pairs, model.CatalogPair{Gene: e.Gene, Drug: e.Drug})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Gene != pairs[j].Gene {
			return pairs[i].Gene < pairs[j].Gene
		}
		return pairs[i].Drug < pairs[j].Drug
	})
	return pairs
}

// Genes returns the distinct genes in the catalog, sorted.
func (c *Catalog) Genes() []string {
	seen := make(map[string]bool)
	var genes []string
	for _, e := range c.entries {
		if !seen[e.Gene] {
			seen[e.Gene] = true
			genes = append(genes, e.Gene)
		}
	}
	sort.Strings(genes)
	return genes
}

// Drugs returns the distinct drugs in the catalog, sorted.
func (c *Catalog) Drugs() []string {
	seen := make(map[string]bool)
	var drugs []string
	for _, e := range c.entries {
		if !seen[e.Drug] {
			seen[e.Drug] = true
			drugs = append(drugs, e.Drug)
		}
	}
	sort.Strings(drugs)
	return drugs
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

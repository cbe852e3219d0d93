// Package cpic is the upstream client for CPIC guideline documents and
// the CPIC REST API diplotype tables.
package cpic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pharmakb/pharmakb/internal/model"
	cpicopts "github.com/pharmakb/pharmakb/pkg/options/cpic"
)

// Client talks to the CPIC REST API and guideline pages.
type Client struct {
	opts       *cpicopts.Options
	httpClient *http.Client
	catalog    *Catalog
}

// New creates a CPIC client. The pairs catalog is loaded from the
// configured CSV; a missing file leaves the catalog empty, which means
// fetches fail with an unknown-pair error until a catalog is provided.
func New(opts *cpicopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("cpic options is nil")
	}

	catalog, err := LoadCatalog(opts.PairsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load pairs catalog: %w", err)
	}

	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
		catalog:    catalog,
	}, nil
}

// Catalog returns the loaded pairs catalog.
func (c *Client) Catalog() *Catalog {
	return c.catalog
}

// diplotypeRow is the CPIC REST API wire format for a diplotype row.
// Activity scores arrive as strings ("2.0", "n/a") or nulls.
type diplotypeRow struct {
	GeneSymbol         string          `json:"genesymbol"`
	Diplotype          string          `json:"diplotype"`
	GeneResult         string          `json:"generesult"`
	TotalActivityScore json.RawMessage `json:"totalactivityscore"`
	EHRPriority        string          `json:"ehrpriority"`
	DrugRecommendation string          `json:"drugrecommendation"`
}

// Diplotypes fetches the diplotype-to-phenotype table for a gene from the
// CPIC REST API.
func (c *Client) Diplotypes(ctx context.Context, gene string) ([]model.DiplotypeRecord, error) {
	endpoint := fmt.Sprintf("%s/diplotype?genesymbol=eq.%s", c.opts.APIBaseURL, url.QueryEscape(strings.ToUpper(gene)))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch diplotypes for %s: %w", gene, err)
	}

	var rows []diplotypeRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode diplotype response: %w", err)
	}

	records := make([]model.DiplotypeRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, model.DiplotypeRecord{
			Gene:           row.GeneSymbol,
			Diplotype:      row.Diplotype,
			Phenotype:      row.GeneResult,
			ActivityScore:  parseActivityScore(row.TotalActivityScore),
			EHRPriority:    row.EHRPriority,
			Recommendation: row.DrugRecommendation,
		})
	}
	return records, nil
}

// parseActivityScore handles the upstream's mixed encodings: null, quoted
// numbers, bare numbers, and non-numeric markers like "n/a".
func parseActivityScore(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	s := strings.Trim(string(raw), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// get performs a GET with retries on transient failures.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr error
	for i := 0; i <= c.opts.MaxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
		} else if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("status %d", resp.StatusCode)
		} else {
			body, err := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to read response: %w", err)
			}
			return body, nil
		}

		if i < c.opts.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i+1) * 500 * time.Millisecond):
			}
		}
	}
	return nil, fmt.Errorf("request failed after %d retries: %w", c.opts.MaxRetries, lastErr)
}

package cpic

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/pharmakb/pharmakb/internal/model"
)

// maxDocumentSize caps guideline PDF downloads at 64 MiB.
const maxDocumentSize = 64 << 20

// SourceDocument is a fetched guideline document.
type SourceDocument struct {
	// Title is a human-readable label for the document.
	Title string
	// PageURL is the guideline page the PDF was discovered on.
	PageURL string
	// PDFURL is the resolved PDF link.
	PDFURL string
	// Data is the raw PDF bytes.
	Data []byte
}

// FetchGuideline resolves an identity to its guideline PDF: the pairs
// catalog gives the guideline page URL, the page is scraped for its first
// PDF link, and the PDF is downloaded.
func (c *Client) FetchGuideline(ctx context.Context, identity model.Identity) (*SourceDocument, error) {
	pageURL, ok := c.catalog.GuidelineURL(identity)
	if !ok {
		return nil, fmt.Errorf("no guideline page known for %s", identity)
	}

	pdfURL, err := c.findPDFLink(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to locate PDF on %s: %w", pageURL, err)
	}

	data, err := c.download(ctx, pdfURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", pdfURL, err)
	}

	return &SourceDocument{
		Title:   fmt.Sprintf("CPIC Guideline for %s and %s", identity.Gene, identity.Drug),
		PageURL: pageURL,
		PDFURL:  pdfURL,
		Data:    data,
	}, nil
}

// findPDFLink fetches the guideline page and returns the first anchor
// pointing at a PDF, resolved against the page URL.
func (c *Client) findPDFLink(ctx context.Context, pageURL string) (string, error) {
	body, err := c.getRaw(ctx, pageURL, "text/html")
	if err != nil {
		return "", err
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}

	href := firstPDFHref(doc)
	if href == "" {
		return "", fmt.Errorf("no PDF link found")
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("bad PDF link %q: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// firstPDFHref walks the parsed document in order and returns the first
// anchor href ending in .pdf.
func firstPDFHref(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "a" {
		for _, attr := range n.Attr {
			if attr.Key != "href" {
				continue
			}
			href := strings.TrimSpace(attr.Val)
			trimmed := href
			if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
				trimmed = trimmed[:i]
			}
			if strings.HasSuffix(strings.ToLower(trimmed), ".pdf") {
				return href
			}
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if href := firstPDFHref(child); href != "" {
			return href
		}
	}
	return ""
}

// download fetches the PDF bytes, size-capped.
func (c *Client) download(ctx context.Context, pdfURL string) ([]byte, error) {
	data, err := c.getRaw(ctx, pdfURL, "application/pdf")
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	return data, nil
}

// getRaw performs a GET with retries and returns the response body.
func (c *Client) getRaw(ctx context.Context, endpoint, accept string) ([]byte, error) {
	var lastErr error
	for i := 0; i <= c.opts.MaxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", accept)

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
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
			_ = resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to read response: %w", err)
			}
			if len(body) > maxDocumentSize {
				return nil, fmt.Errorf("document exceeds %d bytes", maxDocumentSize)
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

package cpic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/pharmakb/pharmakb/internal/model"
)

func TestFirstPDFHref(t *testing.T) {
	page := `<html><body>
		<a href="/about">About</a>
		<a href="/files/guideline.PDF?version=3">Guideline</a>
		<a href="/files/other.pdf">Other</a>
	</body></html>`

	doc, err := html.Parse(strings.NewReader(page))
	require.NoError(t, err)

	// Document order wins, query strings are ignored for the suffix check
	// but kept in the result.
	assert.Equal(t, "/files/guideline.PDF?version=3", firstPDFHref(doc))
}

func TestFirstPDFHrefNoMatch(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`<html><body><a href="/files/notes.txt">notes</a></body></html>`))
	require.NoError(t, err)
	assert.Empty(t, firstPDFHref(doc))
}

func TestFetchGuideline(t *testing.T) {
	pdfBytes := []byte("%PDF-1.7 fake body")

	mux := http.NewServeMux()
	mux.HandleFunc("/guidelines/cyp2d6-codeine/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><a href="/content/guideline.pdf">Download PDF</a></body></html>`))
	})
	mux.HandleFunc("/content/guideline.pdf", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pdfBytes)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	pairs := filepath.Join(t.TempDir(), "pairs.csv")
	require.NoError(t, os.WriteFile(pairs, []byte(
		"gene,drug,guideline_url\nCYP2D6,codeine,"+srv.URL+"/guidelines/cyp2d6-codeine/\n"), 0o600))

	opts := testOptions(srv.URL)
	opts.PairsFile = pairs
	client, err := New(opts)
	require.NoError(t, err)

	doc, err := client.FetchGuideline(context.Background(), model.NewIdentity("cyp2d6", "Codeine"))
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, doc.Data)
	assert.Equal(t, srv.URL+"/content/guideline.pdf", doc.PDFURL)
	assert.Contains(t, doc.Title, "CYP2D6")
}

func TestFetchGuidelineRejectsOversizeDocument(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/guidelines/dpyd-fluorouracil/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><a href="/content/huge.pdf">Download PDF</a></body></html>`))
	})
	mux.HandleFunc("/content/huge.pdf", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, maxDocumentSize+1))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	pairs := filepath.Join(t.TempDir(), "pairs.csv")
	require.NoError(t, os.WriteFile(pairs, []byte(
		"gene,drug,guideline_url\nDPYD,fluorouracil,"+srv.URL+"/guidelines/dpyd-fluorouracil/\n"), 0o600))

	opts := testOptions(srv.URL)
	opts.PairsFile = pairs
	opts.MaxRetries = 0
	client, err := New(opts)
	require.NoError(t, err)

	// A document over the size cap is refused, not silently clipped.
	_, err = client.FetchGuideline(context.Background(), model.NewIdentity("DPYD", "fluorouracil"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestFetchGuidelineUnknownPair(t *testing.T) {
	client, err := New(testOptions("http://127.0.0.1:0"))
	require.NoError(t, err)

	_, err = client.FetchGuideline(context.Background(), model.NewIdentity("BRCA1", "tamoxifen"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no guideline page")
}

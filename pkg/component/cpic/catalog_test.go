package cpic

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmakb/pharmakb/internal/model"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pairs.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadCatalog(t *testing.T) {
	path := writeCatalog(t, `gene,drug,guideline_url
CYP2D6,Codeine,https://cpicpgx.org/guidelines/cyp2d6-codeine/
cyp2d6,amitriptyline,https://cpicpgx.org/guidelines/cyp2d6-tricyclics/
TPMT, azathioprine ,https://cpicpgx.org/guidelines/tpmt-thiopurines/
`)

	cat, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cat.Len())

	// Lookups normalize the same way ingestion does.
	url, ok := cat.GuidelineURL(model.NewIdentity("CYP2D6", "CODEINE"))
	require.True(t, ok)
	assert.Equal(t, "https://cpicpgx.org/guidelines/cyp2d6-codeine/", url)

	_, ok = cat.GuidelineURL(model.NewIdentity("BRCA1", "tamoxifen"))
	assert.False(t, ok)

	assert.Equal(t, []string{"CYP2D6", "TPMT"}, cat.Genes())
	assert.Equal(t, []string{"amitriptyline", "azathioprine", "codeine"}, cat.Drugs())

	pairs := cat.Pairs()
	require.Len(t, pairs, 3)
	assert.Equal(t, model.CatalogPair{Gene: "CYP2D6", Drug: "amitriptyline"}, pairs[0])
	assert.Equal(t, model.CatalogPair{Gene: "CYP2D6", Drug: "codeine"}, pairs[1])
}

func TestLoadCatalogMissingFile(t *testing.T) {
	cat, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.csv"))
	require.NoError(t, err)
	assert.Zero(t, cat.Len())

	cat, err = LoadCatalog("")
	require.NoError(t, err)
	assert.Zero(t, cat.Len())
}

func TestLoadCatalogRejectsShortRows(t *testing.T) {
	path := writeCatalog(t, "gene,drug,guideline_url\nCYP2D6,codeine\n")

	// csv.Reader already rejects ragged rows.
	_, err := LoadCatalog(path)
	assert.Error(t, err)
}

func TestLoadCatalogSkipsBlankIdentities(t *testing.T) {
	path := writeCatalog(t, "gene,drug,guideline_url\n,codeine,https://example.org/\nCYP2D6,codeine,https://example.org/\n")

	cat, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cat.Len())
}

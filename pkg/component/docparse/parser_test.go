package docparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmakb/pharmakb/internal/model"
)

func TestIsHeading(t *testing.T) {
	headings := []string{
		"DOSING RECOMMENDATIONS",
		"2.1 DOSING RECOMMENDATIONS",
		"3 SUPPLEMENTAL MATERIAL",
		"TABLE OF CONTENTS",
	}
	for _, line := range headings {
		assert.True(t, isHeading(line), line)
	}

	notHeadings := []string{
		"Poor metabolizers should avoid codeine.",
		"CPIC.",
		"",
		"dosing recommendations",
		"2.1 dosing recommendations",
	}
	for _, line := range notHeadings {
		assert.False(t, isHeading(line), line)
	}
}

func TestGroupBlocks(t *testing.T) {
	lines := []string{
		"Patients with reduced enzyme activity require lower starting doses.",
		"Monitor for adverse effects during titration.",
		"DOSING RECOMMENDATIONS",
		"Avoid codeine in poor metabolizers.",
	}

	blocks, section := groupBlocks(lines, "", 3)
	assert.Equal(t, "DOSING RECOMMENDATIONS", section)
	require.Len(t, blocks, 2)

	// Lines before the heading fold into one paragraph with no section.
	assert.Equal(t, model.Block{
		Text: "Patients with reduced enzyme activity require lower starting doses. Monitor for adverse effects during titration.",
		Page: 3,
	}, blocks[0])

	assert.Equal(t, "DOSING RECOMMENDATIONS", blocks[1].Section)
	assert.Equal(t, "Avoid codeine in poor metabolizers.", blocks[1].Text)
	assert.Equal(t, 3, blocks[1].Page)
}

func TestGroupBlocksCarriesSectionAcrossPages(t *testing.T) {
	page1, section := groupBlocks([]string{"DOSING RECOMMENDATIONS", "Reduce dose."}, "", 1)
	require.Len(t, page1, 1)

	// A page with no heading of its own inherits the running section.
	page2, _ := groupBlocks([]string{"Continue monitoring."}, section, 2)
	require.Len(t, page2, 1)
	assert.Equal(t, "DOSING RECOMMENDATIONS", page2[0].Section)
	assert.Equal(t, 2, page2[0].Page)
}

func TestParseRejectsGarbage(t *testing.T) {
	p := New()
	_, err := p.Parse([]byte("not a pdf"))
	assert.Error(t, err)
}

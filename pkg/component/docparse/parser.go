// Package docparse extracts ordered text blocks from guideline PDFs.
//
// Pages are reconstructed line by line from the PDF content stream, a
// heading heuristic tracks the current section, and consecutive lines are
// grouped into paragraph blocks carrying section and page provenance.
package docparse

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/pharmakb/pharmakb/internal/model"
)

// yTolerance groups glyphs into the same visual line when their baselines
// differ by less than this many points.
const yTolerance = 2.0

// headingPattern matches numbered or upper-case section headings such as
// "2.1 DOSING RECOMMENDATIONS" or "SUPPLEMENTAL MATERIAL".
var headingPattern = regexp.MustCompile(`^(?:\d+(?:\.\d+)*\s+)?[A-Z][A-Z0-9 ,/&-]{3,80}$`)

// Parser extracts blocks from PDF bytes.
type Parser struct{}

// New creates a Parser.
func New() *Parser {
	return &Parser{}
}

// Parse converts PDF bytes into ordered blocks. Pages that yield no text
// are skipped; an error is returned only when the document itself cannot
// be read.
func (p *Parser) Parse(data []byte) ([]model.Block, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	var blocks []model.Block
	section := ""

	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		lines := extractLines(page)
		pageBlocks, nextSection := groupBlocks(lines, section, pageNum)
		blocks = append(blocks, pageBlocks...)
		section = nextSection
	}

	return blocks, nil
}

// extractLines rebuilds the page's visual lines from positioned glyph
// runs: runs sharing a baseline become one line, lines are ordered top to
// bottom.
func extractLines(page pdf.Page) []string {
	content := page.Content()
	if len(content.Text) == 0 {
		return nil
	}

	texts := make([]pdf.Text, len(content.Text))
	copy(texts, content.Text)

	// PDF y grows upward; sort top-down, then left-right within a line.
	sort.SliceStable(texts, func(i, j int) bool {
		if diff := texts[i].Y - texts[j].Y; diff > yTolerance || diff < -yTolerance {
			return texts[i].Y > texts[j].Y
		}
		return texts[i].X < texts[j].X
	})

	var lines []string
	var sb strings.Builder
	lastY := texts[0].Y

	flush := func() {
		line := strings.TrimSpace(sb.String())
		if line != "" {
			lines = append(lines, line)
		}
		sb.Reset()
	}

	for _, t := range texts {
		if diff := lastY - t.Y; diff > yTolerance || diff < -yTolerance {
			flush()
			lastY = t.Y
		}
		sb.WriteString(t.S)
	}
	flush()

	return lines
}

// groupBlocks folds a page's lines into paragraph blocks, tracking the
// current section through heading lines. Heading lines set the section and
// do not produce blocks of their own.
func groupBlocks(lines []string, section string, pageNum int) ([]model.Block, string) {
	var blocks []model.Block
	var para strings.Builder

	flush := func() {
		text := strings.TrimSpace(para.String())
		if text != "" {
			blocks = append(blocks, model.Block{Text: text, Section: section, Page: pageNum})
		}
		para.Reset()
	}

	for _, line := range lines {
		if isHeading(line) {
			flush()
			section = strings.TrimSpace(line)
			continue
		}
		if para.Len() > 0 {
			para.WriteByte(' ')
		}
		para.WriteString(line)
	}
	flush()

	return blocks, section
}

// isHeading reports whether a line looks like a section heading.
func isHeading(line string) bool {
	if len(line) < 4 || len(line) > 90 {
		return false
	}
	return headingPattern.MatchString(line)
}

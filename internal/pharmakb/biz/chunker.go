// Package biz implements the service logic: ingestion orchestration,
// chunking, retrieval, answer assembly, and phenotype resolution.
package biz

import (
	"strings"

	"github.com/kart-io/logger"
	"github.com/pkoukk/tiktoken-go"

	"github.com/pharmakb/pharmakb/internal/model"
	"github.com/pharmakb/pharmakb/pkg/errors"
)

// headerFooterMinPages is the minimum number of pages a line must repeat
// on before it is treated as a running header or footer.
const headerFooterMinPages = 3

// Chunker cuts parsed document blocks into retrievable passages under a
// token budget with fixed token overlap.
type Chunker struct {
	tokens  int
	overlap int
	encoder *tiktoken.Tiktoken
}

// NewChunker creates a Chunker. Token counting uses the cl100k_base
// encoding; if the encoding cannot be loaded, counting falls back to a
// rune-based estimate.
func NewChunker(tokens, overlap int) *Chunker {
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.Warnw("tokenizer unavailable, falling back to rune estimate", "error", err)
		encoder = nil
	}
	return &Chunker{
		tokens:  tokens,
		overlap: overlap,
		encoder: encoder,
	}
}

// CountTokens returns the token count for text.
func (c *Chunker) CountTokens(text string) int {
	if c.encoder != nil {
		return len(c.encoder.Encode(text, nil, nil))
	}
	// Rough estimate: about four runes per token for English text.
	n := len([]rune(text))
	count := n / 4
	if n > 0 && count == 0 {
		count = 1
	}
	return count
}

// Chunk cuts blocks into passages. Passages never cross section
// boundaries, inherit the section and first page of their blocks, and
// carry contiguous ordinals starting at zero. Zero usable passages means
// the document is unsupported.
func (c *Chunker) Chunk(blocks []model.Block) ([]*model.Chunk, error) {
	blocks = stripRepeatedLines(blocks)

	var chunks []*model.Chunk
	var pending []model.Block
	pendingTokens := 0
	currentSection := ""

	flush := func() {
		if len(pending) == 0 {
			return
		}
		chunks = append(chunks, c.buildChunk(pending))
		// Carry trailing blocks forward as overlap.
		pending = c.overlapTail(pending)
		pendingTokens = 0
		for _, b := range pending {
			pendingTokens += c.CountTokens(b.Text)
		}
	}

	for _, block := range blocks {
		text := normalizeWhitespace(block.Text)
		if text == "" {
			continue
		}
		block.Text = text

		if block.Section != currentSection {
			// Section boundary: emit without overlap into the new section.
			if len(pending) > 0 {
				chunks = append(chunks, c.buildChunk(pending))
			}
			pending = nil
			pendingTokens = 0
			currentSection = block.Section
		}

		blockTokens := c.CountTokens(block.Text)
		if blockTokens > c.tokens {
			flush()
			for _, part := range c.splitBlock(block) {
				chunks = append(chunks, c.buildChunk([]model.Block{part}))
			}
			pending = nil
			pendingTokens = 0
			continue
		}

		if pendingTokens+blockTokens > c.tokens {
			flush()
		}
		pending = append(pending, block)
		pendingTokens += blockTokens
	}

	if len(pending) > 0 {
		chunks = append(chunks, c.buildChunk(pending))
	}

	if len(chunks) == 0 {
		return nil, errors.ErrUnsupportedDocument.WithMessage("document yielded no usable text")
	}

	for i, chunk := range chunks {
		chunk.Ordinal = i
	}
	return chunks, nil
}

// buildChunk joins blocks into a single passage.
func (c *Chunker) buildChunk(blocks []model.Block) *model.Chunk {
	parts := make([]string, len(blocks))
	for i, b := range blocks {
		parts[i] = b.Text
	}
	text := strings.Join(parts, "\n\n")

	return &model.Chunk{
		Text:           text,
		NormalizedText: strings.ToLower(text),
		Section:        blocks[0].Section,
		Page:           blocks[0].Page,
		TokenCount:     c.CountTokens(text),
	}
}

// overlapTail returns the trailing blocks whose combined token count is
// at most the overlap budget.
func (c *Chunker) overlapTail(blocks []model.Block) []model.Block {
	if c.overlap <= 0 {
		return nil
	}
	total := 0
	start := len(blocks)
	for i := len(blocks) - 1; i >= 0; i-- {
		t := c.CountTokens(blocks[i].Text)
		if total+t > c.overlap {
			break
		}
		total += t
		start = i
	}
	return append([]model.Block(nil), blocks[start:]...)
}

// splitBlock cuts an oversize block on sentence boundaries, packing
// sentences up to the token budget.
func (c *Chunker) splitBlock(block model.Block) []model.Block {
	sentences := splitSentences(block.Text)

	var parts []model.Block
	var current []string
	currentTokens := 0

	emit := func() {
		if len(current) == 0 {
			return
		}
		parts = append(parts, model.Block{
			Text:    strings.Join(current, " "),
			Section: block.Section,
			Page:    block.Page,
		})
		current = nil
		currentTokens = 0
	}

	for _, sentence := range sentences {
		t := c.CountTokens(sentence)
		if currentTokens+t > c.tokens && len(current) > 0 {
			emit()
		}
		current = append(current, sentence)
		currentTokens += t
	}
	emit()
	return parts
}

// splitSentences splits text on sentence-ending punctuation followed by
// whitespace. It is deliberately simple; abbreviations cause early
// splits, which only shortens a passage.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			if i+1 < len(runes) && runes[i+1] == ' ' {
				sentences = append(sentences, strings.TrimSpace(string(runes[start:i+1])))
				start = i + 1
			}
		}
	}
	if start < len(runes) {
		tail := strings.TrimSpace(string(runes[start:]))
		if tail != "" {
			sentences = append(sentences, tail)
		}
	}
	return sentences
}

// stripRepeatedLines removes running headers and footers: short lines
// that appear verbatim on several distinct pages.
func stripRepeatedLines(blocks []model.Block) []model.Block {
	linePages := make(map[string]map[int]struct{})
	for _, block := range blocks {
		for _, line := range strings.Split(block.Text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || len(line) > 120 {
				continue
			}
			if linePages[line] == nil {
				linePages[line] = make(map[int]struct{})
			}
			linePages[line][block.Page] = struct{}{}
		}
	}

	repeated := make(map[string]struct{})
	for line, pages := range linePages {
		if len(pages) >= headerFooterMinPages {
			repeated[line] = struct{}{}
		}
	}
	if len(repeated) == 0 {
		return blocks
	}

	out := make([]model.Block, 0, len(blocks))
	for _, block := range blocks {
		var kept []string
		for _, line := range strings.Split(block.Text, "\n") {
			if _, ok := repeated[strings.TrimSpace(line)]; ok {
				continue
			}
			kept = append(kept, line)
		}
		block.Text = strings.TrimSpace(strings.Join(kept, "\n"))
		if block.Text != "" {
			out = append(out, block)
		}
	}
	return out
}

// normalizeWhitespace collapses runs of whitespace into single spaces
// while keeping paragraph structure out of the way of token counting.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

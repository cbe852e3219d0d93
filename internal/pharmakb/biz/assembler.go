package biz

import (
	"context"
	"strings"
	"time"

	"github.com/pharmakb/pharmakb/internal/model"
	"github.com/pharmakb/pharmakb/internal/pharmakb/metrics"
	"github.com/pharmakb/pharmakb/pkg/errors"
	"github.com/pharmakb/pharmakb/pkg/llm"
)

// insufficientEvidence is the answer returned when retrieval yields no
// passages. No generation call is made in that case.
const insufficientEvidence = "Insufficient evidence: no ingested guideline passages match this question."

// excerptRunes bounds the source excerpt length in the answer payload.
const excerptRunes = 240

// AssemblerConfig bounds answer assembly.
type AssemblerConfig struct {
	ContextTokenBudget int
	SystemPrompt       string
	PromptTemplate     string
}

// Assembler turns retrieved passages into a grounded answer.
type Assembler struct {
	generator llm.ChatProvider
	chunker   *Chunker
	metrics   *metrics.Metrics
	cfg       AssemblerConfig
}

// NewAssembler wires an Assembler. The chunker is reused for token
// counting against the context budget.
func NewAssembler(generator llm.ChatProvider, chunker *Chunker, m *metrics.Metrics, cfg AssemblerConfig) *Assembler {
	return &Assembler{
		generator: generator,
		chunker:   chunker,
		metrics:   m,
		cfg:       cfg,
	}
}

// Assemble generates an answer from the passages. Passages arrive in
// retrieval order (most similar first); the least similar are truncated
// first when the context budget is exceeded. Confidence comes from
// retrieval geometry alone, so a generation failure surfaces as an error
// rather than a low-confidence answer.
func (a *Assembler) Assemble(ctx context.Context, question string, passages []model.RetrievedPassage) (*model.QueryAnswer, error) {
	if len(passages) == 0 {
		return &model.QueryAnswer{
			Answer:     insufficientEvidence,
			Confidence: 0,
			ModelUsed:  a.generator.Model(),
			Sources:    []model.Source{},
		}, nil
	}

	kept := a.fitBudget(passages)
	prompt := a.buildPrompt(question, kept)

	start := time.Now()
	answer, err := a.generator.Generate(ctx, prompt, a.cfg.SystemPrompt)
	a.metrics.GenerationCall(time.Since(start))
	if err != nil {
		return nil, errors.ErrGenerationFailed.WithCause(err)
	}

	sources := make([]model.Source, len(kept))
	for i, p := range kept {
		sources[i] = model.Source{
			Gene:    p.Gene,
			Drug:    p.Drug,
			Section: p.Section,
			Page:    p.Page,
			Score:   p.Score,
			Excerpt: excerpt(p.Text),
		}
	}

	return &model.QueryAnswer{
		Answer:     strings.TrimSpace(answer),
		Confidence: Confidence(kept),
		ModelUsed:  a.generator.Model(),
		Sources:    sources,
	}, nil
}

// fitBudget keeps the most similar passages that fit the context token
// budget. The first passage is always kept so the prompt is never empty.
func (a *Assembler) fitBudget(passages []model.RetrievedPassage) []model.RetrievedPassage {
	kept := make([]model.RetrievedPassage, 0, len(passages))
	total := 0
	for i, p := range passages {
		tokens := p.TokenCount
		if tokens == 0 {
			tokens = a.chunker.CountTokens(p.Text)
		}
		if i > 0 && total+tokens > a.cfg.ContextTokenBudget {
			break
		}
		total += tokens
		kept = append(kept, p)
	}
	return kept
}

// buildPrompt fills the {{context}} and {{question}} placeholders.
func (a *Assembler) buildPrompt(question string, passages []model.RetrievedPassage) string {
	var sb strings.Builder
	for i, p := range passages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("[")
		sb.WriteString(p.Gene)
		sb.WriteString("/")
		sb.WriteString(p.Drug)
		if p.Section != "" {
			sb.WriteString(", ")
			sb.WriteString(p.Section)
		}
		sb.WriteString("]\n")
		sb.WriteString(p.Text)
	}

	prompt := strings.ReplaceAll(a.cfg.PromptTemplate, "{{context}}", sb.String())
	return strings.ReplaceAll(prompt, "{{question}}", question)
}

// Confidence maps retrieval geometry to [0,1]: linear in the top score,
// penalized by the spread across the retrieved set. Monotone in the top
// score for a fixed spread.
func Confidence(passages []model.RetrievedPassage) float64 {
	if len(passages) == 0 {
		return 0
	}

	top := float64(passages[0].Score)
	min := top
	for _, p := range passages[1:] {
		if s := float64(p.Score); s < min {
			min = s
		}
	}

	c := top - 0.25*(top-min)
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// excerpt truncates text for the source citation.
func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptRunes {
		return text
	}
	return strings.TrimSpace(string(runes[:excerptRunes])) + "..."
}

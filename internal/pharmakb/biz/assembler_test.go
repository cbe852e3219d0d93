package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmakb/pharmakb/internal/model"
	"github.com/pharmakb/pharmakb/internal/pharmakb/metrics"
	"github.com/pharmakb/pharmakb/pkg/errors"
)

func newTestAssembler(chat *mockChat) *Assembler {
	return NewAssembler(chat, NewChunker(400, 0), metrics.New(), AssemblerConfig{
		ContextTokenBudget: 200,
		SystemPrompt:       "You are a pharmacogenomics assistant.",
		PromptTemplate:     "Context:\n{{context}}\n\nQuestion: {{question}}\n\nAnswer:",
	})
}

func passage(score float32, text string) model.RetrievedPassage {
	return model.RetrievedPassage{
		ChunkID:     "chunk",
		GuidelineID: "guideline",
		Gene:        "CYP2D6",
		Drug:        "codeine",
		Page:        1,
		Score:       score,
		Text:        text,
	}
}

func TestAssembleInsufficientEvidence(t *testing.T) {
	chat := &mockChat{response: "should not be called"}
	a := newTestAssembler(chat)

	answer, err := a.Assemble(context.Background(), "dosing for poor metabolizers", nil)
	require.NoError(t, err)

	assert.Equal(t, insufficientEvidence, answer.Answer)
	assert.Zero(t, answer.Confidence)
	assert.Empty(t, answer.Sources)
	assert.Equal(t, 0, chat.callCount(), "no generation call for empty passages")
}

func TestAssembleGeneratesAnswer(t *testing.T) {
	chat := &mockChat{response: "Avoid codeine in poor metabolizers."}
	a := newTestAssembler(chat)

	passages := []model.RetrievedPassage{
		passage(0.92, "Poor metabolizers should avoid codeine."),
		passage(0.81, "Consider morphine as an alternative."),
	}

	answer, err := a.Assemble(context.Background(), "dosing for poor metabolizers", passages)
	require.NoError(t, err)

	assert.Equal(t, "Avoid codeine in poor metabolizers.", answer.Answer)
	assert.Equal(t, "mock-chat-v1", answer.ModelUsed)
	assert.Positive(t, answer.Confidence)
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "CYP2D6", answer.Sources[0].Gene)
	assert.Equal(t, 1, chat.callCount())
}

func TestAssembleGenerationFailure(t *testing.T) {
	chat := &mockChat{err: fmt.Errorf("model overloaded")}
	a := newTestAssembler(chat)

	_, err := a.Assemble(context.Background(), "question", []model.RetrievedPassage{passage(0.9, "text")})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrGenerationFailed))
}

func TestAssembleContextBudget(t *testing.T) {
	chat := &mockChat{response: "answer"}
	a := newTestAssembler(chat)

	// Each passage is well over half the 200 token budget, so only the
	// most similar survives truncation.
	big := paragraph("pharmacokinetics", 150)
	passages := []model.RetrievedPassage{
		passage(0.95, big),
		passage(0.60, big),
		passage(0.40, big),
	}

	answer, err := a.Assemble(context.Background(), "question", passages)
	require.NoError(t, err)
	require.Len(t, answer.Sources, 1)
	assert.InDelta(t, 0.95, float64(answer.Sources[0].Score), 1e-6)
}

func TestConfidenceMonotoneInTopScore(t *testing.T) {
	low := Confidence([]model.RetrievedPassage{passage(0.5, "a"), passage(0.4, "b")})
	high := Confidence([]model.RetrievedPassage{passage(0.9, "a"), passage(0.8, "b")})
	assert.Greater(t, high, low)
}

func TestConfidenceSpreadPenalty(t *testing.T) {
	tight := Confidence([]model.RetrievedPassage{passage(0.9, "a"), passage(0.88, "b")})
	spread := Confidence([]model.RetrievedPassage{passage(0.9, "a"), passage(0.3, "b")})
	assert.Greater(t, tight, spread)
}

func TestConfidenceBounds(t *testing.T) {
	assert.Zero(t, Confidence(nil))
	assert.LessOrEqual(t, Confidence([]model.RetrievedPassage{passage(2.0, "a")}), 1.0)
	assert.GreaterOrEqual(t, Confidence([]model.RetrievedPassage{passage(-1.0, "a")}), 0.0)

	// Scores are float32; the float64 conversion carries ~1e-8 of error.
	single := Confidence([]model.RetrievedPassage{passage(0.7, "a")})
	assert.InDelta(t, 0.7, single, 1e-6, "single passage has no spread penalty")
}

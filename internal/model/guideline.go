// Package model defines the shared data model for the pharmakb service.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Identity names a guideline by its (gene, drug) pair.
// Gene symbols are normalized to upper case, drug names to lower case.
type Identity struct {
	Gene string `json:"gene" bson:"gene"`
	Drug string `json:"drug" bson:"drug"`
}

// NewIdentity builds a normalized Identity from raw user input.
func NewIdentity(gene, drug string) Identity {
	return Identity{
		Gene: strings.ToUpper(normalizeToken(gene)),
		Drug: strings.ToLower(normalizeToken(drug)),
	}
}

// normalizeToken trims and collapses internal whitespace.
func normalizeToken(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Key returns the canonical map/index key for the identity.
func (id Identity) Key() string {
	return id.Gene + "|" + id.Drug
}

// String implements fmt.Stringer.
func (id Identity) String() string {
	return fmt.Sprintf("%s/%s", id.Gene, id.Drug)
}

// Valid reports whether both components are present.
func (id Identity) Valid() bool {
	return id.Gene != "" && id.Drug != ""
}

// JobState is the ingestion state machine state.
type JobState string

const (
	JobStateRequested JobState = "requested"
	JobStateFetching  JobState = "fetching"
	JobStateParsing   JobState = "parsing"
	JobStateEmbedding JobState = "chunking_embedding"
	JobStateIndexing  JobState = "indexing"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// Terminal reports whether the state is a terminal state.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// IngestionJob tracks a single ingestion run for an identity.
type IngestionJob struct {
	ID          string    `json:"id" bson:"_id"`
	Gene        string    `json:"gene" bson:"gene"`
	Drug        string    `json:"drug" bson:"drug"`
	IdentityKey string    `json:"-" bson:"identity_key"`
	State       JobState  `json:"state" bson:"state"`
	Message     string    `json:"message,omitempty" bson:"message,omitempty"`
	GuidelineID string    `json:"guideline_id,omitempty" bson:"guideline_id,omitempty"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// Identity returns the job's guideline identity.
func (j *IngestionJob) Identity() Identity {
	return Identity{Gene: j.Gene, Drug: j.Drug}
}

// Block is a parsed document fragment in reading order.
type Block struct {
	Text    string `json:"text"`
	Section string `json:"section,omitempty"`
	Page    int    `json:"page"`
}

// Guideline is a completed, queryable ingested document.
// The record is only written at ingestion completion, so any guideline
// visible to readers has its full chunk set indexed.
type Guideline struct {
	ID             string    `json:"id" bson:"_id"`
	Gene           string    `json:"gene" bson:"gene"`
	Drug           string    `json:"drug" bson:"drug"`
	Title          string    `json:"title" bson:"title"`
	SourceURL      string    `json:"source_url" bson:"source_url"`
	ChunkCount     int       `json:"chunk_count" bson:"chunk_count"`
	EmbeddingModel string    `json:"embedding_model" bson:"embedding_model"`
	IngestedAt     time.Time `json:"ingested_at" bson:"ingested_at"`
}

// Identity returns the guideline's identity.
func (g *Guideline) Identity() Identity {
	return Identity{Gene: g.Gene, Drug: g.Drug}
}

// Summary returns the list form of the guideline.
func (g *Guideline) Summary() GuidelineSummary {
	return GuidelineSummary{
		ID:         g.ID,
		Gene:       g.Gene,
		Drug:       g.Drug,
		Title:      g.Title,
		ChunkCount: g.ChunkCount,
		IngestedAt: g.IngestedAt,
	}
}

// Chunk is a retrievable passage cut from a guideline.
type Chunk struct {
	ID             string    `json:"id" bson:"_id"`
	GuidelineID    string    `json:"guideline_id" bson:"guideline_id"`
	Ordinal        int       `json:"ordinal" bson:"ordinal"`
	Text           string    `json:"text" bson:"text"`
	NormalizedText string    `json:"-" bson:"normalized_text"`
	Section        string    `json:"section,omitempty" bson:"section,omitempty"`
	Page           int       `json:"page" bson:"page"`
	TokenCount     int       `json:"token_count" bson:"token_count"`
	EmbeddingModel string    `json:"embedding_model" bson:"embedding_model"`
	Embedding      []float32 `json:"-" bson:"-"`
}

// RetrievedPassage is a chunk returned by a similarity search, with its
// score and provenance attached.
type RetrievedPassage struct {
	ChunkID     string  `json:"chunk_id"`
	GuidelineID string  `json:"guideline_id"`
	Gene        string  `json:"gene"`
	Drug        string  `json:"drug"`
	Ordinal     int     `json:"ordinal"`
	Section     string  `json:"section,omitempty"`
	Page        int     `json:"page"`
	Score       float32 `json:"score"`
	Text        string  `json:"text"`
	TokenCount  int     `json:"-"`
}

// Source is the citation form of a passage in a query answer.
type Source struct {
	Gene    string  `json:"gene"`
	Drug    string  `json:"drug"`
	Section string  `json:"section,omitempty"`
	Page    int     `json:"page"`
	Score   float32 `json:"score"`
	Excerpt string  `json:"excerpt"`
}

// QueryAnswer is the assembled answer to a dosing question.
type QueryAnswer struct {
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	ModelUsed  string   `json:"model_used"`
	Sources    []Source `json:"sources"`
}

// GuidelineSummary is the list form of a guideline.
type GuidelineSummary struct {
	ID         string    `json:"id"`
	Gene       string    `json:"gene"`
	Drug       string    `json:"drug"`
	Title      string    `json:"title"`
	ChunkCount int       `json:"chunk_count"`
	IngestedAt time.Time `json:"ingested_at"`
}

// CatalogPair is a known ingestable (gene, drug) pair.
type CatalogPair struct {
	Gene string `json:"gene"`
	Drug string `json:"drug"`
}

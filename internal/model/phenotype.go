package model

import "time"

// DiplotypeRecord is one row of the CPIC diplotype-to-phenotype table for a
// gene. The cpic component maps the upstream wire format into this shape.
type DiplotypeRecord struct {
	Gene           string   `json:"gene" bson:"gene"`
	Diplotype      string   `json:"diplotype" bson:"diplotype"`
	Phenotype      string   `json:"phenotype" bson:"phenotype"`
	ActivityScore  *float64 `json:"activity_score,omitempty" bson:"activity_score,omitempty"`
	EHRPriority    string   `json:"ehr_priority,omitempty" bson:"ehr_priority,omitempty"`
	Recommendation string   `json:"recommendation,omitempty" bson:"recommendation,omitempty"`
}

// DiplotypeCacheEntry stores a gene's diplotype table in the metadata store.
type DiplotypeCacheEntry struct {
	Gene      string            `bson:"_id"`
	Records   []DiplotypeRecord `bson:"records"`
	FetchedAt time.Time         `bson:"fetched_at"`
}

// PhenotypeResult is the resolved phenotype for a (gene, diplotype) query.
type PhenotypeResult struct {
	Gene           string   `json:"gene"`
	Diplotype      string   `json:"diplotype"`
	Phenotype      string   `json:"phenotype"`
	ActivityScore  *float64 `json:"activity_score,omitempty"`
	EHRPriority    string   `json:"ehr_priority,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
	FromCache      bool     `json:"from_cache"`
}

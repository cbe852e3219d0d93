// Package metrics holds in-process service counters.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics counts service activity. All fields are updated atomically and
// read through Snapshot.
type Metrics struct {
	ingestStarted   atomic.Int64
	ingestCompleted atomic.Int64
	ingestFailed    atomic.Int64
	queries         atomic.Int64
	cacheHits       atomic.Int64
	retrievals      atomic.Int64
	embedRetries    atomic.Int64
	generationCalls atomic.Int64
	generationNanos atomic.Int64
}

// New creates a zeroed Metrics.
func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IngestStarted()   { m.ingestStarted.Add(1) }
func (m *Metrics) IngestCompleted() { m.ingestCompleted.Add(1) }
func (m *Metrics) IngestFailed()    { m.ingestFailed.Add(1) }
func (m *Metrics) Query()           { m.queries.Add(1) }
func (m *Metrics) CacheHit()        { m.cacheHits.Add(1) }
func (m *Metrics) Retrieval()       { m.retrievals.Add(1) }
func (m *Metrics) EmbedRetry()      { m.embedRetries.Add(1) }

// GenerationCall records one generation call and its latency.
func (m *Metrics) GenerationCall(d time.Duration) {
	m.generationCalls.Add(1)
	m.generationNanos.Add(int64(d))
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	IngestStarted      int64   `json:"ingest_started"`
	IngestCompleted    int64   `json:"ingest_completed"`
	IngestFailed       int64   `json:"ingest_failed"`
	Queries            int64   `json:"queries"`
	CacheHits          int64   `json:"cache_hits"`
	Retrievals         int64   `json:"retrievals"`
	EmbedRetries       int64   `json:"embed_retries"`
	GenerationCalls    int64   `json:"generation_calls"`
	AvgGenerationMilli float64 `json:"avg_generation_ms"`
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		IngestStarted:   m.ingestStarted.Load(),
		IngestCompleted: m.ingestCompleted.Load(),
		IngestFailed:    m.ingestFailed.Load(),
		Queries:         m.queries.Load(),
		CacheHits:       m.cacheHits.Load(),
		Retrievals:      m.retrievals.Load(),
		EmbedRetries:    m.embedRetries.Load(),
		GenerationCalls: m.generationCalls.Load(),
	}
	if s.GenerationCalls > 0 {
		s.AvgGenerationMilli = float64(m.generationNanos.Load()) / float64(s.GenerationCalls) / 1e6
	}
	return s
}

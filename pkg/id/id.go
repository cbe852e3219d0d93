// Package id generates ULID identifiers.
//
// ULIDs are 26-character, lexicographically sortable identifiers whose
// leading bits encode the creation time. Guideline and chunk ids rely on
// this ordering: comparing two ids as strings compares their creation
// times, which is what recency tie-breaking in retrieval uses.
package id

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator produces monotonic ULIDs. Safe for concurrent use.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewGenerator creates a Generator backed by crypto/rand entropy.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// New returns a new ULID string.
func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

// NewAt returns a ULID string for the given time. Used by tests that need
// deterministic ordering.
func (g *Generator) NewAt(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), g.entropy).String()
}

var defaultGenerator = NewGenerator()

// New returns a new ULID string from the package-level generator.
func New() string {
	return defaultGenerator.New()
}

// Parse validates a ULID string.
func Parse(s string) (ulid.ULID, error) {
	return ulid.Parse(s)
}

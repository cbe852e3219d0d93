package id

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorOrdering(t *testing.T) {
	gen := NewGenerator()

	// Monotonic entropy keeps ids strictly increasing within a generator,
	// even inside the same millisecond.
	prev := gen.New()
	for i := 0; i < 100; i++ {
		next := gen.New()
		require.Less(t, prev, next)
		prev = next
	}
}

func TestGeneratorNewAt(t *testing.T) {
	gen := NewGenerator()
	now := time.Now()

	older := gen.NewAt(now.Add(-time.Hour))
	newer := gen.NewAt(now)
	assert.Less(t, older, newer)

	parsed, err := Parse(older)
	require.NoError(t, err)
	assert.Equal(t, uint64(now.Add(-time.Hour).UnixMilli()), parsed.Time())
}

func TestParse(t *testing.T) {
	id := New()
	assert.Len(t, id, 26)

	_, err := Parse(id)
	assert.NoError(t, err)

	_, err = Parse("not-a-ulid")
	assert.Error(t, err)
}

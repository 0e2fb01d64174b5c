package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrigramScorerIdentical(t *testing.T) {
	scorer := NewTrigramScorer()

	assert.Equal(t, 1.0, scorer.Similarity("margaret", "margaret"))
	assert.Equal(t, 1.0, scorer.Similarity("Margaret", "MARGARET"), "comparison should be case-insensitive")
}

func TestTrigramScorerEmpty(t *testing.T) {
	scorer := NewTrigramScorer()

	assert.Equal(t, 0.0, scorer.Similarity("", "margaret"))
	assert.Equal(t, 0.0, scorer.Similarity("margaret", ""))
	assert.Equal(t, 0.0, scorer.Similarity("", ""))
}

func TestTrigramScorerTypo(t *testing.T) {
	scorer := NewTrigramScorer()

	score := scorer.Similarity("margaret", "margret")
	assert.Greater(t, score, 0.3, "a single dropped letter should still clear the name threshold")
	assert.Less(t, score, 1.0)
}

func TestTrigramScorerUnrelated(t *testing.T) {
	scorer := NewTrigramScorer()

	score := scorer.Similarity("margaret", "xavier")
	assert.Less(t, score, 0.2)
}

func TestTrigramScorerWordBoundaries(t *testing.T) {
	scorer := NewTrigramScorer()

	// punctuation splits words the same way pg_trgm does
	assert.Equal(t, scorer.Similarity("o'brien", "o brien"), 1.0)

	// multi-word addresses still compare well against reordered noise
	score := scorer.Similarity("123 Main Street", "123 Main St")
	assert.Greater(t, score, 0.5)
}

func TestTrigramScorerSymmetric(t *testing.T) {
	scorer := NewTrigramScorer()

	a := scorer.Similarity("jonathan", "johnathan")
	b := scorer.Similarity("johnathan", "jonathan")
	assert.Equal(t, a, b)
}

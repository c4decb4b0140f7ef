package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarityIdentical(t *testing.T) {
	s := "Yoga Workshop im Park, Samstag 18 Uhr"
	assert.Equal(t, 1.0, Similarity(s, s))
}

func TestSimilarityCaseAndWhitespaceInsensitive(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Yoga  Workshop", "yoga workshop"))
}

func TestSimilarityDisjoint(t *testing.T) {
	assert.Equal(t, 0.0, Similarity("abcdef", "uvwxyz"))
}

func TestSimilarityEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Similarity("", ""))
	assert.Equal(t, 0.0, Similarity("some description", ""))
	assert.Equal(t, 0.0, Similarity("ab", "ab")) // too short for trigrams
}

func TestSimilaritySymmetric(t *testing.T) {
	a := "Konzert im Hinterhof mit freiem Eintritt"
	b := "Konzert im Hinterhof, Eintritt frei"
	assert.Equal(t, Similarity(a, b), Similarity(b, a))
	assert.Greater(t, Similarity(a, b), 0.4)
	assert.Less(t, Similarity(a, b), 1.0)
}

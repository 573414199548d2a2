package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLemma(t *testing.T) {
	lemma, err := ParseLemma("tree.n.en")
	require.NoError(t, err)
	assert.Equal(t, "tree", lemma.Word())
	assert.Equal(t, "n", lemma.POS())
	assert.Equal(t, "en", lemma.Lang())

	// Dots in the word part resolve from the right.
	lemma, err = ParseLemma("u.s.a.n.en")
	require.NoError(t, err)
	assert.Equal(t, "u.s.a", lemma.Word())
	assert.Equal(t, "n", lemma.POS())
	assert.Equal(t, "en", lemma.Lang())

	_, err = ParseLemma("tree.n")
	assert.Error(t, err)
	_, err = ParseLemma("tree..en")
	assert.Error(t, err)
}

func TestSenseIDRoundTrip(t *testing.T) {
	lemma := Lemma("dog.n.en")
	assert.Equal(t, "dog.n.en.01", lemma.SenseID(1))
	assert.Equal(t, "dog.n.en.12", lemma.SenseID(12))
	assert.Equal(t, lemma, LemmaOfSense(lemma.SenseID(3)))
}

func TestRecordIDs(t *testing.T) {
	assert.Equal(t, "t_07", TopicID(7))
	assert.Equal(t, "d_000042", DocID(42))
}

func TestErrorKinds(t *testing.T) {
	fatal := Fatalf("bad corpus %s", "dog.n.en")
	assert.True(t, IsFatal(fatal))
	assert.False(t, IsRetryable(fatal))
	assert.Contains(t, fatal.Error(), "bad corpus dog.n.en")

	retryable := Retryablef("sampler exit %d", 3)
	assert.True(t, IsRetryable(retryable))
	assert.False(t, IsFatal(retryable))

	// Kinds survive further wrapping.
	wrapped := errors.Join(errors.New("outer"), retryable)
	assert.True(t, IsRetryable(wrapped))
}

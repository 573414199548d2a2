package domain

import (
	"fmt"
	"strings"
)

// Lemma identifies a sense-disambiguation target as "word.pos.lang",
// e.g. "tree.n.en". The word part may itself contain dots, so parsing
// always works from the right.
type Lemma string

// ParseLemma validates the "word.pos.lang" shape.
func ParseLemma(s string) (Lemma, error) {
	parts := strings.Split(s, ".")
	if len(parts) < 3 {
		return "", fmt.Errorf("lemma %q: want word.pos.lang", s)
	}
	for _, p := range parts {
		if p == "" {
			return "", fmt.Errorf("lemma %q: empty segment", s)
		}
	}
	return Lemma(s), nil
}

func (l Lemma) String() string { return string(l) }

// Word returns the surface word, i.e. everything before the POS segment.
func (l Lemma) Word() string {
	parts := strings.Split(string(l), ".")
	if len(parts) < 3 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-2], ".")
}

// POS returns the part-of-speech code ("n", "v", "a", "r").
func (l Lemma) POS() string {
	parts := strings.Split(string(l), ".")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}

// Lang returns the language code, the final segment.
func (l Lemma) Lang() string {
	parts := strings.Split(string(l), ".")
	return parts[len(parts)-1]
}

// SenseID builds the canonical id of the n-th sense of this lemma
// (1-based), e.g. "tree.n.en.01".
func (l Lemma) SenseID(n int) string {
	return fmt.Sprintf("%s.%02d", l, n)
}

// LemmaOfSense strips the sense-number segment from a sense id,
// recovering the lemma ("tree.n.en.01" -> "tree.n.en").
func LemmaOfSense(senseID string) Lemma {
	i := strings.LastIndex(senseID, ".")
	if i < 0 {
		return Lemma(senseID)
	}
	return Lemma(senseID[:i])
}

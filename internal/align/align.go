// Package align maps topic-model output onto a sense inventory using
// gloss distributions, producing a distribution over senses.
package align

import (
	"github.com/awbennett/LexSemTm/internal/domain"
	"github.com/awbennett/LexSemTm/internal/prob"
)

// Mass below this threshold means no topic resembled any gloss; the
// alignment falls back to the first sense.
const minAlignmentMass = 1e-5

// Aligner caches gloss distributions per lemma and aligns topic models
// against them. Not safe for concurrent use; each worker owns one.
type Aligner struct {
	glossDists map[domain.Lemma]map[string]*prob.Distribution
}

func New() *Aligner {
	return &Aligner{glossDists: make(map[domain.Lemma]map[string]*prob.Distribution)}
}

// AddLemmaGlossDists registers the per-sense gloss distributions for
// lemma, replacing any previous entry.
func (a *Aligner) AddLemmaGlossDists(lemma domain.Lemma, dists map[string]*prob.Distribution) {
	a.glossDists[lemma] = dists
}

// HasLemma reports whether gloss distributions are cached for lemma.
func (a *Aligner) HasLemma(lemma domain.Lemma) bool {
	_, ok := a.glossDists[lemma]
	return ok
}

// Align scores every (sense, topic) pair by gloss-topic similarity
// weighted by topic prevalence and returns the normalized sense
// distribution. Gloss distributions for lemma must have been added
// first.
func (a *Aligner) Align(tm *domain.TopicModel, lemma domain.Lemma) (*prob.Distribution, error) {
	glossDists, ok := a.glossDists[lemma]
	if !ok {
		return nil, domain.Fatalf("no gloss distributions for %s", lemma)
	}

	topicWordDists := make(map[string]*prob.Distribution, len(tm.TopicWordCounts))
	for topic, wordCounts := range tm.TopicWordCounts {
		d := prob.FromMap(wordCounts)
		d.Normalize()
		topicWordDists[topic] = d
	}

	docTopicDists := make(map[string]*prob.Distribution, len(tm.DocTopicCounts))
	for doc, topicCounts := range tm.DocTopicCounts {
		d := prob.FromMap(topicCounts)
		d.Normalize()
		docTopicDists[doc] = d
	}

	topicDist := hardTopicDist(docTopicDists)
	return prevalenceScoreAlignment(topicDist, topicWordDists, glossDists), nil
}

// hardTopicDist assigns each document wholly to its modal topic (ties
// to the smallest topic id) and normalizes the resulting counts.
func hardTopicDist(docDists map[string]*prob.Distribution) *prob.Distribution {
	result := prob.New()
	for _, d := range docDists {
		if mode, ok := d.Mode(true); ok {
			result.Add(mode, 1)
		}
	}
	result.Normalize()
	return result
}

// prevalenceScoreAlignment accumulates (1 - JSD) * prevalence over all
// sense/topic pairs. When total mass is negligible the first sense
// takes all the weight; with no senses at all the result is empty.
func prevalenceScoreAlignment(topicDist *prob.Distribution, topicWordDists, glossDists map[string]*prob.Distribution) *prob.Distribution {
	senseDist := prob.New()
	for topic, topicWords := range topicWordDists {
		prevalence := topicDist.Get(topic)
		for sense, glossWords := range glossDists {
			jsd := prob.JSDivergence(glossWords, topicWords)
			senseDist.Add(sense, (1-jsd)*prevalence)
		}
	}

	if senseDist.Sum() < minAlignmentMass {
		keys := senseDist.Keys()
		if len(keys) == 0 {
			return prob.New()
		}
		senseDist.Set(keys[0], 1.0)
	}
	return senseDist.Normalized()
}

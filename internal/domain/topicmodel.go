package domain

import "fmt"

// TopicModel is the canonical record produced by one WSI run over one
// lemma (or one bootstrap replicate of it). The JSON field names match
// the published LexSemTm dataset, so persisted records stay readable by
// the dataset tooling.
type TopicModel struct {
	Lemma string `json:"lemma"`

	// TopicWordCounts maps topic id ("t_00") to word -> count.
	TopicWordCounts map[string]map[string]float64 `json:"topic_word_counts"`

	// DocTopicCounts maps document id ("d_000000") to topic id -> count.
	// Document ids refer to the corpus the model was trained on.
	DocTopicCounts map[string]map[string]float64 `json:"doc_topic_counts"`

	// Perplexity holds one value per sampler iteration.
	Perplexity []float64 `json:"perplexity_array"`

	// Time is the sampler wall-clock time in seconds. It is part of the
	// record, not a diagnostic.
	Time float64 `json:"time"`

	// SenseDist is the aligned distribution over sense ids, present only
	// when alignment ran.
	SenseDist map[string]float64 `json:"sense_dist,omitempty"`
}

// TopicID formats a raw sampler topic index as a record topic id.
func TopicID(t int) string { return fmt.Sprintf("t_%02d", t) }

// DocID formats a corpus document index as a record document id.
func DocID(d int) string { return fmt.Sprintf("d_%06d", d) }

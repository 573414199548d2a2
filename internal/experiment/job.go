// Package experiment orchestrates sense-distribution learning jobs: a
// pool of workers that each build a corpus, run a sampler with retry,
// align the result against glosses and persist the record.
package experiment

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/awbennett/LexSemTm/internal/domain"
)

// Job is one unit of work: learn a sense distribution for a lemma,
// optionally as one bootstrap replicate. Replicate < 0 means a plain
// single run over all usages.
type Job struct {
	ID        uuid.UUID
	Lemma     domain.Lemma
	Replicate int
}

// NewJob creates a plain job for lemma.
func NewJob(lemma domain.Lemma) Job {
	return Job{ID: uuid.New(), Lemma: lemma, Replicate: -1}
}

// NewReplicateJob creates a bootstrap-replicate job. Replicates are
// numbered globally across the experiment, not per lemma.
func NewReplicateJob(lemma domain.Lemma, replicate int) Job {
	return Job{ID: uuid.New(), Lemma: lemma, Replicate: replicate}
}

// ModelName returns the persisted model name for this job.
func (j Job) ModelName() string {
	if j.Replicate < 0 {
		return j.Lemma.String()
	}
	return fmt.Sprintf("%s_%06d", j.Lemma, j.Replicate)
}

// IsBootstrap reports whether this job subsamples its usages.
func (j Job) IsBootstrap() bool { return j.Replicate >= 0 }

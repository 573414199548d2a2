package wsi

import (
	"bufio"
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/awbennett/LexSemTm/internal/domain"
)

const (
	stdoutSuffix = ".stdout"
	stderrSuffix = ".stderr"
)

// Corpus is the view of a scanned corpus the sampler adapters need.
type Corpus interface {
	// Docs returns each document's vocabulary-id bag, indexed by doc id.
	Docs() []map[int]int
	// IDToWord resolves a vocabulary id to its token string.
	IDToWord(id int) (string, bool)
	// DocIDs returns the document ids belonging to a lemma.
	DocIDs(lemma domain.Lemma) []int
}

// Runner runs one sampler invocation over a corpus and parses its
// output. usageCounts limits how many usages of each lemma are fed to
// the sampler; nil means all documents.
type Runner interface {
	RunWSI(ctx context.Context, opts Options, usageCounts map[domain.Lemma]int) (*domain.TopicModel, error)
}

// Operator fronts a Runner with option defaulting and path checks.
type Operator struct {
	runner   Runner
	defaults Options
}

// NewOperator wraps runner with the given per-experiment defaults.
func NewOperator(runner Runner, defaults Options) *Operator {
	return &Operator{runner: runner, defaults: defaults}
}

// RunWSI merges the operator defaults under opts, validates the
// required paths, creates the input and output directories and runs the
// sampler. A pre-existing file at the input path is fatal: it means two
// jobs collided on the same scratch name.
func (o *Operator) RunWSI(ctx context.Context, opts Options, usageCounts map[domain.Lemma]int) (*domain.TopicModel, error) {
	opts = opts.withDefaults(o.defaults)

	if opts.InputPath == "" {
		return nil, domain.Fatalf("no sampler input path set")
	}
	if opts.OutputDir == "" {
		return nil, domain.Fatalf("no sampler output directory set")
	}
	if opts.OutputPrefix == "" {
		return nil, domain.Fatalf("no sampler output prefix set")
	}

	if _, err := os.Stat(opts.InputPath); err == nil {
		return nil, domain.Fatalf("existing file at input path %s", opts.InputPath)
	}
	if dir := filepath.Dir(opts.InputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, domain.Fatalf("create input directory %s: %v", dir, err)
		}
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, domain.Fatalf("create output directory %s: %v", opts.OutputDir, err)
	}

	return o.runner.RunWSI(ctx, opts, usageCounts)
}

// subsampleUsages picks, for each lemma, a random subset of its
// documents without replacement, capped at the lemma's usage count.
func subsampleUsages(c Corpus, usageCounts map[domain.Lemma]int) map[int]struct{} {
	sampled := make(map[int]struct{})
	for lemma, n := range usageCounts {
		docIDs := c.DocIDs(lemma)
		if n > len(docIDs) {
			n = len(docIDs)
		}
		rand.Shuffle(len(docIDs), func(i, j int) {
			docIDs[i], docIDs[j] = docIDs[j], docIDs[i]
		})
		for _, id := range docIDs[:n] {
			sampled[id] = struct{}{}
		}
	}
	return sampled
}

// writeBagInput writes the corpus documents to path in the samplers'
// bag format, one document per line: the unique-word count followed by
// "id:count" pairs. Documents outside subset (when non-nil) and empty
// documents are skipped; the returned lists record which doc ids were
// skipped as empty and which were written, in order. Output doc indexes
// map back to corpus ids through the kept list.
func writeBagInput(path string, docs []map[int]int, subset map[int]struct{}) (empty, kept []int, err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, domain.Fatalf("create sampler input %s: %v", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for doc, bag := range docs {
		if subset != nil {
			if _, ok := subset[doc]; !ok {
				continue
			}
		}
		if len(bag) == 0 {
			empty = append(empty, doc)
			continue
		}
		ids := make([]int, 0, len(bag))
		for id := range bag {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		fmt.Fprintf(w, "%d", len(ids))
		for _, id := range ids {
			fmt.Fprintf(w, " %d:%d", id, bag[id])
		}
		fmt.Fprintln(w)
		kept = append(kept, doc)
	}
	if err := w.Flush(); err != nil {
		return nil, nil, fmt.Errorf("write sampler input %s: %w", path, err)
	}
	return empty, kept, nil
}

// runSampler executes argv with stdout and stderr captured to files
// next to the sampler output, returning the wall-clock seconds the
// subprocess took. Pre-existing capture files are fatal for the same
// reason a pre-existing input file is.
func runSampler(ctx context.Context, argv []string, stdoutPath, stderrPath string) (float64, error) {
	if _, err := os.Stat(stdoutPath); err == nil {
		return 0, domain.Fatalf("existing file at stdout path %s", stdoutPath)
	}
	if _, err := os.Stat(stderrPath); err == nil {
		return 0, domain.Fatalf("existing file at stderr path %s", stderrPath)
	}

	outFile, err := os.Create(stdoutPath)
	if err != nil {
		return 0, fmt.Errorf("create sampler stdout capture: %w", err)
	}
	defer outFile.Close()
	errFile, err := os.Create(stderrPath)
	if err != nil {
		return 0, fmt.Errorf("create sampler stderr capture: %w", err)
	}
	defer errFile.Close()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = outFile
	cmd.Stderr = errFile

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start).Seconds()

	if ctx.Err() != nil {
		return elapsed, ctx.Err()
	}
	if runErr != nil {
		// A non-zero sampler exit is worth retrying; the output checks
		// downstream decide whether anything usable was produced.
		return elapsed, domain.Retryablef("sampler %s: %v", argv[0], runErr)
	}
	return elapsed, nil
}

// sortedFlagNames returns the flag names in deterministic order.
func sortedFlagNames(flags map[string]string) []string {
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

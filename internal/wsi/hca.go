package wsi

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/awbennett/LexSemTm/internal/domain"
)

const (
	hcaTopicWordSuffix = ".nwt"
	hcaDocTopicSuffix  = ".ndt"

	// Count files open with three header lines before the triples.
	hcaHeaderLines = 3

	// HCA reports perplexity once per reporting cycle; each reported
	// value covers this many iterations.
	hcaPerplexityCycle = 5

	hcaPerplexityPrefix = "log_2(perp)="
)

// HCARunner drives the hca sampler. Its input stem is the input path
// minus the final extension; output files share the output stem.
type HCARunner struct {
	corpus Corpus
}

func NewHCARunner(corpus Corpus) *HCARunner {
	return &HCARunner{corpus: corpus}
}

// RunWSI writes the bag input, invokes hca and parses the .nwt and
// .ndt count files plus the perplexity trace from stderr.
func (r *HCARunner) RunWSI(ctx context.Context, opts Options, usageCounts map[domain.Lemma]int) (*domain.TopicModel, error) {
	opts = opts.withDefaults(HCADefaults())

	var subset map[int]struct{}
	if len(usageCounts) > 0 {
		subset = subsampleUsages(r.corpus, usageCounts)
	}
	_, kept, err := writeBagInput(opts.InputPath, r.corpus.Docs(), subset)
	if err != nil {
		return nil, err
	}

	outputStem := filepath.Join(opts.OutputDir, opts.OutputPrefix)
	inputStem := strings.TrimSuffix(opts.InputPath, filepath.Ext(opts.InputPath))

	argv := []string{opts.ExePath, "-e"}
	for _, name := range sortedFlagNames(opts.Flags) {
		argv = append(argv, "-"+name)
		if val := opts.Flags[name]; val != "" {
			argv = append(argv, val)
		}
	}
	argv = append(argv, inputStem, outputStem)

	stdoutPath := outputStem + stdoutSuffix
	stderrPath := outputStem + stderrSuffix
	elapsed, err := runSampler(ctx, argv, stdoutPath, stderrPath)
	if err != nil {
		return nil, err
	}

	topicWords, err := r.parseTopicWordCounts(outputStem + hcaTopicWordSuffix)
	if err != nil {
		return nil, err
	}
	docTopics, err := parseHCADocTopicCounts(outputStem+hcaDocTopicSuffix, kept)
	if err != nil {
		return nil, err
	}
	perplexities, err := parseHCAPerplexities(stderrPath)
	if err != nil {
		return nil, err
	}

	return &domain.TopicModel{
		TopicWordCounts: topicWords,
		DocTopicCounts:  docTopics,
		Perplexity:      perplexities,
		Time:            elapsed,
	}, nil
}

// parseTopicWordCounts reads the .nwt file: after the header, one
// "wordID topic count" triple per line. Word ids outside the current
// vocabulary are skipped; a re-filtered vocabulary can legitimately
// drop ids the sampler saw.
func (r *HCARunner) parseTopicWordCounts(path string) (map[string]map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.Retryablef("hca produced no topic-word file")
		}
		return nil, err
	}
	defer f.Close()

	counts := make(map[string]map[string]float64)
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum <= hcaHeaderLines {
			continue
		}
		wordID, topic, count, err := parseCountTriple(scanner.Text())
		if err != nil {
			return nil, domain.Fatalf("hca topic-word file %s line %d: %v", path, lineNum, err)
		}
		word, ok := r.corpus.IDToWord(wordID)
		if !ok {
			continue
		}
		topicID := domain.TopicID(topic)
		if counts[topicID] == nil {
			counts[topicID] = make(map[string]float64)
		}
		counts[topicID][word] = float64(count)
	}
	return counts, scanner.Err()
}

// parseHCADocTopicCounts reads the .ndt file. Document indexes in the
// file refer to the sampler input line order and map back to corpus doc
// ids through the kept list.
func parseHCADocTopicCounts(path string, kept []int) (map[string]map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.Retryablef("hca produced no doc-topic file")
		}
		return nil, err
	}
	defer f.Close()

	counts := make(map[string]map[string]float64)
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum <= hcaHeaderLines {
			continue
		}
		d, topic, count, err := parseCountTriple(scanner.Text())
		if err != nil {
			return nil, domain.Fatalf("hca doc-topic file %s line %d: %v", path, lineNum, err)
		}
		if d < 0 || d >= len(kept) {
			return nil, domain.Fatalf("hca doc-topic file %s: document index %d out of range", path, d)
		}
		docID := domain.DocID(kept[d])
		if counts[docID] == nil {
			counts[docID] = make(map[string]float64)
		}
		counts[docID][domain.TopicID(topic)] = float64(count)
	}
	return counts, scanner.Err()
}

// parseHCAPerplexities extracts the log-perplexity trace from the
// sampler's stderr. Each reported value stands for a full reporting
// cycle of iterations and is repeated accordingly.
func parseHCAPerplexities(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var perplexities []float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, hcaPerplexityPrefix) {
			continue
		}
		valStr := strings.TrimPrefix(line, hcaPerplexityPrefix)
		if i := strings.IndexByte(valStr, ','); i >= 0 {
			valStr = valStr[:i]
		}
		val, err := strconv.ParseFloat(valStr, 64)
		if err != nil {
			return nil, domain.Fatalf("hca perplexity trace %s: bad value %q", path, valStr)
		}
		for i := 0; i < hcaPerplexityCycle; i++ {
			perplexities = append(perplexities, val)
		}
	}
	return perplexities, scanner.Err()
}

func parseCountTriple(line string) (a, b, c int, err error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return 0, 0, 0, domain.Fatalf("expected 3 fields, got %d", len(fields))
	}
	if a, err = strconv.Atoi(fields[0]); err != nil {
		return
	}
	if b, err = strconv.Atoi(fields[1]); err != nil {
		return
	}
	c, err = strconv.Atoi(fields[2])
	return
}

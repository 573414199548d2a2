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
	hdpTopicsFile      = "mode-topics.dat"
	hdpAssignmentsFile = "mode-word-assignments.dat"

	hdpLikelihoodPrefix = "iter = "
	hdpNumWordsPrefix   = "number of total words"
)

// HDPRunner drives the hdp sampler, which takes its input path and
// output directory as long flags and writes fixed-name output files.
type HDPRunner struct {
	corpus Corpus
}

func NewHDPRunner(corpus Corpus) *HDPRunner {
	return &HDPRunner{corpus: corpus}
}

// RunWSI writes the bag input, invokes hdp and parses the mode files
// plus the likelihood trace from stdout.
func (r *HDPRunner) RunWSI(ctx context.Context, opts Options, usageCounts map[domain.Lemma]int) (*domain.TopicModel, error) {
	opts = opts.withDefaults(HDPDefaults())

	var subset map[int]struct{}
	if len(usageCounts) > 0 {
		subset = subsampleUsages(r.corpus, usageCounts)
	}
	_, kept, err := writeBagInput(opts.InputPath, r.corpus.Docs(), subset)
	if err != nil {
		return nil, err
	}

	argv := []string{opts.ExePath}
	for _, name := range sortedFlagNames(opts.Flags) {
		argv = append(argv, "--"+name, opts.Flags[name])
	}
	argv = append(argv, "--data", opts.InputPath, "--directory", opts.OutputDir)

	outputStem := filepath.Join(opts.OutputDir, opts.OutputPrefix)
	stdoutPath := outputStem + stdoutSuffix
	stderrPath := outputStem + stderrSuffix
	elapsed, err := runSampler(ctx, argv, stdoutPath, stderrPath)
	if err != nil {
		return nil, err
	}

	topicWords, err := r.parseTopicWordCounts(filepath.Join(opts.OutputDir, hdpTopicsFile))
	if err != nil {
		return nil, err
	}
	docTopics, err := parseHDPDocTopicCounts(filepath.Join(opts.OutputDir, hdpAssignmentsFile), kept)
	if err != nil {
		return nil, err
	}
	perplexities, err := parseHDPPerplexities(stdoutPath)
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

// parseTopicWordCounts reads mode-topics.dat: one topic per row, a
// dense count per vocabulary id, zeros omitted from the result. Ids
// outside the current vocabulary are skipped.
func (r *HDPRunner) parseTopicWordCounts(path string) (map[string]map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.Retryablef("hdp produced no topics file")
		}
		return nil, err
	}
	defer f.Close()

	counts := make(map[string]map[string]float64)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	topic := 0
	for scanner.Scan() {
		topicID := domain.TopicID(topic)
		for wordID, field := range strings.Fields(scanner.Text()) {
			count, err := strconv.Atoi(field)
			if err != nil {
				return nil, domain.Fatalf("hdp topics file %s topic %d: bad count %q", path, topic, field)
			}
			if count <= 0 {
				continue
			}
			word, ok := r.corpus.IDToWord(wordID)
			if !ok {
				continue
			}
			if counts[topicID] == nil {
				counts[topicID] = make(map[string]float64)
			}
			counts[topicID][word] = float64(count)
		}
		topic++
	}
	return counts, scanner.Err()
}

// parseHDPDocTopicCounts reads mode-word-assignments.dat: a header line
// then one "doc word topic table" row per word occurrence. Counts are
// accumulated per (doc, topic); doc indexes map back to corpus ids
// through the kept list.
func parseHDPDocTopicCounts(path string, kept []int) (map[string]map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.Retryablef("hdp produced no word-assignments file")
		}
		return nil, err
	}
	defer f.Close()

	counts := make(map[string]map[string]float64)
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum == 1 {
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			return nil, domain.Fatalf("hdp assignments file %s line %d: expected at least 3 fields", path, lineNum)
		}
		d, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, domain.Fatalf("hdp assignments file %s line %d: bad doc index %q", path, lineNum, fields[0])
		}
		topic, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, domain.Fatalf("hdp assignments file %s line %d: bad topic %q", path, lineNum, fields[2])
		}
		if d < 0 || d >= len(kept) {
			return nil, domain.Fatalf("hdp assignments file %s: document index %d out of range", path, d)
		}
		docID := domain.DocID(kept[d])
		if counts[docID] == nil {
			counts[docID] = make(map[string]float64)
		}
		counts[docID][domain.TopicID(topic)]++
	}
	return counts, scanner.Err()
}

// parseHDPPerplexities extracts the likelihood trace from the sampler's
// stdout and converts each value to per-word perplexity using the total
// word count the sampler reports up front.
func parseHDPPerplexities(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var perplexities []float64
	numWords := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, hdpNumWordsPrefix):
			fields := strings.Fields(line)
			n, err := strconv.Atoi(fields[len(fields)-1])
			if err != nil {
				return nil, domain.Fatalf("hdp stdout %s: bad word count %q", path, fields[len(fields)-1])
			}
			numWords = n
		case strings.HasPrefix(line, hdpLikelihoodPrefix) && strings.Contains(line, "likelihood = "):
			fields := strings.Fields(strings.TrimSpace(line))
			likelihood, err := strconv.ParseFloat(fields[len(fields)-1], 64)
			if err != nil {
				return nil, domain.Fatalf("hdp stdout %s: bad likelihood %q", path, fields[len(fields)-1])
			}
			if numWords == 0 {
				return nil, domain.Fatalf("hdp stdout %s: likelihood before word count", path)
			}
			perplexities = append(perplexities, -likelihood/float64(numWords))
		}
	}
	return perplexities, scanner.Err()
}

// Package lexsemtm reads the published LexSemTm dataset layout: per
// language and version, a lemmas index tab, a shared vocabulary tab and
// a tar archive of gzipped topic-model records and sense-distribution
// tabs.
package lexsemtm

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/awbennett/LexSemTm/internal/domain"
)

type datasetKey struct {
	lang    string
	version string
}

type lemmaIndex struct {
	names []string
	ids   map[string]int
	freqs map[string]int
}

// Reader provides lazy, cached access to one dataset directory. Not
// safe for concurrent use.
type Reader struct {
	dir        string
	lemmas     map[datasetKey]*lemmaIndex
	senseDists map[datasetKey]map[string]map[string]float64
	vocabs     map[string]map[int]string
}

func NewReader(dir string) *Reader {
	return &Reader{
		dir:        dir,
		lemmas:     make(map[datasetKey]*lemmaIndex),
		senseDists: make(map[datasetKey]map[string]map[string]float64),
		vocabs:     make(map[string]map[int]string),
	}
}

// LemmaNames returns every lemma in the given language and version, in
// index-file order.
func (r *Reader) LemmaNames(lang, version string) ([]string, error) {
	idx, err := r.lemmaIndexFor(lang, version)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), idx.names...), nil
}

// LemmaFreq returns the number of usages the lemma's topic model was
// trained on.
func (r *Reader) LemmaFreq(lemma, lang, version string) (int, error) {
	idx, err := r.lemmaIndexFor(lang, version)
	if err != nil {
		return 0, err
	}
	freq, ok := idx.freqs[lemma]
	if !ok {
		return 0, fmt.Errorf("lemma %s not in dataset %s.%s", lemma, lang, version)
	}
	return freq, nil
}

// SenseDist returns the published sense distribution for lemma.
func (r *Reader) SenseDist(lemma, lang, version string) (map[string]float64, error) {
	key := datasetKey{lang, version}
	dists, ok := r.senseDists[key]
	if !ok {
		loaded, err := r.loadSenseDists(key)
		if err != nil {
			return nil, err
		}
		r.senseDists[key] = loaded
		dists = loaded
	}
	dist, ok := dists[lemma]
	if !ok {
		return nil, fmt.Errorf("no sense distribution for %s in dataset %s.%s", lemma, lang, version)
	}
	return dist, nil
}

// TopicModel extracts and decodes the lemma's topic model from the data
// archive, remapping word ids to token strings through the vocabulary.
func (r *Reader) TopicModel(lemma, lang, version string) (*domain.TopicModel, error) {
	idx, err := r.lemmaIndexFor(lang, version)
	if err != nil {
		return nil, err
	}
	lemmaID, ok := idx.ids[lemma]
	if !ok {
		return nil, fmt.Errorf("lemma %s not in dataset %s.%s", lemma, lang, version)
	}
	vocab, err := r.vocabFor(lang)
	if err != nil {
		return nil, err
	}

	member := fmt.Sprintf("%s.%s.%08d.tm.json.gz", lang, version, lemmaID)
	var archived struct {
		DocTopicCounts  []map[string]float64 `json:"doc_topic_counts"`
		TopicWordCounts map[string]struct {
			WordIDs []int     `json:"word_ids"`
			Counts  []float64 `json:"counts"`
		} `json:"topic_word_counts"`
	}
	err = r.readArchive(lang, version, func(name string, body io.Reader) (bool, error) {
		if name != member {
			return false, nil
		}
		zr, err := gzip.NewReader(body)
		if err != nil {
			return false, fmt.Errorf("member %s: %w", name, err)
		}
		defer zr.Close()
		if err := json.NewDecoder(zr).Decode(&archived); err != nil {
			return false, fmt.Errorf("decode member %s: %w", name, err)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if archived.TopicWordCounts == nil {
		return nil, fmt.Errorf("no topic model for %s in dataset %s.%s", lemma, lang, version)
	}

	tm := &domain.TopicModel{
		Lemma:           lemma,
		TopicWordCounts: make(map[string]map[string]float64, len(archived.TopicWordCounts)),
		DocTopicCounts:  make(map[string]map[string]float64, len(archived.DocTopicCounts)),
	}
	for d, topicCounts := range archived.DocTopicCounts {
		tm.DocTopicCounts[domain.DocID(d)] = topicCounts
	}
	for topic, words := range archived.TopicWordCounts {
		if len(words.WordIDs) != len(words.Counts) {
			return nil, fmt.Errorf("member %s topic %s: %d word ids but %d counts", member, topic, len(words.WordIDs), len(words.Counts))
		}
		counts := make(map[string]float64, len(words.WordIDs))
		for i, id := range words.WordIDs {
			token, ok := vocab[id]
			if !ok {
				return nil, fmt.Errorf("member %s topic %s: token id %d not in vocabulary", member, topic, id)
			}
			counts[token] = words.Counts[i]
		}
		tm.TopicWordCounts[topic] = counts
	}
	return tm, nil
}

func (r *Reader) lemmaIndexFor(lang, version string) (*lemmaIndex, error) {
	key := datasetKey{lang, version}
	if idx, ok := r.lemmas[key]; ok {
		return idx, nil
	}
	path := filepath.Join(r.dir, fmt.Sprintf("%s.%s.lemmas.tab", lang, version))
	rows, err := readTab(path, []string{"lemma", "lemma-id", "num-usages"})
	if err != nil {
		return nil, err
	}
	idx := &lemmaIndex{ids: make(map[string]int), freqs: make(map[string]int)}
	for _, row := range rows {
		lemma := row[0]
		id, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, fmt.Errorf("lemmas tab %s: bad lemma-id %q", path, row[1])
		}
		freq, err := strconv.Atoi(row[2])
		if err != nil {
			return nil, fmt.Errorf("lemmas tab %s: bad num-usages %q", path, row[2])
		}
		idx.names = append(idx.names, lemma)
		idx.ids[lemma] = id
		idx.freqs[lemma] = freq
	}
	r.lemmas[key] = idx
	return idx, nil
}

func (r *Reader) vocabFor(lang string) (map[int]string, error) {
	if vocab, ok := r.vocabs[lang]; ok {
		return vocab, nil
	}
	path := filepath.Join(r.dir, lang+".vocab.tab")
	rows, err := readTab(path, []string{"token-id", "token"})
	if err != nil {
		return nil, err
	}
	vocab := make(map[int]string, len(rows))
	for _, row := range rows {
		id, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("vocab tab %s: bad token-id %q", path, row[0])
		}
		vocab[id] = row[1]
	}
	r.vocabs[lang] = vocab
	return vocab, nil
}

// loadSenseDists streams every sdist member of the data archive.
func (r *Reader) loadSenseDists(key datasetKey) (map[string]map[string]float64, error) {
	dists := make(map[string]map[string]float64)
	err := r.readArchive(key.lang, key.version, func(name string, body io.Reader) (bool, error) {
		if !strings.HasSuffix(name, ".sdist.tab") {
			return false, nil
		}
		scanner := bufio.NewScanner(body)
		for scanner.Scan() {
			fields := strings.Fields(scanner.Text())
			if len(fields) < 2 || fields[0] == "sense-name" {
				continue
			}
			p, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return false, fmt.Errorf("member %s: bad probability %q", name, fields[1])
			}
			lemma := domain.LemmaOfSense(fields[0]).String()
			if dists[lemma] == nil {
				dists[lemma] = make(map[string]float64)
			}
			dists[lemma][fields[0]] = p
		}
		return false, scanner.Err()
	})
	if err != nil {
		return nil, err
	}
	return dists, nil
}

// readArchive walks the data tar, calling visit for each member until
// it reports done.
func (r *Reader) readArchive(lang, version string, visit func(name string, body io.Reader) (bool, error)) error {
	path := filepath.Join(r.dir, fmt.Sprintf("%s.%s.data.tar", lang, version))
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open data archive: %w", err)
	}
	defer f.Close()

	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read data archive %s: %w", path, err)
		}
		done, err := visit(hdr.Name, tr)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// readTab parses a headered tab-separated file. The dataset tabs are
// written without quoting, so fields are split on raw tabs. Returns the
// wanted columns for every data row, in the requested order.
func readTab(path string, columns []string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index tab: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return nil, fmt.Errorf("index tab %s: missing header", path)
	}
	header := strings.Split(scanner.Text(), "\t")
	colIdx := make([]int, len(columns))
	for i, want := range columns {
		colIdx[i] = -1
		for j, col := range header {
			if col == want {
				colIdx[i] = j
				break
			}
		}
		if colIdx[i] < 0 {
			return nil, fmt.Errorf("index tab %s: missing column %q", path, want)
		}
	}

	var rows [][]string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		row := make([]string, len(columns))
		for i, j := range colIdx {
			if j >= len(fields) {
				return nil, fmt.Errorf("index tab %s: short row %q", path, line)
			}
			row[i] = fields[j]
		}
		rows = append(rows, row)
	}
	return rows, scanner.Err()
}

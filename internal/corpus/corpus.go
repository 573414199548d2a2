// Package corpus builds bag-of-words corpora from lemma usage files.
// Each usage line becomes one document with two views: a raw-token bag
// used for vocabulary construction and a vocabulary-id bag fed to the
// external topic model.
package corpus

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/awbennett/LexSemTm/internal/domain"
)

const (
	// minWordLen is the minimum surface length for a token to be kept.
	minWordLen = 3

	// vocabFreqThreshold: a token enters the vocabulary only when its
	// global corpus frequency is strictly greater than this.
	vocabFreqThreshold = 10

	// contextWindowSize is the number of positional context tokens
	// emitted on each side of the target occurrence.
	contextWindowSize = 3
)

// phraseMarker is the literal token that marks the following content
// token as part of a tagged phrase in the usage files.
const phraseMarker = "#"

// Corpus holds scanned usages for one or more lemmas. It is populated
// by ScanLemmaUsages and owned by a single goroutine; no internal
// locking.
type Corpus struct {
	usagesDir string
	stopwords map[string]struct{}
	allLemmas []domain.Lemma

	wordCounts map[string]int

	// Raw-token bags, one per document, indexed by document id.
	docBows   []map[string]int
	docLemmas []domain.Lemma
	lemmaDocs map[domain.Lemma][]int
	numDocs   int

	// lastUsage tracks the usage number whose document is currently
	// open, per lemma. Usages whose every token is filtered never open
	// a document.
	lastUsage map[domain.Lemma]int

	// Vocabulary-id view, rebuilt lazily from the raw bags.
	vocabBows     []map[int]int
	vocabList     []string
	vocabIDs      map[string]int
	vocabUpToDate bool
	minVocabFreq  int
}

// New creates an empty corpus over the given usages directory. lemmas
// enumerates all lemmas available in the directory, not necessarily all
// scanned into this instance.
func New(lemmas []domain.Lemma, usagesDir string, stopwords map[string]struct{}) *Corpus {
	stops := make(map[string]struct{}, len(stopwords))
	for w := range stopwords {
		stops[w] = struct{}{}
	}
	return &Corpus{
		usagesDir:    usagesDir,
		stopwords:    stops,
		allLemmas:    append([]domain.Lemma(nil), lemmas...),
		wordCounts:   make(map[string]int),
		lemmaDocs:    make(map[domain.Lemma][]int),
		lastUsage:    make(map[domain.Lemma]int),
		vocabIDs:     make(map[string]int),
		minVocabFreq: vocabFreqThreshold + 1,
	}
}

// ScanLemmaUsages parses the usage file for lemma and adds its
// documents to the corpus. Each line holds the 0-based token index of
// the target occurrence followed by the token sequence.
func (c *Corpus) ScanLemmaUsages(lemma domain.Lemma) error {
	path := filepath.Join(c.usagesDir, lemma.String()+".txt")
	f, err := os.Open(path)
	if err != nil {
		return domain.Fatalf("open usages for %s: %v", lemma, err)
	}
	defer f.Close()

	targetWord := lemma.Word()
	delete(c.lastUsage, lemma)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	usageNum := 0
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) < 2 {
			usageNum++
			continue
		}
		targetLoc, err := strconv.Atoi(fields[0])
		if err != nil {
			return domain.Fatalf("usages for %s: bad target index %q", lemma, fields[0])
		}
		c.scanUsageLine(lemma, usageNum, targetWord, targetLoc, fields[1:])
		usageNum++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan usages for %s: %w", lemma, err)
	}
	return nil
}

// scanUsageLine filters one usage's tokens and emits both the surface
// tokens and the positional context pseudo-tokens.
func (c *Corpus) scanUsageLine(lemma domain.Lemma, usageNum int, targetWord string, targetLoc int, tokens []string) {
	kept := make([]string, 0, len(tokens))
	targetIdx := -1
	for i, t := range tokens {
		if i == targetLoc {
			// The target's position in the filtered line; if the target
			// token itself is filtered out this anchors on the next
			// surviving token.
			targetIdx = len(kept)
		}
		if len(t) < minWordLen {
			continue
		}
		if _, stop := c.stopwords[t]; stop {
			continue
		}
		// Merge a marked phrase: a marker token immediately before a
		// content token combines into one, unless the content token is
		// the target word itself.
		if i > 0 && tokens[i-1] == phraseMarker && t != targetWord {
			t = phraseMarker + t
		}
		kept = append(kept, t)
		c.addWord(lemma, usageNum, t)
	}

	if targetIdx < 0 {
		// Target index beyond the token list; no anchor for context.
		return
	}
	for off := 1; off <= contextWindowSize; off++ {
		if j := targetIdx - off; j >= 0 && j < len(kept) {
			c.addContextWord(lemma, usageNum, kept[j], -off)
		}
		if j := targetIdx + off; j < len(kept) {
			c.addContextWord(lemma, usageNum, kept[j], off)
		}
	}
}

// addContextWord emits a positional pseudo-token "word_#+k"/"word_#-k".
// Tokens already carrying two '#' markers are never re-tagged.
func (c *Corpus) addContextWord(lemma domain.Lemma, usageNum int, token string, offset int) {
	if strings.Count(token, "#") == 2 {
		return
	}
	c.addWord(lemma, usageNum, fmt.Sprintf("%s_#%+d", token, offset))
}

// addWord records one token occurrence for the given usage of lemma,
// creating the document on first contribution. Usages whose every token
// is filtered out never become documents.
func (c *Corpus) addWord(lemma domain.Lemma, usageNum int, word string) {
	c.vocabUpToDate = false

	docs := c.lemmaDocs[lemma]
	var bow map[string]int
	if last, open := c.lastUsage[lemma]; open && last == usageNum {
		bow = c.docBows[docs[len(docs)-1]]
	} else {
		docID := c.numDocs
		c.lemmaDocs[lemma] = append(docs, docID)
		c.docLemmas = append(c.docLemmas, lemma)
		c.numDocs++
		bow = make(map[string]int)
		c.docBows = append(c.docBows, bow)
		c.lastUsage[lemma] = usageNum
	}

	bow[word]++
	c.wordCounts[word]++
}

// rebuildVocab enumerates the vocabulary from global token counts and
// rebuilds the vocabulary-id bags. Ids are dense, starting at 0, in
// encounter order over the count table.
func (c *Corpus) rebuildVocab() {
	c.vocabList = c.vocabList[:0]
	c.vocabIDs = make(map[string]int)
	for word, freq := range c.wordCounts {
		if freq < c.minVocabFreq {
			continue
		}
		c.vocabIDs[word] = len(c.vocabList)
		c.vocabList = append(c.vocabList, word)
	}

	c.vocabBows = make([]map[int]int, c.numDocs)
	for doc, bow := range c.docBows {
		vb := make(map[int]int, len(bow))
		for word, count := range bow {
			if id, ok := c.vocabIDs[word]; ok {
				vb[id] = count
			}
		}
		c.vocabBows[doc] = vb
	}
	c.vocabUpToDate = true
}

// Docs returns every document's vocabulary-id bag in document-id order,
// rebuilding the vocabulary first when it is stale. The slice index is
// the document id. A stale vocabulary is never iterated.
func (c *Corpus) Docs() []map[int]int {
	if !c.vocabUpToDate {
		c.rebuildVocab()
	}
	return c.vocabBows
}

// WordToID maps a token string to its vocabulary id. The boolean is
// false for tokens outside the (frequency-filtered) vocabulary.
func (c *Corpus) WordToID(word string) (int, bool) {
	if !c.vocabUpToDate {
		c.rebuildVocab()
	}
	id, ok := c.vocabIDs[word]
	return id, ok
}

// IDToWord maps a vocabulary id back to its token string. The boolean
// is false for ids outside the vocabulary; topic-model output may
// legitimately reference such ids after re-filtering.
func (c *Corpus) IDToWord(id int) (string, bool) {
	if !c.vocabUpToDate {
		c.rebuildVocab()
	}
	if id < 0 || id >= len(c.vocabList) {
		return "", false
	}
	return c.vocabList[id], true
}

// VocabSize returns the number of in-vocabulary tokens.
func (c *Corpus) VocabSize() int {
	if !c.vocabUpToDate {
		c.rebuildVocab()
	}
	return len(c.vocabList)
}

// UsageCount returns the number of documents scanned for lemma.
func (c *Corpus) UsageCount(lemma domain.Lemma) int {
	return len(c.lemmaDocs[lemma])
}

// TotalUsages returns the number of documents across all lemmas.
func (c *Corpus) TotalUsages() int { return c.numDocs }

// DocIDs returns the document ids belonging to lemma, in scan order.
func (c *Corpus) DocIDs(lemma domain.Lemma) []int {
	return append([]int(nil), c.lemmaDocs[lemma]...)
}

// DocLemma maps a document id back to its lemma. The boolean is false
// for ids the corpus never produced.
func (c *Corpus) DocLemma(docID int) (domain.Lemma, bool) {
	if docID < 0 || docID >= len(c.docLemmas) {
		return "", false
	}
	return c.docLemmas[docID], true
}

// AvailableLemmas returns all lemmas this corpus was configured with.
func (c *Corpus) AvailableLemmas() []domain.Lemma {
	return append([]domain.Lemma(nil), c.allLemmas...)
}

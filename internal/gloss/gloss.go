// Package gloss derives per-sense word distributions from WordNet
// overview glosses. The glosses are tokenized, POS-tagged and
// lemmatized by an external shell pipeline; the tagged output is parsed
// here into one Distribution per sense.
package gloss

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/awbennett/LexSemTm/internal/domain"
	"github.com/awbennett/LexSemTm/internal/prob"
)

var posWords = map[string]string{
	"n": "noun",
	"v": "verb",
	"a": "adj",
	"r": "adv",
}

// ToolPaths locates the external NLP tools the gloss pipeline shells
// out to.
type ToolPaths struct {
	WordNet           string
	OpenNLP           string
	TokenizerModel    string
	POSTagModel       string
	Morpha            string
	MorphaVerbStems   string
	MorphaPostCorrect string
}

// ResolveToolPaths builds the tool paths under toolsDir for the given
// WordNet version (the name of the executable under wn_bin). A missing
// WordNet binary is fatal; the remaining tools surface their own errors
// when the pipeline runs.
func ResolveToolPaths(toolsDir, wnVersion string) (ToolPaths, error) {
	wn := filepath.Join(toolsDir, "wn_bin", wnVersion)
	if _, err := os.Stat(wn); err != nil {
		return ToolPaths{}, domain.Fatalf("wordnet binary missing (%s)", wn)
	}
	openNLPDir := filepath.Join(toolsDir, "opennlp-tools-1.5.0")
	return ToolPaths{
		WordNet:           wn,
		OpenNLP:           filepath.Join(openNLPDir, "bin", "opennlp"),
		TokenizerModel:    filepath.Join(openNLPDir, "models", "en-token.bin"),
		POSTagModel:       filepath.Join(openNLPDir, "models", "en-pos-maxent.bin"),
		Morpha:            filepath.Join(toolsDir, "morpha", "morpha"),
		MorphaVerbStems:   filepath.Join(toolsDir, "morpha", "verbstem.list"),
		MorphaPostCorrect: filepath.Join(toolsDir, "morpha", "morph-post-correct.prl"),
	}, nil
}

// LemmaDists returns the gloss distribution for every sense of lemma,
// keyed by sense id. Only English lemmas are supported.
func LemmaDists(ctx context.Context, lemma domain.Lemma, tools ToolPaths, stopwords map[string]struct{}) (map[string]*prob.Distribution, error) {
	if lang := lemma.Lang(); lang != "en" {
		return nil, domain.Fatalf("language %s not implemented", lang)
	}

	command := fmt.Sprintf(`%s "%s" -over`, tools.WordNet, lemma.Word())
	command += fmt.Sprintf(" | %s TokenizerME %s 2> /dev/null", tools.OpenNLP, tools.TokenizerModel)
	command += fmt.Sprintf(" | %s POSTagger %s 2> /dev/null", tools.OpenNLP, tools.POSTagModel)
	command += fmt.Sprintf(" | %s -tf %s", tools.Morpha, tools.MorphaVerbStems)
	command += fmt.Sprintf(" | %s", tools.MorphaPostCorrect)

	cmd := exec.CommandContext(ctx, "/bin/bash", "-c", command)
	out, err := cmd.Output()
	if err != nil {
		return nil, domain.Fatalf("gloss pipeline for %s: %v", lemma, err)
	}
	if strings.TrimSpace(string(out)) == "" {
		return nil, domain.Fatalf("gloss pipeline for %s produced no output", lemma)
	}
	return parseOverview(string(out), lemma, stopwords)
}

// parseOverview extracts per-sense distributions from the tagged
// overview text. A block starts at the "the <pos> ... have N sense"
// header (matched with POS tags stripped), skips the following line and
// ends at the first blank line. Each gloss line carries its sense
// number as the first token.
func parseOverview(output string, lemma domain.Lemma, stopwords map[string]struct{}) (map[string]*prob.Distribution, error) {
	posWord, ok := posWords[lemma.POS()]
	if !ok {
		return nil, domain.Fatalf("unknown part of speech %q in lemma %s", lemma.POS(), lemma)
	}
	base := lemma.Word()

	dists := make(map[string]*prob.Distribution)
	parsing := false
	skip := 0
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		switch {
		case isOverviewHeader(line, posWord):
			parsing = true
			skip = 1
		case parsing && skip > 0:
			skip--
		case parsing && strings.TrimSpace(line) == "":
			parsing = false
		case parsing:
			senseNum, dist, err := parseGlossLine(line, base, stopwords)
			if err != nil {
				return nil, domain.Fatalf("gloss overview for %s: %v", lemma, err)
			}
			dists[lemma.SenseID(senseNum)] = dist
		}
	}
	return dists, nil
}

// isOverviewHeader matches "the <pos> <word> have <N> sens..." against
// the line with each token's POS tag stripped.
func isOverviewHeader(line, posWord string) bool {
	fields := strings.Fields(line)
	stripped := make([]string, len(fields))
	for i, f := range fields {
		stripped[i] = stripTag(f)
	}
	if len(stripped) < 4 || stripped[0] != "the" || stripped[1] != posWord {
		return false
	}
	for i := 2; i < len(stripped)-2; i++ {
		if stripped[i] != "have" {
			continue
		}
		if _, err := strconv.Atoi(stripped[i+1]); err != nil {
			continue
		}
		if strings.HasPrefix(stripped[i+2], "sens") {
			return true
		}
	}
	return false
}

// parseGlossLine counts the gloss words of one sense. The first token
// is the sense number; subsequent words are dropped when they equal the
// base lemma, are shorter than three characters, are stopwords, or are
// integers within the first four tokens.
func parseGlossLine(line, base string, stopwords map[string]struct{}) (int, *prob.Distribution, error) {
	dist := prob.New()
	senseNum := 0
	for i, tagged := range strings.Fields(line) {
		word := strings.ToLower(stripTag(tagged))
		if i == 0 {
			n, err := strconv.Atoi(strings.Trim(word, "."))
			if err != nil {
				return 0, nil, fmt.Errorf("bad sense number token %q", tagged)
			}
			senseNum = n
			continue
		}
		word = strings.Trim(word, `"`)
		word = strings.Trim(word, "'")
		word = strings.Trim(word, ")")
		word = strings.Trim(word, "(")
		if word == base || len(word) < 3 {
			continue
		}
		if _, stop := stopwords[word]; stop {
			continue
		}
		if i < 4 && isInt(word) {
			continue
		}
		dist.Add(word, 1)
	}
	return senseNum, dist, nil
}

// stripTag removes the trailing "_TAG" segment from a tagged token.
func stripTag(token string) string {
	i := strings.LastIndexByte(token, '_')
	if i < 0 {
		return ""
	}
	return token[:i]
}

func isInt(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

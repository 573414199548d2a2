// Package evaluate compares learned sense distributions against
// gold-standard ones and writes the evaluation report.
package evaluate

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/awbennett/LexSemTm/internal/domain"
	"github.com/awbennett/LexSemTm/internal/prob"
)

// LoadGoldDists parses a sense-distributions file: "<senseId> <freq>"
// lines grouped per lemma, blank lines ignored. The lemma is the sense
// id minus its sense-number segment.
func LoadGoldDists(path string) (map[domain.Lemma]*prob.Distribution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sense distributions file: %w", err)
	}
	defer f.Close()

	dists := make(map[domain.Lemma]*prob.Distribution)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) <= 1 {
			continue
		}
		sense := fields[0]
		freq, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("sense distributions file %s: bad frequency %q", path, fields[1])
		}
		lemma := domain.LemmaOfSense(sense)
		if dists[lemma] == nil {
			dists[lemma] = prob.New()
		}
		dists[lemma].Set(sense, freq)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read sense distributions file %s: %w", path, err)
	}
	return dists, nil
}

// WriteGoldDists writes dists in the same format LoadGoldDists reads,
// sorted by lemma and then by sense id, one blank line between lemmas.
func WriteGoldDists(path string, dists map[domain.Lemma]*prob.Distribution) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create sense distributions file: %w", err)
	}
	defer f.Close()

	lemmas := make([]string, 0, len(dists))
	for lemma := range dists {
		lemmas = append(lemmas, lemma.String())
	}
	sort.Strings(lemmas)

	w := bufio.NewWriter(f)
	for _, lemma := range lemmas {
		d := dists[domain.Lemma(lemma)]
		for _, sense := range d.Keys() {
			fmt.Fprintf(w, "%s %s\n", sense, formatFloat(d.Get(sense)))
		}
		fmt.Fprintln(w)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write sense distributions file: %w", err)
	}
	return f.Close()
}

// BuildGoldDists counts sense annotations from per-lemma CSV files in
// annotationsDir. Each file is named "<lemma>.<ext>" and must carry a
// sense_id column.
func BuildGoldDists(annotationsDir string) (map[domain.Lemma]*prob.Distribution, error) {
	entries, err := os.ReadDir(annotationsDir)
	if err != nil {
		return nil, fmt.Errorf("read annotations directory: %w", err)
	}

	dists := make(map[domain.Lemma]*prob.Distribution)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		lemma := domain.Lemma(strings.TrimSuffix(name, filepath.Ext(name)))
		dist, err := countSenseAnnotations(filepath.Join(annotationsDir, name))
		if err != nil {
			return nil, err
		}
		dists[lemma] = dist
	}
	return dists, nil
}

func countSenseAnnotations(path string) (*prob.Distribution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open annotations file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("annotations file %s: %w", path, err)
	}
	senseCol := -1
	for i, col := range header {
		if col == "sense_id" {
			senseCol = i
			break
		}
	}
	if senseCol < 0 {
		return nil, fmt.Errorf("annotations file %s: no sense_id column", path)
	}

	dist := prob.New()
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("annotations file %s: %w", path, err)
		}
		dist.Add(row[senseCol], 1)
	}
	return dist, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

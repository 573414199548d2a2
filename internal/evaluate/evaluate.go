package evaluate

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"

	"github.com/awbennett/LexSemTm/internal/domain"
	"github.com/awbennett/LexSemTm/internal/prob"
	"github.com/awbennett/LexSemTm/internal/result"
)

var reportColumns = []string{"lemma", "num_usages", "jsd", "baseline_jsd", "final_perplexity", "time"}

// Evaluator scores every persisted record against the gold-standard
// distributions and writes one CSV row per model. Baseline is an
// optional second set of distributions (e.g. SemCor frequencies)
// reported alongside for comparison.
type Evaluator struct {
	Store    *result.Store
	Gold     map[domain.Lemma]*prob.Distribution
	Baseline map[domain.Lemma]*prob.Distribution
	Log      *slog.Logger
}

// Run writes the evaluation report to w. Models without a sense
// distribution get blank divergence cells; models whose lemma has no
// gold distribution are logged and skipped.
func (e *Evaluator) Run(w io.Writer) error {
	models, err := e.Store.List()
	if err != nil {
		return err
	}

	var rows [][]string
	for _, model := range models {
		tm, err := e.Store.Load(model)
		if err != nil {
			return err
		}
		lemma := domain.Lemma(tm.Lemma)

		jsdCell, baselineCell := "", ""
		if tm.SenseDist != nil {
			gold, ok := e.Gold[lemma]
			if !ok {
				e.Log.Warn("no gold standard distribution", "lemma", lemma, "model", model)
				continue
			}
			senseDist := prob.FromMap(tm.SenseDist)
			jsdCell = formatFloat(prob.JSDivergence(senseDist, gold))
			if baseline, ok := e.Baseline[lemma]; ok {
				baselineCell = formatFloat(prob.JSDivergence(baseline, gold))
			}
		}

		finalPerp := ""
		if len(tm.Perplexity) > 0 {
			finalPerp = formatFloat(tm.Perplexity[len(tm.Perplexity)-1])
		}
		rows = append(rows, []string{
			tm.Lemma,
			strconv.Itoa(len(tm.DocTopicCounts)),
			jsdCell,
			baselineCell,
			finalPerp,
			formatFloat(tm.Time),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		for k := range rows[i] {
			if rows[i][k] != rows[j][k] {
				return rows[i][k] < rows[j][k]
			}
		}
		return false
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(reportColumns); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write report rows: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

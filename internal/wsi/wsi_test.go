package wsi

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awbennett/LexSemTm/internal/domain"
)

type fakeCorpus struct {
	docs    []map[int]int
	vocab   []string
	byLemma map[domain.Lemma][]int
}

func (c *fakeCorpus) Docs() []map[int]int { return c.docs }

func (c *fakeCorpus) IDToWord(id int) (string, bool) {
	if id < 0 || id >= len(c.vocab) {
		return "", false
	}
	return c.vocab[id], true
}

func (c *fakeCorpus) DocIDs(lemma domain.Lemma) []int {
	return append([]int(nil), c.byLemma[lemma]...)
}

func newFakeCorpus() *fakeCorpus {
	return &fakeCorpus{
		docs: []map[int]int{
			{0: 2, 1: 1},
			{}, // all tokens fell below the vocabulary threshold
			{2: 3},
		},
		vocab: []string{"alpha", "beta", "gamma"},
		byLemma: map[domain.Lemma][]int{
			"alpha.n.en": {0, 1, 2},
		},
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sampler.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func TestOptionsMergeKeepsCallerFlags(t *testing.T) {
	opts := Options{
		InputPath: "in.ldac",
		Flags:     map[string]string{"K": "25", "v": ""},
	}
	merged := opts.withDefaults(HCADefaults())

	assert.Equal(t, "in.ldac", merged.InputPath)
	assert.Equal(t, "25", merged.Flags["K"], "caller flag must win over default")
	assert.Equal(t, "300", merged.Flags["C"], "default fills the gap")
	val, ok := merged.Flags["v"]
	assert.True(t, ok)
	assert.Equal(t, "", val, "bare caller flag survives the merge")
	assert.Contains(t, merged.Flags, "N200000,20000")
	assert.Equal(t, HCADefaults().ExePath, merged.ExePath)
}

func TestLoadFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.txt")
	content := "K 25\nv\n# a comment\n\nmax_iter 500\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	flags, err := LoadFlags(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"K": "25", "v": "", "max_iter": "500"}, flags)

	_, err = LoadFlags(filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))
}

func TestWriteBagInputSkipsEmptyDocs(t *testing.T) {
	c := newFakeCorpus()
	path := filepath.Join(t.TempDir(), "input.ldac")

	empty, kept, err := writeBagInput(path, c.Docs(), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, empty)
	assert.Equal(t, []int{0, 2}, kept)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2 0:2 1:1", lines[0])
	assert.Equal(t, "1 2:3", lines[1])
}

func TestWriteBagInputSubset(t *testing.T) {
	c := newFakeCorpus()
	path := filepath.Join(t.TempDir(), "input.ldac")

	_, kept, err := writeBagInput(path, c.Docs(), map[int]struct{}{2: {}})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, kept)
}

func TestSubsampleUsagesCapped(t *testing.T) {
	c := newFakeCorpus()
	sampled := subsampleUsages(c, map[domain.Lemma]int{"alpha.n.en": 100})
	assert.Len(t, sampled, 3, "request above usage count caps at usage count")

	sampled = subsampleUsages(c, map[domain.Lemma]int{"alpha.n.en": 2})
	assert.Len(t, sampled, 2)
	for id := range sampled {
		assert.Contains(t, []int{0, 1, 2}, id)
	}
}

func TestOperatorValidatesRequiredPaths(t *testing.T) {
	op := NewOperator(nil, Options{})

	_, err := op.RunWSI(context.Background(), Options{}, nil)
	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))

	_, err = op.RunWSI(context.Background(), Options{InputPath: "a"}, nil)
	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))

	_, err = op.RunWSI(context.Background(), Options{InputPath: "a", OutputDir: "b"}, nil)
	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))
}

func TestOperatorRejectsExistingInputPath(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "model.input.ldac")
	require.NoError(t, os.WriteFile(inputPath, []byte("stale"), 0644))

	op := NewOperator(nil, Options{})
	_, err := op.RunWSI(context.Background(), Options{
		InputPath:    inputPath,
		OutputDir:    filepath.Join(dir, "out"),
		OutputPrefix: "wsi_output",
	}, nil)
	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))
	assert.Contains(t, err.Error(), "existing file at input path")
}

type runnerFunc func(ctx context.Context, opts Options, usageCounts map[domain.Lemma]int) (*domain.TopicModel, error)

func (f runnerFunc) RunWSI(ctx context.Context, opts Options, usageCounts map[domain.Lemma]int) (*domain.TopicModel, error) {
	return f(ctx, opts, usageCounts)
}

func TestOperatorCreatesDirectoriesAndMergesDefaults(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "scratch", "model.input.ldac")
	outputDir := filepath.Join(dir, "scratch", "model.outdir")

	var got Options
	op := NewOperator(runnerFunc(func(_ context.Context, opts Options, _ map[domain.Lemma]int) (*domain.TopicModel, error) {
		got = opts
		return &domain.TopicModel{}, nil
	}), Options{OutputPrefix: "wsi_output"})

	_, err := op.RunWSI(context.Background(), Options{
		InputPath: inputPath,
		OutputDir: outputDir,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "wsi_output", got.OutputPrefix)
	assert.DirExists(t, filepath.Dir(inputPath))
	assert.DirExists(t, outputDir)
}

func TestHCARunnerParsesSamplerOutput(t *testing.T) {
	c := newFakeCorpus()
	dir := t.TempDir()

	// The fake sampler takes the output stem as its last argument and
	// writes count files plus a perplexity trace on stderr, recording
	// its argv for inspection.
	exe := writeScript(t, `
for a in "$@"; do stem="$a"; done
printf '%s\n' "$@" > "$stem.args"
cat > "$stem.nwt" <<'EOF'
h
h
h
0 0 4
1 0 2
1 1 3
EOF
cat > "$stem.ndt" <<'EOF'
h
h
h
0 0 5
1 1 2
EOF
echo "log_2(perp)=7.5,0.1" >&2
`)

	runner := NewHCARunner(c)
	tm, err := runner.RunWSI(context.Background(), Options{
		InputPath:    filepath.Join(dir, "model.input.ldac"),
		OutputDir:    dir,
		OutputPrefix: "wsi_output",
		ExePath:      exe,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]map[string]float64{
		"t_00": {"alpha": 4, "beta": 2},
		"t_01": {"beta": 3},
	}, tm.TopicWordCounts)

	// Input doc index 1 maps through the kept list to corpus doc 2.
	assert.Equal(t, map[string]map[string]float64{
		"d_000000": {"t_00": 5},
		"d_000002": {"t_01": 2},
	}, tm.DocTopicCounts)

	require.Len(t, tm.Perplexity, hcaPerplexityCycle)
	for _, p := range tm.Perplexity {
		assert.Equal(t, 7.5, p)
	}
	assert.Greater(t, tm.Time, 0.0)

	args, err := os.ReadFile(filepath.Join(dir, "wsi_output.args"))
	require.NoError(t, err)
	argList := strings.Split(strings.TrimSpace(string(args)), "\n")
	assert.Equal(t, "-e", argList[0])
	assert.Contains(t, argList, "-C")
	assert.Contains(t, argList, "300")
	// Input stem drops the trailing extension.
	assert.Equal(t, filepath.Join(dir, "model.input"), argList[len(argList)-2])
}

func TestHCARunnerSkipsOutOfVocabularyWordIDs(t *testing.T) {
	c := newFakeCorpus()
	dir := t.TempDir()

	// Word id 9 is outside the three-word vocabulary; its triple must be
	// dropped without failing the run.
	exe := writeScript(t, `
for a in "$@"; do stem="$a"; done
cat > "$stem.nwt" <<'EOF'
h
h
h
0 0 4
9 0 6
EOF
cat > "$stem.ndt" <<'EOF'
h
h
h
0 0 5
EOF
echo "log_2(perp)=7.5" >&2
`)

	runner := NewHCARunner(c)
	tm, err := runner.RunWSI(context.Background(), Options{
		InputPath:    filepath.Join(dir, "model.input.ldac"),
		OutputDir:    dir,
		OutputPrefix: "wsi_output",
		ExePath:      exe,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]float64{
		"t_00": {"alpha": 4},
	}, tm.TopicWordCounts)
}

func TestHCARunnerMissingOutputIsRetryable(t *testing.T) {
	c := newFakeCorpus()
	dir := t.TempDir()
	exe := writeScript(t, "exit 0\n")

	runner := NewHCARunner(c)
	_, err := runner.RunWSI(context.Background(), Options{
		InputPath:    filepath.Join(dir, "model.input.ldac"),
		OutputDir:    dir,
		OutputPrefix: "wsi_output",
		ExePath:      exe,
	}, nil)
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
}

func TestHCARunnerSamplerFailureIsRetryable(t *testing.T) {
	c := newFakeCorpus()
	dir := t.TempDir()
	exe := writeScript(t, "exit 3\n")

	runner := NewHCARunner(c)
	_, err := runner.RunWSI(context.Background(), Options{
		InputPath:    filepath.Join(dir, "model.input.ldac"),
		OutputDir:    dir,
		OutputPrefix: "wsi_output",
		ExePath:      exe,
	}, nil)
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
}

func TestHCARunnerExistingStdoutCaptureIsFatal(t *testing.T) {
	c := newFakeCorpus()
	dir := t.TempDir()
	exe := writeScript(t, "exit 0\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wsi_output.stdout"), []byte("old"), 0644))

	runner := NewHCARunner(c)
	_, err := runner.RunWSI(context.Background(), Options{
		InputPath:    filepath.Join(dir, "model.input.ldac"),
		OutputDir:    dir,
		OutputPrefix: "wsi_output",
		ExePath:      exe,
	}, nil)
	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))
}

func TestHDPRunnerParsesSamplerOutput(t *testing.T) {
	c := newFakeCorpus()
	dir := t.TempDir()

	// The fake sampler reads --directory from its argv, writes the mode
	// files there and reports a likelihood trace on stdout. The fourth
	// column of the first topic row is outside the vocabulary and must
	// be dropped.
	exe := writeScript(t, `
while [ $# -gt 0 ]; do
  if [ "$1" = "--directory" ]; then dir="$2"; fi
  shift
done
cat > "$dir/mode-topics.dat" <<'EOF'
4 0 2 7
0 3 0
EOF
cat > "$dir/mode-word-assignments.dat" <<'EOF'
d w z t
0 0 0 0
0 1 0 0
1 2 1 0
EOF
echo "number of total words : 9"
echo "iter = 10 time = 0.1 likelihood = -18.0"
`)

	runner := NewHDPRunner(c)
	tm, err := runner.RunWSI(context.Background(), Options{
		InputPath:    filepath.Join(dir, "model.input.ldac"),
		OutputDir:    dir,
		OutputPrefix: "wsi_output",
		ExePath:      exe,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]map[string]float64{
		"t_00": {"alpha": 4, "gamma": 2},
		"t_01": {"beta": 3},
	}, tm.TopicWordCounts)

	// Two assignments for input doc 0, one for input doc 1 (corpus doc 2).
	assert.Equal(t, map[string]map[string]float64{
		"d_000000": {"t_00": 2},
		"d_000002": {"t_01": 1},
	}, tm.DocTopicCounts)

	require.Len(t, tm.Perplexity, 1)
	assert.InDelta(t, 2.0, tm.Perplexity[0], 1e-9)
}

func TestHDPRunnerMissingOutputIsRetryable(t *testing.T) {
	c := newFakeCorpus()
	dir := t.TempDir()
	exe := writeScript(t, "exit 0\n")

	runner := NewHDPRunner(c)
	_, err := runner.RunWSI(context.Background(), Options{
		InputPath:    filepath.Join(dir, "model.input.ldac"),
		OutputDir:    dir,
		OutputPrefix: "wsi_output",
		ExePath:      exe,
	}, nil)
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
}

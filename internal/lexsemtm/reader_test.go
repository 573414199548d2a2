package lexsemtm

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeDataset synthesizes a minimal dataset directory: lemmas tab,
// vocab tab and a data tar with one topic model and one sense dist.
func writeDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	lemmasTab := "lemma\tlemma-id\tnum-usages\ndog.n.en\t3\t1500\ncat.n.en\t7\t800\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.s.lemmas.tab"), []byte(lemmasTab), 0644))

	vocabTab := "token-id\ttoken\n0\tcanine\n1\tanimal\n2\tbark\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.vocab.tab"), []byte(vocabTab), 0644))

	model := map[string]any{
		"doc_topic_counts": []map[string]float64{
			{"t_00": 4},
			{"t_00": 1, "t_01": 2},
		},
		"topic_word_counts": map[string]any{
			"t_00": map[string]any{
				"word_ids": []int{0, 2},
				"counts":   []float64{5, 3},
			},
			"t_01": map[string]any{
				"word_ids": []int{1},
				"counts":   []float64{2},
			},
		},
	}
	modelJSON, err := json.Marshal(model)
	require.NoError(t, err)
	var modelGz bytes.Buffer
	zw := gzip.NewWriter(&modelGz)
	_, err = zw.Write(modelJSON)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	sdist := "sense-name probability\ndog.n.en.01 0.75\ndog.n.en.02 0.25\n"

	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	addMember := func(name string, body []byte) {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0644, Size: int64(len(body))}))
		_, err := tw.Write(body)
		require.NoError(t, err)
	}
	addMember("en.s.00000003.tm.json.gz", modelGz.Bytes())
	addMember("en.s.00000003.sdist.tab", []byte(sdist))
	require.NoError(t, tw.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.s.data.tar"), tarBuf.Bytes(), 0644))

	return dir
}

func TestLemmaNamesAndFreq(t *testing.T) {
	r := NewReader(writeDataset(t))

	names, err := r.LemmaNames("en", "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"dog.n.en", "cat.n.en"}, names)

	freq, err := r.LemmaFreq("dog.n.en", "en", "s")
	require.NoError(t, err)
	assert.Equal(t, 1500, freq)

	_, err = r.LemmaFreq("fish.n.en", "en", "s")
	require.Error(t, err)
}

func TestSenseDist(t *testing.T) {
	r := NewReader(writeDataset(t))

	dist, err := r.SenseDist("dog.n.en", "en", "s")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{
		"dog.n.en.01": 0.75,
		"dog.n.en.02": 0.25,
	}, dist)

	_, err = r.SenseDist("cat.n.en", "en", "s")
	require.Error(t, err, "cat has no sdist member in the archive")
}

func TestTopicModelRemapsVocabulary(t *testing.T) {
	r := NewReader(writeDataset(t))

	tm, err := r.TopicModel("dog.n.en", "en", "s")
	require.NoError(t, err)

	assert.Equal(t, "dog.n.en", tm.Lemma)
	assert.Equal(t, map[string]map[string]float64{
		"t_00": {"canine": 5, "bark": 3},
		"t_01": {"animal": 2},
	}, tm.TopicWordCounts)
	assert.Equal(t, map[string]map[string]float64{
		"d_000000": {"t_00": 4},
		"d_000001": {"t_00": 1, "t_01": 2},
	}, tm.DocTopicCounts)
}

func TestTopicModelUnknownLemma(t *testing.T) {
	r := NewReader(writeDataset(t))
	_, err := r.TopicModel("fish.n.en", "en", "s")
	require.Error(t, err)
}

func TestTopicModelMissingArchiveMember(t *testing.T) {
	r := NewReader(writeDataset(t))
	// cat.n.en is indexed but has no member in the tar.
	_, err := r.TopicModel("cat.n.en", "en", "s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no topic model")
}

func TestMissingIndexFiles(t *testing.T) {
	r := NewReader(t.TempDir())
	_, err := r.LemmaNames("en", "s")
	require.Error(t, err)
}

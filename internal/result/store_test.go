package result

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awbennett/LexSemTm/internal/domain"
)

func sampleModel() *domain.TopicModel {
	return &domain.TopicModel{
		Lemma: "dog.n.en",
		TopicWordCounts: map[string]map[string]float64{
			"t_00": {"canine": 4},
		},
		DocTopicCounts: map[string]map[string]float64{
			"d_000000": {"t_00": 2},
		},
		Perplexity: []float64{7.5, 7.5},
		Time:       12.25,
		SenseDist:  map[string]float64{"dog.n.en.01": 1.0},
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "tm_output"))
	tm := sampleModel()

	require.NoError(t, store.Save("dog.n.en", tm))
	assert.FileExists(t, store.Path("dog.n.en"))

	loaded, err := store.Load("dog.n.en")
	require.NoError(t, err)
	assert.Equal(t, tm, loaded)
}

func TestLoadPlainJSONFallback(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	tm := sampleModel()

	data, err := json.Marshal(tm)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dog.n.en.tm.json"), data, 0644))

	loaded, err := store.Load("dog.n.en")
	require.NoError(t, err)
	assert.Equal(t, tm.SenseDist, loaded.SenseDist)
	assert.Equal(t, tm.Time, loaded.Time)
}

func TestLoadMissingRecord(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Load("absent.n.en")
	require.Error(t, err)
}

func TestListSorted(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save("dog.n.en", sampleModel()))
	require.NoError(t, store.Save("cat.n.en", sampleModel()))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir, "notes.txt"), []byte("x"), 0644))

	models, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"cat.n.en", "dog.n.en"}, models)
}

func TestRecordFieldNames(t *testing.T) {
	data, err := json.Marshal(sampleModel())
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"lemma", "topic_word_counts", "doc_topic_counts", "perplexity_array", "time", "sense_dist"} {
		assert.Contains(t, raw, key)
	}
}

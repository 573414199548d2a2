// Package result persists topic-model records as gzipped JSON, one
// file per model, in the layout of the published dataset.
package result

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/awbennett/LexSemTm/internal/domain"
)

const (
	recordSuffix      = ".tm.json.gz"
	plainRecordSuffix = ".tm.json"
)

// Store reads and writes topic-model records under a single directory.
type Store struct {
	Dir string
}

func NewStore(dir string) *Store { return &Store{Dir: dir} }

// Path returns where the record for model is stored.
func (s *Store) Path(model string) string {
	return filepath.Join(s.Dir, model+recordSuffix)
}

// Save writes tm to the model's record path, creating the directory if
// needed.
func (s *Store) Save(model string, tm *domain.TopicModel) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("create results directory: %w", err)
	}
	f, err := os.Create(s.Path(model))
	if err != nil {
		return fmt.Errorf("create record for %s: %w", model, err)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	if err := json.NewEncoder(zw).Encode(tm); err != nil {
		zw.Close()
		return fmt.Errorf("encode record for %s: %w", model, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("write record for %s: %w", model, err)
	}
	return f.Close()
}

// Load reads the record for model, preferring the gzipped form and
// falling back to plain JSON.
func (s *Store) Load(model string) (*domain.TopicModel, error) {
	path := s.Path(model)
	f, err := os.Open(path)
	if err == nil {
		defer f.Close()
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open record %s: %w", path, err)
		}
		defer zr.Close()
		return decodeRecord(zr, path)
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	plainPath := filepath.Join(s.Dir, model+plainRecordSuffix)
	pf, err := os.Open(plainPath)
	if err != nil {
		return nil, fmt.Errorf("no record for model %s: %w", model, err)
	}
	defer pf.Close()
	return decodeRecord(pf, plainPath)
}

// List returns the model names with a persisted record, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("read results directory: %w", err)
	}
	var models []string
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, recordSuffix):
			models = append(models, strings.TrimSuffix(name, recordSuffix))
		case strings.HasSuffix(name, plainRecordSuffix):
			models = append(models, strings.TrimSuffix(name, plainRecordSuffix))
		}
	}
	sort.Strings(models)
	return models, nil
}

func decodeRecord(r io.Reader, path string) (*domain.TopicModel, error) {
	var tm domain.TopicModel
	if err := json.NewDecoder(r).Decode(&tm); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", path, err)
	}
	return &tm, nil
}

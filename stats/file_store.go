package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultPath is where stats live when nothing else is configured.
const DefaultPath = "performance.json"

type document struct {
	TopicStats Table `json:"topic_stats"`
}

// FileStore persists the table as indented JSON: {"topic_stats": {...}}.
//
// Load and Save are serialised within one process, and Save replaces the file
// by rename so readers never see a half-written document. Nothing guards a
// load/modify/save cycle across callers: two runs finishing together can
// still lose one update (last writer wins on the whole file).
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultPath
	}
	return &FileStore{path: path}
}

// Path returns the file backing this store.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the persisted table, or an empty one if the file is missing or corrupt.
func (s *FileStore) Load() Table {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return Table{}
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil || doc.TopicStats == nil {
		return Table{}
	}
	return doc.TopicStats
}

// Save overwrites the store with t.
func (s *FileStore) Save(t Table) error {
	if t == nil {
		t = Table{}
	}
	data, err := json.MarshalIndent(document{TopicStats: t}, "", "  ")
	if err != nil {
		return fmt.Errorf("stats: encode: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("stats: ensure dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("stats: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("stats: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("stats: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("stats: replace %s: %w", s.path, err)
	}
	return nil
}

// MemoryStore keeps the table in memory. Useful for tests and dry runs.
type MemoryStore struct {
	mu    sync.Mutex
	table Table
	// SaveErr, when set, is returned by every Save.
	SaveErr error
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(initial Table) *MemoryStore {
	return &MemoryStore{table: initial.Clone()}
}

func (m *MemoryStore) Load() Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table.Clone()
}

func (m *MemoryStore) Save(t Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.table = t.Clone()
	return nil
}

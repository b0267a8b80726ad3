package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/btree"
)

// MemoryStore keeps documents in an ordered map. When created with
// NewJSONStore every Put also rewrites a JSON file holding all documents.
type MemoryStore struct {
	mu   sync.RWMutex
	docs btree.Map[string, Document]
	path string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewJSONStore loads the documents in path, if the file exists, and persists
// every later Put back to it.
func NewJSONStore(path string) (*MemoryStore, error) {
	if path == "" {
		return nil, errors.New("json document store requires a path")
	}
	s := &MemoryStore{path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read documents: %w", err)
	}

	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode documents %s: %w", path, err)
	}
	for _, d := range docs {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("document %q in %s: %w", d.ID, path, err)
		}
		s.docs.Set(d.ID, d)
	}
	return s, nil
}

func (s *MemoryStore) Put(_ context.Context, doc Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, replaced := s.docs.Set(doc.ID, doc)
	if s.path == "" {
		return nil
	}
	if err := s.persistLocked(); err != nil {
		// Roll back so memory and disk agree.
		if replaced {
			s.docs.Set(doc.ID, prev)
		} else {
			s.docs.Delete(doc.ID)
		}
		return err
	}
	return nil
}

// persistLocked writes all documents to a temporary file and renames it over
// the target, so readers never see a partial file.
func (s *MemoryStore) persistLocked() error {
	docs := make([]Document, 0, s.docs.Len())
	s.docs.Scan(func(_ string, d Document) bool {
		docs = append(docs, d)
		return true
	})
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create document directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".documents-*.json")
	if err != nil {
		return fmt.Errorf("persist documents: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("persist documents: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persist documents: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("persist documents: %w", err)
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs.Get(id)
	if !ok {
		return Document{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return d, nil
}

func (s *MemoryStore) All(_ context.Context) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]Document, 0, s.docs.Len())
	s.docs.Scan(func(_ string, d Document) bool {
		docs = append(docs, d)
		return true
	})
	return docs, nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs.Len(), nil
}

func (s *MemoryStore) Close() error { return nil }

package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/similivec/similivec/pkg/persistence"
)

// compactRatio triggers a rewrite on open once the log holds this many
// records per live document.
const compactRatio = 2

// LogStore keeps documents in memory and appends every Put to a framed log.
// Unlike the JSON store a Put costs one appended record, not a rewrite of
// the whole collection.
type LogStore struct {
	mem *MemoryStore
	log *persistence.Log
}

// NewLogStore replays the log at path and compacts it when most of its
// records are superseded.
func NewLogStore(path string) (*LogStore, error) {
	if path == "" {
		return nil, errors.New("log document store requires a path")
	}
	mem := NewMemoryStore()
	log, err := persistence.OpenLog(path, func(payload []byte) error {
		var d Document
		if err := json.Unmarshal(payload, &d); err != nil {
			return fmt.Errorf("decode document record: %w", err)
		}
		if err := d.Validate(); err != nil {
			return fmt.Errorf("document %q: %w", d.ID, err)
		}
		mem.docs.Set(d.ID, d)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s := &LogStore{mem: mem, log: log}
	if live := mem.docs.Len(); live > 0 && log.Records() >= compactRatio*live {
		if err := s.compact(); err != nil {
			log.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *LogStore) compact() error {
	docs, _ := s.mem.All(context.Background())
	payloads := make([][]byte, len(docs))
	for i, d := range docs {
		p, err := json.Marshal(d)
		if err != nil {
			return err
		}
		payloads[i] = p
	}
	before := s.log.Records()
	if err := s.log.Rewrite(payloads); err != nil {
		return err
	}
	slog.Info("document log compacted", "path", s.log.Path(), "records_before", before, "records_after", len(payloads))
	return nil
}

func (s *LogStore) Put(ctx context.Context, doc Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	// Holding the memory lock across the append keeps log order and memory
	// order identical for concurrent writers.
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()
	if err := s.log.Append(payload); err != nil {
		return fmt.Errorf("append document: %w", err)
	}
	s.mem.docs.Set(doc.ID, doc)
	return nil
}

func (s *LogStore) Get(ctx context.Context, id string) (Document, error) {
	return s.mem.Get(ctx, id)
}

func (s *LogStore) All(ctx context.Context) ([]Document, error) {
	return s.mem.All(ctx)
}

func (s *LogStore) Len(ctx context.Context) (int, error) {
	return s.mem.Len(ctx)
}

func (s *LogStore) Close() error { return s.log.Close() }

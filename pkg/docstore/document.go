// Package docstore keeps the source documents of the index and the mapping
// from graph nodes (one per chunk) back to those documents.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("docstore: document not found")
	ErrInvalidDocument = errors.New("docstore: document id and content are required")
)

// Document is a unit of source text. Documents are chunked before indexing,
// so one document usually owns several graph nodes.
type Document struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate trims the id and rejects documents without id or content.
func (d *Document) Validate() error {
	d.ID = strings.TrimSpace(d.ID)
	if d.ID == "" || strings.TrimSpace(d.Content) == "" {
		return ErrInvalidDocument
	}
	return nil
}

// Store persists documents by id. Put replaces an existing document with
// the same id. All returns documents in ascending id order.
type Store interface {
	Put(ctx context.Context, doc Document) error
	Get(ctx context.Context, id string) (Document, error)
	All(ctx context.Context) ([]Document, error)
	Len(ctx context.Context) (int, error)
	Close() error
}

// Store types accepted by Open.
const (
	TypeMemory = "memory"
	TypeJSON   = "json"
	TypeSQLite = "sqlite"
	TypeLog    = "log"
)

// Config selects the document backend.
type Config struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

// Open returns the store described by cfg.
func Open(cfg Config) (Store, error) {
	switch cfg.Type {
	case "", TypeMemory:
		return NewMemoryStore(), nil
	case TypeJSON:
		return NewJSONStore(cfg.Path)
	case TypeSQLite:
		return NewSQLiteStore(cfg.Path)
	case TypeLog:
		return NewLogStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown document store type %q", cfg.Type)
	}
}

package rag

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"github.com/similivec/similivec/pkg/docstore"
)

// ErrInvalidPattern indicates an include pattern could not be compiled.
var ErrInvalidPattern = errors.New("rag: invalid include pattern")

// DefaultPatterns are used when no include patterns are configured.
var DefaultPatterns = []string{"*.txt", "*.md", "*.markdown", "*.pdf", "*.docx"}

// Matcher decides which corpus files are ingested.
type Matcher struct {
	globs []glob.Glob
}

// NewMatcher compiles glob patterns. A pattern matches either the path
// relative to the corpus root (slash separated, "**" crosses directories) or
// the file's base name. No patterns selects DefaultPatterns.
func NewMatcher(patterns []string) (*Matcher, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	m := &Matcher{globs: make([]glob.Glob, 0, len(patterns))}
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, errors.Join(ErrInvalidPattern, err)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// Match reports whether the slash-separated relative path is selected.
func (m *Matcher) Match(rel string) bool {
	base := rel[strings.LastIndexByte(rel, '/')+1:]
	for _, g := range m.globs {
		if g.Match(rel) || g.Match(base) {
			return true
		}
	}
	return false
}

// DocumentID is the id a corpus file gets: its slash-separated path
// relative to the corpus root.
func DocumentID(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// LoadFile reads one corpus file into a document. Files without text yield
// docstore.ErrInvalidDocument.
func LoadFile(root, path string) (docstore.Document, error) {
	id, err := DocumentID(root, path)
	if err != nil {
		return docstore.Document{}, err
	}
	loader, err := LoaderFor(path)
	if err != nil {
		return docstore.Document{}, err
	}
	content, err := loader.Load(path)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("load %s: %w", id, err)
	}
	doc := docstore.Document{
		ID:      id,
		Content: content,
		Metadata: map[string]string{
			"source": path,
			"type":   strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		},
	}
	if err := doc.Validate(); err != nil {
		return docstore.Document{}, fmt.Errorf("load %s: %w", id, err)
	}
	return doc, nil
}

// LoadDir walks dir and loads every matching file concurrently. Empty files
// and text files that are not UTF-8 are skipped with a warning; any other
// failure aborts the load. Documents
// are returned sorted by id.
func LoadDir(ctx context.Context, dir string, patterns []string) ([]docstore.Document, error) {
	matcher, err := NewMatcher(patterns)
	if err != nil {
		return nil, err
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := DocumentID(dir, path)
		if err != nil {
			return err
		}
		if matcher.Match(rel) && Supported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus %s: %w", dir, err)
	}

	docs := make([]docstore.Document, len(paths))
	loaded := make([]bool, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := LoadFile(dir, path)
			if errors.Is(err, docstore.ErrInvalidDocument) || errors.Is(err, ErrUnsupported) {
				slog.Warn("skipping corpus file", "path", path, "error", err)
				return nil
			}
			if err != nil {
				return err
			}
			docs[i], loaded[i] = doc, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]docstore.Document, 0, len(docs))
	for i, d := range docs {
		if loaded[i] {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

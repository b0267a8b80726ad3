// Package embeddings turns text into vectors, either locally or through a
// remote embedding service.
package embeddings

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrEmptyText         = errors.New("embeddings: text has no content to embed")
	ErrEmptyEmbedding    = errors.New("embeddings: service returned an empty embedding")
	ErrDimensionMismatch = errors.New("embeddings: unexpected embedding dimension")
)

// Embedder defines the interface for converting text into vector representations.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Kind tells asymmetric models whether the text is a search query or a
// passage being indexed.
type Kind int

const (
	Passage Kind = iota
	Query
)

func (k Kind) String() string {
	if k == Query {
		return "query"
	}
	return "passage"
}

// KindEmbedder is implemented by embedders that treat queries and passages
// differently.
type KindEmbedder interface {
	Embedder
	EmbedKind(ctx context.Context, kind Kind, text string) ([]float32, error)
}

// EmbedAs embeds text as the given kind, falling back to plain Embed when e
// does not distinguish kinds.
func EmbedAs(ctx context.Context, e Embedder, kind Kind, text string) ([]float32, error) {
	if ke, ok := e.(KindEmbedder); ok {
		return ke.EmbedKind(ctx, kind, text)
	}
	return e.Embed(ctx, text)
}

// Prefixed adds instruction prefixes such as "query: " and "passage: ",
// which E5-style models are trained with.
type Prefixed struct {
	Base          Embedder
	QueryPrefix   string
	PassagePrefix string
}

// Embed embeds the text unchanged.
func (p *Prefixed) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.Base.Embed(ctx, text)
}

func (p *Prefixed) EmbedKind(ctx context.Context, kind Kind, text string) ([]float32, error) {
	prefix := p.PassagePrefix
	if kind == Query {
		prefix = p.QueryPrefix
	}
	return p.Base.Embed(ctx, prefix+text)
}

// CheckDimension verifies that vec has the expected length. want <= 0
// accepts any length.
func CheckDimension(vec []float32, want int) error {
	if want > 0 && len(vec) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), want)
	}
	return nil
}

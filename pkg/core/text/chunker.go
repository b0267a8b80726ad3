// Package text provides utilities for text processing, such as document chunking.
//
// The functions in this package are designed to be Unicode-aware, ensuring correct
// handling of multi-byte characters. It includes strategies for splitting large
// documents into smaller, manageable pieces for tasks like embedding.
package text

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the paragraph packing limit, in characters.
const DefaultChunkSize = 1500

// Chunking strategies accepted by NewChunker.
const (
	StrategyParagraph = "paragraph"
	StrategyFixed     = "fixed"
	StrategyRecursive = "recursive"
	StrategyMarkdown  = "markdown"
)

// Chunk represents a single piece of text produced by a chunker.
// It includes the content and its sequential position within the original document.
type Chunk struct {
	Content     string
	ChunkNumber int
}

// Chunker splits a document into chunks.
type Chunker func(text string) []Chunk

// NewChunker returns the chunker for the named strategy. An empty strategy
// selects paragraph packing.
func NewChunker(strategy string, size, overlap int) (Chunker, error) {
	if size <= 0 {
		size = DefaultChunkSize
	}
	switch strategy {
	case "", StrategyParagraph:
		return func(text string) []Chunk { return ParagraphChunker(text, size) }, nil
	case StrategyFixed:
		if overlap < 0 || overlap >= size {
			return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", overlap, size)
		}
		return func(text string) []Chunk { return FixedSizeChunker(text, size, overlap) }, nil
	case StrategyRecursive, StrategyMarkdown:
		if overlap < 0 || overlap >= size {
			return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", overlap, size)
		}
		seps := TextSeparators
		if strategy == StrategyMarkdown {
			seps = MarkdownSeparators
		}
		return NewRecursiveSplitter(size, overlap, seps).Split, nil
	default:
		return nil, fmt.Errorf("unknown chunking strategy %q", strategy)
	}
}

var paragraphBreak = regexp.MustCompile(`\r?\n\r?\n`)

// ParagraphChunker splits text on blank lines and greedily packs consecutive
// paragraphs, joined by a blank line, into chunks of at most maxChars
// characters. A single paragraph longer than maxChars becomes its own chunk
// unsplit. Chunks are trimmed; empty paragraphs are dropped.
func ParagraphChunker(text string, maxChars int) []Chunk {
	if maxChars <= 0 {
		maxChars = DefaultChunkSize
	}

	var (
		chunks  []Chunk
		current strings.Builder
		curLen  int
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, Chunk{Content: s, ChunkNumber: len(chunks)})
		}
		current.Reset()
		curLen = 0
	}

	for _, p := range paragraphBreak.Split(text, -1) {
		if p == "" {
			continue
		}
		pLen := utf8.RuneCountInString(p)
		if curLen > 0 && curLen+pLen+2 > maxChars {
			flush()
		}
		if curLen > 0 {
			current.WriteString("\n\n")
			curLen += 2
		}
		current.WriteString(p)
		curLen += pLen
	}
	flush()
	return chunks
}

// FixedSizeChunker splits text into fixed-size chunks with a specified overlap.
//
// This function operates on runes rather than bytes to correctly handle multi-byte
// Unicode characters (e.g., emojis, accented letters), preventing them from being
// split. The overlap keeps context across chunk boundaries.
//
// For example, with a chunkSize of 100 and an overlapSize of 20, the function
// advances by 80 runes for each new chunk. The first chunk would be runes[0:100],
// the second runes[80:180], the third runes[160:260], and so on. The last chunk
// ends at the end of the text; no chunk is wholly contained in the previous one.
func FixedSizeChunker(text string, chunkSize, overlapSize int) []Chunk {
	if chunkSize <= 0 || overlapSize < 0 || overlapSize >= chunkSize {
		// If the parameters are invalid, return the entire text as a single chunk.
		if text == "" {
			return nil
		}
		return []Chunk{{Content: text, ChunkNumber: 0}}
	}

	var chunks []Chunk
	runes := []rune(text)
	length := len(runes)

	for i := 0; i < length; i += chunkSize - overlapSize {
		end := min(i+chunkSize, length)
		chunks = append(chunks, Chunk{
			Content:     string(runes[i:end]),
			ChunkNumber: len(chunks),
		})
		if end == length {
			break
		}
	}

	return chunks
}

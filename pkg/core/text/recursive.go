package text

import (
	"strings"
	"unicode/utf8"
)

// Separator lists tried by the recursive strategies, coarsest first. The
// empty separator splits between runes.
var (
	TextSeparators     = []string{"\n\n", "\n", ". ", " ", ""}
	MarkdownSeparators = []string{"\n## ", "\n### ", "\n\n", "\n", " ", ""}
)

// RecursiveSplitter splits text on the first separator that occurs in it,
// recursing into pieces that are still too long with the next separator, and
// then merges neighboring pieces back up to Size runes. Overlap carries the
// tail pieces of a chunk, up to Overlap runes, into the next one.
type RecursiveSplitter struct {
	Size       int
	Overlap    int
	Separators []string
}

func NewRecursiveSplitter(size, overlap int, separators []string) *RecursiveSplitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if len(separators) == 0 {
		separators = TextSeparators
	}
	return &RecursiveSplitter{Size: size, Overlap: overlap, Separators: separators}
}

// Split returns the trimmed, non-empty chunks of text.
func (s *RecursiveSplitter) Split(text string) []Chunk {
	var chunks []Chunk
	for _, piece := range s.split(text, s.Separators) {
		if piece = strings.TrimSpace(piece); piece != "" {
			chunks = append(chunks, Chunk{Content: piece, ChunkNumber: len(chunks)})
		}
	}
	return chunks
}

func (s *RecursiveSplitter) split(text string, separators []string) []string {
	if len(separators) == 0 {
		return []string{text}
	}
	sep, rest := separators[0], separators[1:]

	parts := strings.Split(text, sep)
	if len(parts) == 1 && sep != "" {
		return s.split(text, rest)
	}

	var pieces []string
	for _, part := range parts {
		switch {
		case part == "":
		case utf8.RuneCountInString(part) <= s.Size || len(rest) == 0:
			pieces = append(pieces, part)
		default:
			pieces = append(pieces, s.split(part, rest)...)
		}
	}
	return s.merge(pieces, sep)
}

// merge joins pieces with sep into chunks of at most Size runes. A single
// piece longer than Size is kept whole.
func (s *RecursiveSplitter) merge(pieces []string, sep string) []string {
	sepLen := utf8.RuneCountInString(sep)
	var (
		merged  []string
		current []string
		curLen  int
	)
	joinedLen := func() int {
		if len(current) == 0 {
			return curLen
		}
		return curLen + (len(current)-1)*sepLen
	}

	for _, piece := range pieces {
		pLen := utf8.RuneCountInString(piece)
		if len(current) > 0 && joinedLen()+sepLen+pLen > s.Size {
			merged = append(merged, strings.Join(current, sep))
			current, curLen = s.keepOverlap(current, sep)
		}
		current = append(current, piece)
		curLen += pLen
	}
	if len(current) > 0 {
		merged = append(merged, strings.Join(current, sep))
	}
	return merged
}

// keepOverlap drops pieces from the front until the rest, joined, fits in
// Overlap runes. It returns the kept pieces and their length without
// separators.
func (s *RecursiveSplitter) keepOverlap(parts []string, sep string) ([]string, int) {
	if s.Overlap == 0 {
		return nil, 0
	}
	sepLen := utf8.RuneCountInString(sep)
	total := 0
	for _, p := range parts {
		total += utf8.RuneCountInString(p)
	}
	joined := total + (len(parts)-1)*sepLen

	for len(parts) > 0 && joined > s.Overlap {
		n := utf8.RuneCountInString(parts[0])
		parts = parts[1:]
		total -= n
		joined -= n
		if len(parts) > 0 {
			joined -= sepLen
		}
	}
	// Copy so later appends do not overwrite the emitted chunk's backing array.
	return append([]string(nil), parts...), total
}

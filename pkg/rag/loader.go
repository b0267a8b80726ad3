// Package rag ingests a document corpus from disk: it extracts text from the
// supported file formats, walks corpus directories and watches them for new
// or changed files.
package rag

import (
	"errors"
	"fmt"
	"os"
	"unicode/utf8"
)

// ErrUnsupported is returned for files no loader can read.
var ErrUnsupported = errors.New("rag: unsupported file type")

// Loader extracts the text of one file format.
type Loader interface {
	Load(path string) (string, error)
}

// TextLoader reads files that are already text: prose, markup, code, data.
type TextLoader struct{}

func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

func (l *TextLoader) Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrUnsupported, path)
	}
	return string(data), nil
}

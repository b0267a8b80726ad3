package rag

import (
	"fmt"
	"path/filepath"
	"strings"
)

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".rst": true,
	".json": true, ".yaml": true, ".yml": true, ".csv": true,
	".html": true, ".go": true, ".py": true, ".js": true, ".ts": true,
}

// LoaderFor selects the loader for a file by its extension.
func LoaderFor(path string) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".pdf":
		return NewPDFLoader(), nil
	case ext == ".docx":
		return NewDocxLoader(), nil
	case textExtensions[ext]:
		return NewTextLoader(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// Supported reports whether some loader handles path.
func Supported(path string) bool {
	_, err := LoaderFor(path)
	return err == nil
}

package source

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
)

// ErrExtraction is returned when a container cannot be opened or unpacked.
// It aborts the whole batch.
var ErrExtraction = errors.New("failed to extract archive")

// Page identifies one member of a source.
type Page struct {
	Name   string // path relative to the container
	Prefix string // naming prefix for its artifacts, empty for a lone image
}

type Source interface {
	Kind() string
	PageCount() int
	Page(index int) Page
	RenderPage(index int) (image.Image, error)
	// Subdir is the output sub-path for this source's artifacts, empty when
	// they go straight into the output directory.
	Subdir() string
	Close() error
}

type Options struct {
	DPI int // PDF render resolution
}

// Open picks a source by what path is: a directory, a zip/cbz archive, a PDF
// document, or otherwise a single image.
func Open(path string, opts Options) (Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	switch ext := strings.ToLower(filepath.Ext(path)); {
	case fi.IsDir():
		return NewDirSource(path)
	case ext == ".zip" || ext == ".cbz":
		return NewArchiveSource(path)
	case ext == ".pdf":
		return NewFitzPDFSource(path, opts.DPI)
	default:
		return NewImageFileSource(path), nil
	}
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

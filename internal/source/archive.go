package source

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// NewArchiveSource unpacks a zip (or cbz) archive into a fresh temporary
// directory and serves its images. Close removes the directory; when
// extraction fails it is removed before returning.
func NewArchiveSource(archivePath string) (*ImageSource, error) {
	tempDir, err := os.MkdirTemp("", "bubblecrop_")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	name := stem(archivePath)
	paths, pages, err := func() ([]string, []Page, error) {
		if err := extractZip(archivePath, tempDir); err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrExtraction, archivePath, err)
		}
		return collectImages(tempDir, name)
	}()
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, err
	}

	return &ImageSource{
		kind:    "archive",
		paths:   paths,
		pages:   pages,
		subdir:  name,
		cleanup: removeAll(tempDir),
	}, nil
}

func extractZip(archivePath, dest string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		if r != nil {
			r.Close()
		}
		return err
	}
	defer r.Close()

	clean := filepath.Clean(dest)
	root := clean + string(os.PathSeparator)
	for _, f := range r.File {
		target := filepath.Join(dest, f.Name)
		// Entries such as "./" name the extraction root itself.
		if target == clean {
			continue
		}
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("illegal path in archive: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

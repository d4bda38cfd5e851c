package source

import (
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ivlev/bubblecrop/internal/imageio"
)

// metadataDir is the resource-fork folder macOS adds to archives.
const metadataDir = "__MACOSX"

// ImageSource serves image files from disk: a lone file, a directory tree,
// or an extracted archive.
type ImageSource struct {
	kind    string
	paths   []string
	pages   []Page
	subdir  string
	cleanup func() error
}

func NewImageFileSource(path string) *ImageSource {
	return &ImageSource{
		kind:  "image",
		paths: []string{path},
		pages: []Page{{Name: filepath.Base(path)}},
	}
}

func NewDirSource(dir string) (*ImageSource, error) {
	name := filepath.Base(filepath.Clean(dir))
	paths, pages, err := collectImages(dir, name)
	if err != nil {
		return nil, err
	}

	return &ImageSource{
		kind:   "directory",
		paths:  paths,
		pages:  pages,
		subdir: name,
	}, nil
}

// collectImages walks root for page images. Hidden files and anything under
// a metadata folder are skipped. The result is ordered by bare file name;
// equal names keep walk order. Files directly in root take rootName as their
// parent folder name.
func collectImages(root, rootName string) ([]string, []Page, error) {
	var paths []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == metadataDir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !imageio.IsImageName(d.Name()) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sort.SliceStable(paths, func(i, j int) bool {
		return filepath.Base(paths[i]) < filepath.Base(paths[j])
	})

	pages := make([]Page, len(paths))
	for i, p := range paths {
		parent := filepath.Base(filepath.Dir(p))
		if filepath.Clean(filepath.Dir(p)) == filepath.Clean(root) {
			parent = rootName
		}

		name, err := filepath.Rel(root, p)
		if err != nil {
			name = filepath.Base(p)
		}

		pages[i] = Page{
			Name:   filepath.ToSlash(name),
			Prefix: parent + "_" + stem(p),
		}
	}

	return paths, pages, nil
}

func (s *ImageSource) Kind() string {
	return s.kind
}

func (s *ImageSource) PageCount() int {
	return len(s.paths)
}

func (s *ImageSource) Page(index int) Page {
	return s.pages[index]
}

func (s *ImageSource) RenderPage(index int) (image.Image, error) {
	return imageio.DecodeFile(s.paths[index])
}

func (s *ImageSource) Subdir() string {
	return s.subdir
}

func (s *ImageSource) Close() error {
	if s.cleanup == nil {
		return nil
	}
	err := s.cleanup()
	s.cleanup = nil
	return err
}

var _ Source = (*ImageSource)(nil)

func removeAll(dir string) func() error {
	return func() error {
		return os.RemoveAll(dir)
	}
}

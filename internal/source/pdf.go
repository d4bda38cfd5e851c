package source

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"

	"github.com/ivlev/bubblecrop/internal/imageio"
)

// FitzPDFSource renders PDF pages through MuPDF.
type FitzPDFSource struct {
	doc  *fitz.Document
	path string
	dpi  int
}

func NewFitzPDFSource(path string, dpi int) (*FitzPDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrExtraction, path, err)
	}
	return &FitzPDFSource{doc: doc, path: path, dpi: dpi}, nil
}

func (f *FitzPDFSource) Kind() string {
	return "pdf"
}

func (f *FitzPDFSource) PageCount() int {
	return f.doc.NumPage()
}

func (f *FitzPDFSource) Page(index int) Page {
	return Page{
		Name:   fmt.Sprintf("page %d", index+1),
		Prefix: fmt.Sprintf("page_%03d", index+1),
	}
}

// RenderPage failures are reported as decode failures so the page is
// skipped like an unreadable image.
func (f *FitzPDFSource) RenderPage(index int) (image.Image, error) {
	img, err := f.doc.ImageDPI(index, float64(f.dpi))
	if err != nil {
		return nil, fmt.Errorf("%w: %s page %d: %v", imageio.ErrDecode, f.path, index+1, err)
	}
	return img, nil
}

func (f *FitzPDFSource) Subdir() string {
	return stem(f.path)
}

func (f *FitzPDFSource) Close() error {
	return f.doc.Close()
}

package manifest

import "time"

// Version is the manifest layout version.
const Version = "1"

const (
	StatusCropped      = "cropped"
	StatusNoBubbles    = "no_bubbles"
	StatusDecodeFailed = "decode_failed"
)

// Manifest records what one run read and wrote.
type Manifest struct {
	Version     string    `yaml:"version"`
	RunID       string    `yaml:"run_id"`
	Input       string    `yaml:"input"`
	OutputDir   string    `yaml:"output_dir"`
	GeneratedAt time.Time `yaml:"generated_at"`
	Pages       []Page    `yaml:"pages"`
}

// Page is one processed source image
type Page struct {
	Name   string `yaml:"name"`
	Prefix string `yaml:"prefix,omitempty"`
	Width  int    `yaml:"width,omitempty"`
	Height int    `yaml:"height,omitempty"`
	Status string `yaml:"status"`
	Bands  []Band `yaml:"bands,omitempty"`
}

// Band is one crop interval, [Top, Bottom) rows of the page
type Band struct {
	Index   int    `yaml:"index"`
	Top     int    `yaml:"top"`
	Bottom  int    `yaml:"bottom"`
	File    string `yaml:"file,omitempty"`
	Skipped bool   `yaml:"skipped,omitempty"`
}

func New(runID, input, outputDir string) *Manifest {
	return &Manifest{
		Version:     Version,
		RunID:       runID,
		Input:       input,
		OutputDir:   outputDir,
		GeneratedAt: time.Now().UTC(),
	}
}

func (m *Manifest) Add(p Page) {
	m.Pages = append(m.Pages, p)
}

// Written counts band files across all pages.
func (m *Manifest) Written() int {
	n := 0
	for _, p := range m.Pages {
		for _, b := range p.Bands {
			if !b.Skipped {
				n++
			}
		}
	}
	return n
}

// Processed counts pages that decoded.
func (m *Manifest) Processed() int {
	n := 0
	for _, p := range m.Pages {
		if p.Status != StatusDecodeFailed {
			n++
		}
	}
	return n
}

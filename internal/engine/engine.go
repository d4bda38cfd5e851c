package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ivlev/bubblecrop/internal/cropper"
	"github.com/ivlev/bubblecrop/internal/imageio"
	"github.com/ivlev/bubblecrop/internal/manifest"
	"github.com/ivlev/bubblecrop/internal/source"
	"github.com/ivlev/bubblecrop/internal/system"
)

// ErrNotFound is returned when the input path does not exist.
var ErrNotFound = errors.New("input not found")

// Project walks an input and crops every page it yields.
type Project struct {
	Cropper *cropper.Cropper
	Sources source.Options
	RunID   string
	Log     logrus.FieldLogger

	defaultOutputDir func(logrus.FieldLogger) string
}

func NewProject(c *cropper.Cropper, opts source.Options, log logrus.FieldLogger) *Project {
	return &Project{
		Cropper:          c,
		Sources:          opts,
		RunID:            uuid.NewString(),
		Log:              log,
		defaultOutputDir: system.DefaultOutputDir,
	}
}

// Process crops inputPath, which may be a single image, a directory, a zip
// or cbz archive, or a PDF. Container pages are written below
// outputDir/<container stem>. An empty outputDir selects the platform default.
//
// Pages that fail to decode are logged and skipped. Detector and write
// failures abort the run.
func (p *Project) Process(ctx context.Context, inputPath, outputDir string) (*manifest.Manifest, error) {
	startTime := time.Now()

	if _, err := os.Stat(inputPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, inputPath)
		}
		return nil, err
	}

	if outputDir == "" {
		outputDir = p.defaultOutputDir(p.Log)
	}

	src, err := source.Open(inputPath, p.Sources)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	m := manifest.New(p.RunID, inputPath, outputDir)
	log := p.Log.WithFields(logrus.Fields{
		"run_id": p.RunID,
		"input":  inputPath,
		"kind":   src.Kind(),
	})

	pageCount := src.PageCount()
	if pageCount == 0 {
		log.Warn("[!] No images found")
		return m, nil
	}

	destDir := filepath.Join(outputDir, src.Subdir())
	log.Infof("[*] Source: %s | Pages: %d | Output: %s", inputPath, pageCount, destDir)

	for i := 0; i < pageCount; i++ {
		page := src.Page(i)

		img, err := src.RenderPage(i)
		if err != nil {
			if !errors.Is(err, imageio.ErrDecode) {
				return nil, err
			}
			log.WithFields(logrus.Fields{"page": page.Name, "error": err}).
				Warn("[!] Skipping unreadable page")
			m.Add(manifest.Page{Name: page.Name, Prefix: page.Prefix, Status: manifest.StatusDecodeFailed})
			continue
		}

		res, err := p.Cropper.Crop(ctx, img, destDir, page.Prefix)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", page.Name, err)
		}
		m.Add(pageEntry(page, res))
	}

	log.WithFields(logrus.Fields{
		"written": m.Written(),
		"elapsed": time.Since(startTime).Round(time.Millisecond),
	}).Infof("[*] Processed %d of %d images", m.Processed(), pageCount)

	return m, nil
}

func pageEntry(page source.Page, res *cropper.Result) manifest.Page {
	entry := manifest.Page{
		Name:   page.Name,
		Prefix: page.Prefix,
		Width:  res.Width,
		Height: res.Height,
		Status: manifest.StatusNoBubbles,
	}
	if len(res.Bands) == 0 {
		return entry
	}

	entry.Status = manifest.StatusCropped
	for i, b := range res.Bands {
		entry.Bands = append(entry.Bands, manifest.Band{
			Index:   b.Index,
			Top:     b.Top,
			Bottom:  b.Bottom,
			File:    res.Files[i],
			Skipped: b.Empty(),
		})
	}
	return entry
}

package cropper

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ivlev/bubblecrop/internal/analyzer"
	"github.com/ivlev/bubblecrop/internal/config"
	"github.com/ivlev/bubblecrop/internal/imageio"
	"github.com/ivlev/bubblecrop/internal/storage"
)

// Cropper turns one decoded page into bubble strips.
type Cropper struct {
	detector      analyzer.Detector
	sink          storage.Sink
	bubbleClassID int
	confidence    float64
	padding       int
	format        string
	quality       int
	log           logrus.FieldLogger
}

func NewCropper(det analyzer.Detector, sink storage.Sink, cfg *config.Config, bubbleClassID int, log logrus.FieldLogger) *Cropper {
	return &Cropper{
		detector:      det,
		sink:          sink,
		bubbleClassID: bubbleClassID,
		confidence:    cfg.Confidence,
		padding:       cfg.Padding,
		format:        cfg.OutputFormat,
		quality:       cfg.JPEGQuality,
		log:           log,
	}
}

// Result describes what happened to one page.
type Result struct {
	Width, Height int
	Bands         []Band
	Files         []string // parallel to Bands, empty for skipped bands
	Written       int
}

// FileName builds the artifact name for the band at index.
func FileName(prefix string, index int, format string) string {
	if prefix != "" {
		return fmt.Sprintf("%s_bubble_%d.%s", prefix, index, format)
	}
	return fmt.Sprintf("bubble_%d.%s", index, format)
}

// CropPage crops img and returns the number of bands written.
func (c *Cropper) CropPage(ctx context.Context, img image.Image, outputDir, prefix string) (int, error) {
	res, err := c.Crop(ctx, img, outputDir, prefix)
	if err != nil {
		return 0, err
	}
	return res.Written, nil
}

// Crop runs the detector once, derives the bands from the bubble detections
// and writes every non-empty band. Nothing touches outputDir when no band is
// written.
func (c *Cropper) Crop(ctx context.Context, img image.Image, outputDir, prefix string) (*Result, error) {
	bounds := img.Bounds()
	res := &Result{Width: bounds.Dx(), Height: bounds.Dy()}

	detections, err := c.detector.Detect(ctx, img, c.confidence)
	if err != nil {
		return nil, fmt.Errorf("detector: %w", err)
	}

	bubbles := SortByTop(FilterClass(detections, c.bubbleClassID))
	if len(bubbles) == 0 {
		c.log.WithFields(logrus.Fields{
			"prefix":     prefix,
			"detections": len(detections),
		}).Warn("No bubbles detected")
		return res, nil
	}

	boxes := make([]image.Rectangle, len(bubbles))
	for i, b := range bubbles {
		boxes[i] = b.Box
	}

	res.Bands = ComputeBands(boxes, res.Height, c.padding)
	res.Files = make([]string, len(res.Bands))

	for i, band := range res.Bands {
		if band.Empty() {
			c.log.WithFields(logrus.Fields{
				"index":  band.Index,
				"top":    band.Top,
				"bottom": band.Bottom,
			}).Debug("Skipping empty band")
			continue
		}

		rect := image.Rect(bounds.Min.X, bounds.Min.Y+band.Top, bounds.Max.X, bounds.Min.Y+band.Bottom)
		data, err := imageio.EncodeBytes(subImage(img, rect), c.format, c.quality)
		if err != nil {
			return nil, fmt.Errorf("encode band %d: %w", band.Index, err)
		}

		path := filepath.Join(outputDir, FileName(prefix, band.Index, c.format))
		if err := c.sink.Save(ctx, path, data); err != nil {
			return nil, err
		}

		res.Files[i] = path
		res.Written++
	}

	c.log.WithFields(logrus.Fields{
		"count": res.Written,
		"dir":   outputDir,
	}).Infof("Saved %d bubbles to '%s'", res.Written, outputDir)

	return res, nil
}

// subImage shares pixels when the decoder's type allows it and copies
// otherwise.
func subImage(img image.Image, r image.Rectangle) image.Image {
	if s, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return s.SubImage(r)
	}

	rgba := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, r.Min, draw.Src)
	return rgba
}

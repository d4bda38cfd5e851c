package analyzer

import (
	"context"
	"image"
)

// Detection is one object a model found on a page
type Detection struct {
	ClassID int
	// Box is relative to the page origin, so (0,0) is the top-left pixel of
	// img.Bounds() whatever its Min.
	Box        image.Rectangle
	Confidence float64 // 0.0-1.0
}

// Detector is the capability the cropper needs from a model: one call per
// page, detections at or above threshold.
type Detector interface {
	Detect(ctx context.Context, img image.Image, threshold float64) ([]Detection, error)
}

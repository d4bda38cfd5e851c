package analyzer

import (
	"context"
	"image"
	"image/color"
)

// ContrastDetector finds speech bubbles without a model: bright regions that
// are fully enclosed by darker pixels. Regions touching the page border are
// treated as background.
type ContrastDetector struct {
	ClassID         int
	BrightThreshold uint8   // gray level counted as bubble interior
	MinBlockArea    int     // Minimum area in pixels²
	MaxAreaRatio    float64 // largest region relative to the page
}

// NewContrastDetector creates a new contrast-based detector with default settings
func NewContrastDetector(classID int) *ContrastDetector {
	return &ContrastDetector{
		ClassID:         classID,
		BrightThreshold: 200,
		MinBlockArea:    500, // ~22x22 pixels minimum
		MaxAreaRatio:    0.5,
	}
}

// Detect reports one detection per enclosed bright region. Confidence is the
// share of the bounding box the region fills, so ragged shapes score low.
func (d *ContrastDetector) Detect(ctx context.Context, img image.Image, threshold float64) ([]Detection, error) {
	gray := toGrayscale(img)
	bounds := gray.Bounds()
	pageArea := bounds.Dx() * bounds.Dy()

	detections := []Detection{}
	for _, r := range findRegions(gray, d.BrightThreshold) {
		if r.touchesBorder || r.area < d.MinBlockArea {
			continue
		}
		boxArea := r.rect.Dx() * r.rect.Dy()
		if float64(boxArea) > d.MaxAreaRatio*float64(pageArea) {
			continue
		}

		confidence := float64(r.area) / float64(boxArea)
		if confidence < threshold {
			continue
		}
		detections = append(detections, Detection{
			ClassID:    d.ClassID,
			Box:        r.rect.Sub(bounds.Min),
			Confidence: confidence,
		})
	}

	return detections, nil
}

// toGrayscale converts an image to grayscale
func toGrayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}

	bounds := img.Bounds()
	gray := image.NewGray(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}

	return gray
}

type region struct {
	rect          image.Rectangle
	area          int
	touchesBorder bool
}

// findRegions labels 4-connected components of pixels at or above level.
func findRegions(img *image.Gray, level uint8) []region {
	bounds := img.Bounds()
	visited := make([][]bool, bounds.Dy())
	for i := range visited {
		visited[i] = make([]bool, bounds.Dx())
	}

	regions := []region{}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if img.GrayAt(x, y).Y >= level && !visited[y-bounds.Min.Y][x-bounds.Min.X] {
				regions = append(regions, floodFill(img, visited, level, x, y))
			}
		}
	}

	return regions
}

// floodFill walks one component and returns its bounds and pixel count
func floodFill(img *image.Gray, visited [][]bool, level uint8, startX, startY int) region {
	bounds := img.Bounds()
	minX, minY := startX, startY
	maxX, maxY := startX, startY
	area := 0
	border := false

	stack := []image.Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		x, y := p.X, p.Y

		if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}

		if visited[y-bounds.Min.Y][x-bounds.Min.X] || img.GrayAt(x, y).Y < level {
			continue
		}

		visited[y-bounds.Min.Y][x-bounds.Min.X] = true
		area++

		if x == bounds.Min.X || x == bounds.Max.X-1 || y == bounds.Min.Y || y == bounds.Max.Y-1 {
			border = true
		}

		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)

		stack = append(stack,
			image.Point{X: x + 1, Y: y},
			image.Point{X: x - 1, Y: y},
			image.Point{X: x, Y: y + 1},
			image.Point{X: x, Y: y - 1},
		)
	}

	return region{
		rect:          image.Rect(minX, minY, maxX+1, maxY+1),
		area:          area,
		touchesBorder: border,
	}
}

package cropper

import (
	"image"
	"sort"

	"github.com/ivlev/bubblecrop/internal/analyzer"
)

// Band is one full-width strip [Top, Bottom) of a page.
type Band struct {
	Index  int // 1-based position among the sorted bubbles
	Top    int
	Bottom int
}

// Empty reports a degenerate band that is skipped but keeps its index.
func (b Band) Empty() bool {
	return b.Top >= b.Bottom
}

// FilterClass keeps the detections of one class, in detector order.
func FilterClass(detections []analyzer.Detection, classID int) []analyzer.Detection {
	kept := make([]analyzer.Detection, 0, len(detections))
	for _, d := range detections {
		if d.ClassID == classID {
			kept = append(kept, d)
		}
	}
	return kept
}

// SortByTop orders detections by their top edge. Ties keep detector order.
func SortByTop(detections []analyzer.Detection) []analyzer.Detection {
	sorted := make([]analyzer.Detection, len(detections))
	copy(sorted, detections)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Box.Min.Y < sorted[j].Box.Min.Y
	})

	return sorted
}

// ComputeBands derives one band per box. boxes must already be sorted by top
// edge. Every band starts at the topmost box's top, so later bands contain
// all earlier ones.
func ComputeBands(boxes []image.Rectangle, height, padding int) []Band {
	if len(boxes) == 0 {
		return nil
	}

	top := max(0, boxes[0].Min.Y-padding)

	bands := make([]Band, len(boxes))
	for i, box := range boxes {
		bands[i] = Band{
			Index:  i + 1,
			Top:    top,
			Bottom: min(height, box.Max.Y+padding),
		}
	}
	return bands
}

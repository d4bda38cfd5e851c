//go:build gocv

package analyzer

import (
	"context"
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"
)

// ONNXDetector runs a YOLOv8 export through the OpenCV DNN module. Output
// is laid out as [1, 4+classes, anchors] with boxes as cx, cy, w, h in input
// pixels.
type ONNXDetector struct {
	net          gocv.Net
	inputSize    int
	nmsThreshold float32
}

func NewONNXDetector(modelPath string) (*ONNXDetector, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("onnx model: %w", err)
	}

	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load ONNX model: %s", modelPath)
	}

	return &ONNXDetector{
		net:          net,
		inputSize:    640,
		nmsThreshold: 0.45,
	}, nil
}

func (d *ONNXDetector) Detect(ctx context.Context, img image.Image, threshold float64) ([]Detection, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert page: %w", err)
	}
	defer mat.Close()

	// Mat data is BGR; the model was trained on RGB.
	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(d.inputSize, d.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	sizes := out.Size()
	if len(sizes) != 3 || sizes[1] < 5 {
		return nil, fmt.Errorf("unexpected model output shape %v", sizes)
	}
	rows, anchors := sizes[1], sizes[2]

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read model output: %w", err)
	}

	bounds := img.Bounds()
	scaleX := float64(bounds.Dx()) / float64(d.inputSize)
	scaleY := float64(bounds.Dy()) / float64(d.inputSize)

	var (
		boxes   []image.Rectangle
		scores  []float32
		classes []int
	)
	for a := 0; a < anchors; a++ {
		best, bestScore := -1, float32(0)
		for c := 4; c < rows; c++ {
			if s := data[c*anchors+a]; s > bestScore {
				best, bestScore = c-4, s
			}
		}
		if best < 0 || float64(bestScore) < threshold {
			continue
		}

		cx, cy := float64(data[a]), float64(data[anchors+a])
		w, h := float64(data[2*anchors+a]), float64(data[3*anchors+a])
		boxes = append(boxes, image.Rect(
			int((cx-w/2)*scaleX), int((cy-h/2)*scaleY),
			int((cx+w/2)*scaleX), int((cy+h/2)*scaleY),
		))
		scores = append(scores, bestScore)
		classes = append(classes, best)
	}

	if len(boxes) == 0 {
		return nil, nil
	}

	keep := gocv.NMSBoxes(boxes, scores, float32(threshold), d.nmsThreshold)
	detections := make([]Detection, 0, len(keep))
	for _, i := range keep {
		detections = append(detections, Detection{
			ClassID:    classes[i],
			Box:        boxes[i].Intersect(image.Rect(0, 0, bounds.Dx(), bounds.Dy())),
			Confidence: float64(scores[i]),
		})
	}
	return detections, nil
}

func (d *ONNXDetector) Close() error {
	return d.net.Close()
}

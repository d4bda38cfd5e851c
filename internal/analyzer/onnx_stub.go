//go:build !gocv

package analyzer

import (
	"context"
	"errors"
	"image"
)

// ErrONNXUnavailable is returned when the binary was built without OpenCV.
var ErrONNXUnavailable = errors.New("onnx detector requires a build with -tags gocv")

type ONNXDetector struct{}

func NewONNXDetector(modelPath string) (*ONNXDetector, error) {
	return nil, ErrONNXUnavailable
}

func (d *ONNXDetector) Detect(ctx context.Context, img image.Image, threshold float64) ([]Detection, error) {
	return nil, ErrONNXUnavailable
}

func (d *ONNXDetector) Close() error {
	return nil
}
